package usecase

import (
	"context"
	"fmt"

	"gradient/model"
	"gradient/repository"
	"gradient/services"
	"gradient/utils"

	"github.com/sirupsen/logrus"
)

// MediaStore uploads attachments and removes their blobs.
type MediaStore interface {
	UploadAll(ctx context.Context, uploads []services.PendingUpload) ([]model.Attachment, error)
	Delete(ctx context.Context, url string) error
}

type NotesService struct {
	store repository.Store
	media MediaStore
	clock utils.Clock
	log   *logrus.Entry
}

func NewNotesService(store repository.Store, media MediaStore) *NotesService {
	return &NotesService{
		store: store,
		media: media,
		clock: utils.RealClock{},
		log:   utils.Component("notes"),
	}
}

func (s *NotesService) WithClock(clock utils.Clock) *NotesService {
	s.clock = clock
	return s
}

// WatchNotes starts a live collection of the project's notes, newest first.
func (s *NotesService) WatchNotes(ctx context.Context, projectID string) (*LiveCollection[model.Note], error) {
	live := NewLiveCollection(s.store, repository.NotesCollection, repository.Where("projectId", projectID),
		model.NoteFromDocument, NoteLess)
	if err := live.Start(ctx); err != nil {
		return nil, err
	}
	return live, nil
}

func (s *NotesService) ListNotes(ctx context.Context, projectID string) ([]model.Note, error) {
	docs, err := s.store.Query(ctx, repository.NotesCollection, repository.Where("projectId", projectID))
	if err != nil {
		return nil, err
	}
	notes, skipped := decodeAll(docs, model.NoteFromDocument, s.log)
	utils.TrackSkippedDocuments(repository.NotesCollection, skipped)
	sortSlice(notes, NoteLess)
	return notes, nil
}

func (s *NotesService) GetNote(ctx context.Context, id string) (model.Note, error) {
	doc, err := s.store.Get(ctx, repository.NotesCollection, id)
	if err != nil {
		return model.Note{}, err
	}
	return model.NoteFromDocument(doc)
}

// CreateNote uploads the pending media, writes the note and links it to
// its project. Uploads beyond the note's free attachment slots are ignored.
// If any upload fails the note is not written.
func (s *NotesService) CreateNote(ctx context.Context, n *model.Note, uploads []services.PendingUpload) error {
	if n.ID == "" {
		n.ID = utils.NewID()
	}
	n.Normalize()
	now := s.clock.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	if err := utils.ValidateStruct("note", n); err != nil {
		return err
	}

	if err := s.attachUploads(ctx, n, uploads); err != nil {
		return err
	}
	if err := s.store.Put(ctx, repository.NotesCollection, n.ID, n.ToDocument()); err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return linkChild(ctx, s.store, n.ProjectID, "notes", n.ID, now)
}

// UpdateNote writes the note's editable fields and appends newly uploaded
// media. Blobs of attachments dropped from the note are deleted
// best-effort after the write.
func (s *NotesService) UpdateNote(ctx context.Context, n *model.Note, uploads []services.PendingUpload) error {
	doc, err := s.store.Get(ctx, repository.NotesCollection, n.ID)
	if err != nil {
		return fmt.Errorf("failed to load note: %w", err)
	}
	storedProject, _ := doc["projectId"].(string)
	if n.ProjectID == "" {
		n.ProjectID = storedProject
	} else if storedProject != "" && n.ProjectID != storedProject {
		return &model.ValidationError{Entity: "note", Field: "projectId", Reason: "cannot change"}
	}

	keepCreatedAt := false
	if current, err := model.NoteFromDocument(doc); err == nil {
		n.CreatedAt = current.CreatedAt
		keepCreatedAt = true
	}

	n.Normalize()
	now := s.clock.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if err := utils.ValidateStruct("note", n); err != nil {
		return err
	}
	if err := s.attachUploads(ctx, n, uploads); err != nil {
		return err
	}

	fields := patchFields(n.ToDocument(), []string{"id", "projectId"}, []string{"title", "latitude", "longitude"})
	if keepCreatedAt {
		delete(fields, "createdAt")
	}
	if err := s.store.Patch(ctx, repository.NotesCollection, n.ID, fields); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	dropped := droppedBlobs(model.BlobURLsFromDocument(doc), n.BlobURLs())
	deleteBlobs(context.WithoutCancel(ctx), s.media, dropped, s.log.WithField("note", n.ID))
	touchProject(ctx, s.store, n.ProjectID, now, s.log)
	return nil
}

// DeleteNote removes the note, unlinks it from its project and then deletes
// its attachment blobs best-effort.
func (s *NotesService) DeleteNote(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, repository.NotesCollection, id)
	if err != nil {
		return fmt.Errorf("failed to load note: %w", err)
	}
	projectID, _ := doc["projectId"].(string)

	if err := s.store.Delete(ctx, repository.NotesCollection, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	var unlinkErr error
	if projectID != "" {
		unlinkErr = unlinkChild(ctx, s.store, projectID, "notes", id, s.clock.Now())
	}
	deleteBlobs(context.WithoutCancel(ctx), s.media, model.BlobURLsFromDocument(doc), s.log.WithField("note", id))
	return unlinkErr
}

func (s *NotesService) attachUploads(ctx context.Context, n *model.Note, uploads []services.PendingUpload) error {
	if free := n.RemainingSlots(); len(uploads) > free {
		s.log.WithFields(logrus.Fields{"note": n.ID, "ignored": len(uploads) - free}).Info("note is full, ignoring extra media")
		uploads = uploads[:free]
	}
	if len(uploads) == 0 {
		return nil
	}
	if s.media == nil {
		return &services.UploadError{Type: uploads[0].Type, Err: fmt.Errorf("no media store configured")}
	}
	attachments, err := s.media.UploadAll(ctx, uploads)
	if err != nil {
		return err
	}
	n.Attachments = append(n.Attachments, attachments...)
	n.Normalize()
	return nil
}

func droppedBlobs(before, after []string) []string {
	kept := make(map[string]struct{}, len(after))
	for _, url := range after {
		kept[url] = struct{}{}
	}
	dropped := []string{}
	for _, url := range before {
		if _, ok := kept[url]; !ok {
			dropped = append(dropped, url)
		}
	}
	return dropped
}
