package usecase

import (
	"context"
	"fmt"

	"gradient/model"
	"gradient/repository"
	"gradient/utils"

	"github.com/sirupsen/logrus"
)

type ProjectsService struct {
	store    repository.Store
	blobs    BlobRemover
	notifier Notifier
	clock    utils.Clock
	log      *logrus.Entry
}

func NewProjectsService(store repository.Store, blobs BlobRemover, notifier Notifier) *ProjectsService {
	return &ProjectsService{
		store:    store,
		blobs:    blobs,
		notifier: notifier,
		clock:    utils.RealClock{},
		log:      utils.Component("projects"),
	}
}

func (s *ProjectsService) WithClock(clock utils.Clock) *ProjectsService {
	s.clock = clock
	return s
}

// CascadeReport describes what a project delete removed.
type CascadeReport struct {
	ProjectID          string   `json:"projectId"`
	TaskIDs            []string `json:"taskIds"`
	NoteIDs            []string `json:"noteIds"`
	BlobsAttempted     int      `json:"blobsAttempted"`
	BlobFailures       int      `json:"blobFailures"`
	RemindersCancelled int      `json:"remindersCancelled"`
}

// WatchProjects starts a live collection of every project, ordered by name.
func (s *ProjectsService) WatchProjects(ctx context.Context) (*LiveCollection[model.Project], error) {
	live := NewLiveCollection(s.store, repository.ProjectsCollection, repository.Filter{},
		model.ProjectFromDocument, ProjectLess)
	if err := live.Start(ctx); err != nil {
		return nil, err
	}
	return live, nil
}

// SearchProjects narrows a live project collection to the scoped query.
func (s *ProjectsService) SearchProjects(live *LiveCollection[model.Project], scope SearchScope, query string) {
	live.SetFilter(ProjectMatcher(scope, query))
}

func (s *ProjectsService) ListProjects(ctx context.Context) ([]model.Project, error) {
	docs, err := s.store.Query(ctx, repository.ProjectsCollection, repository.Filter{})
	if err != nil {
		return nil, err
	}
	projects, skipped := decodeAll(docs, model.ProjectFromDocument, s.log)
	utils.TrackSkippedDocuments(repository.ProjectsCollection, skipped)
	sortSlice(projects, ProjectLess)
	return projects, nil
}

func (s *ProjectsService) GetProject(ctx context.Context, id string) (model.Project, error) {
	doc, err := s.store.Get(ctx, repository.ProjectsCollection, id)
	if err != nil {
		return model.Project{}, err
	}
	return model.ProjectFromDocument(doc)
}

// CreateProject writes a new project. Children are linked later by the task
// and note services, so the back-reference lists start empty.
func (s *ProjectsService) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = utils.NewID()
	}
	p.Tasks = []string{}
	p.Notes = []string{}
	p.Normalize()
	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := utils.ValidateStruct("project", p); err != nil {
		return err
	}
	if err := s.store.Put(ctx, repository.ProjectsCollection, p.ID, p.ToDocument()); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	s.log.WithField("project", p.ID).Info("project created")
	return nil
}

// UpdateProject writes the editable project fields. The tasks and notes
// lists are left to the task and note services.
func (s *ProjectsService) UpdateProject(ctx context.Context, p *model.Project) error {
	p.Normalize()
	p.UpdatedAt = s.clock.Now()
	if err := utils.ValidateStruct("project", p); err != nil {
		return err
	}

	fields := patchFields(p.ToDocument(), []string{"id", "createdAt", "tasks", "notes"}, nil)
	if err := s.store.Patch(ctx, repository.ProjectsCollection, p.ID, fields); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// DeleteProject removes the project with all its tasks and notes in one
// batch, then deletes attachment blobs and cancels reminders best-effort.
// Nothing is deleted if collecting the children or the batch fails.
func (s *ProjectsService) DeleteProject(ctx context.Context, projectID string) (*CascadeReport, error) {
	byProject := repository.Where("projectId", projectID)

	taskDocs, err := s.store.Query(ctx, repository.TasksCollection, byProject)
	if err != nil {
		return nil, fmt.Errorf("failed to collect tasks of project %s: %w", projectID, err)
	}
	noteDocs, err := s.store.Query(ctx, repository.NotesCollection, byProject)
	if err != nil {
		return nil, fmt.Errorf("failed to collect notes of project %s: %w", projectID, err)
	}

	report := &CascadeReport{ProjectID: projectID, TaskIDs: []string{}, NoteIDs: []string{}}
	var blobURLs []string
	batch := s.store.Batch()
	for _, doc := range taskDocs {
		id, _ := doc["id"].(string)
		batch.Delete(repository.TasksCollection, id)
		report.TaskIDs = append(report.TaskIDs, id)
	}
	for _, doc := range noteDocs {
		id, _ := doc["id"].(string)
		batch.Delete(repository.NotesCollection, id)
		report.NoteIDs = append(report.NoteIDs, id)
		blobURLs = append(blobURLs, model.BlobURLsFromDocument(doc)...)
	}
	batch.Delete(repository.ProjectsCollection, projectID)

	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}

	log := s.log.WithField("project", projectID)
	cleanupCtx := context.WithoutCancel(ctx)
	report.BlobsAttempted = len(blobURLs)
	report.BlobFailures = deleteBlobs(cleanupCtx, s.blobs, blobURLs, log)

	if s.notifier != nil {
		for _, doc := range taskDocs {
			task, err := model.TaskFromDocument(doc)
			if err != nil || !task.ReminderArmed() {
				continue
			}
			if err := s.notifier.Cancel(cleanupCtx, task.ID); err != nil {
				log.WithError(err).WithField("task", task.ID).Warn("failed to cancel reminder")
				continue
			}
			report.RemindersCancelled++
		}
	}

	log.WithFields(logrus.Fields{
		"tasks":        len(report.TaskIDs),
		"notes":        len(report.NoteIDs),
		"blobFailures": report.BlobFailures,
	}).Info("project deleted")
	return report, nil
}
