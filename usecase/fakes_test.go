package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"gradient/model"
	"gradient/repository"
	"gradient/services"
)

var errInjected = errors.New("injected failure")

// faultyStore wraps a MemoryStore and fails selected operations.
type faultyStore struct {
	*repository.MemoryStore

	mu         sync.Mutex
	failPut    map[string]bool // by collection
	failPatch  map[string]bool // by collection
	failCommit bool
	batches    []*recordingBatch
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: repository.NewMemoryStore(),
		failPut:     map[string]bool{},
		failPatch:   map[string]bool{},
	}
}

func (s *faultyStore) Put(ctx context.Context, collection, id string, fields model.Document) error {
	s.mu.Lock()
	fail := s.failPut[collection]
	s.mu.Unlock()
	if fail {
		return &repository.StoreError{Op: "put", Collection: collection, ID: id, Err: errInjected}
	}
	return s.MemoryStore.Put(ctx, collection, id, fields)
}

func (s *faultyStore) Patch(ctx context.Context, collection, id string, fields model.Document) error {
	s.mu.Lock()
	fail := s.failPatch[collection]
	s.mu.Unlock()
	if fail {
		return &repository.StoreError{Op: "patch", Collection: collection, ID: id, Err: errInjected}
	}
	return s.MemoryStore.Patch(ctx, collection, id, fields)
}

func (s *faultyStore) Batch() repository.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &recordingBatch{inner: s.MemoryStore.Batch(), fail: s.failCommit}
	s.batches = append(s.batches, b)
	return b
}

type recordingBatch struct {
	inner     repository.Batch
	fail      bool
	deletes   []string
	committed bool
}

func (b *recordingBatch) Put(collection, id string, fields model.Document) {
	b.inner.Put(collection, id, fields)
}

func (b *recordingBatch) Delete(collection, id string) {
	b.deletes = append(b.deletes, collection+"/"+id)
	b.inner.Delete(collection, id)
}

func (b *recordingBatch) Len() int {
	return b.inner.Len()
}

func (b *recordingBatch) Commit(ctx context.Context) error {
	if b.fail {
		return &repository.StoreError{Op: "commit", Err: errInjected}
	}
	b.committed = true
	return b.inner.Commit(ctx)
}

type fakeBlobs struct {
	mu       sync.Mutex
	deleted  []string
	failURLs map[string]bool
}

func (f *fakeBlobs) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	if f.failURLs[url] {
		return errInjected
	}
	return nil
}

// fakeMedia uploads into memory and fails uploads of the types in failTypes.
type fakeMedia struct {
	fakeBlobs
	uploads   int
	failTypes map[model.AttachmentType]bool
}

func (f *fakeMedia) UploadAll(_ context.Context, uploads []services.PendingUpload) ([]model.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attachments := make([]model.Attachment, 0, len(uploads))
	var failure error
	for _, u := range uploads {
		f.uploads++
		if f.failTypes[u.Type] {
			failure = &services.UploadError{Type: u.Type, Err: errInjected}
			continue
		}
		url := "mem://attachments/" + string(u.Type)
		thumb := ""
		if u.Type == model.AttachmentImage {
			thumb = "mem://attachments/thumbnails/" + string(u.Type)
		}
		attachments = append(attachments, model.NewAttachment(u.Type, url, thumb))
	}
	if failure != nil {
		return nil, failure
	}
	return attachments, nil
}

type notifierCall struct {
	op     string
	id     string
	body   string
	fireAt time.Time
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
	err   error
}

func (f *fakeNotifier) Schedule(_ context.Context, id, _, body string, fireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{op: "schedule", id: id, body: body, fireAt: fireAt})
	return f.err
}

func (f *fakeNotifier) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{op: "cancel", id: id})
	return f.err
}

func (f *fakeNotifier) reset() []notifierCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}
