package repository

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"gradient/model"
)

type memoryWatch struct {
	filter Filter
	sub    *Subscription
}

// MemoryStore is an in-process Store. Every committed write publishes a new
// snapshot to the watchers of the collection it touched.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]model.Document
	watchers    map[string]map[*memoryWatch]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]model.Document),
		watchers:    make(map[string]map[*memoryWatch]struct{}),
	}
}

func (s *MemoryStore) Watch(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	sub := NewSubscription(ctx)
	w := &memoryWatch{filter: filter, sub: sub}

	s.mu.Lock()
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[*memoryWatch]struct{})
	}
	s.watchers[collection][w] = struct{}{}
	sub.Publish(s.queryLocked(collection, filter))
	s.mu.Unlock()

	if !sub.setOnClose(func() { s.unwatch(collection, w) }) {
		s.unwatch(collection, w)
	}
	return sub, nil
}

func (s *MemoryStore) unwatch(collection string, w *memoryWatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[collection], w)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filter Filter) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("query", collection, "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, filter), nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("get", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, storeError("get", collection, id, ErrNotFound)
	}
	return withID(cloneDocument(doc), id), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, fields model.Document) error {
	if err := ctx.Err(); err != nil {
		return storeError("put", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(collection, id, fields)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Patch(ctx context.Context, collection, id string, fields model.Document) error {
	if err := ctx.Err(); err != nil {
		return storeError("patch", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return storeError("patch", collection, id, ErrNotFound)
	}
	applyPatch(doc, fields)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return storeError("delete", collection, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return nil
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Batch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) putLocked(collection, id string, fields model.Document) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]model.Document)
	}
	s.collections[collection][id] = withID(cloneDocument(fields), id)
}

func (s *MemoryStore) queryLocked(collection string, filter Filter) []model.Document {
	ids := make([]string, 0, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		if filter.Matches(doc) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, withID(cloneDocument(s.collections[collection][id]), id))
	}
	return docs
}

func (s *MemoryStore) notifyLocked(collection string) {
	for w := range s.watchers[collection] {
		w.sub.Publish(s.queryLocked(collection, w.filter))
	}
}

type memoryBatch struct {
	store     *MemoryStore
	ops       []batchOp
	committed bool
}

func (b *memoryBatch) Put(collection, id string, fields model.Document) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: cloneDocument(fields)})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, delete: true})
}

func (b *memoryBatch) Len() int {
	return len(b.ops)
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if b.committed {
		return storeError("commit", "", "", ErrBatchCommitted)
	}
	if err := ctx.Err(); err != nil {
		return storeError("commit", "", "", err)
	}
	b.committed = true

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]struct{})
	for _, op := range b.ops {
		touched[op.collection] = struct{}{}
		if op.delete {
			delete(s.collections[op.collection], op.id)
			continue
		}
		s.putLocked(op.collection, op.id, op.fields)
	}
	for collection := range touched {
		s.notifyLocked(collection)
	}
	return nil
}

// applyPatch writes fields into doc, resolving array and delete sentinels.
func applyPatch(doc model.Document, fields model.Document) {
	for key, value := range fields {
		switch v := value.(type) {
		case deleteField:
			delete(doc, key)
		case arrayUnion:
			list := listValue(doc[key])
			for _, item := range v.values {
				if !containsValue(list, item) {
					list = append(list, item)
				}
			}
			doc[key] = list
		case arrayRemove:
			list := listValue(doc[key])
			kept := make([]interface{}, 0, len(list))
			for _, item := range list {
				if !containsValue(v.values, item) {
					kept = append(kept, item)
				}
			}
			doc[key] = kept
		default:
			doc[key] = cloneValue(value)
		}
	}
}

func listValue(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return append([]interface{}{}, list...)
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return []interface{}{}
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

func withID(doc model.Document, id string) model.Document {
	if _, ok := doc["id"]; !ok {
		doc["id"] = id
	}
	return doc
}

func cloneDocument(doc model.Document) model.Document {
	out := make(model.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneDocument(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, val...)
	}
	return v
}
