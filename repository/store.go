package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gradient/model"
)

const (
	ProjectsCollection = "projects"
	TasksCollection    = "tasks"
	NotesCollection    = "notes"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrPartialCascade  = errors.New("write applied but parent update failed")
	ErrBatchCommitted  = errors.New("batch already committed")
	ErrSubscriptionEnd = errors.New("subscription ended")
)

// StoreError wraps every failure reported by a Store.
type StoreError struct {
	Op         string
	Collection string
	ID         string
	// Partial is set when an earlier step of a multi-step mutation already
	// succeeded and was not undone.
	Partial bool
	Err     error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Collection)
	if e.ID != "" {
		msg += "/" + e.ID
	}
	if e.Partial {
		msg += " (partial)"
	}
	return msg + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrPartialCascade && e.Partial
}

func storeError(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: collection, ID: id, Err: err}
}

// Filter restricts a query or watch to documents whose Field equals Value.
// The zero Filter matches everything.
type Filter struct {
	Field string
	Value interface{}
}

func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

func (f Filter) IsZero() bool {
	return f.Field == ""
}

func (f Filter) Matches(doc model.Document) bool {
	if f.IsZero() {
		return true
	}
	return reflect.DeepEqual(doc[f.Field], f.Value)
}

// arrayUnion adds values to an array field, skipping ones already present.
type arrayUnion struct {
	values []interface{}
}

// arrayRemove removes every occurrence of values from an array field.
type arrayRemove struct {
	values []interface{}
}

type deleteField struct{}

func ArrayUnion(values ...interface{}) interface{} {
	return arrayUnion{values: values}
}

func ArrayRemove(values ...interface{}) interface{} {
	return arrayRemove{values: values}
}

// DeleteField removes the field when used as a Patch value.
var DeleteField interface{} = deleteField{}

// Snapshot is the full filtered content of a collection at one point.
type Snapshot struct {
	Seq       uint64
	Documents []model.Document
}

// Store is the document database the sync core reads and writes. Documents
// returned by a Store always carry their key under "id".
type Store interface {
	Watch(ctx context.Context, collection string, filter Filter) (*Subscription, error)
	Query(ctx context.Context, collection string, filter Filter) ([]model.Document, error)
	Get(ctx context.Context, collection, id string) (model.Document, error)
	// Put writes the whole document, creating it if needed.
	Put(ctx context.Context, collection, id string, fields model.Document) error
	// Patch updates only the given fields and fails with ErrNotFound when
	// the document does not exist.
	Patch(ctx context.Context, collection, id string, fields model.Document) error
	Delete(ctx context.Context, collection, id string) error
	Batch() Batch
	Ping(ctx context.Context) error
}

// Batch groups puts and deletes that are committed all-or-nothing.
type Batch interface {
	Put(collection, id string, fields model.Document)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

type batchOp struct {
	collection string
	id         string
	fields     model.Document
	delete     bool
}
