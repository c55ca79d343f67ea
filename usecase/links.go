package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gradient/model"
	"gradient/repository"
	"gradient/utils"

	"github.com/sirupsen/logrus"
)

const reminderTitle = "Task Reminder"

// Notifier schedules and cancels local reminders for tasks.
type Notifier interface {
	Schedule(ctx context.Context, id, title, body string, fireAt time.Time) error
	Cancel(ctx context.Context, id string) error
}

// BlobRemover deletes stored media by URL.
type BlobRemover interface {
	Delete(ctx context.Context, url string) error
}

// linkChild adds childID to the parent project's back-reference field.
func linkChild(ctx context.Context, store repository.Store, projectID, field, childID string, now time.Time) error {
	err := store.Patch(ctx, repository.ProjectsCollection, projectID, model.Document{
		field:       repository.ArrayUnion(childID),
		"updatedAt": model.EpochSeconds(now),
	})
	return markPartial(err, projectID)
}

// unlinkChild removes childID from the parent project's back-reference field.
func unlinkChild(ctx context.Context, store repository.Store, projectID, field, childID string, now time.Time) error {
	err := store.Patch(ctx, repository.ProjectsCollection, projectID, model.Document{
		field:       repository.ArrayRemove(childID),
		"updatedAt": model.EpochSeconds(now),
	})
	return markPartial(err, projectID)
}

// touchProject bumps the parent's updatedAt. Failures are only logged.
func touchProject(ctx context.Context, store repository.Store, projectID string, now time.Time, log *logrus.Entry) {
	err := store.Patch(ctx, repository.ProjectsCollection, projectID, model.Document{
		"updatedAt": model.EpochSeconds(now),
	})
	if err != nil {
		log.WithError(err).WithField("project", projectID).Warn("failed to update project timestamp")
	}
}

// markPartial flags a failed parent update that follows a successful
// child write.
func markPartial(err error, projectID string) error {
	if err == nil {
		return nil
	}
	utils.TrackError("sync", "partial_cascade")
	var se *repository.StoreError
	if errors.As(err, &se) {
		partial := *se
		partial.Partial = true
		return &partial
	}
	return &repository.StoreError{
		Op:         "patch",
		Collection: repository.ProjectsCollection,
		ID:         projectID,
		Partial:    true,
		Err:        err,
	}
}

// patchFields turns a full document into patch fields: immutable keys are
// dropped and absent optional keys are deleted from the stored document.
func patchFields(doc model.Document, immutable, optional []string) model.Document {
	fields := make(model.Document, len(doc))
	for k, v := range doc {
		fields[k] = v
	}
	for _, k := range immutable {
		delete(fields, k)
	}
	for _, k := range optional {
		if _, ok := fields[k]; !ok {
			fields[k] = repository.DeleteField
		}
	}
	return fields
}

// deleteBlobs removes blobs best-effort and returns how many failed.
func deleteBlobs(ctx context.Context, blobs BlobRemover, urls []string, log *logrus.Entry) int {
	if blobs == nil {
		return 0
	}
	failures := 0
	for _, url := range urls {
		if err := blobs.Delete(ctx, url); err != nil {
			failures++
			utils.TrackBlobCleanupFailure()
			log.WithError(err).WithField("url", url).Warn("failed to delete blob")
		}
	}
	return failures
}

type reminderAction int

const (
	reminderNone reminderAction = iota
	reminderSchedule
	reminderCancel
)

// reminderChange decides the single notifier call for a task mutation.
// prev is nil for a create or when the previous state is unknown; next is
// nil for a delete.
func reminderChange(prev *model.Task, prevKnown bool, next *model.Task) reminderAction {
	wasArmed := prev != nil && prev.ReminderArmed()
	isArmed := next != nil && next.ReminderArmed()

	if !prevKnown && next != nil {
		if isArmed {
			return reminderSchedule
		}
		return reminderCancel
	}
	switch {
	case isArmed && !wasArmed:
		return reminderSchedule
	case isArmed && wasArmed && !prev.NotificationDate.Equal(*next.NotificationDate):
		return reminderSchedule
	case !isArmed && wasArmed:
		return reminderCancel
	}
	return reminderNone
}

func reminderBody(t model.Task) string {
	return fmt.Sprintf("Task: %s", t.Title)
}
