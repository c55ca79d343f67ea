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

type TasksService struct {
	store    repository.Store
	notifier Notifier
	clock    utils.Clock
	log      *logrus.Entry
}

func NewTasksService(store repository.Store, notifier Notifier) *TasksService {
	return &TasksService{
		store:    store,
		notifier: notifier,
		clock:    utils.RealClock{},
		log:      utils.Component("tasks"),
	}
}

func (s *TasksService) WithClock(clock utils.Clock) *TasksService {
	s.clock = clock
	return s
}

// WatchTasks starts a live collection of the project's tasks.
func (s *TasksService) WatchTasks(ctx context.Context, projectID string) (*LiveCollection[model.Task], error) {
	live := NewLiveCollection(s.store, repository.TasksCollection, repository.Where("projectId", projectID),
		model.TaskFromDocument, TaskLess)
	if err := live.Start(ctx); err != nil {
		return nil, err
	}
	return live, nil
}

func (s *TasksService) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	docs, err := s.store.Query(ctx, repository.TasksCollection, repository.Where("projectId", projectID))
	if err != nil {
		return nil, err
	}
	tasks, skipped := decodeAll(docs, model.TaskFromDocument, s.log)
	utils.TrackSkippedDocuments(repository.TasksCollection, skipped)
	sortSlice(tasks, TaskLess)
	return tasks, nil
}

func (s *TasksService) GetTask(ctx context.Context, id string) (model.Task, error) {
	doc, err := s.store.Get(ctx, repository.TasksCollection, id)
	if err != nil {
		return model.Task{}, err
	}
	return model.TaskFromDocument(doc)
}

// CreateTask writes the task and links it to its project. If the task write
// fails nothing else happens; if linking fails the task stays and the
// returned error matches repository.ErrPartialCascade.
func (s *TasksService) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = utils.NewID()
	}
	t.Normalize()
	now := s.clock.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := utils.ValidateStruct("task", t); err != nil {
		return err
	}

	if err := s.store.Put(ctx, repository.TasksCollection, t.ID, t.ToDocument()); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	linkErr := linkChild(ctx, s.store, t.ProjectID, "tasks", t.ID, now)
	s.syncReminder(ctx, nil, true, t)
	return linkErr
}

// UpdateTask writes the task's editable fields. The project and creation
// time of a task never change.
func (s *TasksService) UpdateTask(ctx context.Context, t *model.Task) error {
	doc, err := s.store.Get(ctx, repository.TasksCollection, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	var prev *model.Task
	if current, err := model.TaskFromDocument(doc); err == nil {
		prev = &current
		t.CreatedAt = current.CreatedAt
	} else {
		s.log.WithError(err).WithField("task", t.ID).Warn("stored task failed to decode, overwriting")
	}
	storedProject, _ := doc["projectId"].(string)
	if t.ProjectID == "" {
		t.ProjectID = storedProject
	} else if storedProject != "" && t.ProjectID != storedProject {
		return &model.ValidationError{Entity: "task", Field: "projectId", Reason: "cannot change"}
	}

	t.Normalize()
	now := s.clock.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if err := utils.ValidateStruct("task", t); err != nil {
		return err
	}

	fields := patchFields(t.ToDocument(), []string{"id", "projectId"}, []string{"dueDate", "notificationDate"})
	if prev != nil {
		delete(fields, "createdAt")
	}
	if err := s.store.Patch(ctx, repository.TasksCollection, t.ID, fields); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	s.syncReminder(ctx, prev, prev != nil, t)
	touchProject(ctx, s.store, t.ProjectID, now, s.log)
	return nil
}

// ToggleComplete flips a task between completed and not started.
func (s *TasksService) ToggleComplete(ctx context.Context, id string) (model.Task, error) {
	return s.modify(ctx, id, func(t *model.Task) {
		if t.IsCompleted() {
			t.Status = model.TaskNotStarted
		} else {
			t.Status = model.TaskCompleted
		}
	})
}

// SetReminder asks for the user to be notified about the task at at.
func (s *TasksService) SetReminder(ctx context.Context, id string, at time.Time) (model.Task, error) {
	return s.modify(ctx, id, func(t *model.Task) {
		t.NotifyUser = true
		t.NotificationDate = &at
	})
}

func (s *TasksService) ClearReminder(ctx context.Context, id string) (model.Task, error) {
	return s.modify(ctx, id, func(t *model.Task) {
		t.NotifyUser = false
		t.NotificationDate = nil
	})
}

func (s *TasksService) modify(ctx context.Context, id string, change func(*model.Task)) (model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	change(&task)
	if err := s.UpdateTask(ctx, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// DeleteTask removes the task and unlinks it from its project. A failed
// unlink leaves the task deleted and is reported as a partial cascade.
func (s *TasksService) DeleteTask(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, repository.TasksCollection, id)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	projectID, _ := doc["projectId"].(string)

	if err := s.store.Delete(ctx, repository.TasksCollection, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	var unlinkErr error
	if projectID != "" {
		unlinkErr = unlinkChild(ctx, s.store, projectID, "tasks", id, s.clock.Now())
	}
	if task, err := model.TaskFromDocument(doc); err == nil {
		s.syncReminder(ctx, &task, true, nil)
	}
	return unlinkErr
}

// syncReminder issues at most one notifier call for a task mutation.
func (s *TasksService) syncReminder(ctx context.Context, prev *model.Task, prevKnown bool, next *model.Task) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	switch reminderChange(prev, prevKnown, next) {
	case reminderSchedule:
		err = s.notifier.Schedule(ctx, next.ID, reminderTitle, reminderBody(*next), *next.NotificationDate)
	case reminderCancel:
		target := next
		if target == nil {
			target = prev
		}
		err = s.notifier.Cancel(ctx, target.ID)
	}
	if err != nil {
		s.log.WithError(err).Warn("reminder update failed")
	}
}

// IsPartial reports whether err left a write applied without its parent
// update.
func IsPartial(err error) bool {
	return errors.Is(err, repository.ErrPartialCascade)
}
