package model

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskNotStarted TaskStatus = "Not Started"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

type Task struct {
	ID               string     `json:"id" validate:"required"`
	Title            string     `json:"title" validate:"required"`
	Status           TaskStatus `json:"status" validate:"required,known"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	NotifyUser       bool       `json:"notifyUser"`
	NotificationDate *time.Time `json:"notificationDate,omitempty"`
	ProjectID        string     `json:"projectId" validate:"required"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Normalize trims the title, applies the default status and drops the
// notification date when the user is not to be notified.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = TaskNotStarted
	}
	if !t.NotifyUser {
		t.NotificationDate = nil
	}
}

func (t Task) IsCompleted() bool {
	return t.Status == TaskCompleted
}

// ReminderArmed reports whether a local reminder should exist for t.
func (t Task) ReminderArmed() bool {
	return t.NotifyUser && t.NotificationDate != nil && !t.IsCompleted()
}

func (t Task) ToDocument() Document {
	doc := Document{
		"id":         t.ID,
		"title":      t.Title,
		"status":     string(t.Status),
		"notifyUser": t.NotifyUser,
		"projectId":  t.ProjectID,
		"createdAt":  EpochSeconds(t.CreatedAt),
		"updatedAt":  EpochSeconds(t.UpdatedAt),
	}
	if t.DueDate != nil {
		doc["dueDate"] = EpochSeconds(*t.DueDate)
	}
	if t.NotifyUser && t.NotificationDate != nil {
		doc["notificationDate"] = EpochSeconds(*t.NotificationDate)
	}
	return doc
}

func TaskFromDocument(doc Document) (Task, error) {
	d := newDecoder("task", doc)
	t := Task{
		ID:               d.requireString("id"),
		Title:            d.requireString("title"),
		Status:           TaskStatus(d.requireString("status")),
		DueDate:          d.optionalTime("dueDate"),
		NotifyUser:       d.requireBool("notifyUser"),
		NotificationDate: d.optionalTime("notificationDate"),
		ProjectID:        d.requireString("projectId"),
		CreatedAt:        d.requireTime("createdAt"),
		UpdatedAt:        d.requireTime("updatedAt"),
	}
	if d.err != nil {
		return Task{}, d.err
	}
	if !t.Status.Valid() {
		return Task{}, &ParseError{Kind: "task", Field: "status", Reason: "has unknown label " + string(t.Status)}
	}
	if !t.NotifyUser {
		t.NotificationDate = nil
	}
	return t, nil
}
