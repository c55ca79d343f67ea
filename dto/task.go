package dto

import (
	"time"

	"gradient/model"
)

type TaskRequest struct {
	Title            string     `json:"title" binding:"required"`
	Status           string     `json:"status"`
	DueDate          *time.Time `json:"dueDate"`
	NotifyUser       bool       `json:"notifyUser"`
	NotificationDate *time.Time `json:"notificationDate"`
}

func (r *TaskRequest) ToModel(id, projectID string) *model.Task {
	return &model.Task{
		ID:               id,
		Title:            r.Title,
		Status:           model.TaskStatus(r.Status),
		DueDate:          r.DueDate,
		NotifyUser:       r.NotifyUser,
		NotificationDate: r.NotificationDate,
		ProjectID:        projectID,
	}
}

type ReminderRequest struct {
	At time.Time `json:"at" binding:"required"`
}

type TaskResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	Completed        bool       `json:"completed"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	NotifyUser       bool       `json:"notifyUser"`
	NotificationDate *time.Time `json:"notificationDate,omitempty"`
	ProjectID        string     `json:"projectId"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Links            Links      `json:"_links,omitempty"`
}

func ToTaskResponse(t *model.Task) TaskResponse {
	return TaskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Status:           string(t.Status),
		Completed:        t.IsCompleted(),
		DueDate:          t.DueDate,
		NotifyUser:       t.NotifyUser,
		NotificationDate: t.NotificationDate,
		ProjectID:        t.ProjectID,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		Links:            taskLinks(t.ID, t.ProjectID),
	}
}

func ToTaskResponses(tasks []model.Task) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i := range tasks {
		responses[i] = ToTaskResponse(&tasks[i])
	}
	return responses
}
