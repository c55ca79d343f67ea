package dto

import (
	"time"

	"gradient/model"
	"gradient/usecase"
)

type ProjectRequest struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	Status          string   `json:"status"`
	Workshops       []string `json:"workshops"`
	MaterialsNeeded []string `json:"materialsNeeded"`
	MaterialsFound  []string `json:"materialsFound"`
}

// ToModel builds the project the request describes. Back-references are
// owned by the server and never taken from a request.
func (r *ProjectRequest) ToModel(id string) *model.Project {
	return &model.Project{
		ID:              id,
		Name:            r.Name,
		Description:     r.Description,
		Status:          model.ProjectStatus(r.Status),
		Workshops:       r.Workshops,
		MaterialsNeeded: r.MaterialsNeeded,
		MaterialsFound:  r.MaterialsFound,
	}
}

type ProjectResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	Workshops       []string  `json:"workshops"`
	MaterialsNeeded []string  `json:"materialsNeeded"`
	MaterialsFound  []string  `json:"materialsFound"`
	TaskCount       int       `json:"taskCount"`
	NoteCount       int       `json:"noteCount"`
	Tasks           []string  `json:"tasks"`
	Notes           []string  `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Links           Links     `json:"_links,omitempty"`
}

func ToProjectResponse(p *model.Project) ProjectResponse {
	return ProjectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Status:          string(p.Status),
		Workshops:       p.Workshops,
		MaterialsNeeded: p.MaterialsNeeded,
		MaterialsFound:  p.MaterialsFound,
		TaskCount:       len(p.Tasks),
		NoteCount:       len(p.Notes),
		Tasks:           p.Tasks,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Links:           projectLinks(p.ID),
	}
}

func ToProjectResponses(projects []model.Project) []ProjectResponse {
	responses := make([]ProjectResponse, len(projects))
	for i := range projects {
		responses[i] = ToProjectResponse(&projects[i])
	}
	return responses
}

type CascadeResponse struct {
	ProjectID          string   `json:"projectId"`
	DeletedTasks       []string `json:"deletedTasks"`
	DeletedNotes       []string `json:"deletedNotes"`
	BlobsAttempted     int      `json:"blobsAttempted"`
	BlobFailures       int      `json:"blobFailures"`
	RemindersCancelled int      `json:"remindersCancelled"`
}

func ToCascadeResponse(r *usecase.CascadeReport) CascadeResponse {
	return CascadeResponse{
		ProjectID:          r.ProjectID,
		DeletedTasks:       r.TaskIDs,
		DeletedNotes:       r.NoteIDs,
		BlobsAttempted:     r.BlobsAttempted,
		BlobFailures:       r.BlobFailures,
		RemindersCancelled: r.RemindersCancelled,
	}
}
