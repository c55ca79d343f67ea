package model

import (
	"strings"
	"time"
)

type ProjectStatus string

const (
	ProjectNotStarted ProjectStatus = "Not Started"
	ProjectPlanning   ProjectStatus = "Planning"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectTesting    ProjectStatus = "Testing"
	ProjectCompleted  ProjectStatus = "Completed"
)

var projectStatuses = []ProjectStatus{
	ProjectNotStarted,
	ProjectPlanning,
	ProjectInProgress,
	ProjectTesting,
	ProjectCompleted,
}

// Valid reports whether s is one of the known status labels.
func (s ProjectStatus) Valid() bool {
	for _, known := range projectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Project struct {
	ID              string        `json:"id" validate:"required"`
	Name            string        `json:"name" validate:"required"`
	Description     string        `json:"description"`
	Status          ProjectStatus `json:"status" validate:"required,known"`
	Workshops       []string      `json:"workshops"`
	MaterialsNeeded []string      `json:"materialsNeeded"`
	MaterialsFound  []string      `json:"materialsFound"`
	Tasks           []string      `json:"tasks"`
	Notes           []string      `json:"notes"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Normalize trims the name, applies the default status and cleans up the
// tag lists.
func (p *Project) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = ProjectNotStarted
	}
	p.Workshops = NormalizeTags(p.Workshops)
	p.MaterialsNeeded = NormalizeTags(p.MaterialsNeeded)
	p.MaterialsFound = NormalizeTags(p.MaterialsFound)
	if p.Tasks == nil {
		p.Tasks = []string{}
	}
	if p.Notes == nil {
		p.Notes = []string{}
	}
}

func (p Project) ToDocument() Document {
	return Document{
		"id":              p.ID,
		"name":            p.Name,
		"description":     p.Description,
		"status":          string(p.Status),
		"workshops":       stringList(p.Workshops),
		"materialsNeeded": stringList(p.MaterialsNeeded),
		"materialsFound":  stringList(p.MaterialsFound),
		"tasks":           stringList(p.Tasks),
		"notes":           stringList(p.Notes),
		"createdAt":       EpochSeconds(p.CreatedAt),
		"updatedAt":       EpochSeconds(p.UpdatedAt),
	}
}

// ProjectFromDocument decodes a stored project. Any missing or mistyped
// field fails the whole document.
func ProjectFromDocument(doc Document) (Project, error) {
	d := newDecoder("project", doc)
	p := Project{
		ID:              d.requireString("id"),
		Name:            d.requireString("name"),
		Description:     d.requireString("description"),
		Status:          ProjectStatus(d.requireString("status")),
		Workshops:       d.requireStrings("workshops"),
		MaterialsNeeded: d.requireStrings("materialsNeeded"),
		MaterialsFound:  d.requireStrings("materialsFound"),
		Tasks:           d.requireStrings("tasks"),
		Notes:           d.requireStrings("notes"),
		CreatedAt:       d.requireTime("createdAt"),
		UpdatedAt:       d.requireTime("updatedAt"),
	}
	if d.err != nil {
		return Project{}, d.err
	}
	if !p.Status.Valid() {
		return Project{}, &ParseError{Kind: "project", Field: "status", Reason: "has unknown label " + string(p.Status)}
	}
	return p, nil
}
