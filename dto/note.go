package dto

import (
	"time"

	"gradient/model"
)

// NoteForm is the multipart form of a note write. Files[i] is uploaded as
// media of kind Types[i].
type NoteForm struct {
	Title     string   `form:"title" json:"title"`
	Content   string   `form:"content" json:"content" binding:"required"`
	Latitude  *float64 `form:"latitude" json:"latitude"`
	Longitude *float64 `form:"longitude" json:"longitude"`
	Types     []string `form:"types[]" json:"-"`
	// Keep lists the attachment ids to retain on update; nil keeps all
	Keep []string `form:"keep[]" json:"keep"`
	// ClearAttachments drops every existing attachment, whatever Keep says
	ClearAttachments bool `form:"clear_attachments" json:"clearAttachments"`
}

func (f *NoteForm) ToModel(id, projectID string) *model.Note {
	n := &model.Note{
		ID:        id,
		Title:     f.Title,
		Content:   f.Content,
		ProjectID: projectID,
	}
	if f.Latitude != nil && f.Longitude != nil {
		n.Location = &model.Location{Latitude: *f.Latitude, Longitude: *f.Longitude}
	}
	return n
}

// KeepAttachments returns the subset of current the form retains.
func (f *NoteForm) KeepAttachments(current []model.Attachment) []model.Attachment {
	if f.ClearAttachments {
		return []model.Attachment{}
	}
	if f.Keep == nil {
		return current
	}
	keep := make(map[string]bool, len(f.Keep))
	for _, id := range f.Keep {
		keep[id] = true
	}
	kept := []model.Attachment{}
	for _, a := range current {
		if keep[a.ID] {
			kept = append(kept, a)
		}
	}
	return kept
}

type AttachmentResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	FileURL      string    `json:"fileURL"`
	ThumbnailURL string    `json:"thumbnailURL,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type NoteResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title,omitempty"`
	Content     string               `json:"content"`
	Attachments []AttachmentResponse `json:"attachments"`
	Location    *model.Location      `json:"location,omitempty"`
	ProjectID   string               `json:"projectId"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Links       Links                `json:"_links,omitempty"`
}

// Convert a single note to NoteResponse
func ToNoteResponse(n *model.Note) NoteResponse {
	attachments := make([]AttachmentResponse, len(n.Attachments))
	for i, a := range n.Attachments {
		attachments[i] = AttachmentResponse{
			ID:           a.ID,
			Type:         string(a.Type),
			FileURL:      a.FileURL,
			ThumbnailURL: a.ThumbnailURL,
			CreatedAt:    a.CreatedAt,
		}
	}
	return NoteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		Attachments: attachments,
		Location:    n.Location,
		ProjectID:   n.ProjectID,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		Links:       noteLinks(n.ID, n.ProjectID),
	}
}

func ToNoteResponses(notes []model.Note) []NoteResponse {
	responses := make([]NoteResponse, len(notes))
	for i := range notes {
		responses[i] = ToNoteResponse(&notes[i])
	}
	return responses
}
