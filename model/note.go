package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxAttachments is the most attachments a note keeps; extras are dropped.
const MaxAttachments = 4

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentAudio:
		return true
	}
	return false
}

// HasThumbnail reports whether media of this type gets a preview image.
func (t AttachmentType) HasThumbnail() bool {
	return t == AttachmentImage || t == AttachmentVideo
}

type Attachment struct {
	ID           string         `json:"id"`
	Type         AttachmentType `json:"type"`
	FileURL      string         `json:"fileURL"`
	ThumbnailURL string         `json:"thumbnailURL,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func NewAttachment(t AttachmentType, fileURL, thumbnailURL string) Attachment {
	return Attachment{
		ID:           uuid.New().String(),
		Type:         t,
		FileURL:      fileURL,
		ThumbnailURL: thumbnailURL,
		CreatedAt:    time.Now(),
	}
}

// BlobURLs lists the stored blobs backing the attachment.
func (a Attachment) BlobURLs() []string {
	urls := []string{}
	if a.FileURL != "" {
		urls = append(urls, a.FileURL)
	}
	if a.ThumbnailURL != "" {
		urls = append(urls, a.ThumbnailURL)
	}
	return urls
}

func (a Attachment) ToDocument() Document {
	doc := Document{
		"id":        a.ID,
		"type":      string(a.Type),
		"fileURL":   a.FileURL,
		"createdAt": EpochSeconds(a.CreatedAt),
	}
	if a.ThumbnailURL != "" {
		doc["thumbnailURL"] = a.ThumbnailURL
	}
	return doc
}

func AttachmentFromDocument(doc Document) (Attachment, error) {
	d := newDecoder("attachment", doc)
	a := Attachment{
		ID:           d.requireString("id"),
		Type:         AttachmentType(d.requireString("type")),
		FileURL:      d.requireString("fileURL"),
		ThumbnailURL: d.optionalString("thumbnailURL"),
		CreatedAt:    d.requireTime("createdAt"),
	}
	if d.err != nil {
		return Attachment{}, d.err
	}
	if !a.Type.Valid() {
		return Attachment{}, &ParseError{Kind: "attachment", Field: "type", Reason: "has unknown label " + string(a.Type)}
	}
	return a, nil
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Note struct {
	ID          string       `json:"id" validate:"required"`
	Title       string       `json:"title,omitempty"`
	Content     string       `json:"content" validate:"required"`
	Attachments []Attachment `json:"attachments"`
	Location    *Location    `json:"location,omitempty"`
	ProjectID   string       `json:"projectId" validate:"required"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (n *Note) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	if strings.TrimSpace(n.Content) == "" {
		n.Content = ""
	}
	n.Attachments = capAttachments(n.Attachments)
}

// RemainingSlots is how many more attachments the note can hold.
func (n Note) RemainingSlots() int {
	if left := MaxAttachments - len(n.Attachments); left > 0 {
		return left
	}
	return 0
}

func (n Note) BlobURLs() []string {
	urls := []string{}
	for _, a := range n.Attachments {
		urls = append(urls, a.BlobURLs()...)
	}
	return urls
}

func (n Note) ToDocument() Document {
	attachments := capAttachments(n.Attachments)
	list := make([]interface{}, len(attachments))
	for i, a := range attachments {
		list[i] = a.ToDocument()
	}
	doc := Document{
		"id":          n.ID,
		"content":     n.Content,
		"attachments": list,
		"projectId":   n.ProjectID,
		"createdAt":   EpochSeconds(n.CreatedAt),
		"updatedAt":   EpochSeconds(n.UpdatedAt),
	}
	if n.Title != "" {
		doc["title"] = n.Title
	}
	if n.Location != nil {
		doc["latitude"] = n.Location.Latitude
		doc["longitude"] = n.Location.Longitude
	}
	return doc
}

// NoteFromDocument decodes a stored note. Attachment entries that cannot be
// decoded are skipped rather than failing the note.
func NoteFromDocument(doc Document) (Note, error) {
	d := newDecoder("note", doc)
	n := Note{
		ID:        d.requireString("id"),
		Title:     d.optionalString("title"),
		Content:   d.requireString("content"),
		ProjectID: d.requireString("projectId"),
		CreatedAt: d.requireTime("createdAt"),
		UpdatedAt: d.requireTime("updatedAt"),
	}
	lat, hasLat := d.optionalNumber("latitude")
	lon, hasLon := d.optionalNumber("longitude")
	raw := d.optionalDocuments("attachments")
	if d.err != nil {
		return Note{}, d.err
	}
	if hasLat && hasLon {
		n.Location = &Location{Latitude: lat, Longitude: lon}
	}
	n.Attachments = []Attachment{}
	for _, item := range raw {
		entry, ok := item.(Document)
		if !ok {
			continue
		}
		a, err := AttachmentFromDocument(entry)
		if err != nil {
			continue
		}
		n.Attachments = append(n.Attachments, a)
	}
	n.Attachments = capAttachments(n.Attachments)
	return n, nil
}

// BlobURLsFromDocument collects attachment blob URLs from a raw note
// document without requiring the note to decode.
func BlobURLsFromDocument(doc Document) []string {
	urls := []string{}
	list, ok := toList(doc["attachments"])
	if !ok {
		return urls
	}
	for _, item := range list {
		entry, ok := item.(Document)
		if !ok {
			continue
		}
		for _, field := range []string{"fileURL", "thumbnailURL"} {
			if s, ok := entry[field].(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
	}
	return urls
}

func capAttachments(attachments []Attachment) []Attachment {
	if len(attachments) > MaxAttachments {
		attachments = attachments[:MaxAttachments]
	}
	return append([]Attachment{}, attachments...)
}
