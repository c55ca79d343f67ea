package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	"gradient/model"
	"gradient/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BlobStore holds uploaded media. Put returns the URL the blob can later be
// deleted by.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Thumbnailer derives a JPEG preview from media data.
type Thumbnailer interface {
	Thumbnail(data []byte, t model.AttachmentType) ([]byte, error)
}

// PendingUpload is media waiting to be attached to a note.
type PendingUpload struct {
	Data []byte
	Type model.AttachmentType
}

type UploadResult struct {
	FileURL      string
	ThumbnailURL string
}

// UploadError reports that the primary payload of an upload failed.
type UploadError struct {
	Type model.AttachmentType
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Type, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

var ErrUnsupportedMedia = errors.New("unsupported media type")

type mediaFormat struct {
	ext         string
	contentType string
	folder      string
}

var mediaFormats = map[model.AttachmentType]mediaFormat{
	model.AttachmentImage: {ext: "jpg", contentType: "image/jpeg", folder: "Images"},
	model.AttachmentVideo: {ext: "mp4", contentType: "video/mp4", folder: "Videos"},
	model.AttachmentAudio: {ext: "m4a", contentType: "audio/m4a", folder: "Audio"},
}

// MediaPipeline uploads note attachments and their thumbnails.
type MediaPipeline struct {
	blobs  BlobStore
	thumbs Thumbnailer
	mirror BlobStore
	clock  utils.Clock
	log    *logrus.Entry
}

func NewMediaPipeline(blobs BlobStore, thumbs Thumbnailer) *MediaPipeline {
	return &MediaPipeline{
		blobs:  blobs,
		thumbs: thumbs,
		clock:  utils.RealClock{},
		log:    utils.Component("media"),
	}
}

// WithMirror keeps a local copy of every uploaded payload in per-type
// folders of mirror.
func (p *MediaPipeline) WithMirror(mirror BlobStore) *MediaPipeline {
	p.mirror = mirror
	return p
}

func (p *MediaPipeline) WithClock(clock utils.Clock) *MediaPipeline {
	p.clock = clock
	return p
}

// Upload stores data under attachments/ and, for images and videos, a
// thumbnail under attachments/thumbnails/. Only a failure of the primary
// payload is an error; a missing thumbnail leaves ThumbnailURL empty.
func (p *MediaPipeline) Upload(ctx context.Context, data []byte, t model.AttachmentType) (UploadResult, error) {
	format, ok := mediaFormats[t]
	if !ok {
		utils.TrackUpload(string(t), "failed")
		return UploadResult{}, &UploadError{Type: t, Err: ErrUnsupportedMedia}
	}

	id := utils.NewID()
	name := fmt.Sprintf("%s.%s", id, format.ext)
	p.mirrorLocally(ctx, path.Join(format.folder, name), data, format.contentType)

	fileURL, err := p.blobs.Put(ctx, path.Join("attachments", name), data, format.contentType)
	if err != nil {
		utils.TrackUpload(string(t), "failed")
		return UploadResult{}, &UploadError{Type: t, Err: err}
	}
	utils.TrackUpload(string(t), "ok")

	result := UploadResult{FileURL: fileURL}
	if t.HasThumbnail() {
		result.ThumbnailURL = p.uploadThumbnail(ctx, id, data, t)
	}
	return result, nil
}

func (p *MediaPipeline) uploadThumbnail(ctx context.Context, id string, data []byte, t model.AttachmentType) string {
	log := p.log.WithFields(logrus.Fields{"id": id, "type": t})
	if p.thumbs == nil {
		return ""
	}
	thumb, err := p.thumbs.Thumbnail(data, t)
	if err != nil {
		if !errors.Is(err, ErrNoThumbnail) {
			log.WithError(err).Warn("thumbnail generation failed")
		}
		return ""
	}
	url, err := p.blobs.Put(ctx, path.Join("attachments", "thumbnails", id+".jpg"), thumb, "image/jpeg")
	if err != nil {
		log.WithError(err).Warn("thumbnail upload failed")
		utils.TrackUpload("thumbnail", "failed")
		return ""
	}
	utils.TrackUpload("thumbnail", "ok")
	return url
}

func (p *MediaPipeline) mirrorLocally(ctx context.Context, name string, data []byte, contentType string) {
	if p.mirror == nil {
		return
	}
	if _, err := p.mirror.Put(ctx, name, data, contentType); err != nil {
		p.log.WithError(err).WithField("name", name).Warn("local media copy failed")
	}
}

// UploadAll uploads every item concurrently and waits for all of them.
// Attachments come back in input order. If any upload fails the error is
// returned and blobs already written by the others are left in place.
func (p *MediaPipeline) UploadAll(ctx context.Context, uploads []PendingUpload) ([]model.Attachment, error) {
	attachments := make([]model.Attachment, len(uploads))
	var g errgroup.Group
	for i, u := range uploads {
		i, u := i, u
		g.Go(func() error {
			result, err := p.Upload(ctx, u.Data, u.Type)
			if err != nil {
				return err
			}
			attachments[i] = model.Attachment{
				ID:           utils.NewID(),
				Type:         u.Type,
				FileURL:      result.FileURL,
				ThumbnailURL: result.ThumbnailURL,
				CreatedAt:    p.clock.Now(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return attachments, nil
}

// Delete removes a blob previously returned by Upload.
func (p *MediaPipeline) Delete(ctx context.Context, url string) error {
	return p.blobs.Delete(ctx, url)
}
