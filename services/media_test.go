package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gradient/model"
)

type fakeBlobStore struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
	failOn  func(name string) bool
}

func (f *fakeBlobStore) Put(_ context.Context, name string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil && f.failOn(name) {
		return "", errors.New("blob store unavailable")
	}
	f.puts = append(f.puts, name)
	return "mem://" + name, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, url)
	return nil
}

type fakeThumbnailer struct {
	err error
}

func (f fakeThumbnailer) Thumbnail(_ []byte, t model.AttachmentType) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t != model.AttachmentImage {
		return nil, ErrNoThumbnail
	}
	return []byte("thumb"), nil
}

func TestMediaPipelineUpload(t *testing.T) {
	tests := []struct {
		name          string
		mediaType     model.AttachmentType
		thumbs        Thumbnailer
		failOn        func(string) bool
		wantErr       bool
		wantThumbnail bool
		wantPrefix    string
	}{
		{
			name:          "image with thumbnail",
			mediaType:     model.AttachmentImage,
			thumbs:        fakeThumbnailer{},
			wantThumbnail: true,
			wantPrefix:    "mem://attachments/",
		},
		{
			name:       "audio never gets a thumbnail",
			mediaType:  model.AttachmentAudio,
			thumbs:     fakeThumbnailer{},
			wantPrefix: "mem://attachments/",
		},
		{
			name:       "video thumbnail unsupported",
			mediaType:  model.AttachmentVideo,
			thumbs:     fakeThumbnailer{},
			wantPrefix: "mem://attachments/",
		},
		{
			name:       "thumbnail generation failure degrades",
			mediaType:  model.AttachmentImage,
			thumbs:     fakeThumbnailer{err: errors.New("corrupt image")},
			wantPrefix: "mem://attachments/",
		},
		{
			name:       "thumbnail upload failure degrades",
			mediaType:  model.AttachmentImage,
			thumbs:     fakeThumbnailer{},
			failOn:     func(name string) bool { return strings.Contains(name, "thumbnails") },
			wantPrefix: "mem://attachments/",
		},
		{
			name:      "primary failure is an upload error",
			mediaType: model.AttachmentImage,
			thumbs:    fakeThumbnailer{},
			failOn:    func(name string) bool { return !strings.Contains(name, "thumbnails") },
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := &fakeBlobStore{failOn: tt.failOn}
			pipeline := NewMediaPipeline(blobs, tt.thumbs)

			result, err := pipeline.Upload(context.Background(), []byte("payload"), tt.mediaType)
			if tt.wantErr {
				var uploadErr *UploadError
				if !errors.As(err, &uploadErr) {
					t.Fatalf("expected *UploadError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if !strings.HasPrefix(result.FileURL, tt.wantPrefix) {
				t.Errorf("FileURL = %q", result.FileURL)
			}
			if (result.ThumbnailURL != "") != tt.wantThumbnail {
				t.Errorf("ThumbnailURL = %q, want thumbnail %v", result.ThumbnailURL, tt.wantThumbnail)
			}
		})
	}
}

func TestMediaPipelineUploadExtensions(t *testing.T) {
	blobs := &fakeBlobStore{}
	pipeline := NewMediaPipeline(blobs, nil)
	for _, mt := range []model.AttachmentType{model.AttachmentImage, model.AttachmentVideo, model.AttachmentAudio} {
		if _, err := pipeline.Upload(context.Background(), []byte("x"), mt); err != nil {
			t.Fatalf("Upload(%s) error = %v", mt, err)
		}
	}
	wantExt := []string{".jpg", ".mp4", ".m4a"}
	for i, name := range blobs.puts {
		if !strings.HasSuffix(name, wantExt[i]) {
			t.Errorf("put %d = %q, want suffix %s", i, name, wantExt[i])
		}
	}
}

func TestMediaPipelineUploadAll(t *testing.T) {
	t.Run("preserves input order", func(t *testing.T) {
		pipeline := NewMediaPipeline(&fakeBlobStore{}, fakeThumbnailer{})
		uploads := []PendingUpload{
			{Data: []byte("a"), Type: model.AttachmentAudio},
			{Data: []byte("b"), Type: model.AttachmentImage},
			{Data: []byte("c"), Type: model.AttachmentVideo},
		}
		attachments, err := pipeline.UploadAll(context.Background(), uploads)
		if err != nil {
			t.Fatalf("UploadAll() error = %v", err)
		}
		for i, a := range attachments {
			if a.Type != uploads[i].Type || a.ID == "" || a.FileURL == "" {
				t.Errorf("attachment %d = %+v", i, a)
			}
		}
	})

	t.Run("one failure fails the whole set", func(t *testing.T) {
		blobs := &fakeBlobStore{failOn: func(name string) bool { return strings.HasSuffix(name, ".mp4") }}
		pipeline := NewMediaPipeline(blobs, fakeThumbnailer{})
		uploads := []PendingUpload{
			{Data: []byte("a"), Type: model.AttachmentAudio},
			{Data: []byte("b"), Type: model.AttachmentVideo},
			{Data: []byte("c"), Type: model.AttachmentAudio},
		}
		attachments, err := pipeline.UploadAll(context.Background(), uploads)
		if err == nil {
			t.Fatal("expected error")
		}
		if attachments != nil {
			t.Errorf("attachments = %v, want nil", attachments)
		}
		// The sibling uploads completed and are left behind
		if len(blobs.puts) != 2 {
			t.Errorf("%d blobs written, want 2", len(blobs.puts))
		}
	})
}

func TestMediaPipelineMirror(t *testing.T) {
	mirror, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pipeline := NewMediaPipeline(&fakeBlobStore{}, nil).WithMirror(mirror)
	if _, err := pipeline.Upload(context.Background(), []byte("v"), model.AttachmentVideo); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(mirror.Root(), "Videos"))
	if err != nil || len(entries) != 1 {
		t.Errorf("mirror Videos folder entries = %v, err = %v", entries, err)
	}
}

func TestImageThumbnailer(t *testing.T) {
	thumbs := NewImageThumbnailer()

	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{name: "landscape", width: 800, height: 400, wantW: 320, wantH: 160},
		{name: "portrait", width: 300, height: 1200, wantW: 80, wantH: 320},
		{name: "small stays", width: 100, height: 50, wantW: 100, wantH: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.width, tt.height))
			for x := 0; x < tt.width; x++ {
				src.Set(x, 0, color.RGBA{R: 255, A: 255})
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, src); err != nil {
				t.Fatal(err)
			}

			out, err := thumbs.Thumbnail(buf.Bytes(), model.AttachmentImage)
			if err != nil {
				t.Fatalf("Thumbnail() error = %v", err)
			}
			img, err := jpeg.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("thumbnail is not a JPEG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("thumbnail size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}

	if _, err := thumbs.Thumbnail([]byte("video"), model.AttachmentVideo); !errors.Is(err, ErrNoThumbnail) {
		t.Errorf("video Thumbnail() error = %v, want ErrNoThumbnail", err)
	}
	if _, err := thumbs.Thumbnail([]byte("not an image"), model.AttachmentImage); err == nil {
		t.Error("expected decode error for garbage input")
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	url, err := store.Put(ctx, "attachments/a.jpg", []byte("data"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "attachments", "a.jpg")); err != nil {
		t.Errorf("blob not written: %v", err)
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, url); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if err := store.Delete(ctx, "file:///etc/passwd"); err == nil {
		t.Error("Delete() outside root should fail")
	}
	if _, err := store.Put(ctx, "../escape", []byte("x"), ""); err == nil {
		t.Error("Put() outside root should fail")
	}
}
