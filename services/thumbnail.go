package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"gradient/model"

	"golang.org/x/image/draw"
)

// ErrNoThumbnail is returned for media that has no preview image.
var ErrNoThumbnail = errors.New("no thumbnail for media type")

// ImageThumbnailer scales images to fit within MaxEdge pixels. Video frames
// are not extracted.
type ImageThumbnailer struct {
	MaxEdge int
	Quality int
}

func NewImageThumbnailer() *ImageThumbnailer {
	return &ImageThumbnailer{MaxEdge: 320, Quality: 80}
}

func (t *ImageThumbnailer) Thumbnail(data []byte, kind model.AttachmentType) ([]byte, error) {
	if kind != model.AttachmentImage {
		return nil, ErrNoThumbnail
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaleToFit(src, t.MaxEdge), &jpeg.Options{Quality: t.Quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleToFit resamples src with Catmull-Rom so its longest edge is at most
// maxEdge. Smaller images are returned unchanged.
func scaleToFit(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return src
	}

	dw, dh := maxEdge, h*maxEdge/w
	if h > w {
		dw, dh = w*maxEdge/h, maxEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(dw, 1), max(dh, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
