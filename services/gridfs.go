package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps blobs in a MongoDB GridFS bucket. URLs have the form
// gridfs://<bucket>/<objectID>/<name>.
type GridFSStore struct {
	bucket *gridfs.Bucket
	name   string
}

func NewGridFSStore(db *mongo.Database, bucketName string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSStore{bucket: bucket, name: bucketName}, nil
}

func (s *GridFSStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	id, err := s.bucket.UploadFromStream(name, bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("gridfs upload: %w", err)
	}
	return fmt.Sprintf("gridfs://%s/%s/%s", s.name, id.Hex(), name), nil
}

func (s *GridFSStore) Delete(ctx context.Context, rawURL string) error {
	id, err := s.parseURL(rawURL)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("gridfs delete: %w", err)
	}
	return nil
}

func (s *GridFSStore) parseURL(rawURL string) (primitive.ObjectID, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "gridfs" || u.Host != s.name {
		return primitive.NilObjectID, fmt.Errorf("not a %s gridfs url: %q", s.name, rawURL)
	}
	hex, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("bad gridfs object id in %q: %w", rawURL, err)
	}
	return id, nil
}
