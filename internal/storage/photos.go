package storage

import (
	"context"
	"fmt"
	"io"

	"fortuna/internal/database"

	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// PhotoStore resolves photo paths against the GridFS photo bucket
type PhotoStore struct {
	bucket *gridfs.Bucket
}

// NewPhotoStore creates a photo store backed by the given MongoDB database
func NewPhotoStore(db *database.MongoDB) (*PhotoStore, error) {
	bucket, err := db.PhotoBucket()
	if err != nil {
		return nil, err
	}
	return &PhotoStore{bucket: bucket}, nil
}

// Download fetches the bytes of one photo by its path within the bucket.
// The context bounds the read deadline on the underlying stream.
func (s *PhotoStore) Download(ctx context.Context, path string) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetReadDeadline(deadline)
	}

	stream, err := s.bucket.OpenDownloadStreamByName(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo %s: %w", path, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %s: %w", path, err)
	}

	return data, nil
}
