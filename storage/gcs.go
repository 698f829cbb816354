package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// BlobStore is the object-store boundary. Keys are opaque storage paths, not
// URLs; callers derive their own key layout.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

const requestTimeout = 50 * time.Second

// GCSStore implements BlobStore on a Google Cloud Storage bucket.
type GCSStore struct {
	cl     *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	return &GCSStore{cl: client, bucket: bucket}, nil
}

var _ BlobStore = (*GCSStore)(nil)

func (s *GCSStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	wc := s.cl.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		return "", fmt.Errorf("writer.Write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	return key, nil
}

func (s *GCSStore) Download(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	rc, err := s.cl.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("object reader: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("object read: %w", err)
	}

	return data, nil
}

func (s *GCSStore) Close() error {
	return s.cl.Close()
}
