package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/diagnoclinic/apiserver/config"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object is an upload. Metadata becomes user metadata on the stored object.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, obj Object) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Ping(ctx context.Context) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, obj Object) error {
	if obj.Key == "" {
		return errors.New("object key is required")
	}
	return s.backend.Put(ctx, obj)
}

// Get opens a reader for an object. Missing keys yield ErrObjectNotFound.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Ping checks that the bucket is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Open connects the object store selected by cfg.StorageBackend and makes
// sure its bucket exists. It returns nil, nil when no backend is configured.
func Open(ctx context.Context, cfg config.Config) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.StorageBackend {
	case "":
		return nil, nil
	case "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", s.Bucket(), err)
	}
	return s, nil
}
