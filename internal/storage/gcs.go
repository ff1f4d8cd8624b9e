package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/diagnoclinic/apiserver/config"
	"google.golang.org/api/option"
)

// GCSClient stores objects in one Google Cloud Storage bucket.
type GCSClient struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

// NewGCSClient constructs a GCS client from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// EnsureBucket creates the bucket when it is missing. Creation needs a
// project ID.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	err := g.Ping(ctx)
	if err == nil || !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.bucket.Create(ctx, g.projectID, nil)
}

func (g *GCSClient) Put(ctx context.Context, obj Object) error {
	writer := g.bucket.Object(obj.Key).NewWriter(ctx)
	writer.ContentType = obj.ContentType
	writer.Metadata = obj.Metadata
	if _, err := io.Copy(writer, obj.Body); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	return reader, err
}

func (g *GCSClient) Ping(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	return err
}

func (g *GCSClient) Bucket() string {
	return g.name
}
