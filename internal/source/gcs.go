package source

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCS implements ObjectStore using Google Cloud Storage.
type GCS struct {
	client *storage.Client
}

// NewGCS creates a GCS-backed object store using ambient credentials.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Fetch downloads one object's bytes.
func (g *GCS) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening gs://%s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// Store uploads one object.
func (g *GCS) Store(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// Close closes the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}
