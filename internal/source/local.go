package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local implements ObjectStore using the local filesystem. Buckets map to
// directories under the base path. Used for local runs and tests.
type Local struct {
	basePath string
}

// NewLocal creates a filesystem-backed object store rooted at basePath.
func NewLocal(basePath string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

// Fetch reads one object from disk.
func (l *Local) Fetch(_ context.Context, bucket, object string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, bucket, object))
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

// Store writes one object to disk.
func (l *Local) Store(_ context.Context, bucket, object string, data []byte, _ string) error {
	dir := filepath.Join(l.basePath, bucket)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating bucket directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, object), data, 0644); err != nil {
		return fmt.Errorf("writing object: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (l *Local) Close() error {
	return nil
}
