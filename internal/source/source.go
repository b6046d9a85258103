package source

import "context"

// ObjectStore defines the interface to the raw-document object storage:
// fetch one uploaded object, or store one intake document (email bodies).
type ObjectStore interface {
	// Fetch downloads one object's bytes.
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)

	// Store uploads one object.
	Store(ctx context.Context, bucket, object string, data []byte, contentType string) error

	// Close releases the client.
	Close() error
}
