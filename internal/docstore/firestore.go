package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// Firestore implements Store using Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore-backed document store.
func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// Add stores the document under an auto-generated ID.
func (f *Firestore) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	ref, _, err := f.client.Collection(collection).Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("adding document to %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Set stores the document under id, overwriting any existing document.
func (f *Firestore) Set(ctx context.Context, collection, id string, doc map[string]any) error {
	if _, err := f.client.Collection(collection).Doc(id).Set(ctx, doc); err != nil {
		return fmt.Errorf("setting document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close closes the Firestore client.
func (f *Firestore) Close() error {
	return f.client.Close()
}
