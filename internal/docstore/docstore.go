package docstore

import "context"

// Store defines the interface to the document store. Documents are
// arbitrary-shaped; the store assigns or accepts an identifier.
type Store interface {
	// Add stores a document under a store-assigned identifier and returns
	// it.
	Add(ctx context.Context, collection string, doc map[string]any) (string, error)

	// Set stores a document under the given identifier, overwriting any
	// existing document. Insight re-runs rely on this being an overwrite.
	Set(ctx context.Context, collection, id string, doc map[string]any) error

	// Close closes the store.
	Close() error
}
