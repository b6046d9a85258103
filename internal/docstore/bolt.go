package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// BoltStore implements Store using a local BoltDB file. One bucket per
// collection, documents stored as JSON. Used for local runs and tests where
// no Firestore project is available.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a BoltDB-backed document store.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Add stores the document under a fresh UUID.
func (b *BoltStore) Add(_ context.Context, collection string, doc map[string]any) (string, error) {
	id := uuid.NewString()
	if err := b.put(collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Set stores the document under id, overwriting any existing document.
func (b *BoltStore) Set(_ context.Context, collection, id string, doc map[string]any) error {
	return b.put(collection, id, doc)
}

func (b *BoltStore) put(collection, id string, doc map[string]any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", collection, err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		return bucket.Put([]byte(id), data)
	})
}

// Get retrieves a stored document. Not part of the Store interface; the
// pipeline only writes, but tests want to read back.
func (b *BoltStore) Get(collection, id string) (map[string]any, error) {
	var doc map[string]any
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("collection not found: %s", collection)
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document not found: %s/%s", collection, id)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns all documents in a collection keyed by ID.
func (b *BoltStore) List(collection string) (map[string]map[string]any, error) {
	docs := make(map[string]map[string]any)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var doc map[string]any
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document %s: %w", k, err)
			}
			docs[string(k)] = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
