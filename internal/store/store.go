// Package store is the keyed, schemaless record store the ledger is built on.
//
// Records live in independent top-level collections. Every collection can be
// read as a full snapshot and subscribed to; a subscriber receives the current
// snapshot immediately and a fresh full snapshot after every change.
package store

import (
	"context"
)

// Collection names
const (
	CollectionInventory  = "inventory"
	CollectionBatches    = "batches"
	CollectionPurchases  = "purchases"
	CollectionSuppliers  = "suppliers"
	CollectionCategories = "categories"
)

// Document is a schemaless record body
type Document map[string]any

// Record is a document together with its store-generated id
type Record struct {
	ID   string
	Data Document
}

// Snapshot is the full state of one collection at a point in time.
// Version increases with every change the store has published for the collection.
// Docs are shared between subscribers and must be treated as read-only.
type Snapshot struct {
	Collection string
	Version    uint64
	Docs       map[string]Document
}

// Write is one create inside an atomic batch
type Write struct {
	Collection string
	ID         string // Optional: generated when empty
	Data       Document
}

// Store is the record store contract shared by every backend
type Store interface {
	Create(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) (Snapshot, error)
	Update(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string) (*Subscription, error)
}

// Batcher is implemented by stores that can create several records atomically
type Batcher interface {
	CommitBatch(ctx context.Context, writes []Write) ([]string, error)
}

// Notifier tells other service instances that a collection changed
type Notifier interface {
	NotifyChanged(ctx context.Context, collection string, version uint64) error
}
