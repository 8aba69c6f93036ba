package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/errors"
)

// MemoryStore keeps every collection in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	versions    map[string]uint64
	hub         *Hub
	newID       func() string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		versions:    make(map[string]uint64),
		hub:         NewHub(),
		newID:       func() string { return uuid.New().String() },
	}
}

// Create stores a document under a new id
func (s *MemoryStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Unavailable("create", err)
	}
	data, err := normalize(doc)
	if err != nil {
		return "", errors.BadRequest(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.collection(collection)[id] = data
	s.publishLocked(collection)
	return id, nil
}

// Get returns one document
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable("get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, errors.NotFound(collection + " record")
	}
	return cloneDoc(doc), nil
}

// List returns the current snapshot of a collection
func (s *MemoryStore) List(ctx context.Context, collection string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, errors.Unavailable("list", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(collection), nil
}

// Update merges fields into an existing document
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable("update", err)
	}
	patch, err := normalize(fields)
	if err != nil {
		return errors.BadRequest(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.collections[collection][id]
	if !ok {
		return errors.NotFound(collection + " record")
	}
	merged := make(Document, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	s.publishLocked(collection)
	return nil
}

// Delete removes a document
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.Unavailable("delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return errors.NotFound(collection + " record")
	}
	delete(s.collections[collection], id)
	s.publishLocked(collection)
	return nil
}

// CommitBatch creates every write or none of them
func (s *MemoryStore) CommitBatch(ctx context.Context, writes []Write) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable("commit batch", err)
	}

	prepared := make([]Write, len(writes))
	for i, w := range writes {
		data, err := normalize(w.Data)
		if err != nil {
			return nil, errors.BadRequest(err.Error())
		}
		prepared[i] = Write{Collection: w.Collection, ID: w.ID, Data: data}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(prepared))
	for i, w := range prepared {
		id := w.ID
		if id == "" {
			id = s.newID()
		}
		if _, exists := s.collections[w.Collection][id]; exists {
			return nil, errors.Conflict("a record with this id already exists in the collection")
		}
		ids[i] = id
	}

	touched := make([]string, 0, 2)
	seen := make(map[string]bool)
	for i, w := range prepared {
		s.collection(w.Collection)[ids[i]] = w.Data
		if !seen[w.Collection] {
			seen[w.Collection] = true
			touched = append(touched, w.Collection)
		}
	}
	for _, c := range touched {
		s.publishLocked(c)
	}
	return ids, nil
}

// Subscribe delivers the current snapshot and every later change of the collection
func (s *MemoryStore) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Unavailable("subscribe", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub.Subscribe(ctx, s.snapshotLocked(collection)), nil
}

func (s *MemoryStore) collection(name string) map[string]Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]Document)
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) snapshotLocked(collection string) Snapshot {
	snap := emptySnapshot(collection, s.versions[collection])
	for id, doc := range s.collections[collection] {
		snap.Docs[id] = doc
	}
	return snap
}

// publishLocked bumps the collection version and fans out the new snapshot.
// Stored documents are never mutated in place, so snapshots can share them.
func (s *MemoryStore) publishLocked(collection string) {
	s.versions[collection]++
	s.hub.Publish(s.snapshotLocked(collection))
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
