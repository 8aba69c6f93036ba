package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// PostgresStore keeps every collection in the shared records table
type PostgresStore struct {
	db       *database.DB
	hub      *Hub
	notifier Notifier
	logger   *logger.Logger

	mu       sync.Mutex
	versions map[string]uint64
	locks    map[string]*sync.Mutex
}

// NewPostgresStore creates a store on top of db. notifier may be nil.
func NewPostgresStore(db *database.DB, notifier Notifier, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		hub:      NewHub(),
		notifier: notifier,
		logger:   log.WithComponent("record-store"),
		versions: make(map[string]uint64),
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetNotifier attaches the cross-instance notifier once messaging is up
func (s *PostgresStore) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

type recordRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// Create stores a document under a new id
func (s *PostgresStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	data, err := marshalDoc(doc)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	query := `INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, data); err != nil {
		return "", s.mapError("create", err)
	}

	s.changed(ctx, collection)
	return id, nil
}

// Get returns one document
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	query := `SELECT data FROM records WHERE collection = $1 AND id = $2`
	if err := s.db.GetContext(ctx, &data, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound(collection + " record")
		}
		return nil, s.mapError("get", err)
	}
	return unmarshalDoc(data)
}

// List returns the current snapshot of a collection
func (s *PostgresStore) List(ctx context.Context, collection string) (Snapshot, error) {
	s.mu.Lock()
	version := s.versions[collection]
	s.mu.Unlock()
	return s.read(ctx, collection, version)
}

// Update merges fields into an existing document
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Document) error {
	patch, err := marshalDoc(fields)
	if err != nil {
		return err
	}

	query := `
		UPDATE records SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2`
	result, err := s.db.ExecContext(ctx, query, collection, id, patch)
	if err != nil {
		return s.mapError("update", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.NotFound(collection + " record")
	}

	s.changed(ctx, collection)
	return nil
}

// Delete removes a document
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM records WHERE collection = $1 AND id = $2`
	result, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return s.mapError("delete", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.NotFound(collection + " record")
	}

	s.changed(ctx, collection)
	return nil
}

// CommitBatch creates every write inside one transaction
func (s *PostgresStore) CommitBatch(ctx context.Context, writes []Write) ([]string, error) {
	ids := make([]string, len(writes))
	payloads := make([][]byte, len(writes))
	for i, w := range writes {
		data, err := marshalDoc(w.Data)
		if err != nil {
			return nil, err
		}
		payloads[i] = data
		ids[i] = w.ID
		if ids[i] == "" {
			ids[i] = uuid.New().String()
		}
	}

	query := `INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)`
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for i, w := range writes {
			if _, err := tx.ExecContext(ctx, query, w.Collection, ids[i], payloads[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapError("commit batch", err)
	}

	seen := make(map[string]bool)
	for _, w := range writes {
		if !seen[w.Collection] {
			seen[w.Collection] = true
			s.changed(ctx, w.Collection)
		}
	}
	return ids, nil
}

// Subscribe delivers the current snapshot and every later change of the collection
func (s *PostgresStore) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	lock := s.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	version := s.versions[collection]
	s.mu.Unlock()

	snap, err := s.read(ctx, collection, version)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, snap), nil
}

// Refresh re-reads a collection and republishes it to local subscribers.
// Used when another instance reports a change.
func (s *PostgresStore) Refresh(ctx context.Context, collection string) error {
	_, err := s.publish(ctx, collection)
	return err
}

// changed publishes the new collection state locally and tells other instances
func (s *PostgresStore) changed(ctx context.Context, collection string) {
	// the write is committed; a caller that went away must not cost subscribers the snapshot
	ctx = context.WithoutCancel(ctx)
	version, err := s.publish(ctx, collection)
	if err != nil {
		s.logger.Warn().Err(err).Str("collection", collection).Msg("failed to publish collection snapshot")
	}

	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()
	if notifier == nil {
		return
	}
	if err := notifier.NotifyChanged(ctx, collection, version); err != nil {
		s.logger.Warn().Err(err).Str("collection", collection).Msg("failed to notify collection change")
	}
}

// publish bumps the collection version and, when anyone listens, reads and
// fans out the snapshot. Publishes of one collection are serialized so
// subscribers never see an older snapshot after a newer one.
func (s *PostgresStore) publish(ctx context.Context, collection string) (uint64, error) {
	lock := s.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	s.versions[collection]++
	version := s.versions[collection]
	s.mu.Unlock()

	if !s.hub.HasSubscribers(collection) {
		return version, nil
	}

	snap, err := s.read(ctx, collection, version)
	if err != nil {
		return version, err
	}
	s.hub.Publish(snap)
	return version, nil
}

func (s *PostgresStore) read(ctx context.Context, collection string, version uint64) (Snapshot, error) {
	var rows []recordRow
	query := `SELECT id, data FROM records WHERE collection = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query, collection); err != nil {
		return Snapshot{}, s.mapError("list", err)
	}

	snap := emptySnapshot(collection, version)
	for _, row := range rows {
		doc, err := unmarshalDoc(row.Data)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Docs[row.ID] = doc
	}
	return snap, nil
}

func (s *PostgresStore) collectionLock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[collection]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[collection] = lock
	}
	return lock
}

func (s *PostgresStore) mapError(op string, err error) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	s.logger.Error().Err(err).Str("op", op).Msg("record store operation failed")
	return errors.Unavailable(op, err)
}

func marshalDoc(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("record is not serializable: %v", err))
	}
	return data, nil
}

func unmarshalDoc(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Internal(fmt.Sprintf("stored record is not a JSON object: %v", err))
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
