package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	calls   []string
	ctxErrs []error
	err     error
}

func (n *recordingNotifier) NotifyChanged(ctx context.Context, collection string, version uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fmt.Sprintf("%s@%d", collection, version))
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

func newPostgresStore(t *testing.T, notifier Notifier) (*PostgresStore, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	return NewPostgresStore(database.Wrap(mockDB.DB, logger.Nop()), notifier, logger.Nop()), mockDB
}

const (
	insertQuery = "INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)"
	selectOne   = "SELECT data FROM records WHERE collection = $1 AND id = $2"
	selectAll   = "SELECT id, data FROM records WHERE collection = $1 ORDER BY id"
	updateQuery = "UPDATE records SET data = data || $3::jsonb, updated_at = NOW()"
	deleteQuery = "DELETE FROM records WHERE collection = $1 AND id = $2"
)

func TestPostgresStore_Create(t *testing.T) {
	notifier := &recordingNotifier{}
	s, mockDB := newPostgresStore(t, notifier)

	mockDB.ExpectExec(insertQuery).
		WithArgs(CollectionSuppliers, testutil.AnyUUID{}, testutil.JSONContains{"name": "Acme"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.Create(context.Background(), CollectionSuppliers, Document{"name": "Acme"})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"suppliers@1"}, notifier.calls)
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_CreateDuplicateMapsToConflict(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectExec(insertQuery).WillReturnError(&pq.Error{Code: "23505", Constraint: "records_pkey"})

	_, err := s.Create(context.Background(), CollectionSuppliers, Document{"name": "Acme"})

	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestPostgresStore_UnavailableIsWrapped(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	cause := fmt.Errorf("connection refused")
	mockDB.ExpectExec(insertQuery).WillReturnError(cause)

	_, err := s.Create(context.Background(), CollectionSuppliers, Document{"name": "Acme"})

	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.True(t, errors.Is(err, cause))
}

func TestPostgresStore_Get(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectQuery(selectOne).
		WithArgs(CollectionInventory, "item-1").
		WillReturnRows(testutil.MockRows("data").AddRow([]byte(`{"tradeName":"Panadol","minimumStock":5}`)))

	doc, err := s.Get(context.Background(), CollectionInventory, "item-1")

	require.NoError(t, err)
	assert.Equal(t, "Panadol", doc["tradeName"])
	assert.Equal(t, float64(5), doc["minimumStock"])
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectQuery(selectOne).WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), CollectionInventory, "missing")

	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPostgresStore_List(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectQuery(selectAll).
		WithArgs(CollectionBatches).
		WillReturnRows(testutil.RecordRows(
			"b1", map[string]any{"itemId": "i1", "quantity": 10},
			"b2", map[string]any{"itemId": "i1", "quantity": 5},
		))

	snap, err := s.List(context.Background(), CollectionBatches)

	require.NoError(t, err)
	assert.Equal(t, CollectionBatches, snap.Collection)
	assert.Len(t, snap.Docs, 2)
	assert.Equal(t, float64(5), snap.Docs["b2"]["quantity"])
}

func TestPostgresStore_ListEmpty(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectQuery(selectAll).WillReturnRows(testutil.MockRows("id", "data"))

	snap, err := s.List(context.Background(), CollectionCategories)

	require.NoError(t, err)
	assert.NotNil(t, snap.Docs)
	assert.Empty(t, snap.Docs)
}

func TestPostgresStore_UpdateMergesFields(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectExec(updateQuery).
		WithArgs(CollectionPurchases, "p1", testutil.JSONContains{"status": "committed"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Update(context.Background(), CollectionPurchases, "p1", Document{"status": "committed"})

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_UpdateMissing(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), CollectionPurchases, "missing", Document{"status": "committed"})

	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	mockDB.ExpectExec(deleteQuery).WithArgs(CollectionBatches, "b1").WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec(deleteQuery).WithArgs(CollectionBatches, "b1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), CollectionBatches, "b1"))
	assert.True(t, errors.Is(s.Delete(context.Background(), CollectionBatches, "b1"), errors.ErrNotFound))
}

func TestPostgresStore_CommitBatch(t *testing.T) {
	notifier := &recordingNotifier{}
	s, mockDB := newPostgresStore(t, notifier)

	mockDB.ExpectBegin()
	mockDB.ExpectExec(insertQuery).
		WithArgs(CollectionPurchases, "p1", testutil.JSONContains{"status": "committed"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec(insertQuery).
		WithArgs(CollectionBatches, testutil.AnyUUID{}, testutil.JSONContains{"purchaseId": "p1"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	ids, err := s.CommitBatch(context.Background(), []Write{
		{Collection: CollectionPurchases, ID: "p1", Data: Document{"status": "committed"}},
		{Collection: CollectionBatches, Data: Document{"purchaseId": "p1"}},
	})

	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "p1", ids[0])
	assert.ElementsMatch(t, []string{"purchases@1", "batches@1"}, notifier.calls)
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_CommitBatchRollsBack(t *testing.T) {
	notifier := &recordingNotifier{}
	s, mockDB := newPostgresStore(t, notifier)

	mockDB.ExpectBegin()
	mockDB.ExpectExec(insertQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec(insertQuery).WillReturnError(fmt.Errorf("disk full"))
	mockDB.ExpectRollback()

	_, err := s.CommitBatch(context.Background(), []Write{
		{Collection: CollectionPurchases, Data: Document{}},
		{Collection: CollectionBatches, Data: Document{}},
	})

	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Empty(t, notifier.calls)
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_SubscribeRepublishesAfterWrite(t *testing.T) {
	s, mockDB := newPostgresStore(t, nil)
	ctx := context.Background()

	mockDB.ExpectQuery(selectAll).WithArgs(CollectionBatches).
		WillReturnRows(testutil.RecordRows("b1", map[string]any{"quantity": 1}))
	mockDB.ExpectExec(insertQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(selectAll).WithArgs(CollectionBatches).
		WillReturnRows(testutil.RecordRows(
			"b1", map[string]any{"quantity": 1},
			"b2", map[string]any{"quantity": 2},
		))

	sub, err := s.Subscribe(ctx, CollectionBatches)
	require.NoError(t, err)
	defer sub.Close()

	initial := receive(t, sub)
	assert.Len(t, initial.Docs, 1)

	_, err = s.Create(ctx, CollectionBatches, Document{"quantity": 2})
	require.NoError(t, err)

	next := receive(t, sub)
	assert.Len(t, next.Docs, 2)
	assert.Greater(t, next.Version, initial.Version)
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_RefreshWithoutSubscribersSkipsRead(t *testing.T) {
	notifier := &recordingNotifier{}
	s, mockDB := newPostgresStore(t, notifier)

	require.NoError(t, s.Refresh(context.Background(), CollectionInventory))

	assert.Empty(t, notifier.calls, "refresh must not echo notifications")
	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_NotifierFailureDoesNotFailWrite(t *testing.T) {
	notifier := &recordingNotifier{err: fmt.Errorf("broker down")}
	s, mockDB := newPostgresStore(t, notifier)
	mockDB.ExpectExec(insertQuery).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := s.Create(context.Background(), CollectionCategories, Document{"name": "Vitamins"})

	assert.NoError(t, err)
	assert.Len(t, notifier.calls, 1)
}

func TestPostgresStore_ChangedOutlivesCallerContext(t *testing.T) {
	notifier := &recordingNotifier{}
	s, mockDB := newPostgresStore(t, notifier)

	mockDB.ExpectQuery(selectAll).WithArgs(CollectionBatches).
		WillReturnRows(testutil.RecordRows("b1", map[string]any{"quantity": 1}))
	mockDB.ExpectQuery(selectAll).WithArgs(CollectionBatches).
		WillReturnRows(testutil.RecordRows(
			"b1", map[string]any{"quantity": 1},
			"b2", map[string]any{"quantity": 2},
		))

	sub, err := s.Subscribe(context.Background(), CollectionBatches)
	require.NoError(t, err)
	defer sub.Close()
	initial := receive(t, sub)

	// the request went away right after its write committed
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	s.changed(reqCtx, CollectionBatches)

	next := receive(t, sub)
	assert.Len(t, next.Docs, 2)
	assert.Greater(t, next.Version, initial.Version)
	require.Len(t, notifier.ctxErrs, 1)
	assert.NoError(t, notifier.ctxErrs[0])
	mockDB.ExpectationsWereMet(t)
}
