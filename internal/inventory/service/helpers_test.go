package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/session"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fixedNow is mid-morning so date truncation is exercised
var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func today() time.Time {
	return service.TruncateDate(fixedNow)
}

// dateIn returns today+days as a YYYY-MM-DD string
func dateIn(days int) *string {
	s := today().AddDate(0, 0, days).Format(repository.DateLayout)
	return &s
}

func authed() context.Context {
	return session.WithSession(context.Background(), &session.Session{UserID: "user-1", Name: "Test Pharmacist"})
}

type fixture struct {
	store      store.Store
	items      *repository.ItemRepository
	batches    *repository.BatchRepository
	purchases  *repository.PurchaseRepository
	suppliers  *repository.SupplierRepository
	categories *repository.CategoryRepository
	catalog    *service.CatalogService
	purchase   *service.PurchaseService
	mq         *testutil.MockPublisher
	publisher  *events.LedgerEventPublisher
	opts       service.Options
	log        *logger.Logger
}

func newFixture(t *testing.T, s store.Store, configure ...func(*service.Options)) *fixture {
	t.Helper()

	opts := service.DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	for _, fn := range configure {
		fn(&opts)
	}

	log := logger.Nop()
	mq := testutil.NewMockPublisher()
	publisher := events.NewLedgerEventPublisherWith(mq, log)

	f := &fixture{
		store:      s,
		items:      repository.NewItemRepository(s, log),
		batches:    repository.NewBatchRepository(s, log),
		purchases:  repository.NewPurchaseRepository(s, log),
		suppliers:  repository.NewSupplierRepository(s, log),
		categories: repository.NewCategoryRepository(s, log),
		mq:         mq,
		publisher:  publisher,
		opts:       opts,
		log:        log,
	}
	f.catalog = service.NewCatalogService(f.items, f.batches, f.categories, f.suppliers, opts, log)
	f.purchase = service.NewPurchaseService(s, f.items, f.batches, f.purchases, f.suppliers, publisher, opts, log)
	return f
}

func (f *fixture) reconciler(opts service.Options) *service.Reconciler {
	return service.NewReconciler(f.purchases, f.batches, f.publisher, opts, f.log)
}

func (f *fixture) createSupplier(t *testing.T, name string) *repository.Supplier {
	t.Helper()
	sup := &repository.Supplier{Name: name, Address: "1 Main St", Email: "orders@example.test"}
	require.NoError(t, f.suppliers.Create(context.Background(), sup))
	return sup
}

func (f *fixture) createItem(t *testing.T, name string, minimumStock int) *repository.InventoryItem {
	t.Helper()
	item := &repository.InventoryItem{
		TradeName:    name,
		CostPrice:    decimal.RequireFromString("5"),
		SellingPrice: decimal.RequireFromString("8"),
		MinimumStock: minimumStock,
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func (f *fixture) addBatch(t *testing.T, itemID string, qty float64, expiry *string) *repository.Batch {
	t.Helper()
	b := &repository.Batch{ItemID: itemID, PurchaseID: "p-seed", Quantity: qty, CostPrice: 500, SellingPrice: 800, ExpiryDate: expiry}
	require.NoError(t, f.batches.Create(context.Background(), b))
	return b
}

func (f *fixture) countRecords(t *testing.T, collection string) int {
	t.Helper()
	snap, err := f.store.List(context.Background(), collection)
	require.NoError(t, err)
	return len(snap.Docs)
}

// flakyStore wraps a store without exposing CommitBatch, so purchases go
// through the saga, and fails selected writes.
type flakyStore struct {
	store.Store

	mu              sync.Mutex
	batchCreates    int
	failBatchCreate map[int]bool
	failDeletes     bool
	failStatus      bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: store.NewMemoryStore(), failBatchCreate: map[int]bool{}}
}

func (f *flakyStore) Create(ctx context.Context, collection string, doc store.Document) (string, error) {
	if collection == store.CollectionBatches {
		f.mu.Lock()
		f.batchCreates++
		fail := f.failBatchCreate[f.batchCreates]
		f.mu.Unlock()
		if fail {
			return "", errors.Unavailable("create", fmt.Errorf("connection reset"))
		}
	}
	return f.Store.Create(ctx, collection, doc)
}

func (f *flakyStore) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	fail := f.failDeletes
	f.mu.Unlock()
	if fail {
		return errors.Unavailable("delete", fmt.Errorf("connection reset"))
	}
	return f.Store.Delete(ctx, collection, id)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	f.mu.Lock()
	fail := f.failStatus && collection == store.CollectionPurchases
	f.mu.Unlock()
	if fail {
		return errors.Unavailable("update", fmt.Errorf("connection reset"))
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *flakyStore) set(fn func(*flakyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
