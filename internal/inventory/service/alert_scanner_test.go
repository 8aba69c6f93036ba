package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) ListItemViews(context.Context) ([]*service.ItemView, error) {
	return nil, fmt.Errorf("store offline")
}

func TestAlertScanner_PublishesOncePerCondition(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	low := f.createItem(t, "Brufen", 10)
	f.addBatch(t, low.ID, 4, dateIn(5))
	healthy := f.createItem(t, "Panadol", 1)
	f.addBatch(t, healthy.ID, 50, dateIn(365))
	f.createItem(t, "Augmentin", 0)

	scanner := service.NewAlertScanner(f.catalog, f.publisher, f.log)

	require.NoError(t, scanner.ScanAll(authed()))

	stock := f.mq.Events(messaging.EventStockLow)
	require.Len(t, stock, 2)
	statuses := map[string]string{}
	for _, e := range stock {
		data := e.Payload.(messaging.StockLowEvent)
		statuses[data.TradeName] = data.Status
	}
	assert.Equal(t, map[string]string{"Brufen": "low_stock", "Augmentin": "out_of_stock"}, statuses)

	expiring := f.mq.Events(messaging.EventBatchExpiring)
	require.Len(t, expiring, 1)
	data := expiring[0].Payload.(messaging.BatchExpiringEvent)
	assert.Equal(t, low.ID, data.ItemID)
	assert.Equal(t, 5, data.DaysUntil)
	assert.Equal(t, string(service.ExpiryExpiringSoon), data.State)

	// A second scan with nothing changed publishes nothing new
	require.NoError(t, scanner.ScanAll(authed()))
	assert.Len(t, f.mq.Events(messaging.EventStockLow), 2)
	assert.Len(t, f.mq.Events(messaging.EventBatchExpiring), 1)
}

func TestAlertScanner_ClearedConditionIsReportedAgain(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	item := f.createItem(t, "Brufen", 2)
	scanner := service.NewAlertScanner(f.catalog, f.publisher, f.log)

	require.NoError(t, scanner.ScanAll(authed()))
	require.Len(t, f.mq.Events(messaging.EventStockLow), 1)

	restock := f.addBatch(t, item.ID, 10, nil)
	require.NoError(t, scanner.ScanAll(authed()))
	require.Len(t, f.mq.Events(messaging.EventStockLow), 1)

	require.NoError(t, f.batches.Delete(context.Background(), restock.ID))
	require.NoError(t, scanner.ScanAll(authed()))
	assert.Len(t, f.mq.Events(messaging.EventStockLow), 2)
}

func TestAlertScanner_SourceError(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	scanner := service.NewAlertScanner(failingSource{}, f.publisher, f.log)

	assert.Error(t, scanner.ScanAll(authed()))
	f.mq.AssertNoEventsPublished(t)
}

func TestScheduler_RunCycle(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	f.createItem(t, "Brufen", 2)
	p := f.pendingPurchase(t, 1, 1)

	later := f.opts
	later.Now = func() time.Time { return time.Now().Add(time.Hour) }
	sched := service.NewScheduler(f.reconciler(later), service.NewAlertScanner(f.catalog, f.publisher, f.log), nil, 0, f.log)

	sched.RunCycle(session.System(context.Background()))

	got, err := f.purchases.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "committed", got.Status)
	assert.Len(t, f.mq.Events(messaging.EventStockLow), 1)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore())
	p := f.pendingPurchase(t, 1, 1)

	later := f.opts
	later.Now = func() time.Time { return time.Now().Add(time.Hour) }
	view := f.ledgerView()
	require.NoError(t, view.Start(authed()))
	defer view.Close()

	sched := service.NewScheduler(f.reconciler(later), service.NewAlertScanner(f.catalog, f.publisher, f.log), view, time.Hour, f.log)
	sched.Start(context.Background())
	require.Eventually(t, func() bool {
		got, err := f.purchases.GetByID(context.Background(), p.ID)
		return err == nil && got.Status == "committed"
	}, 2*time.Second, 10*time.Millisecond)
	sched.Stop()
}
