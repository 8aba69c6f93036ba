package events_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ store.Notifier = (*events.CollectionNotifier)(nil)

func TestLedgerEventPublisher_NilIsSafe(t *testing.T) {
	var p *events.LedgerEventPublisher
	ctx := context.Background()

	assert.NotPanics(t, func() {
		p.PublishPurchaseCommitted(ctx, &repository.Purchase{ID: "p1"}, true)
		p.PublishPurchaseRolledBack(ctx, &repository.Purchase{ID: "p1"}, "boom")
		p.PublishStockLow(ctx, messaging.StockLowEvent{ItemID: "i1"})
		p.PublishBatchExpiring(ctx, messaging.BatchExpiringEvent{BatchID: "b1"})
	})
}

func TestLedgerEventPublisher_PurchaseCommitted(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewLedgerEventPublisherWith(mock, logger.Nop())

	p.PublishPurchaseCommitted(context.Background(), &repository.Purchase{
		ID: "p1", SupplierID: "s1", SupplierName: "Acme", PurchaseDate: "2024-01-05",
		TotalItems: 1, TotalQuantity: 15, TotalCost: 7500, BatchCount: 2,
	}, false)

	published := mock.Events(messaging.EventPurchaseCommitted)
	require.Len(t, published, 1)
	data, ok := published[0].Payload.(messaging.PurchaseCommittedEvent)
	require.True(t, ok)
	assert.Equal(t, "p1", data.PurchaseID)
	assert.Equal(t, int64(7500), data.TotalCost)
	assert.Equal(t, 2, data.BatchCount)
	assert.False(t, data.Atomic)
}

func TestLedgerEventPublisher_PublishFailureIsSwallowed(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = fmt.Errorf("channel closed")
	p := events.NewLedgerEventPublisherWith(mock, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishStockLow(context.Background(), messaging.StockLowEvent{ItemID: "i1"})
	})
	mock.AssertNoEventsPublished(t)
}

func TestCollectionNotifier_NotifyChanged(t *testing.T) {
	mock := testutil.NewMockPublisher()
	n := events.NewCollectionNotifier(mock)

	require.NoError(t, n.NotifyChanged(context.Background(), store.CollectionBatches, 7))

	published := mock.Events(messaging.EventCollectionChanged)
	require.Len(t, published, 1)
	assert.Equal(t, messaging.CollectionChangedEvent{Collection: "batches", Version: 7}, published[0].Payload)
}

func TestCollectionNotifier_ReturnsPublishError(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = fmt.Errorf("channel closed")

	err := events.NewCollectionNotifier(mock).NotifyChanged(context.Background(), store.CollectionBatches, 1)
	assert.Error(t, err)
}
