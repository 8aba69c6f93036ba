package events

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// EventPublisher is the part of messaging.Publisher the ledger uses
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// LedgerEventPublisher publishes ledger events. A nil publisher drops every
// event, so the service runs unchanged without RabbitMQ.
type LedgerEventPublisher struct {
	publisher EventPublisher
	logger    *logger.Logger
}

// NewLedgerEventPublisher declares the ledger exchange and creates a publisher on it
func NewLedgerEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*LedgerEventPublisher, *messaging.Publisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeLedgerEvents, source, log)
	if err != nil {
		return nil, nil, err
	}
	return NewLedgerEventPublisherWith(publisher, log), publisher, nil
}

// NewLedgerEventPublisherWith wraps an existing publisher
func NewLedgerEventPublisherWith(publisher EventPublisher, log *logger.Logger) *LedgerEventPublisher {
	return &LedgerEventPublisher{publisher: publisher, logger: log}
}

// PublishPurchaseCommitted publishes a purchase committed event
func (p *LedgerEventPublisher) PublishPurchaseCommitted(ctx context.Context, purchase *repository.Purchase, atomic bool) {
	if p == nil {
		return
	}

	data := messaging.PurchaseCommittedEvent{
		PurchaseID:    purchase.ID,
		SupplierID:    purchase.SupplierID,
		SupplierName:  purchase.SupplierName,
		PurchaseDate:  purchase.PurchaseDate,
		TotalItems:    purchase.TotalItems,
		TotalQuantity: purchase.TotalQuantity,
		TotalCost:     purchase.TotalCost,
		BatchCount:    purchase.BatchCount,
		Atomic:        atomic,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPurchaseCommitted, data); err != nil {
		p.logger.Error().Err(err).Str("purchase_id", purchase.ID).Msg("failed to publish purchase committed event")
	}
}

// PublishPurchaseRolledBack publishes a purchase rolled back event
func (p *LedgerEventPublisher) PublishPurchaseRolledBack(ctx context.Context, purchase *repository.Purchase, reason string) {
	if p == nil {
		return
	}

	data := messaging.PurchaseRolledBackEvent{
		PurchaseID: purchase.ID,
		SupplierID: purchase.SupplierID,
		Reason:     reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPurchaseRolledBack, data); err != nil {
		p.logger.Error().Err(err).Str("purchase_id", purchase.ID).Msg("failed to publish purchase rolled back event")
	}
}

// PublishStockLow publishes a low stock event
func (p *LedgerEventPublisher) PublishStockLow(ctx context.Context, data messaging.StockLowEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Error().Err(err).Str("item_id", data.ItemID).Msg("failed to publish stock low event")
	}
}

// PublishBatchExpiring publishes an expiring or expired batch event
func (p *LedgerEventPublisher) PublishBatchExpiring(ctx context.Context, data messaging.BatchExpiringEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish batch expiring event")
	}
}
