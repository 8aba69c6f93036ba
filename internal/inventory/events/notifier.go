package events

import (
	"context"

	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// CollectionNotifier tells other service instances that a record store
// collection changed, so they can refresh their subscribers.
type CollectionNotifier struct {
	publisher EventPublisher
}

// NewCollectionNotifier creates a notifier on the ledger exchange
func NewCollectionNotifier(publisher EventPublisher) *CollectionNotifier {
	return &CollectionNotifier{publisher: publisher}
}

// NotifyChanged publishes a collection changed event
func (n *CollectionNotifier) NotifyChanged(ctx context.Context, collection string, version uint64) error {
	return n.publisher.Publish(ctx, messaging.EventCollectionChanged, messaging.CollectionChangedEvent{
		Collection: collection,
		Version:    version,
	})
}
