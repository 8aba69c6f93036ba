package consumers

import (
	"context"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// Refresher re-reads a collection and pushes it to local subscribers
type Refresher interface {
	Refresh(ctx context.Context, collection string) error
}

// CollectionEventConsumer keeps this instance's store subscribers current
// when another instance writes to the shared store
type CollectionEventConsumer struct {
	consumer  *messaging.Consumer
	refresher Refresher
	source    string
	logger    *logger.Logger
}

// NewCollectionEventConsumer creates a consumer on a queue owned by this instance.
// Events published with the given source are our own writes and are skipped.
func NewCollectionEventConsumer(rmq *messaging.RabbitMQ, refresher Refresher, source string, log *logger.Logger) (*CollectionEventConsumer, error) {
	queue := "pharmacy-service.collections." + uuid.New().String()
	consumer, err := messaging.NewInstanceConsumer(rmq, queue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeLedgerEvents, messaging.EventCollectionChanged); err != nil {
		return nil, err
	}

	c := &CollectionEventConsumer{
		consumer:  consumer,
		refresher: refresher,
		source:    source,
		logger:    log,
	}

	consumer.RegisterHandler(messaging.EventCollectionChanged, c.handleCollectionChanged)

	return c, nil
}

// Start starts consuming messages
func (c *CollectionEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *CollectionEventConsumer) handleCollectionChanged(ctx context.Context, event *messaging.Event) error {
	if event.Source == c.source {
		return nil
	}

	var data messaging.CollectionChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Debug().
		Str("collection", data.Collection).
		Uint64("version", data.Version).
		Str("source", event.Source).
		Msg("received collection changed event")

	return c.refresher.Refresh(ctx, data.Collection)
}
