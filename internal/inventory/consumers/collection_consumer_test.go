package consumers

import (
	"context"
	"errors"
	"testing"

	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRefresher struct {
	collections []string
	err         error
}

func (r *recordingRefresher) Refresh(ctx context.Context, collection string) error {
	r.collections = append(r.collections, collection)
	return r.err
}

func newTestConsumer(refresher Refresher) *CollectionEventConsumer {
	return &CollectionEventConsumer{
		refresher: refresher,
		source:    "pharmacy-service.self",
		logger:    logger.Nop(),
	}
}

func collectionEvent(t *testing.T, source, collection string) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventCollectionChanged, source, "", messaging.CollectionChangedEvent{
		Collection: collection,
		Version:    7,
	})
	require.NoError(t, err)
	return event
}

func TestHandleCollectionChanged_RefreshesCollection(t *testing.T) {
	refresher := &recordingRefresher{}
	c := newTestConsumer(refresher)

	err := c.handleCollectionChanged(context.Background(), collectionEvent(t, "pharmacy-service.other", "batches"))

	require.NoError(t, err)
	assert.Equal(t, []string{"batches"}, refresher.collections)
}

func TestHandleCollectionChanged_SkipsOwnEvents(t *testing.T) {
	refresher := &recordingRefresher{}
	c := newTestConsumer(refresher)

	err := c.handleCollectionChanged(context.Background(), collectionEvent(t, "pharmacy-service.self", "batches"))

	require.NoError(t, err)
	assert.Empty(t, refresher.collections)
}

func TestHandleCollectionChanged_PropagatesRefreshError(t *testing.T) {
	refresher := &recordingRefresher{err: errors.New("connection refused")}
	c := newTestConsumer(refresher)

	err := c.handleCollectionChanged(context.Background(), collectionEvent(t, "pharmacy-service.other", "items"))

	assert.Error(t, err)
}

func TestHandleCollectionChanged_MalformedData(t *testing.T) {
	refresher := &recordingRefresher{}
	c := newTestConsumer(refresher)
	event := &messaging.Event{Type: messaging.EventCollectionChanged, Source: "other", Data: []byte(`"not an object"`)}

	err := c.handleCollectionChanged(context.Background(), event)

	assert.Error(t, err)
	assert.Empty(t, refresher.collections)
}
