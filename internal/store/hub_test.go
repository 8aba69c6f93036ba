package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(version uint64, ids ...string) Snapshot {
	snap := emptySnapshot(CollectionBatches, version)
	for _, id := range ids {
		snap.Docs[id] = Document{"quantity": float64(1)}
	}
	return snap
}

func receive(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription was not closed")
		}
	}
}

func TestHub_InitialSnapshotDeliveredImmediately(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(context.Background(), snapshotWith(3, "a"))
	defer sub.Close()

	snap := receive(t, sub)
	assert.Equal(t, uint64(3), snap.Version)
	assert.Contains(t, snap.Docs, "a")
}

func TestHub_CoalescesForSlowConsumer(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(context.Background(), snapshotWith(1))
	defer sub.Close()

	hub.Publish(snapshotWith(2, "a"))
	hub.Publish(snapshotWith(3, "a", "b"))
	hub.Publish(snapshotWith(4, "a", "b", "c"))

	snap := receive(t, sub)
	assert.Equal(t, uint64(4), snap.Version)
	assert.Len(t, snap.Docs, 3)

	select {
	case extra := <-sub.Updates():
		t.Fatalf("unexpected extra snapshot %d", extra.Version)
	default:
	}
}

func TestHub_DropsStaleSnapshots(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(context.Background(), snapshotWith(5, "a"))
	defer sub.Close()
	receive(t, sub)

	hub.Publish(snapshotWith(4))

	select {
	case snap := <-sub.Updates():
		t.Fatalf("stale snapshot %d delivered", snap.Version)
	default:
	}
}

func TestHub_OnlyMatchingCollection(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(context.Background(), snapshotWith(0))
	defer sub.Close()
	receive(t, sub)

	hub.Publish(emptySnapshot(CollectionInventory, 9))

	select {
	case snap := <-sub.Updates():
		t.Fatalf("received snapshot of %s", snap.Collection)
	default:
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(context.Background(), snapshotWith(0))
	assert.Equal(t, 1, hub.Count(CollectionBatches))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Count(CollectionBatches))
	assert.False(t, hub.HasSubscribers(CollectionBatches))
	waitClosed(t, sub)

	// Publishing after close must not panic
	hub.Publish(snapshotWith(1))
}

func TestSubscription_ReleasedOnContextCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	sub := hub.Subscribe(ctx, snapshotWith(0))

	cancel()

	waitClosed(t, sub)
	assert.Eventually(t, func() bool { return hub.Count(CollectionBatches) == 0 }, time.Second, 10*time.Millisecond)
}
