package store

import (
	"context"
	"sync"
)

// Subscription is a live view of one collection.
// Updates coalesce: a consumer that falls behind only sees the latest snapshot.
type Subscription struct {
	collection string
	hub        *Hub
	updates    chan Snapshot
	done       chan struct{}

	mu          sync.Mutex
	closed      bool
	lastVersion uint64
	delivered   bool
}

// Updates returns the channel snapshots are delivered on.
// It is closed when the subscription is released.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Collection returns the subscribed collection name
func (s *Subscription) Collection() string {
	return s.collection
}

// Close releases the subscription. Calling it more than once is safe.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.updates)
	close(s.done)
	s.mu.Unlock()

	s.hub.remove(s)
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.delivered && snap.Version <= s.lastVersion {
		return
	}
	s.delivered = true
	s.lastVersion = snap.Version

	select {
	case s.updates <- snap:
	default:
		// Replace the snapshot the consumer has not picked up yet
		select {
		case <-s.updates:
		default:
		}
		s.updates <- snap
	}
}

// Hub fans collection snapshots out to subscribers
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a subscriber and hands it the initial snapshot.
// The subscription is released when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, initial Snapshot) *Subscription {
	sub := &Subscription{
		collection: initial.Collection,
		hub:        h,
		updates:    make(chan Snapshot, 1),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[initial.Collection] == nil {
		h.subs[initial.Collection] = make(map[*Subscription]struct{})
	}
	h.subs[initial.Collection][sub] = struct{}{}
	h.mu.Unlock()

	sub.deliver(initial)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub
}

// Publish delivers a snapshot to every subscriber of its collection
func (h *Hub) Publish(snap Snapshot) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs[snap.Collection]))
	for sub := range h.subs[snap.Collection] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(snap)
	}
}

// HasSubscribers reports whether anyone listens to the collection
func (h *Hub) HasSubscribers(collection string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection]) > 0
}

// Count returns the number of live subscriptions on a collection
func (h *Hub) Count(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sub.collection], sub)
	if len(h.subs[sub.collection]) == 0 {
		delete(h.subs, sub.collection)
	}
}
