package service

import (
	"context"
	"sync"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/session"
)

// LedgerView keeps item views current by subscribing to the batches,
// inventory and categories collections and recomputing everything on each
// snapshot. There is no incremental state: every change re-sums the ledger.
type LedgerView struct {
	itemRepo     *repository.ItemRepository
	batchRepo    *repository.BatchRepository
	categoryRepo *repository.CategoryRepository
	opts         Options
	logger       *logger.Logger

	mu         sync.RWMutex
	items      []*repository.InventoryItem
	batches    []*repository.Batch
	categories []*repository.Category
	views      []*ItemView
	computedAt time.Time
	day        time.Time

	changes chan struct{}
	subs    []*store.Subscription
	cancel  context.CancelFunc
	started bool
	closed  bool
	done    chan struct{}
	once    sync.Once
}

// NewLedgerView creates a ledger view; call Start to begin receiving updates
func NewLedgerView(
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	categoryRepo *repository.CategoryRepository,
	opts Options,
	log *logger.Logger,
) *LedgerView {
	return &LedgerView{
		itemRepo:     itemRepo,
		batchRepo:    batchRepo,
		categoryRepo: categoryRepo,
		opts:         opts,
		logger:       log,
		views:        make([]*ItemView, 0),
		changes:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Start subscribes to the collections and blocks until the first full view
// has been computed. Updates then flow in the background until Close or
// until ctx is cancelled.
func (v *LedgerView) Start(ctx context.Context) error {
	if _, err := session.Require(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel

	batchSub, err := v.batchRepo.Subscribe(ctx)
	if err != nil {
		cancel()
		return err
	}
	itemSub, err := v.itemRepo.Subscribe(ctx)
	if err != nil {
		batchSub.Close()
		cancel()
		return err
	}
	categorySub, err := v.categoryRepo.Subscribe(ctx)
	if err != nil {
		batchSub.Close()
		itemSub.Close()
		cancel()
		return err
	}
	v.subs = []*store.Subscription{batchSub, itemSub, categorySub}

	// Every subscription delivers its current snapshot straight away
	for _, sub := range v.subs {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				v.Close()
				return errors.Unavailable("subscribe "+sub.Collection(), context.Canceled)
			}
			v.apply(snap)
		case <-ctx.Done():
			v.Close()
			return errors.Unavailable("subscribe "+sub.Collection(), ctx.Err())
		}
	}
	v.Recompute()

	v.mu.Lock()
	v.started = true
	v.mu.Unlock()
	go v.run(ctx, batchSub, itemSub, categorySub)
	return nil
}

func (v *LedgerView) run(ctx context.Context, batchSub, itemSub, categorySub *store.Subscription) {
	defer v.finish()

	for {
		var (
			snap store.Snapshot
			ok   bool
		)
		select {
		case <-ctx.Done():
			return
		case snap, ok = <-batchSub.Updates():
		case snap, ok = <-itemSub.Updates():
		case snap, ok = <-categorySub.Updates():
		}
		if !ok {
			return
		}
		v.apply(snap)
		v.Recompute()
	}
}

func (v *LedgerView) apply(snap store.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch snap.Collection {
	case store.CollectionBatches:
		v.batches = v.batchRepo.FromSnapshot(snap)
	case store.CollectionInventory:
		v.items = v.itemRepo.FromSnapshot(snap)
	case store.CollectionCategories:
		v.categories = v.categoryRepo.FromSnapshot(snap)
	}
}

// Recompute rebuilds every item view for the current date.
func (v *LedgerView) Recompute() {
	today := v.opts.Today()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.views = BuildItemViews(v.items, v.categories, v.batches, today, v.opts.Classifier())
	v.computedAt = v.opts.now()
	v.day = today

	if v.closed {
		return
	}
	select {
	case v.changes <- struct{}{}:
	default:
	}
}

// current returns the views, rebuilding them first when the date moved on
// since the last recomputation
func (v *LedgerView) current() []*ItemView {
	v.mu.RLock()
	stale := !v.day.Equal(v.opts.Today())
	v.mu.RUnlock()
	if stale {
		v.Recompute()
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.views
}

// Items returns the item views classified against today's date
func (v *LedgerView) Items() []*ItemView {
	views := v.current()
	out := make([]*ItemView, len(views))
	copy(out, views)
	return out
}

// Item returns the view of one item classified against today's date
func (v *LedgerView) Item(id string) (*ItemView, bool) {
	for _, view := range v.current() {
		if view.ID == id {
			return view, true
		}
	}
	return nil, false
}

// ComputedAt returns when the views were last rebuilt
func (v *LedgerView) ComputedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.computedAt
}

// Changes signals after every recomputation. Signals coalesce; the channel
// is closed once the view stops.
func (v *LedgerView) Changes() <-chan struct{} {
	return v.changes
}

// Close releases every subscription and waits for the update loop to exit
func (v *LedgerView) Close() {
	v.once.Do(func() {
		if v.cancel != nil {
			v.cancel()
		}
		for _, sub := range v.subs {
			sub.Close()
		}
		v.mu.RLock()
		started := v.started
		v.mu.RUnlock()
		if !started {
			v.finish()
		}
	})
	<-v.done
}

func (v *LedgerView) finish() {
	v.mu.Lock()
	if !v.closed {
		v.closed = true
		close(v.changes)
	}
	v.mu.Unlock()
	close(v.done)
}
