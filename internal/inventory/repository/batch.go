package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// InitialStockPurchaseID marks batches seeded outside the purchasing flow
const InitialStockPurchaseID = "initial-stock"

// Batch is one stock lot in the ledger. Prices are in minor currency units.
// Batches are never updated; stock changes only by adding batches.
type Batch struct {
	ID             string    `json:"id,omitempty"`
	ItemID         string    `json:"itemId"`
	PurchaseID     string    `json:"purchaseId"`
	Quantity       float64   `json:"quantity"`
	CostPrice      int64     `json:"costPrice"`
	SellingPrice   int64     `json:"sellingPrice"`
	ExpiryDate     *string   `json:"expiryDate"`
	CreatedAt      time.Time `json:"createdAt"`
	IsInitialStock bool      `json:"isInitialStock,omitempty"`
}

// SetID sets the store key
func (b *Batch) SetID(id string) { b.ID = id }

// HasExpiry reports whether the batch carries an expiry date
func (b *Batch) HasExpiry() bool {
	return b.ExpiryDate != nil && *b.ExpiryDate != ""
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	store  store.Store
	logger *logger.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(s store.Store, log *logger.Logger) *BatchRepository {
	return &BatchRepository{store: s, logger: log}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *Batch) error {
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now()
	}
	doc, err := encodeEntity(batch)
	if err != nil {
		return err
	}
	id, err := r.store.Create(ctx, store.CollectionBatches, doc)
	if err != nil {
		return err
	}
	batch.ID = id
	return nil
}

// Write prepares a batch for an atomic multi-record commit and assigns its id
func (r *BatchRepository) Write(batch *Batch) (store.Write, error) {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now()
	}
	doc, err := encodeEntity(batch)
	if err != nil {
		return store.Write{}, err
	}
	return store.Write{Collection: store.CollectionBatches, ID: batch.ID, Data: doc}, nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	doc, err := r.store.Get(ctx, store.CollectionBatches, id)
	if err != nil {
		return nil, err
	}
	return decodeEntity[Batch](id, doc)
}

// List lists the whole ledger ordered by id
func (r *BatchRepository) List(ctx context.Context) ([]*Batch, error) {
	snap, err := r.store.List(ctx, store.CollectionBatches)
	if err != nil {
		return nil, err
	}
	return r.FromSnapshot(snap), nil
}

// ListByItem lists the batches of one item
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]*Batch, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBatches(all, func(b *Batch) bool { return b.ItemID == itemID }), nil
}

// ListByPurchase lists the batches written for one purchase
func (r *BatchRepository) ListByPurchase(ctx context.Context, purchaseID string) ([]*Batch, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBatches(all, func(b *Batch) bool { return b.PurchaseID == purchaseID }), nil
}

// Delete removes a batch. Only used to undo a purchase that did not complete.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.CollectionBatches, id)
}

// Subscribe subscribes to the batches collection
func (r *BatchRepository) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return r.store.Subscribe(ctx, store.CollectionBatches)
}

// FromSnapshot decodes a batches snapshot
func (r *BatchRepository) FromSnapshot(snap store.Snapshot) []*Batch {
	return decodeSnapshot[Batch](snap, r.logger)
}

// FilterBatches returns the batches matching keep
func FilterBatches(batches []*Batch, keep func(*Batch) bool) []*Batch {
	out := make([]*Batch, 0)
	for _, b := range batches {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
