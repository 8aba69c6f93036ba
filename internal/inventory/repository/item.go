package repository

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// InventoryItem represents a catalog entry. Prices are in major currency units.
type InventoryItem struct {
	ID                string          `json:"id,omitempty"`
	TradeName         string          `json:"tradeName"`
	GenericName       *string         `json:"genericName,omitempty"`
	BrandName         *string         `json:"brandName,omitempty"`
	Category          *string         `json:"category,omitempty"`
	CostPrice         decimal.Decimal `json:"costPrice"`
	SellingPrice      decimal.Decimal `json:"sellingPrice"`
	CurrentStock      float64         `json:"currentStock"` // legacy manual figure, superseded by the ledger
	MinimumStock      int             `json:"minimumStock"`
	DiscountPrevented bool            `json:"discountPrevented"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// SetID sets the store key
func (i *InventoryItem) SetID(id string) { i.ID = id }

// ItemRepository handles inventory item persistence.
// Items are never deleted.
type ItemRepository struct {
	store  store.Store
	logger *logger.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(s store.Store, log *logger.Logger) *ItemRepository {
	return &ItemRepository{store: s, logger: log}
}

// Create creates a new inventory item
func (r *ItemRepository) Create(ctx context.Context, item *InventoryItem) error {
	ts := now()
	item.CreatedAt = ts
	item.UpdatedAt = ts

	doc, err := encodeEntity(item)
	if err != nil {
		return err
	}
	id, err := r.store.Create(ctx, store.CollectionInventory, doc)
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*InventoryItem, error) {
	doc, err := r.store.Get(ctx, store.CollectionInventory, id)
	if err != nil {
		return nil, err
	}
	return decodeEntity[InventoryItem](id, doc)
}

// List lists every item ordered by id
func (r *ItemRepository) List(ctx context.Context) ([]*InventoryItem, error) {
	snap, err := r.store.List(ctx, store.CollectionInventory)
	if err != nil {
		return nil, err
	}
	return r.FromSnapshot(snap), nil
}

// Update merges fields into an item and bumps updatedAt
func (r *ItemRepository) Update(ctx context.Context, id string, fields store.Document) error {
	fields["updatedAt"] = now()
	return r.store.Update(ctx, store.CollectionInventory, id, fields)
}

// Subscribe subscribes to the inventory collection
func (r *ItemRepository) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return r.store.Subscribe(ctx, store.CollectionInventory)
}

// FromSnapshot decodes an inventory snapshot
func (r *ItemRepository) FromSnapshot(snap store.Snapshot) []*InventoryItem {
	return decodeSnapshot[InventoryItem](snap, r.logger)
}
