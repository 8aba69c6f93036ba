package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Purchase statuses. A purchase without a status predates the saga and is committed.
const (
	PurchaseStatusPending    = "pending"
	PurchaseStatusCommitted  = "committed"
	PurchaseStatusRolledBack = "rolled_back"
)

// Purchase is a received supplier order. TotalCost is in minor currency units.
type Purchase struct {
	ID            string     `json:"id,omitempty"`
	SupplierID    string     `json:"supplierId"`
	SupplierName  string     `json:"supplierName"`
	PurchaseDate  string     `json:"purchaseDate"`
	TotalItems    int        `json:"totalItems"`
	TotalQuantity float64    `json:"totalQuantity"`
	TotalCost     int64      `json:"totalCost"`
	Status        string     `json:"status,omitempty"`
	BatchCount    int        `json:"batchCount,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	SettledAt     *time.Time `json:"settledAt,omitempty"`
}

// SetID sets the store key
func (p *Purchase) SetID(id string) { p.ID = id }

// EffectiveStatus returns the status, treating a missing one as committed
func (p *Purchase) EffectiveStatus() string {
	if p.Status == "" {
		return PurchaseStatusCommitted
	}
	return p.Status
}

// PurchaseRepository handles purchase persistence
type PurchaseRepository struct {
	store  store.Store
	logger *logger.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(s store.Store, log *logger.Logger) *PurchaseRepository {
	return &PurchaseRepository{store: s, logger: log}
}

// Create creates a new purchase
func (r *PurchaseRepository) Create(ctx context.Context, p *Purchase) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	doc, err := encodeEntity(p)
	if err != nil {
		return err
	}
	id, err := r.store.Create(ctx, store.CollectionPurchases, doc)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// Write prepares a purchase for an atomic multi-record commit and assigns its id
func (r *PurchaseRepository) Write(p *Purchase) (store.Write, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	doc, err := encodeEntity(p)
	if err != nil {
		return store.Write{}, err
	}
	return store.Write{Collection: store.CollectionPurchases, ID: p.ID, Data: doc}, nil
}

// GetByID gets a purchase by ID
func (r *PurchaseRepository) GetByID(ctx context.Context, id string) (*Purchase, error) {
	doc, err := r.store.Get(ctx, store.CollectionPurchases, id)
	if err != nil {
		return nil, err
	}
	return decodeEntity[Purchase](id, doc)
}

// List lists every purchase ordered by id
func (r *PurchaseRepository) List(ctx context.Context) ([]*Purchase, error) {
	snap, err := r.store.List(ctx, store.CollectionPurchases)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot[Purchase](snap, r.logger), nil
}

// SetStatus moves a purchase through the saga
func (r *PurchaseRepository) SetStatus(ctx context.Context, id, status string) error {
	fields := store.Document{"status": status}
	if status != PurchaseStatusPending {
		fields["settledAt"] = now()
	}
	return r.store.Update(ctx, store.CollectionPurchases, id, fields)
}
