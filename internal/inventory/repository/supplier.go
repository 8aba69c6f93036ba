package repository

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Supplier represents a supplier
type Supplier struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	CompanyName *string   `json:"companyName,omitempty"`
	PhoneNumber *string   `json:"phoneNumber,omitempty"`
	Address     string    `json:"address"`
	Email       string    `json:"email"`
	Note        *string   `json:"note,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SetID sets the store key
func (s *Supplier) SetID(id string) { s.ID = id }

// SupplierRepository handles supplier persistence
type SupplierRepository struct {
	store  store.Store
	logger *logger.Logger
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(s store.Store, log *logger.Logger) *SupplierRepository {
	return &SupplierRepository{store: s, logger: log}
}

// Create creates a new supplier
func (r *SupplierRepository) Create(ctx context.Context, supplier *Supplier) error {
	ts := now()
	supplier.CreatedAt = ts
	supplier.UpdatedAt = ts

	doc, err := encodeEntity(supplier)
	if err != nil {
		return err
	}
	id, err := r.store.Create(ctx, store.CollectionSuppliers, doc)
	if err != nil {
		return err
	}
	supplier.ID = id
	return nil
}

// GetByID gets a supplier by ID
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*Supplier, error) {
	doc, err := r.store.Get(ctx, store.CollectionSuppliers, id)
	if err != nil {
		return nil, err
	}
	return decodeEntity[Supplier](id, doc)
}

// List lists every supplier ordered by id
func (r *SupplierRepository) List(ctx context.Context) ([]*Supplier, error) {
	snap, err := r.store.List(ctx, store.CollectionSuppliers)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot[Supplier](snap, r.logger), nil
}

// Update merges fields into a supplier and bumps updatedAt
func (r *SupplierRepository) Update(ctx context.Context, id string, fields store.Document) error {
	fields["updatedAt"] = now()
	return r.store.Update(ctx, store.CollectionSuppliers, id, fields)
}

// Delete deletes a supplier. Purchases keep their denormalized supplier name.
func (r *SupplierRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.CollectionSuppliers, id)
}
