package repository

import (
	"context"
	"time"

	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Category groups inventory items
type Category struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SetID sets the store key
func (c *Category) SetID(id string) { c.ID = id }

// CategoryRepository handles category persistence
type CategoryRepository struct {
	store  store.Store
	logger *logger.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(s store.Store, log *logger.Logger) *CategoryRepository {
	return &CategoryRepository{store: s, logger: log}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *Category) error {
	category.CreatedAt = now()
	doc, err := encodeEntity(category)
	if err != nil {
		return err
	}
	id, err := r.store.Create(ctx, store.CollectionCategories, doc)
	if err != nil {
		return err
	}
	category.ID = id
	return nil
}

// GetByID gets a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*Category, error) {
	doc, err := r.store.Get(ctx, store.CollectionCategories, id)
	if err != nil {
		return nil, err
	}
	return decodeEntity[Category](id, doc)
}

// List lists every category ordered by id
func (r *CategoryRepository) List(ctx context.Context) ([]*Category, error) {
	snap, err := r.store.List(ctx, store.CollectionCategories)
	if err != nil {
		return nil, err
	}
	return r.FromSnapshot(snap), nil
}

// Update merges fields into a category
func (r *CategoryRepository) Update(ctx context.Context, id string, fields store.Document) error {
	return r.store.Update(ctx, store.CollectionCategories, id, fields)
}

// Delete deletes a category. Items referencing it are left as they are.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.CollectionCategories, id)
}

// Subscribe subscribes to the categories collection
func (r *CategoryRepository) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return r.store.Subscribe(ctx, store.CollectionCategories)
}

// FromSnapshot decodes a categories snapshot
func (r *CategoryRepository) FromSnapshot(snap store.Snapshot) []*Category {
	return decodeSnapshot[Category](snap, r.logger)
}
