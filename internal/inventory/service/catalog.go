package service

import (
	"context"
	"strings"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/session"
	"github.com/shopspring/decimal"
)

// CatalogService handles item master data, categories, suppliers and item views
type CatalogService struct {
	itemRepo     *repository.ItemRepository
	batchRepo    *repository.BatchRepository
	categoryRepo *repository.CategoryRepository
	supplierRepo *repository.SupplierRepository
	opts         Options
	logger       *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	categoryRepo *repository.CategoryRepository,
	supplierRepo *repository.SupplierRepository,
	opts Options,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		itemRepo:     itemRepo,
		batchRepo:    batchRepo,
		categoryRepo: categoryRepo,
		supplierRepo: supplierRepo,
		opts:         opts,
		logger:       log,
	}
}

// ItemInput is the data needed to create an item
type ItemInput struct {
	TradeName         string
	GenericName       *string
	BrandName         *string
	Category          *string
	CostPrice         decimal.Decimal
	SellingPrice      decimal.Decimal
	MinimumStock      int
	DiscountPrevented bool
	Notes             *string
	InitialStock      *InitialStockInput
}

// ItemPatch is a partial item update; nil fields are left unchanged
type ItemPatch struct {
	TradeName         *string
	GenericName       *string
	BrandName         *string
	Category          *string
	CostPrice         *decimal.Decimal
	SellingPrice      *decimal.Decimal
	MinimumStock      *int
	DiscountPrevented *bool
	Notes             *string
}

// InitialStockInput seeds stock outside the purchasing flow. Expiry is optional here.
type InitialStockInput struct {
	Quantity   float64
	ExpiryDate *string
}

// Item operations

// CreateItem validates and creates an item, optionally seeding an initial stock batch
func (s *CatalogService) CreateItem(ctx context.Context, in ItemInput) (*ItemView, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	details := map[string]string{}
	tradeName := strings.TrimSpace(in.TradeName)
	if tradeName == "" {
		details["tradeName"] = "is required"
	}
	s.checkPrice(details, "costPrice", in.CostPrice)
	s.checkPrice(details, "sellingPrice", in.SellingPrice)
	if in.MinimumStock < 0 {
		details["minimumStock"] = "must not be negative"
	}
	if in.InitialStock != nil {
		checkInitialStock(details, "initialStock.", *in.InitialStock)
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	item := &repository.InventoryItem{
		TradeName:         tradeName,
		GenericName:       trimOptional(in.GenericName),
		BrandName:         trimOptional(in.BrandName),
		Category:          trimOptional(in.Category),
		CostPrice:         in.CostPrice,
		SellingPrice:      in.SellingPrice,
		MinimumStock:      in.MinimumStock,
		DiscountPrevented: in.DiscountPrevented,
		Notes:             in.Notes,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", item.ID).Str("trade_name", item.TradeName).Msg("inventory item created")

	if in.InitialStock != nil {
		if _, err := s.seedBatch(ctx, item, *in.InitialStock); err != nil {
			return nil, err
		}
	}

	return s.GetItemView(ctx, item.ID)
}

// UpdateItem applies a partial update to an item
func (s *CatalogService) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*ItemView, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	details := map[string]string{}
	fields := store.Document{}
	if patch.TradeName != nil {
		name := strings.TrimSpace(*patch.TradeName)
		if name == "" {
			details["tradeName"] = "is required"
		}
		fields["tradeName"] = name
	}
	if patch.CostPrice != nil {
		s.checkPrice(details, "costPrice", *patch.CostPrice)
		fields["costPrice"] = *patch.CostPrice
	}
	if patch.SellingPrice != nil {
		s.checkPrice(details, "sellingPrice", *patch.SellingPrice)
		fields["sellingPrice"] = *patch.SellingPrice
	}
	if patch.MinimumStock != nil {
		if *patch.MinimumStock < 0 {
			details["minimumStock"] = "must not be negative"
		}
		fields["minimumStock"] = *patch.MinimumStock
	}
	if patch.DiscountPrevented != nil {
		fields["discountPrevented"] = *patch.DiscountPrevented
	}
	setOptional(fields, "genericName", patch.GenericName)
	setOptional(fields, "brandName", patch.BrandName)
	setOptional(fields, "category", patch.Category)
	setOptional(fields, "notes", patch.Notes)

	if len(details) > 0 {
		return nil, errors.Validation(details)
	}
	if len(fields) == 0 {
		return nil, errors.BadRequest("no fields to update")
	}

	if err := s.itemRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.GetItemView(ctx, id)
}

// AddInitialStock seeds a batch for an existing item outside the purchasing flow
func (s *CatalogService) AddInitialStock(ctx context.Context, itemID string, in InitialStockInput) (*BatchView, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	details := map[string]string{}
	checkInitialStock(details, "", in)
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Reference("inventory item", itemID)
		}
		return nil, err
	}

	batch, err := s.seedBatch(ctx, item, in)
	if err != nil {
		return nil, err
	}
	views := BuildBatchViews([]*repository.Batch{batch}, s.opts.Today(), s.opts.Classifier())
	return views[0], nil
}

func (s *CatalogService) seedBatch(ctx context.Context, item *repository.InventoryItem, in InitialStockInput) (*repository.Batch, error) {
	cost, err := s.opts.Rounding.ToMinor(item.CostPrice)
	if err != nil {
		return nil, errors.Validation(map[string]string{"costPrice": "is too large"})
	}
	selling, err := s.opts.Rounding.ToMinor(item.SellingPrice)
	if err != nil {
		return nil, errors.Validation(map[string]string{"sellingPrice": "is too large"})
	}

	batch := &repository.Batch{
		ItemID:         item.ID,
		PurchaseID:     repository.InitialStockPurchaseID,
		Quantity:       in.Quantity,
		CostPrice:      cost,
		SellingPrice:   selling,
		ExpiryDate:     trimOptional(in.ExpiryDate),
		IsInitialStock: true,
	}
	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item_id", item.ID).
		Str("batch_id", batch.ID).
		Float64("quantity", batch.Quantity).
		Msg("initial stock recorded")

	return batch, nil
}

// GetItemView returns one item with its stock, status and classified batches
func (s *CatalogService) GetItemView(ctx context.Context, id string) (*ItemView, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	views := BuildItemViews([]*repository.InventoryItem{item}, categories, batches, s.opts.Today(), s.opts.Classifier())
	return views[0], nil
}

// ListItemViews recomputes the view of every item from the full ledger
func (s *CatalogService) ListItemViews(ctx context.Context) ([]*ItemView, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	items, err := s.itemRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	return BuildItemViews(items, categories, batches, s.opts.Today(), s.opts.Classifier()), nil
}

// ListItemBatches lists an item's batches classified for today
func (s *CatalogService) ListItemBatches(ctx context.Context, itemID string) ([]*BatchView, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	if _, err := s.itemRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return BuildBatchViews(batches, s.opts.Today(), s.opts.Classifier()), nil
}

// GetDashboardStats summarizes stock and expiry across the catalog
func (s *CatalogService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	views, err := s.ListItemViews(ctx)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(views)
	return &stats, nil
}

// Category operations

// CategoryInput is the data needed to create or replace a category
type CategoryInput struct {
	Name        string
	Description *string
}

// CreateCategory creates a category
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*repository.Category, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.Validation(map[string]string{"name": "is required"})
	}

	category := &repository.Category{Name: name, Description: trimOptional(in.Description)}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// GetCategory gets a category
func (s *CatalogService) GetCategory(ctx context.Context, id string) (*repository.Category, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.categoryRepo.GetByID(ctx, id)
}

// ListCategories lists categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]*repository.Category, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.categoryRepo.List(ctx)
}

// UpdateCategory replaces a category's name and description
func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*repository.Category, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.Validation(map[string]string{"name": "is required"})
	}

	fields := store.Document{"name": name, "description": trimOptional(in.Description)}
	if err := s.categoryRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.categoryRepo.GetByID(ctx, id)
}

// DeleteCategory deletes a category. Items that reference it keep the reference
// and show "-" as their category from then on.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	if _, err := session.Require(ctx); err != nil {
		return err
	}
	return s.categoryRepo.Delete(ctx, id)
}

// Supplier operations

// SupplierInput is the data needed to create or replace a supplier
type SupplierInput struct {
	Name        string
	CompanyName *string
	PhoneNumber *string
	Address     string
	Email       string
	Note        *string
}

func (in SupplierInput) validate() map[string]string {
	details := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "is required"
	}
	if strings.TrimSpace(in.Address) == "" {
		details["address"] = "is required"
	}
	if strings.TrimSpace(in.Email) == "" {
		details["email"] = "is required"
	}
	return details
}

// CreateSupplier creates a supplier
func (s *CatalogService) CreateSupplier(ctx context.Context, in SupplierInput) (*repository.Supplier, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	if details := in.validate(); len(details) > 0 {
		return nil, errors.Validation(details)
	}

	supplier := &repository.Supplier{
		Name:        strings.TrimSpace(in.Name),
		CompanyName: trimOptional(in.CompanyName),
		PhoneNumber: trimOptional(in.PhoneNumber),
		Address:     strings.TrimSpace(in.Address),
		Email:       strings.TrimSpace(in.Email),
		Note:        in.Note,
	}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// GetSupplier gets a supplier
func (s *CatalogService) GetSupplier(ctx context.Context, id string) (*repository.Supplier, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.supplierRepo.GetByID(ctx, id)
}

// ListSuppliers lists suppliers
func (s *CatalogService) ListSuppliers(ctx context.Context) ([]*repository.Supplier, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.supplierRepo.List(ctx)
}

// UpdateSupplier replaces a supplier's details. Past purchases keep the name they were recorded with.
func (s *CatalogService) UpdateSupplier(ctx context.Context, id string, in SupplierInput) (*repository.Supplier, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	if details := in.validate(); len(details) > 0 {
		return nil, errors.Validation(details)
	}

	fields := store.Document{
		"name":        strings.TrimSpace(in.Name),
		"companyName": trimOptional(in.CompanyName),
		"phoneNumber": trimOptional(in.PhoneNumber),
		"address":     strings.TrimSpace(in.Address),
		"email":       strings.TrimSpace(in.Email),
		"note":        in.Note,
	}
	if err := s.supplierRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.supplierRepo.GetByID(ctx, id)
}

// DeleteSupplier deletes a supplier
func (s *CatalogService) DeleteSupplier(ctx context.Context, id string) error {
	if _, err := session.Require(ctx); err != nil {
		return err
	}
	return s.supplierRepo.Delete(ctx, id)
}

// helpers

// checkPrice requires a non-negative price whose minor units fit the batch record
func (s *CatalogService) checkPrice(details map[string]string, field string, v decimal.Decimal) {
	if v.IsNegative() {
		details[field] = "must not be negative"
		return
	}
	if _, err := s.opts.Rounding.ToMinor(v); err != nil {
		details[field] = "is too large"
	}
}

func checkInitialStock(details map[string]string, prefix string, in InitialStockInput) {
	if in.Quantity <= 0 {
		details[prefix+"quantity"] = "must be greater than 0"
	}
	if in.ExpiryDate != nil && strings.TrimSpace(*in.ExpiryDate) != "" {
		if _, err := ParseDate(*in.ExpiryDate); err != nil {
			details[prefix+"expiryDate"] = "must be a date in YYYY-MM-DD format"
		}
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// setOptional sets an optional text field; an empty value clears it
func setOptional(fields store.Document, key string, v *string) {
	if v == nil {
		return
	}
	if trimmed := trimOptional(v); trimmed != nil {
		fields[key] = *trimmed
	} else {
		fields[key] = nil
	}
}
