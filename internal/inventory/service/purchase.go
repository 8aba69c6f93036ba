package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/money"
	"github.com/medflow/pharmacy-backend/pkg/session"
	"github.com/shopspring/decimal"
)

// PurchaseRequest is a supplier order as entered by staff.
// Amounts are decimal strings so they are parsed exactly.
type PurchaseRequest struct {
	SupplierID   string         `json:"supplierId"`
	PurchaseDate string         `json:"purchaseDate"`
	Items        []PurchaseLine `json:"items"`
}

// PurchaseLine is one item of an order with the prices shared by all its batches
type PurchaseLine struct {
	ItemID       string       `json:"itemId"`
	CostPrice    string       `json:"costPrice"`
	SellingPrice string       `json:"sellingPrice"`
	Batches      []BatchEntry `json:"batches"`
}

// BatchEntry is one received lot of a line item
type BatchEntry struct {
	Quantity   string `json:"quantity"`
	ExpiryDate string `json:"expiryDate"`
}

// PurchaseResult is a recorded purchase together with the batches it created
type PurchaseResult struct {
	Purchase *repository.Purchase `json:"purchase"`
	Batches  []*repository.Batch  `json:"batches"`
}

// PurchaseService turns validated orders into one purchase and its batches
type PurchaseService struct {
	store        store.Store
	itemRepo     *repository.ItemRepository
	batchRepo    *repository.BatchRepository
	purchaseRepo *repository.PurchaseRepository
	supplierRepo *repository.SupplierRepository
	publisher    *events.LedgerEventPublisher
	opts         Options
	logger       *logger.Logger
}

// NewPurchaseService creates a new purchase service.
// When s implements store.Batcher purchases are written atomically.
func NewPurchaseService(
	s store.Store,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	purchaseRepo *repository.PurchaseRepository,
	supplierRepo *repository.SupplierRepository,
	publisher *events.LedgerEventPublisher,
	opts Options,
	log *logger.Logger,
) *PurchaseService {
	return &PurchaseService{
		store:        s,
		itemRepo:     itemRepo,
		batchRepo:    batchRepo,
		purchaseRepo: purchaseRepo,
		supplierRepo: supplierRepo,
		publisher:    publisher,
		opts:         opts,
		logger:       log,
	}
}

// parsedLine is a validated line item
type parsedLine struct {
	itemID       string
	costPrice    decimal.Decimal
	sellingPrice decimal.Decimal
	batches      []parsedBatch
}

type parsedBatch struct {
	quantity   float64
	exact      decimal.Decimal
	expiryDate *string
}

// maxQuantity bounds a single lot so quantities and their sums stay finite
var maxQuantity = decimal.New(1, 12)

// Submit validates an order and records it. Nothing is written unless every
// check passes.
func (s *PurchaseService) Submit(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	lines, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	supplierID := strings.TrimSpace(req.SupplierID)
	supplier, err := s.supplierRepo.GetByID(ctx, supplierID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Reference("supplier", supplierID)
		}
		return nil, err
	}
	if err := s.checkItems(ctx, lines); err != nil {
		return nil, err
	}

	purchase, batches := s.build(supplier, strings.TrimSpace(req.PurchaseDate), lines)

	if batcher, ok := s.store.(store.Batcher); ok {
		return s.commitAtomic(ctx, batcher, purchase, batches)
	}
	return s.commitSaga(ctx, purchase, batches)
}

// validate checks the shape of the order and collects every problem
func (s *PurchaseService) validate(req PurchaseRequest) ([]parsedLine, error) {
	details := map[string]string{}

	if strings.TrimSpace(req.SupplierID) == "" {
		details["supplierId"] = "is required"
	}
	if strings.TrimSpace(req.PurchaseDate) == "" {
		details["purchaseDate"] = "is required"
	} else if _, err := ParseDate(req.PurchaseDate); err != nil {
		details["purchaseDate"] = "must be a date in YYYY-MM-DD format"
	}
	if len(req.Items) == 0 {
		details["items"] = "at least one line item is required"
	}

	lines := make([]parsedLine, 0, len(req.Items))
	for i, item := range req.Items {
		path := fmt.Sprintf("items[%d]", i)
		line := parsedLine{itemID: strings.TrimSpace(item.ItemID)}

		if line.itemID == "" {
			details[path+".itemId"] = "is required"
		}
		line.costPrice = s.parsePrice(details, path+".costPrice", item.CostPrice)
		line.sellingPrice = s.parsePrice(details, path+".sellingPrice", item.SellingPrice)

		if len(item.Batches) == 0 {
			details[path+".batches"] = "at least one batch is required"
		}
		for j, entry := range item.Batches {
			bpath := fmt.Sprintf("%s.batches[%d]", path, j)
			line.batches = append(line.batches, s.parseBatch(details, bpath, entry))
		}
		lines = append(lines, line)
	}

	if len(details) == 0 {
		if _, err := s.opts.Rounding.ToMinor(orderCost(lines)); err != nil {
			details["items"] = "total cost is too large"
		}
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}
	return lines, nil
}

// orderCost is the exact sum of quantity × cost price over every lot
func orderCost(lines []parsedLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		for _, entry := range line.batches {
			total = total.Add(entry.exact.Mul(line.costPrice))
		}
	}
	return total
}

func (s *PurchaseService) parseBatch(details map[string]string, path string, entry BatchEntry) parsedBatch {
	var b parsedBatch

	qty, err := money.Parse(entry.Quantity)
	switch {
	case err != nil:
		details[path+".quantity"] = "must be a number"
	case !qty.IsPositive():
		details[path+".quantity"] = "must be greater than 0"
	case qty.GreaterThan(maxQuantity):
		details[path+".quantity"] = "must be at most " + maxQuantity.String()
	default:
		b.exact = qty
		b.quantity = qty.InexactFloat64()
	}

	expiry := strings.TrimSpace(entry.ExpiryDate)
	switch {
	case expiry == "":
		if s.opts.RequireExpiryOnPurchase {
			details[path+".expiryDate"] = "is required"
		}
	default:
		if _, err := ParseDate(expiry); err != nil {
			details[path+".expiryDate"] = "must be a date in YYYY-MM-DD format"
		} else {
			b.expiryDate = &expiry
		}
	}
	return b
}

func (s *PurchaseService) parsePrice(details map[string]string, field, raw string) decimal.Decimal {
	price, err := money.Parse(raw)
	if err != nil {
		details[field] = "must be a number"
		return decimal.Zero
	}
	if price.IsNegative() {
		details[field] = "must not be negative"
		return decimal.Zero
	}
	if _, err := s.opts.Rounding.ToMinor(price); err != nil {
		details[field] = "is too large"
		return decimal.Zero
	}
	return price
}

// checkItems makes sure every referenced item still exists
func (s *PurchaseService) checkItems(ctx context.Context, lines []parsedLine) error {
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if seen[line.itemID] {
			continue
		}
		seen[line.itemID] = true
		if _, err := s.itemRepo.GetByID(ctx, line.itemID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errors.Reference("inventory item", line.itemID)
			}
			return err
		}
	}
	return nil
}

// build computes the purchase totals and the batch records.
// Batch prices and the purchase total are rounded independently to minor units.
// totalQuantity is the sum of the quantities stored on the batches.
func (s *PurchaseService) build(supplier *repository.Supplier, purchaseDate string, lines []parsedLine) (*repository.Purchase, []*repository.Batch) {
	distinct := make(map[string]bool, len(lines))
	totalQuantity := 0.0
	batches := make([]*repository.Batch, 0)

	for _, line := range lines {
		distinct[line.itemID] = true
		// prices and the order total were range checked in validate
		cost, _ := s.opts.Rounding.ToMinor(line.costPrice)
		selling, _ := s.opts.Rounding.ToMinor(line.sellingPrice)

		for _, entry := range line.batches {
			totalQuantity += entry.quantity
			batches = append(batches, &repository.Batch{
				ItemID:       line.itemID,
				Quantity:     entry.quantity,
				CostPrice:    cost,
				SellingPrice: selling,
				ExpiryDate:   entry.expiryDate,
			})
		}
	}

	total, _ := s.opts.Rounding.ToMinor(orderCost(lines))

	purchase := &repository.Purchase{
		SupplierID:    supplier.ID,
		SupplierName:  supplier.Name,
		PurchaseDate:  purchaseDate,
		TotalItems:    len(distinct),
		TotalQuantity: totalQuantity,
		TotalCost:     total,
		BatchCount:    len(batches),
	}
	return purchase, batches
}

// commitAtomic writes the purchase and every batch in one all-or-nothing commit
func (s *PurchaseService) commitAtomic(ctx context.Context, batcher store.Batcher, purchase *repository.Purchase, batches []*repository.Batch) (*PurchaseResult, error) {
	purchase.Status = repository.PurchaseStatusCommitted
	purchase.CreatedAt = s.opts.now().UTC()
	purchase.SettledAt = &purchase.CreatedAt

	pw, err := s.purchaseRepo.Write(purchase)
	if err != nil {
		return nil, err
	}
	writes := []store.Write{pw}
	for _, b := range batches {
		b.PurchaseID = purchase.ID
		b.CreatedAt = purchase.CreatedAt
		bw, err := s.batchRepo.Write(b)
		if err != nil {
			return nil, err
		}
		writes = append(writes, bw)
	}

	if _, err := batcher.CommitBatch(ctx, writes); err != nil {
		s.logger.Error().Err(err).Str("supplier_id", purchase.SupplierID).Msg("purchase commit failed")
		return nil, err
	}

	s.logCommitted(purchase, true)
	s.publisher.PublishPurchaseCommitted(ctx, purchase, true)
	return &PurchaseResult{Purchase: purchase, Batches: batches}, nil
}

// commitSaga writes the purchase as pending, writes its batches concurrently
// and settles the purchase once every batch write has finished. A failed
// batch write rolls back the batches that did land; if that also fails the
// purchase stays pending for the reconciler.
func (s *PurchaseService) commitSaga(ctx context.Context, purchase *repository.Purchase, batches []*repository.Batch) (*PurchaseResult, error) {
	purchase.Status = repository.PurchaseStatusPending
	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		s.logger.Error().Err(err).Str("supplier_id", purchase.SupplierID).Msg("failed to create pending purchase")
		return nil, err
	}

	errs := make([]error, len(batches))
	var wg sync.WaitGroup
	for i, b := range batches {
		b.PurchaseID = purchase.ID
		b.CreatedAt = purchase.CreatedAt
		wg.Add(1)
		go func(i int, b *repository.Batch) {
			defer wg.Done()
			errs[i] = s.batchRepo.Create(ctx, b)
		}(i, b)
	}
	wg.Wait()

	// Settle even if the caller has gone away
	settleCtx := context.WithoutCancel(ctx)

	writeErr := errors.Join(errs...)
	if writeErr == nil {
		if err := s.purchaseRepo.SetStatus(settleCtx, purchase.ID, repository.PurchaseStatusCommitted); err != nil {
			s.logger.Warn().Err(err).
				Str("purchase_id", purchase.ID).
				Msg("batches written but purchase left pending; reconciler will commit it")
			return &PurchaseResult{Purchase: purchase, Batches: batches}, nil
		}
		purchase.Status = repository.PurchaseStatusCommitted
		s.logCommitted(purchase, false)
		s.publisher.PublishPurchaseCommitted(settleCtx, purchase, false)
		return &PurchaseResult{Purchase: purchase, Batches: batches}, nil
	}

	written := make([]*repository.Batch, 0, len(batches))
	for i, b := range batches {
		if errs[i] == nil {
			written = append(written, b)
		}
	}
	s.logger.Error().Err(writeErr).
		Str("purchase_id", purchase.ID).
		Int("batches_written", len(written)).
		Int("batches_expected", len(batches)).
		Msg("purchase batch writes failed, rolling back")

	if err := s.rollback(settleCtx, purchase, written, writeErr.Error()); err != nil {
		return nil, errors.PartialWrite("purchase was partially recorded and is pending reconciliation", errors.Join(writeErr, err))
	}
	return nil, firstError(errs)
}

// rollback deletes the given batches and marks the purchase rolled back
func (s *PurchaseService) rollback(ctx context.Context, purchase *repository.Purchase, written []*repository.Batch, reason string) error {
	var errs []error
	for _, b := range written {
		if err := s.batchRepo.Delete(ctx, b.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.Error().Err(err).Str("purchase_id", purchase.ID).Msg("rollback incomplete; purchase left pending")
		return err
	}

	if err := s.purchaseRepo.SetStatus(ctx, purchase.ID, repository.PurchaseStatusRolledBack); err != nil {
		s.logger.Error().Err(err).Str("purchase_id", purchase.ID).Msg("failed to mark purchase rolled back; purchase left pending")
		return err
	}
	purchase.Status = repository.PurchaseStatusRolledBack

	s.logger.Warn().Str("purchase_id", purchase.ID).Int("batches_removed", len(written)).Msg("purchase rolled back")
	s.publisher.PublishPurchaseRolledBack(ctx, purchase, reason)
	return nil
}

func (s *PurchaseService) logCommitted(purchase *repository.Purchase, atomic bool) {
	s.logger.Info().
		Str("purchase_id", purchase.ID).
		Str("supplier_id", purchase.SupplierID).
		Int("batches", purchase.BatchCount).
		Float64("total_quantity", purchase.TotalQuantity).
		Int64("total_cost", purchase.TotalCost).
		Bool("atomic", atomic).
		Msg("purchase recorded")
}

// GetPurchase returns a purchase with its batches
func (s *PurchaseService) GetPurchase(ctx context.Context, id string) (*PurchaseResult, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	purchase, err := s.purchaseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.ListByPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Purchase: purchase, Batches: batches}, nil
}

// ListPurchases lists every purchase, newest purchase date first
func (s *PurchaseService) ListPurchases(ctx context.Context) ([]*repository.Purchase, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	purchases, err := s.purchaseRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	sortPurchases(purchases)
	return purchases, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func sortPurchases(purchases []*repository.Purchase) {
	sort.SliceStable(purchases, func(i, j int) bool {
		if purchases[i].PurchaseDate != purchases[j].PurchaseDate {
			return purchases[i].PurchaseDate > purchases[j].PurchaseDate
		}
		return purchases[i].CreatedAt.After(purchases[j].CreatedAt)
	})
}
