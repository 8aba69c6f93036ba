package service

import (
	"sort"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
)

// MissingCategory is shown for items without a category or whose category was deleted
const MissingCategory = "-"

// BatchView is a batch with its expiry state for today
type BatchView struct {
	*repository.Batch
	ExpiryState     ExpiryState `json:"expiryState"`
	DaysUntilExpiry *int        `json:"daysUntilExpiry,omitempty"`
}

// ItemView is an item combined with its ledger-derived stock, status and expiry flags
type ItemView struct {
	*repository.InventoryItem
	ExpiryFlags
	CategoryName string       `json:"categoryName"`
	Stock        float64      `json:"stock"`
	Status       StockStatus  `json:"status"`
	Batches      []*BatchView `json:"batches"`
}

// DashboardStats represents dashboard statistics
type DashboardStats struct {
	TotalItems        int     `json:"totalItems"`
	TotalStock        float64 `json:"totalStock"`
	InStockCount      int     `json:"inStockCount"`
	LowStockCount     int     `json:"lowStockCount"`
	OutOfStockCount   int     `json:"outOfStockCount"`
	ActiveBatches     int     `json:"activeBatches"`
	ExpiringSoonCount int     `json:"expiringSoonCount"`
	ExpiredCount      int     `json:"expiredCount"`
	NoExpiryCount     int     `json:"noExpiryCount"`
	// Stock value in minor units at batch cost price
	StockValue int64 `json:"stockValue"`
}

// BuildItemViews recomputes every item view from full collections.
// Views come back in item id order; batches within a view in expiry order, undated last.
func BuildItemViews(
	items []*repository.InventoryItem,
	categories []*repository.Category,
	batches []*repository.Batch,
	today time.Time,
	classifier ExpiryClassifier,
) []*ItemView {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	stock := AggregateStock(batches)
	byItem := make(map[string][]*repository.Batch)
	for _, b := range batches {
		byItem[b.ItemID] = append(byItem[b.ItemID], b)
	}

	views := make([]*ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, buildItemView(item, names, stock, byItem[item.ID], today, classifier))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func buildItemView(
	item *repository.InventoryItem,
	categoryNames map[string]string,
	stock map[string]float64,
	batches []*repository.Batch,
	today time.Time,
	classifier ExpiryClassifier,
) *ItemView {
	onHand := StockFor(stock, item.ID)
	return &ItemView{
		InventoryItem: item,
		ExpiryFlags:   classifier.ItemExpiryFlags(batches, today),
		CategoryName:  categoryName(item, categoryNames),
		Stock:         onHand,
		Status:        DeriveStockStatus(onHand, item.MinimumStock),
		Batches:       BuildBatchViews(batches, today, classifier),
	}
}

// BuildBatchViews classifies batches for today
func BuildBatchViews(batches []*repository.Batch, today time.Time, classifier ExpiryClassifier) []*BatchView {
	views := make([]*BatchView, 0, len(batches))
	for _, b := range batches {
		v := &BatchView{Batch: b, ExpiryState: classifier.Classify(b, today)}
		if days, ok := DaysUntilExpiry(b, today); ok {
			v.DaysUntilExpiry = &days
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		di, dj := views[i].DaysUntilExpiry, views[j].DaysUntilExpiry
		switch {
		case di == nil && dj == nil:
			return views[i].ID < views[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		default:
			return views[i].ID < views[j].ID
		}
	})
	return views
}

func categoryName(item *repository.InventoryItem, names map[string]string) string {
	if item.Category == nil || *item.Category == "" {
		return MissingCategory
	}
	name, ok := names[*item.Category]
	if !ok {
		return MissingCategory
	}
	return name
}

// ComputeStats summarizes item views for the dashboard
func ComputeStats(views []*ItemView) DashboardStats {
	var stats DashboardStats
	for _, v := range views {
		stats.TotalItems++
		stats.TotalStock += v.Stock
		switch v.Status {
		case StockIn:
			stats.InStockCount++
		case StockLow:
			stats.LowStockCount++
		case StockOutOfStock:
			stats.OutOfStockCount++
		}
		for _, b := range v.Batches {
			switch b.ExpiryState {
			case ExpiryActive:
				stats.ActiveBatches++
			case ExpiryExpiringSoon:
				stats.ExpiringSoonCount++
			case ExpiryExpired:
				stats.ExpiredCount++
			case ExpiryNone:
				stats.NoExpiryCount++
			}
			stats.StockValue += int64(b.Quantity * float64(b.CostPrice))
		}
	}
	return stats
}
