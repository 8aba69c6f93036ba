package service_test

import (
	"testing"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

// --- Stock Aggregator ---

func TestAggregateStock_SumsPerItem(t *testing.T) {
	batches := []*repository.Batch{
		{ItemID: "i1", Quantity: 10},
		{ItemID: "i1", Quantity: 2.5},
		{ItemID: "i2", Quantity: 4},
	}

	stock := service.AggregateStock(batches)

	assert.Equal(t, 12.5, service.StockFor(stock, "i1"))
	assert.Equal(t, 4.0, service.StockFor(stock, "i2"))
}

func TestAggregateStock_NoBatchesIsZero(t *testing.T) {
	stock := service.AggregateStock(nil)

	assert.NotNil(t, stock)
	assert.Equal(t, 0.0, service.StockFor(stock, "missing"))
}

func TestAggregateStock_ExpiredAndUndatedLotsCount(t *testing.T) {
	batches := []*repository.Batch{
		{ItemID: "i2", Quantity: 3, ExpiryDate: dateIn(-10)},
		{ItemID: "i2", Quantity: 7, ExpiryDate: dateIn(90)},
		{ItemID: "i2", Quantity: 1, ExpiryDate: nil},
	}

	assert.Equal(t, 11.0, service.StockFor(service.AggregateStock(batches), "i2"))
}

// --- Expiry Classifier ---

func TestClassifyExpiry_Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		expiry *string
		want   service.ExpiryState
	}{
		{"expires today", dateIn(0), service.ExpiryExpiringSoon},
		{"expired yesterday", dateIn(-1), service.ExpiryExpired},
		{"last day of window", dateIn(30), service.ExpiryExpiringSoon},
		{"first day after window", dateIn(31), service.ExpiryActive},
		{"no expiry", nil, service.ExpiryNone},
		{"empty expiry", strPtr(""), service.ExpiryNone},
		{"unparseable expiry", strPtr("next week"), service.ExpiryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &repository.Batch{ItemID: "i1", Quantity: 1, ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, service.ClassifyExpiry(b, fixedNow))
		})
	}
}

func TestClassifyExpiry_NullExpiryIgnoresDate(t *testing.T) {
	b := &repository.Batch{ItemID: "i1", Quantity: 1}
	for _, day := range []time.Time{time.Time{}, fixedNow, fixedNow.AddDate(50, 0, 0)} {
		assert.Equal(t, service.ExpiryNone, service.ClassifyExpiry(b, day))
	}
}

func TestExpiryClassifier_ConfiguredWindow(t *testing.T) {
	c := service.NewExpiryClassifier(7)
	assert.Equal(t, service.ExpiryExpiringSoon, c.Classify(&repository.Batch{ExpiryDate: dateIn(7)}, fixedNow))
	assert.Equal(t, service.ExpiryActive, c.Classify(&repository.Batch{ExpiryDate: dateIn(8)}, fixedNow))

	assert.Equal(t, 0, service.NewExpiryClassifier(-3).WindowDays())
}

func TestDaysUntilExpiry(t *testing.T) {
	days, ok := service.DaysUntilExpiry(&repository.Batch{ExpiryDate: dateIn(0)}, fixedNow)
	require.True(t, ok)
	assert.Equal(t, 0, days)

	days, ok = service.DaysUntilExpiry(&repository.Batch{ExpiryDate: dateIn(-4)}, fixedNow)
	require.True(t, ok)
	assert.Equal(t, -4, days)

	_, ok = service.DaysUntilExpiry(&repository.Batch{}, fixedNow)
	assert.False(t, ok)
}

func TestTruncateDate_UsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 22:00 UTC on the 14th is already the 15th at UTC+5
	late := time.Date(2025, 6, 14, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), service.TruncateDate(late.In(loc)))
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), service.TruncateDate(late))
}

func TestItemExpiryFlags(t *testing.T) {
	c := service.NewExpiryClassifier(service.DefaultExpiryWindowDays)
	batches := []*repository.Batch{
		{ID: "b1", ExpiryDate: dateIn(-2)},
		{ID: "b2", ExpiryDate: dateIn(45)},
		{ID: "b3", ExpiryDate: dateIn(12)},
		{ID: "b4"},
	}

	flags := c.ItemExpiryFlags(batches, fixedNow)

	assert.True(t, flags.HasExpired)
	assert.True(t, flags.HasExpiringSoon)
	require.NotNil(t, flags.NearestExpiry)
	assert.Equal(t, *dateIn(12), *flags.NearestExpiry)

	none := c.ItemExpiryFlags([]*repository.Batch{{ID: "b4"}}, fixedNow)
	assert.Equal(t, service.ExpiryFlags{}, none)
}

// --- Stock status ---

func TestDeriveStockStatus_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		stock   float64
		minimum int
		want    service.StockStatus
	}{
		{"equal to minimum is low", 10, 10, service.StockLow},
		{"one above minimum is in stock", 11, 10, service.StockIn},
		{"zero is out of stock", 0, 10, service.StockOutOfStock},
		{"zero with zero minimum is out of stock", 0, 0, service.StockOutOfStock},
		{"between zero and minimum is low", 0.5, 1, service.StockLow},
		{"positive with zero minimum is in stock", 1, 0, service.StockIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.DeriveStockStatus(tt.stock, tt.minimum))
		})
	}
}

// --- Item views ---

func TestBuildItemViews_ExpiredLotDoesNotChangeStatus(t *testing.T) {
	items := []*repository.InventoryItem{{ID: "i2", TradeName: "Brufen", MinimumStock: 10}}
	batches := []*repository.Batch{
		{ID: "b1", ItemID: "i2", Quantity: 3, ExpiryDate: dateIn(-1)},
		{ID: "b2", ItemID: "i2", Quantity: 7, ExpiryDate: dateIn(120)},
	}

	views := service.BuildItemViews(items, nil, batches, today(), service.NewExpiryClassifier(30))

	require.Len(t, views, 1)
	assert.Equal(t, 10.0, views[0].Stock)
	assert.Equal(t, service.StockLow, views[0].Status)
	assert.True(t, views[0].HasExpired)

	items[0].MinimumStock = 9
	views = service.BuildItemViews(items, nil, batches, today(), service.NewExpiryClassifier(30))
	assert.Equal(t, service.StockIn, views[0].Status)
}

func TestBuildItemViews_CategoryNames(t *testing.T) {
	items := []*repository.InventoryItem{
		{ID: "a", Category: strPtr("c1")},
		{ID: "b", Category: strPtr("deleted")},
		{ID: "c"},
	}
	categories := []*repository.Category{{ID: "c1", Name: "Analgesics"}}

	views := service.BuildItemViews(items, categories, nil, today(), service.NewExpiryClassifier(30))

	require.Len(t, views, 3)
	assert.Equal(t, "Analgesics", views[0].CategoryName)
	assert.Equal(t, service.MissingCategory, views[1].CategoryName)
	assert.Equal(t, service.MissingCategory, views[2].CategoryName)
	assert.Equal(t, service.StockOutOfStock, views[2].Status)
	assert.NotNil(t, views[2].Batches)
}

func TestBuildBatchViews_OrderedByExpiry(t *testing.T) {
	batches := []*repository.Batch{
		{ID: "undated"},
		{ID: "late", ExpiryDate: dateIn(60)},
		{ID: "early", ExpiryDate: dateIn(-5)},
	}

	views := service.BuildBatchViews(batches, today(), service.NewExpiryClassifier(30))

	require.Len(t, views, 3)
	assert.Equal(t, "early", views[0].ID)
	assert.Equal(t, service.ExpiryExpired, views[0].ExpiryState)
	assert.Equal(t, "late", views[1].ID)
	assert.Equal(t, "undated", views[2].ID)
	assert.Nil(t, views[2].DaysUntilExpiry)
}

func TestComputeStats(t *testing.T) {
	items := []*repository.InventoryItem{
		{ID: "i1", MinimumStock: 5},
		{ID: "i2", MinimumStock: 5},
		{ID: "i3", MinimumStock: 5},
	}
	batches := []*repository.Batch{
		{ID: "b1", ItemID: "i1", Quantity: 10, CostPrice: 250, ExpiryDate: dateIn(100)},
		{ID: "b2", ItemID: "i2", Quantity: 2, CostPrice: 100, ExpiryDate: dateIn(3)},
		{ID: "b3", ItemID: "i2", Quantity: 1, CostPrice: 100, ExpiryDate: dateIn(-3)},
		{ID: "b4", ItemID: "i1", Quantity: 1, CostPrice: 100},
	}

	stats := service.ComputeStats(service.BuildItemViews(items, nil, batches, today(), service.NewExpiryClassifier(30)))

	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 14.0, stats.TotalStock)
	assert.Equal(t, 1, stats.InStockCount)
	assert.Equal(t, 1, stats.LowStockCount)
	assert.Equal(t, 1, stats.OutOfStockCount)
	assert.Equal(t, 1, stats.ActiveBatches)
	assert.Equal(t, 1, stats.ExpiringSoonCount)
	assert.Equal(t, 1, stats.ExpiredCount)
	assert.Equal(t, 1, stats.NoExpiryCount)
	assert.Equal(t, int64(2500+200+100+100), stats.StockValue)
}
