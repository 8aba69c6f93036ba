package service

import "github.com/medflow/pharmacy-backend/internal/inventory/repository"

// AggregateStock sums batch quantities per item.
// Every batch counts, whatever its expiry: expiry is a display state, not consumption.
func AggregateStock(batches []*repository.Batch) map[string]float64 {
	stock := make(map[string]float64)
	for _, b := range batches {
		stock[b.ItemID] += b.Quantity
	}
	return stock
}

// StockFor returns the on-hand quantity of an item, 0 when it has no batches
func StockFor(stock map[string]float64, itemID string) float64 {
	return stock[itemID]
}
