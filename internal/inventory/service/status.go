package service

// StockStatus is the catalog badge derived from on-hand stock and the reorder threshold
type StockStatus string

const (
	StockOutOfStock StockStatus = "out_of_stock"
	StockLow        StockStatus = "low_stock"
	StockIn         StockStatus = "in_stock"
)

// DeriveStockStatus compares stock against minimumStock.
// Stock equal to the threshold is low, not in stock.
func DeriveStockStatus(stock float64, minimumStock int) StockStatus {
	switch {
	case stock <= 0:
		return StockOutOfStock
	case stock <= float64(minimumStock):
		return StockLow
	default:
		return StockIn
	}
}

// NeedsReorder reports whether the status should raise a low stock event
func (s StockStatus) NeedsReorder() bool {
	return s == StockOutOfStock || s == StockLow
}
