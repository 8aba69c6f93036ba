package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Purchase events
	EventPurchaseCommitted  = "ledger.purchase.committed"
	EventPurchaseRolledBack = "ledger.purchase.rolled_back"

	// Stock events
	EventStockLow      = "ledger.stock.low"
	EventBatchExpiring = "ledger.batch.expiring"

	// Record store events, used to keep other instances' subscribers current
	EventCollectionChanged = "ledger.collection.changed"
)

// Exchange names
const (
	ExchangeLedgerEvents = "ledger.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Purchase Events

// PurchaseCommittedEvent is published once a purchase and all of its batches are in the ledger
type PurchaseCommittedEvent struct {
	PurchaseID    string  `json:"purchase_id"`
	SupplierID    string  `json:"supplier_id"`
	SupplierName  string  `json:"supplier_name"`
	PurchaseDate  string  `json:"purchase_date"`
	TotalItems    int     `json:"total_items"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalCost     int64   `json:"total_cost"`
	BatchCount    int     `json:"batch_count"`
	Atomic        bool    `json:"atomic"`
}

// PurchaseRolledBackEvent is published when a purchase could not be fully written and was undone
type PurchaseRolledBackEvent struct {
	PurchaseID string `json:"purchase_id"`
	SupplierID string `json:"supplier_id"`
	Reason     string `json:"reason"`
}

// Stock Events

// StockLowEvent is published for items at or below their minimum stock
type StockLowEvent struct {
	ItemID       string  `json:"item_id"`
	TradeName    string  `json:"trade_name"`
	Stock        float64 `json:"stock"`
	MinimumStock int     `json:"minimum_stock"`
	Status       string  `json:"status"`
}

// BatchExpiringEvent is published when a batch is expired or nearing expiry
type BatchExpiringEvent struct {
	ItemID     string  `json:"item_id"`
	BatchID    string  `json:"batch_id"`
	ItemName   string  `json:"item_name"`
	ExpiryDate string  `json:"expiry_date"`
	DaysUntil  int     `json:"days_until"`
	Quantity   float64 `json:"quantity"`
	State      string  `json:"state"`
}

// Record Store Events

// CollectionChangedEvent tells other instances that a collection was written
type CollectionChangedEvent struct {
	Collection string `json:"collection"`
	Version    uint64 `json:"version"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
