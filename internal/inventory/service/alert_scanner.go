package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// ItemViewSource provides freshly computed item views
type ItemViewSource interface {
	ListItemViews(ctx context.Context) ([]*ItemView, error)
}

// AlertScanner scans item views and publishes stock and expiry events.
// An event is published when a condition first appears or changes state;
// a cleared condition is forgotten so it is reported again if it returns.
type AlertScanner struct {
	source    ItemViewSource
	publisher *events.LedgerEventPublisher
	logger    *logger.Logger

	mu       sync.Mutex
	reported map[string]string
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(source ItemViewSource, publisher *events.LedgerEventPublisher, log *logger.Logger) *AlertScanner {
	return &AlertScanner{
		source:    source,
		publisher: publisher,
		logger:    log,
		reported:  make(map[string]string),
	}
}

// ScanAll runs all alert scans. Logs errors but continues scanning.
func (s *AlertScanner) ScanAll(ctx context.Context) error {
	views, err := s.source.ListItemViews(ctx)
	if err != nil {
		return fmt.Errorf("scanAll: list item views: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]bool)
	s.scanLowStock(ctx, views, active)
	s.scanExpiry(ctx, views, active)
	s.resolveCleared(active)
	return nil
}

// scanLowStock reports items at or below their minimum stock
func (s *AlertScanner) scanLowStock(ctx context.Context, views []*ItemView, active map[string]bool) {
	for _, v := range views {
		if !v.Status.NeedsReorder() {
			continue
		}

		key := "stock:" + v.ID
		active[key] = true
		if s.reported[key] == string(v.Status) {
			continue
		}
		s.reported[key] = string(v.Status)

		s.logger.Info().
			Str("item_id", v.ID).
			Str("status", string(v.Status)).
			Float64("stock", v.Stock).
			Int("minimum_stock", v.MinimumStock).
			Msg("stock alert")

		s.publisher.PublishStockLow(ctx, messaging.StockLowEvent{
			ItemID:       v.ID,
			TradeName:    v.TradeName,
			Stock:        v.Stock,
			MinimumStock: v.MinimumStock,
			Status:       string(v.Status),
		})
	}
}

// scanExpiry reports expired and expiring soon batches
func (s *AlertScanner) scanExpiry(ctx context.Context, views []*ItemView, active map[string]bool) {
	for _, v := range views {
		for _, b := range v.Batches {
			if !b.ExpiryState.Alerting() {
				continue
			}

			key := "batch:" + b.ID
			active[key] = true
			if s.reported[key] == string(b.ExpiryState) {
				continue
			}
			s.reported[key] = string(b.ExpiryState)

			days := 0
			if b.DaysUntilExpiry != nil {
				days = *b.DaysUntilExpiry
			}
			expiry := ""
			if b.ExpiryDate != nil {
				expiry = *b.ExpiryDate
			}

			s.publisher.PublishBatchExpiring(ctx, messaging.BatchExpiringEvent{
				ItemID:     v.ID,
				BatchID:    b.ID,
				ItemName:   v.TradeName,
				ExpiryDate: expiry,
				DaysUntil:  days,
				Quantity:   b.Quantity,
				State:      string(b.ExpiryState),
			})
		}
	}
}

// resolveCleared forgets conditions that no longer hold
func (s *AlertScanner) resolveCleared(active map[string]bool) {
	for key := range s.reported {
		if !active[key] {
			delete(s.reported, key)
		}
	}
}
