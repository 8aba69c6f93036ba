package service

import (
	"strings"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
)

// DefaultExpiryWindowDays is how far ahead a batch counts as expiring soon
const DefaultExpiryWindowDays = 30

// ExpiryState is the lifecycle state of a batch on a given day
type ExpiryState string

const (
	ExpiryNone         ExpiryState = "no_expiry"
	ExpiryExpired      ExpiryState = "expired"
	ExpiryExpiringSoon ExpiryState = "expiring_soon"
	ExpiryActive       ExpiryState = "active"
)

// Alerting reports whether the state should be surfaced to staff
func (s ExpiryState) Alerting() bool {
	return s == ExpiryExpired || s == ExpiryExpiringSoon
}

// ExpiryClassifier classifies batches against a look-ahead window.
// All comparisons are on calendar dates.
type ExpiryClassifier struct {
	windowDays int
}

// NewExpiryClassifier creates a classifier; a negative window is treated as 0
func NewExpiryClassifier(windowDays int) ExpiryClassifier {
	if windowDays < 0 {
		windowDays = 0
	}
	return ExpiryClassifier{windowDays: windowDays}
}

// WindowDays returns the look-ahead window
func (c ExpiryClassifier) WindowDays() int {
	return c.windowDays
}

// ClassifyExpiry classifies a batch with the default 30 day window
func ClassifyExpiry(b *repository.Batch, today time.Time) ExpiryState {
	return NewExpiryClassifier(DefaultExpiryWindowDays).Classify(b, today)
}

// Classify returns the state of b on today.
// A batch expiring today is expiring soon with 0 days left, not expired.
func (c ExpiryClassifier) Classify(b *repository.Batch, today time.Time) ExpiryState {
	days, ok := DaysUntilExpiry(b, today)
	if !ok {
		return ExpiryNone
	}
	switch {
	case days < 0:
		return ExpiryExpired
	case days <= c.windowDays:
		return ExpiryExpiringSoon
	default:
		return ExpiryActive
	}
}

// DaysUntilExpiry returns the whole days from today to the batch's expiry date.
// ok is false when the batch has no expiry or the date does not parse.
func DaysUntilExpiry(b *repository.Batch, today time.Time) (days int, ok bool) {
	if b == nil || !b.HasExpiry() {
		return 0, false
	}
	expiry, err := ParseDate(*b.ExpiryDate)
	if err != nil {
		return 0, false
	}
	return daysBetween(TruncateDate(today), expiry), true
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC
func ParseDate(s string) (time.Time, error) {
	return time.Parse(repository.DateLayout, strings.TrimSpace(s))
}

// TruncateDate drops the time of day, keeping the calendar date as seen in t's location
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// ExpiryFlags summarizes the expiry states of one item's batches
type ExpiryFlags struct {
	HasExpired      bool    `json:"hasExpired"`
	HasExpiringSoon bool    `json:"hasExpiringSoon"`
	NearestExpiry   *string `json:"nearestExpiry,omitempty"`
}

// ItemExpiryFlags classifies every batch of an item.
// NearestExpiry is the earliest expiry date that has not passed yet.
func (c ExpiryClassifier) ItemExpiryFlags(batches []*repository.Batch, today time.Time) ExpiryFlags {
	var flags ExpiryFlags
	nearest := -1
	for _, b := range batches {
		switch c.Classify(b, today) {
		case ExpiryExpired:
			flags.HasExpired = true
		case ExpiryExpiringSoon:
			flags.HasExpiringSoon = true
		}
		days, ok := DaysUntilExpiry(b, today)
		if !ok || days < 0 {
			continue
		}
		if nearest < 0 || days < nearest {
			nearest = days
			date := strings.TrimSpace(*b.ExpiryDate)
			flags.NearestExpiry = &date
		}
	}
	return flags
}
