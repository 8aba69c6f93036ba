package service

import (
	"time"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/money"
)

// Options holds the ledger settings shared by the services
type Options struct {
	ExpiryWindowDays        int
	RequireExpiryOnPurchase bool
	Rounding                money.Rounding
	Location                *time.Location
	PendingTimeout          time.Duration

	// Now is the clock; tests replace it to pin "today"
	Now func() time.Time
}

// DefaultOptions returns the settings used when nothing is configured
func DefaultOptions() Options {
	return Options{
		ExpiryWindowDays:        DefaultExpiryWindowDays,
		RequireExpiryOnPurchase: true,
		Rounding:                money.HalfUp,
		Location:                time.UTC,
		PendingTimeout:          10 * time.Minute,
		Now:                     time.Now,
	}
}

// OptionsFromConfig builds Options from the ledger configuration section
func OptionsFromConfig(cfg *config.LedgerConfig) (Options, error) {
	opts := DefaultOptions()

	rounding, err := money.ParseRounding(cfg.Rounding)
	if err != nil {
		return Options{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}

	opts.ExpiryWindowDays = cfg.ExpiryWindowDays
	opts.RequireExpiryOnPurchase = cfg.RequireExpiryOnPurchase
	opts.Rounding = rounding
	opts.Location = loc
	if cfg.PendingTimeout > 0 {
		opts.PendingTimeout = cfg.PendingTimeout
	}
	return opts, nil
}

// Today returns the current calendar date in the configured timezone
func (o Options) Today() time.Time {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	loc := o.Location
	if loc == nil {
		loc = time.UTC
	}
	return TruncateDate(now().In(loc))
}

// Classifier returns the expiry classifier for the configured window
func (o Options) Classifier() ExpiryClassifier {
	return NewExpiryClassifier(o.ExpiryWindowDays)
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
