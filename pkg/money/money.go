// Package money converts user-entered decimal amounts into integer minor units.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding selects how half a minor unit is resolved
type Rounding string

const (
	HalfUp   Rounding = "half_up"
	HalfEven Rounding = "half_even"
)

var hundred = decimal.NewFromInt(100)

// ParseRounding maps a configuration value onto a Rounding
func ParseRounding(s string) (Rounding, error) {
	switch r := Rounding(strings.ToLower(strings.TrimSpace(s))); r {
	case HalfUp, HalfEven:
		return r, nil
	case "":
		return HalfUp, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q", s)
	}
}

// Parse reads a decimal number from user input without going through float64,
// so "10.005" stays exactly 10.005.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// Round rounds amount to a whole number using the mode
func (r Rounding) Round(amount decimal.Decimal) decimal.Decimal {
	if r == HalfEven {
		return amount.RoundBank(0)
	}
	// decimal.Round rounds half away from zero, which is half up for the
	// non-negative amounts stored in the ledger
	return amount.Round(0)
}

// ErrOutOfRange is returned when an amount has no int64 minor-unit form
var ErrOutOfRange = errors.New("amount out of range")

// ToMinor converts a major-unit amount to minor units (×100) and rounds it.
// Amounts whose minor units do not fit in an int64 fail with ErrOutOfRange.
func (r Rounding) ToMinor(amount decimal.Decimal) (int64, error) {
	minor := r.Round(amount.Mul(hundred))
	if !minor.BigInt().IsInt64() {
		return 0, ErrOutOfRange
	}
	return minor.IntPart(), nil
}

// FromMinor converts minor units back to a major-unit decimal
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
