package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"integer", "12", "12", false},
		{"decimal", "12.50", "12.5", false},
		{"surrounding spaces", "  3.25 ", "3.25", false},
		{"exact thousandths", "10.005", "10.005", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"text", "twelve", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToMinor(t *testing.T) {
	tests := []struct {
		amount   string
		halfUp   int64
		halfEven int64
	}{
		{"10.005", 1001, 1000},
		{"10.015", 1002, 1002},
		{"12.5", 1250, 1250},
		{"0", 0, 0},
		{"0.004", 0, 0},
		{"0.125", 13, 12},
		{"199.999", 20000, 20000},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			up, err := HalfUp.ToMinor(d)
			require.NoError(t, err)
			even, err := HalfEven.ToMinor(d)
			require.NoError(t, err)
			assert.Equal(t, tt.halfUp, up)
			assert.Equal(t, tt.halfEven, even)
		})
	}
}

func TestToMinor_OutOfRange(t *testing.T) {
	// 92233720368547758.07 is the largest amount whose minor units fit in an int64
	max, err := HalfUp.ToMinor(decimal.RequireFromString("92233720368547758.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), max)

	for _, amount := range []string{"92233720368547758.08", "100000000000000000", "1e400"} {
		_, err := HalfUp.ToMinor(decimal.RequireFromString(amount))
		assert.ErrorIs(t, err, ErrOutOfRange, amount)
	}
}

func TestFromMinor(t *testing.T) {
	assert.True(t, FromMinor(1250).Equal(decimal.RequireFromString("12.5")))
	assert.True(t, FromMinor(0).IsZero())
}

func TestParseRounding(t *testing.T) {
	r, err := ParseRounding("HALF_EVEN")
	require.NoError(t, err)
	assert.Equal(t, HalfEven, r)

	r, err = ParseRounding("")
	require.NoError(t, err)
	assert.Equal(t, HalfUp, r)

	_, err = ParseRounding("bankers")
	assert.Error(t, err)
}
