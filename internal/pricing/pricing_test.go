package pricing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLineTotal(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("1000"), 3)
	require.True(t, decimal.RequireFromString("3000").Equal(got), got.String())
}

func TestOrderTotal_NoFloatDrift(t *testing.T) {
	// 0.1 * 3 + 0.2 * 3 drifts with float64.
	lines := []Line{
		{UnitPrice: decimal.RequireFromString("0.10"), Quantity: 3},
		{UnitPrice: decimal.RequireFromString("0.20"), Quantity: 3},
		{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 7},
	}

	got := OrderTotal(lines)
	require.Equal(t, "140.83", got.StringFixed(2))
}

func TestOrderTotal_Empty(t *testing.T) {
	require.True(t, OrderTotal(nil).IsZero())
}

func TestRoundMoney_HalfUp(t *testing.T) {
	cases := map[string]string{
		"10.005":  "10.01",
		"10.004":  "10.00",
		"2.675":   "2.68",
		"-1.005":  "-1.01",
		"99.9950": "100.00",
	}
	for in, want := range cases {
		require.Equal(t, want, RoundMoney(decimal.RequireFromString(in)).StringFixed(2), in)
	}
}

func TestValidatePrice(t *testing.T) {
	require.NoError(t, ValidatePrice(decimal.RequireFromString("1999.99")))
	require.NoError(t, ValidatePrice(decimal.Zero))
	require.Error(t, ValidatePrice(decimal.RequireFromString("-1")))
	require.Error(t, ValidatePrice(decimal.RequireFromString("1.001")))
}

func TestCheckOrderTotal(t *testing.T) {
	// largest price the catalog accepts, at the largest stock, on every allowed line
	line := LineTotal(decimal.RequireFromString("99999999.99"), math.MaxInt32)
	worst := line.Mul(decimal.NewFromInt(100))

	require.NoError(t, CheckOrderTotal(worst))
	require.NoError(t, CheckOrderTotal(MaxOrderTotal))
	require.Error(t, CheckOrderTotal(MaxOrderTotal.Add(decimal.RequireFromString("0.01"))))
}
