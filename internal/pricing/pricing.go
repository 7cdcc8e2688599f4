// Package pricing does all money arithmetic in fixed-point decimals.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for money.
const Scale = 2

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

func LineTotal(unitPrice decimal.Decimal, quantity int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(quantity))
}

func OrderTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	return total
}

// MaxOrderTotal is one cent below the largest value orders.total can hold.
var MaxOrderTotal = decimal.New(1, 22).Sub(decimal.New(1, -Scale))

// CheckOrderTotal rejects totals the orders table cannot store.
func CheckOrderTotal(total decimal.Decimal) error {
	if total.GreaterThan(MaxOrderTotal) {
		return fmt.Errorf("order total must not exceed %s", MaxOrderTotal.StringFixed(Scale))
	}
	return nil
}

// RoundMoney rounds half away from zero to two digits. Use it for any derived
// amount (discounts, tax) that can produce more digits than a price holds.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ValidatePrice rejects negative prices and prices with more than two fractional digits.
func ValidatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if !p.Equal(p.Truncate(Scale)) {
		return fmt.Errorf("price must have at most %d fractional digits", Scale)
	}
	return nil
}
