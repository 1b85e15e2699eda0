package sale

import (
	"github.com/shopspring/decimal"
)

// Policy holds the money rules applied to every cart.
type Policy struct {
	Currency string
	TaxRate  decimal.Decimal
	// Tolerance is how far a submitted unit price may sit from the catalog price.
	Tolerance decimal.Decimal
	// PointValue is the currency value of one redeemed loyalty point.
	PointValue decimal.Decimal
	// EarnRate is points earned per currency unit of the final total.
	EarnRate decimal.Decimal
}

// Totals is the priced cart.
type Totals struct {
	Lines        []decimal.Decimal
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	PointsEarned int64
}

// ComputeTotals prices items at their submitted unit prices. Tax applies
// after the loyalty discount; earned points are floored.
func ComputeTotals(items []Item, pointsRedeemed int64, earns bool, p Policy) (Totals, error) {
	t := Totals{Lines: make([]decimal.Decimal, len(items)), Subtotal: decimal.Zero}
	for i, it := range items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		t.Lines[i] = line
		t.Subtotal = t.Subtotal.Add(line)
	}

	t.Discount = p.PointValue.Mul(decimal.NewFromInt(pointsRedeemed)).Round(2)
	if t.Discount.GreaterThan(t.Subtotal) {
		return Totals{}, ErrRedeemExceedsTotal
	}
	taxable := t.Subtotal.Sub(t.Discount)
	t.Tax = taxable.Mul(p.TaxRate).Round(2)
	t.Total = taxable.Add(t.Tax)

	if earns {
		t.PointsEarned = t.Total.Mul(p.EarnRate).Floor().IntPart()
	}
	return t, nil
}

// withinTolerance reports whether submitted is close enough to current.
func withinTolerance(submitted, current, tolerance decimal.Decimal) bool {
	return submitted.Sub(current).Abs().LessThanOrEqual(tolerance)
}
