package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricedLine is the minimal view the calculator needs: a captured unit price and
// the effective quantity already resolved from the article kind.
type PricedLine struct {
	UnitPrice         decimal.Decimal
	EffectiveQuantity decimal.Decimal
}

// Compute returns subtotal, discount, fees and total for a set of lines.
// The discount is a percentage of the subtotal; fees are added after the discount.
// No tax term is applied.
func Compute(lines []PricedLine, discountPercent decimal.Decimal, fees []Fee) (Totals, error) {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return Totals{}, fmt.Errorf("%w: discount percent %s outside [0,100]", ErrValidation, discountPercent)
	}

	var subtotal decimal.Decimal
	for i, l := range lines {
		if !l.UnitPrice.IsPositive() {
			return Totals{}, fmt.Errorf("%w: line %d: unit price must be positive, got %s", ErrValidation, i+1, l.UnitPrice)
		}
		if !l.EffectiveQuantity.IsPositive() {
			return Totals{}, fmt.Errorf("%w: line %d: quantity must be positive, got %s", ErrValidation, i+1, l.EffectiveQuantity)
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(l.EffectiveQuantity))
	}

	var feesTotal decimal.Decimal
	for _, f := range fees {
		if f.Amount.IsNegative() {
			return Totals{}, fmt.Errorf("%w: fee %q must not be negative", ErrValidation, f.Label)
		}
		feesTotal = feesTotal.Add(f.Amount)
	}

	discount := subtotal.Mul(discountPercent).Div(hundred).Round(2)

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		FeesTotal:      feesTotal,
		Total:          subtotal.Sub(discount).Add(feesTotal),
	}, nil
}

// computeOrderLines runs Compute over captured order lines.
func computeOrderLines(lines []OrderLine, discountPercent decimal.Decimal, fees []Fee) (Totals, error) {
	priced := make([]PricedLine, len(lines))
	for i, l := range lines {
		priced[i] = PricedLine{UnitPrice: l.UnitPrice, EffectiveQuantity: l.OrderedQuantity}
	}
	return Compute(priced, discountPercent, fees)
}

// remainingAmount is max(0, total − paid).
func remainingAmount(total, paid decimal.Decimal) decimal.Decimal {
	r := total.Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
