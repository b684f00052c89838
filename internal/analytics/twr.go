// Package analytics computes flow-neutral time-weighted returns over the
// daily snapshot series and slices them into calendar buckets.
package analytics

import (
	"folio/internal/money"

	"github.com/shopspring/decimal"
)

// Epsilon is the smallest previous-day value a return is computed against.
var Epsilon = decimal.RequireFromString("0.01")

var one = decimal.NewFromInt(1)

// DailyReturn is r = (value - flow) / prev - 1. It is undefined when prev is
// below Epsilon, which covers inception and fully withdrawn portfolios.
func DailyReturn(prev, value, flow decimal.Decimal) (decimal.Decimal, bool) {
	if prev.LessThan(Epsilon) {
		return decimal.Zero, false
	}
	return value.Sub(flow).Div(prev).Sub(one), true
}

// Chain links daily returns: prod(1 + r) - 1.
func Chain(returns []decimal.Decimal) decimal.Decimal {
	acc := one
	for _, r := range returns {
		acc = acc.Mul(one.Add(r))
	}
	return money.Ratio(acc.Sub(one))
}
