// Package money holds the decimal rules every EUR amount in the ledger follows.
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	CashPlaces    = 2
	CostPlaces    = 6
	RatioPlaces   = 8
	PercentPlaces = 2
)

var (
	ErrEmpty   = errors.New("empty amount")
	ErrInvalid = errors.New("invalid decimal amount")

	hundred = decimal.NewFromInt(100)
)

// Parse reads an exact decimal from its string form. Exponent notation is
// rejected so that amounts stay human readable on the wire.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%q: %w", s, ErrInvalid)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", s, ErrInvalid)
	}
	return d, nil
}

// Cash rounds to cents, half away from zero.
func Cash(d decimal.Decimal) decimal.Decimal { return d.Round(CashPlaces) }

// Cost rounds a per-unit cost basis.
func Cost(d decimal.Decimal) decimal.Decimal { return d.Round(CostPlaces) }

// Ratio rounds a return expressed as a fraction (0.05 == 5%).
func Ratio(d decimal.Decimal) decimal.Decimal { return d.Round(RatioPlaces) }

// Percent converts a fraction into a percentage with two decimals.
func Percent(ratio decimal.Decimal) decimal.Decimal {
	return ratio.Mul(hundred).Round(PercentPlaces)
}

// FromPercent converts 12.5 into 0.125.
func FromPercent(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// Share returns part/total as a percentage, or zero when total is not positive.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return Percent(part.Div(total))
}

// Display formats an EUR amount for people, e.g. "€1,234.56".
func Display(d decimal.Decimal) string {
	cents := Cash(d).Shift(CashPlaces).IntPart()
	return gomoney.New(cents, gomoney.EUR).Display()
}

// String renders the canonical wire form with exactly two decimals.
func String(d decimal.Decimal) string { return Cash(d).StringFixed(CashPlaces) }
