package engine

import (
	"context"
	"errors"

	"folio/internal/calendar"
	"folio/types"

	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned by a Pricer that has no current price for a symbol.
var ErrNoQuote = errors.New("no quote for symbol")

// Pricer supplies the current EUR price of one unit of symbol.
type Pricer interface {
	PriceEUR(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// BenchmarkSource supplies daily benchmark series covering [from, to].
// Missing data is an empty result, not an error.
type BenchmarkSource interface {
	Benchmarks(ctx context.Context, from, to calendar.Date) ([]types.BenchmarkSeries, error)
}

// Progress is advanced once per user by RunSnapshots.
type Progress interface {
	Add(num int) error
}

type holdingsReader interface {
	Cash() (decimal.Decimal, error)
	Positions() ([]types.Position, error)
}
