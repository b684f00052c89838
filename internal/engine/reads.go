package engine

import (
	"context"
	"errors"

	"folio/internal/apperr"
	"folio/internal/money"
	"folio/internal/repository"
	"folio/types"

	"github.com/shopspring/decimal"
)

const (
	defaultTransactionLimit = 10
	maxTransactionLimit     = 50
)

// Bounds of the simulated change of a position, in percent.
var (
	minWhatIfPct = decimal.NewFromInt(-100)
	maxWhatIfPct = decimal.NewFromInt(1000)
)

// Portfolio values the holdings of userID with current prices. An unknown
// user has an empty portfolio.
func (e *Engine) Portfolio(ctx context.Context, userID int64) (types.PortfolioView, error) {
	h, err := e.holdings(ctx, userID)
	if err != nil {
		return types.PortfolioView{}, err
	}
	return e.value(ctx, h, e.now())
}

func (e *Engine) Cash(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if err := checkUser(userID); err != nil {
		return decimal.Zero, err
	}
	var cash decimal.Decimal
	err := e.store.View(ctx, userID, func(tx repository.Tx) error {
		var err error
		cash, err = tx.Cash()
		return err
	})
	return cash, classify(err)
}

// Transactions returns the latest entries, newest first. limit is clamped to
// 1..50 and defaults to 10 when zero.
func (e *Engine) Transactions(ctx context.Context, userID int64, limit int) ([]types.Transaction, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	var out []types.Transaction
	err := e.store.View(ctx, userID, func(tx repository.Tx) error {
		var err error
		out, err = tx.Transactions(limit)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if out == nil {
		out = []types.Transaction{}
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return defaultTransactionLimit
	case limit < 1:
		return 1
	case limit > maxTransactionLimit:
		return maxTransactionLimit
	}
	return limit
}

// Allocation reports the target split, if any, next to the current split of
// position values by asset class. Cash is not part of the split.
func (e *Engine) Allocation(ctx context.Context, userID int64) (types.AllocationView, error) {
	if err := checkUser(userID); err != nil {
		return types.AllocationView{}, err
	}
	var (
		h      types.Holdings
		target *types.Allocation
	)
	err := e.store.View(ctx, userID, func(tx repository.Tx) error {
		a, err := tx.Allocation()
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			target = &a
		}
		h, err = holdings(tx)
		return err
	})
	if err != nil {
		return types.AllocationView{}, classify(err)
	}

	view, err := e.value(ctx, h, e.now())
	if err != nil {
		return types.AllocationView{}, err
	}
	out := types.AllocationView{
		Target:  target,
		Current: make(map[types.AssetClass]decimal.Decimal, len(types.AssetClasses)),
		Values:  make(map[types.AssetClass]decimal.Decimal, len(types.AssetClasses)),
		Total:   view.PositionsValue,
	}
	for _, c := range types.AssetClasses {
		out.Values[c] = decimal.Zero
	}
	for _, p := range view.Positions {
		out.Values[p.AssetClass] = out.Values[p.AssetClass].Add(p.Value)
	}
	for _, c := range types.AssetClasses {
		out.Current[c] = money.Share(out.Values[c], out.Total)
	}
	return out, nil
}

// WhatIf revalues the portfolio with symbol's value changed by deltaPct
// percent. Nothing is written.
func (e *Engine) WhatIf(ctx context.Context, userID int64, symbol string, deltaPct decimal.Decimal) (types.WhatIfResult, error) {
	sym, err := normalize(symbol)
	if err != nil {
		return types.WhatIfResult{}, err
	}
	if !deltaPct.GreaterThan(minWhatIfPct) || deltaPct.GreaterThan(maxWhatIfPct) {
		return types.WhatIfResult{}, apperr.E(apperr.BadInput, "delta must be above -100%% and at most 1000%%")
	}
	h, err := e.holdings(ctx, userID)
	if err != nil {
		return types.WhatIfResult{}, err
	}
	if _, ok := h.Position(sym); !ok {
		return types.WhatIfResult{}, apperr.E(apperr.NotFound, "no position in %s", sym)
	}
	view, err := e.value(ctx, h, e.now())
	if err != nil {
		return types.WhatIfResult{}, err
	}

	var current decimal.Decimal
	for _, p := range view.Positions {
		if p.Symbol == sym {
			current = p.Value
		}
	}
	delta := money.Cash(current.Mul(money.FromPercent(deltaPct)))
	res := types.WhatIfResult{
		Symbol:           sym,
		PositionValue:    current,
		NewPositionValue: current.Add(delta),
		CurrentTotal:     view.Total,
		NewTotal:         view.Total.Add(delta),
		DeltaEur:         delta,
		DeltaPct:         money.Share(delta, view.Total),
	}
	return res, nil
}

func (e *Engine) holdings(ctx context.Context, userID int64) (types.Holdings, error) {
	if err := checkUser(userID); err != nil {
		return types.Holdings{}, err
	}
	var h types.Holdings
	err := e.store.View(ctx, userID, func(tx repository.Tx) error {
		var err error
		h, err = holdings(tx)
		return err
	})
	return h, classify(err)
}
