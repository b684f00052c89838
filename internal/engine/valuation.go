package engine

import (
	"context"
	"errors"
	"time"

	"folio/internal/apperr"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// value prices every position of h. Weights are shares of the total
// including cash.
func (e *Engine) value(ctx context.Context, h types.Holdings, at time.Time) (types.PortfolioView, error) {
	view := types.PortfolioView{
		Cash:           h.Cash,
		Positions:      make([]types.PositionView, 0, len(h.Positions)),
		PositionsValue: decimal.Zero,
		UnrealizedPnL:  decimal.Zero,
		Time:           at,
	}
	for _, p := range h.Positions {
		pv, err := e.valuePosition(ctx, p)
		if err != nil {
			return types.PortfolioView{}, err
		}
		view.Positions = append(view.Positions, pv)
		view.PositionsValue = view.PositionsValue.Add(pv.Value)
		view.UnrealizedPnL = view.UnrealizedPnL.Add(pv.UnrealizedPnL)
	}
	view.PositionsValue = money.Cash(view.PositionsValue)
	view.UnrealizedPnL = money.Cash(view.UnrealizedPnL)
	view.Total = money.Cash(view.Cash.Add(view.PositionsValue))
	for i := range view.Positions {
		view.Positions[i].WeightPct = money.Share(view.Positions[i].Value, view.Total)
	}
	return view, nil
}

func (e *Engine) valuePosition(ctx context.Context, p types.Position) (types.PositionView, error) {
	pv := types.PositionView{Position: p}
	price, err := e.price(ctx, p.Symbol)
	switch {
	case errors.Is(err, ErrNoQuote) && e.cfg.valueAtCostWhenUnquoted:
		price = p.AvgCost
		pv.PricedAtCost = true
	case errors.Is(err, ErrNoQuote):
		return types.PositionView{}, apperr.Wrap(apperr.Internal, err, "no price for %s", p.Symbol)
	case err != nil:
		return types.PositionView{}, classify(err)
	}
	pv.LastPrice = price
	pv.Value = money.Cash(p.Quantity.Mul(price))
	pv.UnrealizedPnL = money.Cash(pv.Value.Sub(p.CostBasis()))
	return pv, nil
}

func (e *Engine) price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if e.pricer == nil {
		return decimal.Zero, ErrNoQuote
	}
	return e.pricer.PriceEUR(ctx, symbol)
}
