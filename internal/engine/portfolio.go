package engine

import (
	"time"

	"folio/internal/apperr"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// Ledger arithmetic on a single position. These functions never touch the
// store; the trading operations persist what they return.

// applyBuy adds qty units bought at price plus fees to pos. The fee is
// capitalized into the cost basis.
func applyBuy(pos types.Position, qty, price, fees decimal.Decimal, at time.Time) types.Position {
	pos.AvgCost = money.Cost(weightedAvg(pos.AvgCost, pos.Quantity, qty.Mul(price).Add(fees), qty))
	pos.Quantity = pos.Quantity.Add(qty)
	pos.UpdatedAt = at
	return pos
}

// applyAdd adds units without a cash effect. Without an explicit unit cost the
// units enter at the current WAC, which leaves it unchanged.
func applyAdd(pos types.Position, qty decimal.Decimal, unitCost *decimal.Decimal, at time.Time) types.Position {
	cost := pos.AvgCost
	if unitCost != nil {
		cost = *unitCost
	}
	return applyBuy(pos, qty, cost, decimal.Zero, at)
}

// applySell reduces pos by qty. WAC is unchanged by a sale. It returns the
// remaining position, the cash proceeds and the realized P/L.
func applySell(pos types.Position, qty, price, fees decimal.Decimal, at time.Time) (types.Position, decimal.Decimal, decimal.Decimal, error) {
	if qty.GreaterThan(pos.Quantity) {
		return pos, decimal.Zero, decimal.Zero,
			apperr.E(apperr.BadInput, "cannot sell %s %s, only %s held", qty, pos.Symbol, pos.Quantity)
	}
	proceeds := money.Cash(qty.Mul(price).Sub(fees))
	realized := money.Cash(price.Sub(pos.AvgCost).Mul(qty).Sub(fees))
	pos.Quantity = pos.Quantity.Sub(qty)
	pos.UpdatedAt = at
	return pos, proceeds, realized, nil
}

// weightedAvg blends addedCost for addedQty units into an existing average.
func weightedAvg(existingAvgPrice, existingQty, addedCost, addedQty decimal.Decimal) decimal.Decimal {
	total := existingQty.Add(addedQty)
	if total.IsZero() {
		return decimal.Zero
	}
	return existingAvgPrice.Mul(existingQty).
		Add(addedCost).
		Div(total)
}

// holdings reads the unvalued state a mutation result carries.
func holdings(tx holdingsReader) (types.Holdings, error) {
	cash, err := tx.Cash()
	if err != nil {
		return types.Holdings{}, err
	}
	positions, err := tx.Positions()
	if err != nil {
		return types.Holdings{}, err
	}
	if positions == nil {
		positions = []types.Position{}
	}
	return types.Holdings{Cash: cash, Positions: positions}, nil
}
