package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one holding of a user. At most one exists per symbol.
type Position struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgCost    decimal.Decimal `json:"avg_cost_eur"`
	AssetClass AssetClass      `json:"asset_class"`
	Market     string          `json:"market,omitempty"`
	Nickname   string          `json:"nickname,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CostBasis is quantity times weighted average cost.
func (p Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AvgCost)
}

// Holdings is the unvalued state of a portfolio: cash and positions sorted by symbol.
type Holdings struct {
	Cash      decimal.Decimal `json:"cash_eur"`
	Positions []Position      `json:"positions"`
}

func (h Holdings) Position(symbol string) (Position, bool) {
	for _, p := range h.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}
