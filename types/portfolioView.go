package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioView is a portfolio valued at current prices.
type PortfolioView struct {
	Cash           decimal.Decimal `json:"cash_eur"`
	Positions      []PositionView  `json:"positions"`
	PositionsValue decimal.Decimal `json:"positions_value_eur"`
	Total          decimal.Decimal `json:"total_eur"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl_eur"`
	Time           time.Time       `json:"time"`
}

type PositionView struct {
	Position
	LastPrice     decimal.Decimal `json:"last_price_eur"`
	Value         decimal.Decimal `json:"value_eur"`
	WeightPct     decimal.Decimal `json:"weight_pct"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl_eur"`
	// PricedAtCost is set when no quote was available and the position is valued at its WAC.
	PricedAtCost bool `json:"priced_at_cost"`
}

// AllocationView compares the target split with the current one.
type AllocationView struct {
	Target  *Allocation                    `json:"target"`
	Current map[AssetClass]decimal.Decimal `json:"current_pct"`
	Values  map[AssetClass]decimal.Decimal `json:"current_eur"`
	Total   decimal.Decimal                `json:"total_eur"`
}

type WhatIfResult struct {
	Symbol           string          `json:"symbol"`
	PositionValue    decimal.Decimal `json:"position_value_eur"`
	NewPositionValue decimal.Decimal `json:"new_position_value_eur"`
	CurrentTotal     decimal.Decimal `json:"current_total_eur"`
	NewTotal         decimal.Decimal `json:"new_total_eur"`
	DeltaEur         decimal.Decimal `json:"delta_eur"`
	DeltaPct         decimal.Decimal `json:"delta_pct"`
}
