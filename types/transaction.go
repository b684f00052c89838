package types

import (
	"time"

	"folio/internal/calendar"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger entry. Every mutating operation appends one.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	At        time.Time       `json:"at"`
	Date      calendar.Date   `json:"date"`
	Type      TxType          `json:"type"`
	Symbol    string          `json:"symbol,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price_eur"`
	Fees      decimal.Decimal `json:"fees_eur"`
	CashDelta decimal.Decimal `json:"cash_delta_eur"`
	OpID      string          `json:"op_id"`
	Note      string          `json:"note,omitempty"`
}

// OperationResult is what a mutation returns, and what a replay of the same
// op_id returns again.
type OperationResult struct {
	OpID        string           `json:"op_id"`
	Transaction Transaction      `json:"transaction"`
	Portfolio   Holdings         `json:"portfolio"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl_eur,omitempty"`
	Replayed    bool             `json:"replayed"`
}
