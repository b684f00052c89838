package repository

import (
	"fmt"
	"time"

	"folio/internal/calendar"
	"folio/types"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Stored results keep every decimal as its string form so a replay returns
// exactly the digits the original call returned.

type resultRecord struct {
	OpID        string           `msgpack:"op"`
	Transaction txRecord         `msgpack:"tx"`
	Cash        string           `msgpack:"cash"`
	Positions   []positionRecord `msgpack:"pos"`
	RealizedPnL string           `msgpack:"pnl,omitempty"`
}

type txRecord struct {
	ID        string    `msgpack:"id"`
	UserID    int64     `msgpack:"user"`
	At        time.Time `msgpack:"at"`
	Date      string    `msgpack:"date"`
	Type      string    `msgpack:"type"`
	Symbol    string    `msgpack:"sym,omitempty"`
	Quantity  string    `msgpack:"qty"`
	Price     string    `msgpack:"px"`
	Fees      string    `msgpack:"fees"`
	CashDelta string    `msgpack:"cash"`
	OpID      string    `msgpack:"op"`
	Note      string    `msgpack:"note,omitempty"`
}

type positionRecord struct {
	Symbol     string    `msgpack:"sym"`
	Quantity   string    `msgpack:"qty"`
	AvgCost    string    `msgpack:"cost"`
	AssetClass string    `msgpack:"class"`
	Market     string    `msgpack:"mkt,omitempty"`
	Nickname   string    `msgpack:"nick,omitempty"`
	UpdatedAt  time.Time `msgpack:"upd"`
}

// EncodeResult serializes a mutation result for replay. Replayed is not stored.
func EncodeResult(r types.OperationResult) ([]byte, error) {
	rec := resultRecord{
		OpID: r.OpID,
		Transaction: txRecord{
			ID:        r.Transaction.ID,
			UserID:    r.Transaction.UserID,
			At:        r.Transaction.At,
			Date:      r.Transaction.Date.String(),
			Type:      string(r.Transaction.Type),
			Symbol:    r.Transaction.Symbol,
			Quantity:  r.Transaction.Quantity.String(),
			Price:     r.Transaction.Price.String(),
			Fees:      r.Transaction.Fees.String(),
			CashDelta: r.Transaction.CashDelta.String(),
			OpID:      r.Transaction.OpID,
			Note:      r.Transaction.Note,
		},
		Cash:      r.Portfolio.Cash.String(),
		Positions: make([]positionRecord, 0, len(r.Portfolio.Positions)),
	}
	if r.RealizedPnL != nil {
		rec.RealizedPnL = r.RealizedPnL.String()
	}
	for _, p := range r.Portfolio.Positions {
		rec.Positions = append(rec.Positions, positionRecord{
			Symbol:     p.Symbol,
			Quantity:   p.Quantity.String(),
			AvgCost:    p.AvgCost.String(),
			AssetClass: string(p.AssetClass),
			Market:     p.Market,
			Nickname:   p.Nickname,
			UpdatedAt:  p.UpdatedAt,
		})
	}
	b, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode result %s: %w", r.OpID, err)
	}
	return b, nil
}

func DecodeResult(b []byte) (types.OperationResult, error) {
	var rec resultRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return types.OperationResult{}, fmt.Errorf("decode result: %w", err)
	}
	d := decoder{}
	date, err := calendar.Parse(rec.Transaction.Date)
	if err != nil {
		return types.OperationResult{}, fmt.Errorf("decode result %s: %w", rec.OpID, err)
	}
	out := types.OperationResult{
		OpID: rec.OpID,
		Transaction: types.Transaction{
			ID:        rec.Transaction.ID,
			UserID:    rec.Transaction.UserID,
			At:        rec.Transaction.At.UTC(),
			Date:      date,
			Type:      types.TxType(rec.Transaction.Type),
			Symbol:    rec.Transaction.Symbol,
			Quantity:  d.decimal(rec.Transaction.Quantity),
			Price:     d.decimal(rec.Transaction.Price),
			Fees:      d.decimal(rec.Transaction.Fees),
			CashDelta: d.decimal(rec.Transaction.CashDelta),
			OpID:      rec.Transaction.OpID,
			Note:      rec.Transaction.Note,
		},
		Portfolio: types.Holdings{
			Cash:      d.decimal(rec.Cash),
			Positions: make([]types.Position, 0, len(rec.Positions)),
		},
	}
	if rec.RealizedPnL != "" {
		pnl := d.decimal(rec.RealizedPnL)
		out.RealizedPnL = &pnl
	}
	for _, p := range rec.Positions {
		out.Portfolio.Positions = append(out.Portfolio.Positions, types.Position{
			Symbol:     p.Symbol,
			Quantity:   d.decimal(p.Quantity),
			AvgCost:    d.decimal(p.AvgCost),
			AssetClass: types.AssetClass(p.AssetClass),
			Market:     p.Market,
			Nickname:   p.Nickname,
			UpdatedAt:  p.UpdatedAt.UTC(),
		})
	}
	if d.err != nil {
		return types.OperationResult{}, fmt.Errorf("decode result %s: %w", rec.OpID, d.err)
	}
	return out, nil
}

// decoder keeps the first parse error so the field mapping above stays flat.
type decoder struct{ err error }

func (d *decoder) decimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}
