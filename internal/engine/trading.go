package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"folio/internal/apperr"
	"folio/internal/money"
	"folio/internal/repository"
	"folio/types"

	"github.com/shopspring/decimal"
)

const maxNicknameLength = 64

type AddPositionRequest struct {
	UserID     int64
	OpID       string
	Symbol     string
	Quantity   decimal.Decimal
	AssetClass types.AssetClass
	Market     string
	// CostEur is the unit cost of the added units. Nil keeps the current WAC.
	CostEur *decimal.Decimal
}

type RemovePositionRequest struct {
	UserID int64
	OpID   string
	Symbol string
}

// TradeRequest is a buy or a sell. AssetClass and Market are only read by buys.
type TradeRequest struct {
	UserID     int64
	OpID       string
	Symbol     string
	Quantity   decimal.Decimal
	PriceEur   decimal.Decimal
	FeesEur    decimal.Decimal
	AssetClass types.AssetClass
	Market     string
}

type CashRequest struct {
	UserID    int64
	OpID      string
	AmountEur decimal.Decimal
}

type AllocationRequest struct {
	UserID    int64
	OpID      string
	StockPct  int
	EtfPct    int
	CryptoPct int
}

type RenameRequest struct {
	UserID      int64
	OpID        string
	Symbol      string
	DisplayName string
}

func (e *Engine) AddPosition(ctx context.Context, req AddPositionRequest) (types.OperationResult, error) {
	sym, err := normalize(req.Symbol)
	if err != nil {
		return types.OperationResult{}, err
	}
	if err := positive("quantity", req.Quantity); err != nil {
		return types.OperationResult{}, err
	}
	if err := assetClass(req.AssetClass); err != nil {
		return types.OperationResult{}, err
	}
	if req.CostEur != nil && req.CostEur.IsNegative() {
		return types.OperationResult{}, apperr.E(apperr.BadInput, "cost must not be negative")
	}

	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    types.TxAdd,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			pos, err := openPosition(tx, sym, req.AssetClass, req.Market)
			if err != nil {
				return nil, err
			}
			pos = applyAdd(pos, req.Quantity, req.CostEur, rec.At)
			if err := tx.UpsertPosition(pos); err != nil {
				return nil, err
			}
			rec.Symbol = sym
			rec.Quantity = req.Quantity
			rec.Price = pos.AvgCost
			if req.CostEur != nil {
				rec.Price = *req.CostEur
			}
			return nil, nil
		},
	})
}

func (e *Engine) RemovePosition(ctx context.Context, req RemovePositionRequest) (types.OperationResult, error) {
	sym, err := normalize(req.Symbol)
	if err != nil {
		return types.OperationResult{}, err
	}
	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    types.TxRemove,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			pos, err := tx.Position(sym)
			if err != nil {
				return nil, err
			}
			if err := tx.RemovePosition(sym); err != nil {
				return nil, err
			}
			rec.Symbol = sym
			rec.Quantity = pos.Quantity
			rec.Price = pos.AvgCost
			return nil, nil
		},
	})
}

func (e *Engine) Buy(ctx context.Context, req TradeRequest) (types.OperationResult, error) {
	sym, err := checkTrade(&req)
	if err != nil {
		return types.OperationResult{}, err
	}
	if err := assetClass(req.AssetClass); err != nil {
		return types.OperationResult{}, err
	}

	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    types.TxBuy,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			pos, err := openPosition(tx, sym, req.AssetClass, req.Market)
			if err != nil {
				return nil, err
			}
			cost := money.Cash(req.Quantity.Mul(req.PriceEur).Add(req.FeesEur))
			if _, err := tx.AdjustCash(cost.Neg()); err != nil {
				return nil, err
			}
			if err := tx.UpsertPosition(applyBuy(pos, req.Quantity, req.PriceEur, req.FeesEur, rec.At)); err != nil {
				return nil, err
			}
			rec.Symbol = sym
			rec.Quantity = req.Quantity
			rec.Price = req.PriceEur
			rec.Fees = req.FeesEur
			rec.CashDelta = cost.Neg()
			return nil, nil
		},
	})
}

func (e *Engine) Sell(ctx context.Context, req TradeRequest) (types.OperationResult, error) {
	sym, err := checkTrade(&req)
	if err != nil {
		return types.OperationResult{}, err
	}

	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    types.TxSell,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			pos, err := tx.Position(sym)
			if err != nil {
				return nil, err
			}
			pos, proceeds, realized, err := applySell(pos, req.Quantity, req.PriceEur, req.FeesEur, rec.At)
			if err != nil {
				return nil, err
			}
			if _, err := tx.AdjustCash(proceeds); err != nil {
				return nil, err
			}
			if pos.Quantity.IsZero() {
				err = tx.RemovePosition(sym)
			} else {
				err = tx.UpsertPosition(pos)
			}
			if err != nil {
				return nil, err
			}
			rec.Symbol = sym
			rec.Quantity = req.Quantity
			rec.Price = req.PriceEur
			rec.Fees = req.FeesEur
			rec.CashDelta = proceeds
			rec.Note = "realized_pnl_eur=" + money.String(realized)
			return &realized, nil
		},
	})
}

func (e *Engine) CashAdd(ctx context.Context, req CashRequest) (types.OperationResult, error) {
	return e.cashMove(ctx, req, types.TxDeposit)
}

func (e *Engine) CashRemove(ctx context.Context, req CashRequest) (types.OperationResult, error) {
	return e.cashMove(ctx, req, types.TxWithdraw)
}

func (e *Engine) cashMove(ctx context.Context, req CashRequest, typ types.TxType) (types.OperationResult, error) {
	amount := money.Cash(req.AmountEur)
	if !amount.IsPositive() {
		return types.OperationResult{}, apperr.E(apperr.BadInput, "amount must be at least 0.01 EUR")
	}
	delta := amount
	if typ == types.TxWithdraw {
		delta = amount.Neg()
	}
	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    typ,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			if _, err := tx.AdjustCash(delta); err != nil {
				return nil, err
			}
			rec.CashDelta = delta
			return nil, nil
		},
	})
}

func (e *Engine) EditAllocation(ctx context.Context, req AllocationRequest) (types.OperationResult, error) {
	target := types.Allocation{Stock: req.StockPct, Etf: req.EtfPct, Crypto: req.CryptoPct}
	for _, c := range types.AssetClasses {
		if pct := target.Pct(c); pct < 0 || pct > 100 {
			return types.OperationResult{}, apperr.E(apperr.BadInput, "%s percentage %d outside 0..100", c, pct)
		}
	}
	if target.Sum() != 100 {
		return types.OperationResult{}, apperr.E(apperr.Conflict, "allocation sums to %d, not 100", target.Sum())
	}
	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    types.TxAllocation,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			target.UpdatedAt = rec.At
			if err := tx.SetAllocation(target); err != nil {
				return nil, err
			}
			rec.Note = fmt.Sprintf("stock=%d etf=%d crypto=%d", target.Stock, target.Etf, target.Crypto)
			return nil, nil
		},
	})
}

func (e *Engine) Rename(ctx context.Context, req RenameRequest) (types.OperationResult, error) {
	sym, err := normalize(req.Symbol)
	if err != nil {
		return types.OperationResult{}, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if utf8.RuneCountInString(name) > maxNicknameLength {
		return types.OperationResult{}, apperr.E(apperr.BadInput, "display name longer than %d characters", maxNicknameLength)
	}
	return e.mutate(ctx, mutation{
		userID: req.UserID,
		opID:   req.OpID,
		typ:    types.TxRename,
		apply: func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error) {
			pos, err := tx.Position(sym)
			if err != nil {
				return nil, err
			}
			pos.Nickname = name
			pos.UpdatedAt = rec.At
			if err := tx.UpsertPosition(pos); err != nil {
				return nil, err
			}
			rec.Symbol = sym
			rec.Note = name
			return nil, nil
		},
	})
}

func checkTrade(req *TradeRequest) (string, error) {
	sym, err := normalize(req.Symbol)
	if err != nil {
		return "", err
	}
	if err := positive("quantity", req.Quantity); err != nil {
		return "", err
	}
	if err := positive("price", req.PriceEur); err != nil {
		return "", err
	}
	if req.FeesEur.IsNegative() {
		return "", apperr.E(apperr.BadInput, "fees must not be negative")
	}
	return sym, nil
}

// openPosition loads sym or starts an empty one. An existing position keeps
// its class; a different one is a conflict.
func openPosition(tx repository.Tx, sym string, class types.AssetClass, market string) (types.Position, error) {
	pos, err := tx.Position(sym)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		pos = types.Position{
			Symbol:     sym,
			Quantity:   decimal.Zero,
			AvgCost:    decimal.Zero,
			AssetClass: class,
		}
	case err != nil:
		return types.Position{}, err
	case pos.AssetClass != class:
		return types.Position{}, apperr.E(apperr.Conflict, "%s is held as %s, not %s", sym, pos.AssetClass, class)
	}
	if market != "" {
		pos.Market = market
	}
	return pos, nil
}

func normalize(s string) (string, error) {
	sym, ok := types.NormalizeSymbol(s)
	if !ok {
		return "", apperr.E(apperr.BadInput, "invalid symbol %q", s)
	}
	return sym, nil
}

func positive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperr.E(apperr.BadInput, "%s must be positive", field)
	}
	return nil
}

func assetClass(c types.AssetClass) error {
	for _, known := range types.AssetClasses {
		if c == known {
			return nil
		}
	}
	if c == "" {
		return apperr.E(apperr.BadInput, "asset class is required")
	}
	return apperr.E(apperr.BadInput, "unknown asset class %q", c)
}
