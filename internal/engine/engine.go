// Package engine runs the portfolio operations: idempotent ledger mutations,
// valued reads, daily snapshots and period analytics.
package engine

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"folio/internal/apperr"
	"folio/internal/calendar"
	"folio/internal/logger"
	"folio/internal/repository"
	"folio/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxOpIDLength = 128

type Engine struct {
	store  repository.Store
	pricer Pricer
	bench  BenchmarkSource
	locks  *userLocks
	cfg    *EngineConfig
	log    zerolog.Logger
}

func NewEngine(store repository.Store, pricer Pricer, bench BenchmarkSource, cfg *EngineConfig, log zerolog.Logger) *Engine {
	if cfg == nil {
		cfg = NewEngineConfig(true, nil)
	}
	return &Engine{
		store:  store,
		pricer: pricer,
		bench:  bench,
		locks:  newUserLocks(),
		cfg:    cfg,
		log:    logger.Component(log, "engine"),
	}
}

func (e *Engine) now() time.Time { return e.cfg.clock().UTC() }

// Today is the Berlin civil date of the engine clock.
func (e *Engine) Today() calendar.Date { return calendar.Today(e.cfg.clock()) }

func (e *Engine) EnsureUser(ctx context.Context, u types.User) (types.User, error) {
	if u.ID <= 0 {
		return types.User{}, apperr.E(apperr.BadInput, "user id must be positive")
	}
	out, err := e.store.EnsureUser(ctx, u)
	if err != nil {
		return types.User{}, classify(err)
	}
	return out, nil
}

func (e *Engine) DeactivateUser(ctx context.Context, userID int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return classify(e.store.DeactivateUser(ctx, userID))
}

// mutation is one ledger change. apply sees the transaction record already
// filled with identity fields and completes it; it returns the realized P/L
// for operations that have one.
type mutation struct {
	userID int64
	opID   string
	typ    types.TxType
	apply  func(tx repository.Tx, rec *types.Transaction) (*decimal.Decimal, error)
}

// mutate runs m in one store transaction behind the user's lock. A known
// op_id returns the stored result without touching the ledger.
func (e *Engine) mutate(ctx context.Context, m mutation) (types.OperationResult, error) {
	if err := checkUser(m.userID); err != nil {
		return types.OperationResult{}, err
	}
	if err := checkOpID(m.opID); err != nil {
		return types.OperationResult{}, err
	}

	unlock := e.locks.lock(m.userID)
	defer unlock()

	var result types.OperationResult
	err := e.store.Update(ctx, m.userID, func(tx repository.Tx) error {
		prior, found, err := replay(tx, m.opID, m.typ)
		if err != nil || found {
			result = prior
			return err
		}

		u, err := tx.User()
		if err != nil {
			return err
		}
		if !u.Active {
			return apperr.E(apperr.Conflict, "user %d is deactivated", m.userID)
		}

		now := e.now()
		rec := types.Transaction{
			ID:        uuid.NewString(),
			UserID:    m.userID,
			At:        now,
			Date:      calendar.Today(now),
			Type:      m.typ,
			Quantity:  decimal.Zero,
			Price:     decimal.Zero,
			Fees:      decimal.Zero,
			CashDelta: decimal.Zero,
			OpID:      m.opID,
		}
		pnl, err := m.apply(tx, &rec)
		if err != nil {
			return err
		}
		h, err := holdings(tx)
		if err != nil {
			return err
		}
		result = types.OperationResult{OpID: m.opID, Transaction: rec, Portfolio: h, RealizedPnL: pnl}
		encoded, err := repository.EncodeResult(result)
		if err != nil {
			return err
		}
		return tx.AppendTransaction(rec, encoded)
	})

	if errors.Is(err, repository.ErrDuplicateOperation) {
		// Another writer recorded the op_id first; the aborted transaction
		// cannot be read from, so look the result up again.
		err = e.store.View(ctx, m.userID, func(tx repository.Tx) error {
			prior, found, err := replay(tx, m.opID, m.typ)
			if err != nil {
				return err
			}
			if !found {
				return apperr.E(apperr.Internal, "operation %s vanished after duplicate insert", m.opID)
			}
			result = prior
			return nil
		})
	}
	if err != nil {
		err = classify(err)
		e.log.Debug().Err(err).Int64("user", m.userID).Str("op_id", m.opID).Str("type", string(m.typ)).Msg("mutation rejected")
		return types.OperationResult{}, err
	}

	if result.Replayed {
		e.log.Info().Int64("user", m.userID).Str("op_id", m.opID).Str("type", string(m.typ)).Msg("operation replayed")
	} else {
		e.log.Debug().Int64("user", m.userID).Str("op_id", m.opID).Str("type", string(m.typ)).
			Str("cash_delta", result.Transaction.CashDelta.String()).Msg("operation committed")
	}
	return result, nil
}

// replay returns the stored result of opID, if any.
func replay(tx repository.Tx, opID string, typ types.TxType) (types.OperationResult, bool, error) {
	op, err := tx.Operation(opID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.OperationResult{}, false, nil
	}
	if err != nil {
		return types.OperationResult{}, false, err
	}
	if op.Type != typ {
		return types.OperationResult{}, false,
			apperr.E(apperr.Conflict, "op_id %s was already used for a %s operation", opID, op.Type)
	}
	res, err := repository.DecodeResult(op.Result)
	if err != nil {
		return types.OperationResult{}, false, err
	}
	res.Replayed = true
	return res, true, nil
}

func checkUser(userID int64) error {
	if userID <= 0 {
		return apperr.E(apperr.BadInput, "user id must be positive")
	}
	return nil
}

func checkOpID(opID string) error {
	if opID == "" {
		return apperr.E(apperr.BadInput, "op_id is required")
	}
	if utf8.RuneCountInString(opID) > maxOpIDLength {
		return apperr.E(apperr.BadInput, "op_id longer than %d characters", maxOpIDLength)
	}
	return nil
}

// classify wraps errors that carry no kind as Internal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Internal, err, "request aborted")
	}
	return &apperr.Error{Kind: apperr.Internal, Err: err}
}
