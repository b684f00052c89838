package engine

import (
	"context"
	"errors"
	"time"

	"folio/internal/analytics"
	"folio/internal/apperr"
	"folio/internal/calendar"
	"folio/internal/money"
	"folio/internal/repository"
	"folio/types"

	"github.com/shopspring/decimal"
)

// RecordDailySnapshot stores the closing value of date. Recording a date
// again recomputes it and overwrites the earlier row.
func (e *Engine) RecordDailySnapshot(ctx context.Context, userID int64, date calendar.Date, valueEur decimal.Decimal) (types.Snapshot, error) {
	if err := checkUser(userID); err != nil {
		return types.Snapshot{}, err
	}
	if date.IsZero() {
		return types.Snapshot{}, apperr.E(apperr.BadInput, "snapshot date is required")
	}
	if valueEur.IsNegative() {
		return types.Snapshot{}, apperr.E(apperr.BadInput, "snapshot value must not be negative")
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	var snap types.Snapshot
	err := e.store.Update(ctx, userID, func(tx repository.Tx) error {
		var err error
		snap, err = recordSnapshot(tx, userID, date, money.Cash(valueEur), e.now())
		return err
	})
	if err != nil {
		return types.Snapshot{}, classify(err)
	}
	e.log.Debug().Int64("user", userID).Stringer("date", date).Str("value", snap.Value.String()).Msg("snapshot recorded")
	return snap, nil
}

// recordSnapshot stores value for date together with the external flow since
// the previous snapshot, so flows of days without a snapshot are not lost.
func recordSnapshot(tx repository.Tx, userID int64, date calendar.Date, value decimal.Decimal, now time.Time) (types.Snapshot, error) {
	prev, found, err := lastSnapshotBefore(tx, date)
	if err != nil {
		return types.Snapshot{}, err
	}
	flow, err := flowSince(tx, prev, found, date)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap := types.Snapshot{
		UserID:     userID,
		Date:       date,
		Value:      value,
		NetFlow:    flow,
		RecordedAt: now,
	}
	if found {
		if r, ok := analytics.DailyReturn(prev.Value, value, snap.NetFlow); ok {
			snap.DailyReturn = decimal.NewNullDecimal(r)
		}
	}
	return snap, tx.UpsertSnapshot(snap)
}

func lastSnapshotBefore(tx repository.Tx, date calendar.Date) (types.Snapshot, bool, error) {
	prev, err := tx.LastSnapshotBefore(date)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return types.Snapshot{}, false, nil
	case err != nil:
		return types.Snapshot{}, false, err
	}
	return prev, true, nil
}

// flowSince is the net external flow of (prev.Date, date]. The first
// snapshot of a user only counts the flows of its own day.
func flowSince(tx repository.Tx, prev types.Snapshot, found bool, date calendar.Date) (decimal.Decimal, error) {
	from := date
	if found {
		from = prev.Date.Add(1)
	}
	flow, err := tx.NetFlow(from, date)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Cash(flow), nil
}

// RunSnapshots values and records every active user for date. A failing user
// is reported in the result and does not stop the run. bar may be nil.
func (e *Engine) RunSnapshots(ctx context.Context, date calendar.Date, bar Progress) (types.SnapshotRun, error) {
	start := time.Now()
	run := types.SnapshotRun{Date: date, Failed: make(map[int64]string)}
	users, err := e.store.ActiveUsers(ctx)
	if err != nil {
		return run, classify(err)
	}
	for _, id := range users {
		if err := ctx.Err(); err != nil {
			return run, classify(err)
		}
		if err := e.snapshotUser(ctx, id, date); err != nil {
			run.Failed[id] = apperr.Message(err)
			e.log.Error().Err(err).Int64("user", id).Stringer("date", date).Msg("snapshot failed")
		} else {
			run.Recorded++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	run.Duration = time.Since(start)
	e.log.Info().Stringer("date", date).Int("recorded", run.Recorded).Int("failed", len(run.Failed)).
		Dur("took", run.Duration).Msg("snapshot run finished")
	return run, nil
}

func (e *Engine) snapshotUser(ctx context.Context, userID int64, date calendar.Date) error {
	view, err := e.Portfolio(ctx, userID)
	if err != nil {
		return err
	}
	_, err = e.RecordDailySnapshot(ctx, userID, date, view.Total)
	return err
}

func (e *Engine) SnapshotStatus(ctx context.Context, date calendar.Date) (types.SnapshotStatus, error) {
	users, err := e.store.ActiveUsers(ctx)
	if err != nil {
		return types.SnapshotStatus{}, classify(err)
	}
	n, err := e.store.SnapshotCount(ctx, date)
	if err != nil {
		return types.SnapshotStatus{}, classify(err)
	}
	return types.SnapshotStatus{
		Date:        date,
		ActiveUsers: len(users),
		Snapshotted: n,
		Complete:    n >= len(users),
	}, nil
}
