package engine

import (
	"context"
	"errors"

	"folio/internal/analytics"
	"folio/internal/apperr"
	"folio/internal/calendar"
	"folio/internal/money"
	"folio/internal/repository"
	"folio/types"

	"github.com/shopspring/decimal"
)

// benchmarkLead is how many days before the range the benchmark series is
// requested, so the first bucket has a base observation.
const benchmarkLead = analytics.MaxBenchmarkLag + 3

// Analytics returns the period buckets of userID with chained TWR, the
// whole-range return, net flow, drawdown and aligned benchmarks. Missing data
// shows up as NoData buckets, never as an error.
func (e *Engine) Analytics(ctx context.Context, userID int64, period types.Period) (types.AnalyticsResult, error) {
	if err := checkUser(userID); err != nil {
		return types.AnalyticsResult{}, err
	}
	today := e.Today()
	ranges, err := analytics.Ranges(period, today)
	if err != nil {
		return types.AnalyticsResult{}, apperr.Wrap(apperr.BadInput, err, "unknown period %q", period)
	}
	from, to := analytics.Span(ranges, today)

	var (
		prev     *types.Snapshot
		snaps    []types.Snapshot
		h        types.Holdings
		todayNet decimal.Decimal
	)
	err = e.store.View(ctx, userID, func(tx repository.Tx) error {
		p, err := tx.LastSnapshotBefore(from)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			prev = &p
		}
		if snaps, err = tx.Snapshots(from, to); err != nil {
			return err
		}
		if h, err = holdings(tx); err != nil {
			return err
		}
		last, found, err := lastSnapshotBefore(tx, today)
		if err != nil {
			return err
		}
		todayNet, err = flowSince(tx, last, found, today)
		return err
	})
	if err != nil {
		return types.AnalyticsResult{}, classify(err)
	}

	snaps = e.withLivePoint(ctx, userID, snaps, prev, h, today, todayNet)
	series := analytics.NewSeries(from, to, prev, snaps)

	res := types.AnalyticsResult{
		UserID:     userID,
		Period:     period,
		AsOf:       today,
		From:       from,
		To:         to,
		Buckets:    analytics.Buckets(series, ranges),
		Return:     series.Chain(from, to),
		NetFlow:    money.Cash(series.NetFlow(from, to)),
		Drawdown:   analytics.Drawdown(series, from, to),
		Benchmarks: e.benchmarks(ctx, ranges, from, to),
	}
	if res.Return.Valid {
		res.ReturnPct = decimal.NewNullDecimal(money.Percent(res.Return.Decimal))
	}
	return res, nil
}

// withLivePoint replaces today's closing value with a live valuation of the
// holdings. When a position has no quote, today's snapshot (if any) stands;
// a valuation at cost only fills in for a missing one. A user with no
// history and an empty ledger gets no point at all.
func (e *Engine) withLivePoint(ctx context.Context, userID int64, snaps []types.Snapshot, prev *types.Snapshot,
	h types.Holdings, today calendar.Date, flow decimal.Decimal) []types.Snapshot {
	if prev == nil && len(snaps) == 0 && len(h.Positions) == 0 && h.Cash.IsZero() {
		return snaps
	}
	view, err := e.value(ctx, h, e.now())
	if err != nil {
		e.log.Warn().Err(err).Int64("user", userID).Msg("live valuation unavailable, using snapshots")
		return snaps
	}
	if pricedAtCost(view) && hasSnapshot(snaps, today) {
		e.log.Debug().Int64("user", userID).Msg("unquoted positions, keeping today's snapshot")
		return snaps
	}
	live := types.Snapshot{UserID: userID, Date: today, Value: view.Total, NetFlow: money.Cash(flow), RecordedAt: e.now()}
	out := make([]types.Snapshot, 0, len(snaps)+1)
	for _, s := range snaps {
		if s.Date != today {
			out = append(out, s)
		}
	}
	return append(out, live)
}

func pricedAtCost(v types.PortfolioView) bool {
	for _, p := range v.Positions {
		if p.PricedAtCost {
			return true
		}
	}
	return false
}

func hasSnapshot(snaps []types.Snapshot, d calendar.Date) bool {
	for _, s := range snaps {
		if s.Date == d {
			return true
		}
	}
	return false
}

// benchmarks aligns every available series. A failing source only drops the
// benchmarks from the result.
func (e *Engine) benchmarks(ctx context.Context, ranges []analytics.Range, from, to calendar.Date) []types.BenchmarkBuckets {
	out := []types.BenchmarkBuckets{}
	if e.bench == nil {
		return out
	}
	series, err := e.bench.Benchmarks(ctx, from.Add(-benchmarkLead), to)
	if err != nil {
		e.log.Warn().Err(err).Msg("benchmarks unavailable")
		return out
	}
	for _, s := range series {
		out = append(out, analytics.AlignBenchmark(s, ranges))
	}
	return out
}
