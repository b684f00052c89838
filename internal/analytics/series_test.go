package analytics

import (
	"testing"

	"folio/internal/calendar"
	"folio/types"

	"github.com/shopspring/decimal"
)

func snap(date, value, flow string) types.Snapshot {
	return types.Snapshot{
		Date:    calendar.MustParse(date),
		Value:   decimal.RequireFromString(value),
		NetFlow: decimal.RequireFromString(flow),
	}
}

func TestSeriesDepositIsFlowNeutral(t *testing.T) {
	s := NewSeries(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-03"), nil, []types.Snapshot{
		snap("2026-10-01", "100", "100"),
		snap("2026-10-02", "105", "5"),
		snap("2026-10-03", "105", "0"),
	})
	got := s.Chain(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-03"))
	if !got.Valid || !got.Decimal.IsZero() {
		t.Errorf("Chain() = %v, want 0", got)
	}
	if _, ok := s.Return(calendar.MustParse("2026-10-01")); ok {
		t.Errorf("Return(first day) defined, want undefined")
	}
}

func TestSeriesCarriesMissingDaysForward(t *testing.T) {
	s := NewSeries(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-04"), nil, []types.Snapshot{
		snap("2026-10-01", "100", "0"),
		snap("2026-10-04", "110", "0"),
	})
	p, _ := s.At(calendar.MustParse("2026-10-02"))
	if p.Observed || !p.Known || !p.Value.Equal(decimal.NewFromInt(100)) {
		t.Errorf("At(gap) = %+v, want carried 100", p)
	}
	r, ok := s.Return(calendar.MustParse("2026-10-03"))
	if !ok || !r.IsZero() {
		t.Errorf("Return(gap) = %v, %v, want 0, true", r, ok)
	}
	got := s.Chain(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-04"))
	if !got.Decimal.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Chain() = %v, want 0.1", got.Decimal)
	}
}

func TestSeriesUsesPreviousSnapshotAsBase(t *testing.T) {
	prev := snap("2026-09-28", "200", "0")
	s := NewSeries(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-02"), &prev, []types.Snapshot{
		snap("2026-10-02", "210", "0"),
	})
	r, ok := s.Return(calendar.MustParse("2026-10-01"))
	if !ok || !r.IsZero() {
		t.Errorf("Return(carried first day) = %v, %v, want 0, true", r, ok)
	}
	got := s.Chain(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-02"))
	if !got.Decimal.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("Chain() = %v, want 0.05", got.Decimal)
	}
}

func TestSeriesNoDataBeforeFirstSnapshot(t *testing.T) {
	s := NewSeries(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-05"), nil, []types.Snapshot{
		snap("2026-10-04", "100", "100"),
	})
	if got := s.Chain(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-03")); got.Valid {
		t.Errorf("Chain(before history) = %v, want NoData", got)
	}
	got := s.Chain(calendar.MustParse("2026-10-03"), calendar.MustParse("2026-10-05"))
	if !got.Valid || !got.Decimal.IsZero() {
		t.Errorf("Chain(inception bucket) = %v, want 0", got)
	}
}

func TestSeriesExcludesDaysAfterEmptyPortfolio(t *testing.T) {
	// Fully withdrawn on day 2, funded again on day 3.
	s := NewSeries(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-04"), nil, []types.Snapshot{
		snap("2026-10-01", "100", "100"),
		snap("2026-10-02", "0", "-100"),
		snap("2026-10-03", "50", "50"),
		snap("2026-10-04", "55", "0"),
	})
	if _, ok := s.Return(calendar.MustParse("2026-10-03")); ok {
		t.Errorf("Return(after empty day) defined, want undefined")
	}
	got := s.Chain(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-04"))
	if !got.Decimal.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Chain() = %v, want 0.1", got.Decimal)
	}
}

func TestSeriesNetFlow(t *testing.T) {
	s := NewSeries(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-03"), nil, []types.Snapshot{
		snap("2026-10-01", "100", "100"),
		snap("2026-10-03", "80", "-25.50"),
	})
	got := s.NetFlow(calendar.MustParse("2026-10-01"), calendar.MustParse("2026-10-03"))
	if !got.Equal(decimal.RequireFromString("74.5")) {
		t.Errorf("NetFlow() = %v, want 74.5", got)
	}
}
