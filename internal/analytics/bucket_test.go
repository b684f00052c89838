package analytics

import (
	"testing"

	"folio/internal/calendar"
	"folio/types"

	"github.com/shopspring/decimal"
)

func TestRanges(t *testing.T) {
	friday := calendar.MustParse("2026-10-16")
	tests := []struct {
		name      string
		period    types.Period
		today     calendar.Date
		wantLen   int
		wantFirst Range
		wantLast  Range
	}{
		{"day", types.PeriodDay, friday, 1,
			Range{"Today", friday, friday}, Range{"Today", friday, friday}},
		{"week ends today", types.PeriodWeek, friday, 7,
			Range{"Sat", calendar.MustParse("2026-10-10"), calendar.MustParse("2026-10-10")},
			Range{"Fri", friday, friday}},
		{"month on a friday", types.PeriodMonth, friday, 4,
			Range{"W-3 (Fri 25 Sep)", calendar.MustParse("2026-09-19"), calendar.MustParse("2026-09-25")},
			Range{"W0 (Fri 16 Oct)", calendar.MustParse("2026-10-10"), friday}},
		{"month on a sunday anchors on friday", types.PeriodMonth, calendar.MustParse("2026-10-18"), 4,
			Range{"W-3 (Fri 25 Sep)", calendar.MustParse("2026-09-19"), calendar.MustParse("2026-09-25")},
			Range{"W0 (Fri 16 Oct)", calendar.MustParse("2026-10-10"), friday}},
		{"month on a thursday uses last week", types.PeriodMonth, calendar.MustParse("2026-10-15"), 4,
			Range{"W-3 (Fri 18 Sep)", calendar.MustParse("2026-09-12"), calendar.MustParse("2026-09-18")},
			Range{"W0 (Fri 9 Oct)", calendar.MustParse("2026-10-03"), calendar.MustParse("2026-10-09")}},
		{"year clipped to today", types.PeriodYear, friday, 10,
			Range{"Jan", calendar.MustParse("2026-01-01"), calendar.MustParse("2026-01-31")},
			Range{"Oct", calendar.MustParse("2026-10-01"), friday}},
		{"year in january", types.PeriodYear, calendar.MustParse("2026-01-05"), 1,
			Range{"Jan", calendar.MustParse("2026-01-01"), calendar.MustParse("2026-01-05")},
			Range{"Jan", calendar.MustParse("2026-01-01"), calendar.MustParse("2026-01-05")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Ranges(tt.period, tt.today)
			if err != nil {
				t.Fatalf("Ranges() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("Ranges() len = %d, want %d", len(got), tt.wantLen)
			}
			if got[0] != tt.wantFirst {
				t.Errorf("Ranges()[0] = %+v, want %+v", got[0], tt.wantFirst)
			}
			if got[len(got)-1] != tt.wantLast {
				t.Errorf("Ranges()[last] = %+v, want %+v", got[len(got)-1], tt.wantLast)
			}
		})
	}
}

func TestRangesUnknownPeriod(t *testing.T) {
	if _, err := Ranges("decade", calendar.MustParse("2026-10-16")); err == nil {
		t.Errorf("Ranges(decade) error = nil")
	}
}

func TestBuckets(t *testing.T) {
	today := calendar.MustParse("2026-10-16")
	ranges, _ := Ranges(types.PeriodWeek, today)
	from, to := Span(ranges, today)
	s := NewSeries(from, to, nil, []types.Snapshot{
		snap("2026-10-13", "1000", "1000"),
		snap("2026-10-14", "1010", "0"),
		snap("2026-10-16", "1111", "0"),
	})
	got := Buckets(s, ranges)

	// Sat..Mon precede history.
	for i := 0; i < 2; i++ {
		if !got[i].NoData || got[i].Return.Valid {
			t.Errorf("bucket %s = %+v, want NoData", got[i].Label, got[i])
		}
	}
	tue := got[3]
	if tue.NoData || !tue.Return.Decimal.IsZero() {
		t.Errorf("inception bucket %s = %+v, want 0", tue.Label, tue)
	}
	wed := got[4]
	if !wed.ReturnPct.Decimal.Equal(decimal.RequireFromString("1")) {
		t.Errorf("bucket %s pct = %v, want 1", wed.Label, wed.ReturnPct.Decimal)
	}
	thu := got[5]
	if !thu.Return.Decimal.IsZero() || !thu.Value.Equal(decimal.NewFromInt(1010)) {
		t.Errorf("carried bucket %s = %+v, want 0 at 1010", thu.Label, thu)
	}
	fri := got[6]
	if !fri.Return.Decimal.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("bucket %s = %v, want 0.1", fri.Label, fri.Return.Decimal)
	}
}

func TestBucketsOpenValue(t *testing.T) {
	today := calendar.MustParse("2026-10-16")
	ranges, _ := Ranges(types.PeriodDay, today)
	from, to := Span(ranges, today)
	prev := snap("2026-10-14", "1000", "0")
	s := NewSeries(from, to, &prev, []types.Snapshot{snap("2026-10-16", "1050", "0")})

	got := Buckets(s, ranges)
	if len(got) != 1 {
		t.Fatalf("day buckets = %d, want 1", len(got))
	}
	b := got[0]
	if !b.OpenValue.Valid || !b.OpenValue.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("open = %v, want 1000 carried from the last snapshot", b.OpenValue)
	}
	if !b.Value.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("value = %s, want 1050", b.Value)
	}
	if !b.Return.Decimal.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("return = %s, want 0.05", b.Return.Decimal)
	}
}

func TestBucketsOpenValueBeforeHistory(t *testing.T) {
	today := calendar.MustParse("2026-10-16")
	ranges, _ := Ranges(types.PeriodWeek, today)
	from, to := Span(ranges, today)
	s := NewSeries(from, to, nil, []types.Snapshot{snap("2026-10-13", "1000", "1000")})

	got := Buckets(s, ranges)
	if got[0].OpenValue.Valid {
		t.Errorf("bucket %s open = %v, want invalid before history", got[0].Label, got[0].OpenValue)
	}
	if wed := got[4]; !wed.OpenValue.Valid || !wed.OpenValue.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("bucket %s open = %v, want 1000", wed.Label, wed.OpenValue)
	}
}
