package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIn(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		// 22:30 UTC is already the next day in Berlin (CEST, +2).
		{"summer late evening", time.Date(2026, 7, 14, 22, 30, 0, 0, time.UTC), "2026-07-15"},
		{"summer afternoon", time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC), "2026-07-14"},
		// CET is +1 so 23:30 UTC is next day, 22:59 is not.
		{"winter midnight edge", time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC), "2026-01-11"},
		{"winter before midnight", time.Date(2026, 1, 10, 22, 59, 0, 0, time.UTC), "2026-01-10"},
		{"new year", time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC), "2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := In(tt.at).String(); got != tt.want {
				t.Errorf("In(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNewNormalizes(t *testing.T) {
	if got := New(2026, 1, 32); got != MustParse("2026-02-01") {
		t.Errorf("New(2026, 1, 32) = %v, want 2026-02-01", got)
	}
	if got := MustParse("2026-03-01").Add(-1); got != MustParse("2026-02-28") {
		t.Errorf("Add(-1) = %v, want 2026-02-28", got)
	}
}

func TestSubAcrossDST(t *testing.T) {
	a := MustParse("2026-03-28")
	b := MustParse("2026-03-30")
	if got := b.Sub(a); got != 2 {
		t.Errorf("Sub() = %d, want 2", got)
	}
}

func TestDays(t *testing.T) {
	got := Days(MustParse("2026-10-30"), MustParse("2026-11-02"))
	want := []string{"2026-10-30", "2026-10-31", "2026-11-01", "2026-11-02"}
	if len(got) != len(want) {
		t.Fatalf("Days() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("Days()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got := Days(MustParse("2026-11-02"), MustParse("2026-11-01")); got != nil {
		t.Errorf("Days(reversed) = %v, want nil", got)
	}
}

func TestParse(t *testing.T) {
	if d, err := Parse("2026-7-1"); err != nil || d.String() != "2026-07-01" {
		t.Errorf("Parse(2026-7-1) = %v, %v", d, err)
	}
	if _, err := Parse("yesterday"); err == nil {
		t.Errorf("Parse(yesterday) error = nil, want error")
	}
}

func TestJSON(t *testing.T) {
	type wrap struct {
		On Date `json:"on"`
	}
	b, err := json.Marshal(wrap{On: MustParse("2026-10-16")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"on":"2026-10-16"}` {
		t.Errorf("Marshal = %s", b)
	}
	var back wrap
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.On != MustParse("2026-10-16") {
		t.Errorf("Unmarshal = %v", back.On)
	}
}

func TestScan(t *testing.T) {
	var d Date
	if err := d.Scan("2026-10-16"); err != nil || d != MustParse("2026-10-16") {
		t.Errorf("Scan(string) = %v, %v", d, err)
	}
	if err := d.Scan(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)); err != nil || d != MustParse("2026-02-03") {
		t.Errorf("Scan(time) = %v, %v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Errorf("Scan(int) error = nil")
	}
}
