package analytics

import (
	"folio/internal/calendar"
	"folio/types"

	"github.com/shopspring/decimal"
)

// Point is the portfolio on one civil day. Observed is false for days that
// carry the previous value forward, Known is false before the first snapshot.
type Point struct {
	Date     calendar.Date
	Value    decimal.Decimal
	Flow     decimal.Decimal
	Observed bool
	Known    bool
}

// Series is a gap-free daily series over [From, To] plus the value carried
// into the day before From.
type Series struct {
	From, To  calendar.Date
	points    []Point
	base      decimal.Decimal
	baseKnown bool
}

// NewSeries lays snapshots over every day of [from, to]. prev is the latest
// snapshot before from, nil when history starts inside the range. Snapshots
// outside the range are ignored.
func NewSeries(from, to calendar.Date, prev *types.Snapshot, snaps []types.Snapshot) Series {
	s := Series{From: from, To: to}
	if prev != nil {
		s.base, s.baseKnown = prev.Value, true
	}
	byDate := make(map[calendar.Date]types.Snapshot, len(snaps))
	for _, sn := range snaps {
		byDate[sn.Date] = sn
	}
	last, known := s.base, s.baseKnown
	for _, d := range calendar.Days(from, to) {
		p := Point{Date: d, Flow: decimal.Zero}
		if sn, ok := byDate[d]; ok {
			last, known = sn.Value, true
			p.Flow = sn.NetFlow
			p.Observed = true
		}
		p.Value, p.Known = last, known
		s.points = append(s.points, p)
	}
	return s
}

func (s Series) Points() []Point { return s.points }

func (s Series) index(d calendar.Date) int {
	if d.Before(s.From) || d.After(s.To) {
		return -1
	}
	return d.Sub(s.From)
}

// At returns the point of day d, which must lie inside the series.
func (s Series) At(d calendar.Date) (Point, bool) {
	i := s.index(d)
	if i < 0 {
		return Point{}, false
	}
	return s.points[i], true
}

// prev is the value at the end of the day before d.
func (s Series) prev(d calendar.Date) (decimal.Decimal, bool) {
	i := s.index(d)
	switch {
	case i < 0:
		return decimal.Zero, false
	case i == 0:
		return s.base, s.baseKnown
	default:
		p := s.points[i-1]
		return p.Value, p.Known
	}
}

// Return is r_t of day d. Carried-forward days return exactly zero.
func (s Series) Return(d calendar.Date) (decimal.Decimal, bool) {
	p, ok := s.At(d)
	if !ok || !p.Known {
		return decimal.Zero, false
	}
	prev, ok := s.prev(d)
	if !ok {
		return decimal.Zero, false
	}
	return DailyReturn(prev, p.Value, p.Flow)
}

// Chain is the chained return over the inclusive range [from, to]. It is
// invalid when every day of the range precedes the first snapshot.
func (s Series) Chain(from, to calendar.Date) decimal.NullDecimal {
	var (
		returns []decimal.Decimal
		covered bool
	)
	for _, d := range calendar.Days(from, to) {
		p, ok := s.At(d)
		if !ok || !p.Known {
			continue
		}
		covered = true
		if r, ok := s.Return(d); ok {
			returns = append(returns, r)
		}
	}
	if !covered {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(Chain(returns))
}

// NetFlow sums the external flows of [from, to].
func (s Series) NetFlow(from, to calendar.Date) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range calendar.Days(from, to) {
		if p, ok := s.At(d); ok {
			sum = sum.Add(p.Flow)
		}
	}
	return sum
}
