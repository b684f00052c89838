package analytics

import (
	"sort"

	"folio/internal/calendar"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// MaxBenchmarkLag is how far before a bucket's start the last benchmark
// observation may lie for the bucket to count as covered.
const MaxBenchmarkLag = 4

type benchmark struct {
	points []types.BenchmarkPoint
}

func newBenchmark(s types.BenchmarkSeries) benchmark {
	pts := append([]types.BenchmarkPoint(nil), s.Points...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	return benchmark{points: pts}
}

// onOrBefore is the latest observation dated d or earlier.
func (b benchmark) onOrBefore(d calendar.Date) (types.BenchmarkPoint, bool) {
	i := sort.Search(len(b.points), func(i int) bool { return b.points[i].Date.After(d) })
	if i == 0 {
		return types.BenchmarkPoint{}, false
	}
	return b.points[i-1], true
}

func (b benchmark) firstIn(from, to calendar.Date) (types.BenchmarkPoint, bool) {
	for _, p := range b.points {
		if p.Date.Between(from, to) {
			return p, true
		}
	}
	return types.BenchmarkPoint{}, false
}

// AlignBenchmark computes the flow-free return of a benchmark on the same
// buckets as the portfolio. Uncovered buckets report NoData.
func AlignBenchmark(s types.BenchmarkSeries, ranges []Range) types.BenchmarkBuckets {
	b := newBenchmark(s)
	out := types.BenchmarkBuckets{Symbol: s.Symbol, Buckets: make([]types.Bucket, 0, len(ranges))}
	for _, r := range ranges {
		bucket := types.Bucket{Label: r.Label, From: r.From, To: r.To, Value: decimal.Zero, NoData: true}
		end, ok := b.onOrBefore(r.To)
		if ok && !end.Date.Before(r.From.Add(-MaxBenchmarkLag)) {
			base, ok := b.onOrBefore(r.From.Add(-1))
			if !ok {
				base, ok = b.firstIn(r.From, r.To)
			}
			if ok {
				if ret, defined := DailyReturn(base.Value, end.Value, decimal.Zero); defined {
					ret = money.Ratio(ret)
					bucket.Return = decimal.NewNullDecimal(ret)
					bucket.ReturnPct = decimal.NewNullDecimal(money.Percent(ret))
					bucket.NoData = false
				}
				bucket.Value = end.Value
			}
		}
		out.Buckets = append(out.Buckets, bucket)
	}
	return out
}
