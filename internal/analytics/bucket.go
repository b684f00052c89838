package analytics

import (
	"fmt"
	"time"

	"folio/internal/calendar"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// Range is one labeled bucket before any values are attached.
type Range struct {
	Label    string
	From, To calendar.Date
}

const monthWeeks = 4

// Ranges returns the buckets of period as seen on the Berlin civil date today.
func Ranges(period types.Period, today calendar.Date) ([]Range, error) {
	switch period {
	case types.PeriodDay:
		return []Range{{Label: "Today", From: today, To: today}}, nil
	case types.PeriodWeek:
		out := make([]Range, 0, 7)
		for _, d := range calendar.Days(today.Add(-6), today) {
			out = append(out, Range{Label: d.Format("Mon"), From: d, To: d})
		}
		return out, nil
	case types.PeriodMonth:
		end := lastFriday(today)
		out := make([]Range, 0, monthWeeks)
		for k := monthWeeks - 1; k >= 0; k-- {
			to := end.Add(-7 * k)
			label := "W0"
			if k > 0 {
				label = fmt.Sprintf("W-%d", k)
			}
			out = append(out, Range{
				Label: fmt.Sprintf("%s (%s)", label, to.Format("Mon 2 Jan")),
				From:  to.Add(-6),
				To:    to,
			})
		}
		return out, nil
	case types.PeriodYear:
		out := make([]Range, 0, int(today.Month()))
		for m := time.January; m <= today.Month(); m++ {
			from := calendar.New(today.Year(), m, 1)
			to := from.AddMonths(1).Add(-1)
			if to.After(today) {
				to = today
			}
			out = append(out, Range{Label: from.Format("Jan"), From: from, To: to})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported period %q", period)
}

// lastFriday is the most recent Friday on or before d.
func lastFriday(d calendar.Date) calendar.Date {
	back := (int(d.Weekday()) - int(time.Friday) + 7) % 7
	return d.Add(-back)
}

// Span is the smallest date range holding every bucket and today.
func Span(ranges []Range, today calendar.Date) (calendar.Date, calendar.Date) {
	from, to := today, today
	for _, r := range ranges {
		if r.From.Before(from) {
			from = r.From
		}
		if r.To.After(to) {
			to = r.To
		}
	}
	return from, to
}

// Buckets attaches chained returns, open values and end values to ranges.
func Buckets(s Series, ranges []Range) []types.Bucket {
	out := make([]types.Bucket, 0, len(ranges))
	for _, r := range ranges {
		b := types.Bucket{Label: r.Label, From: r.From, To: r.To, Value: decimal.Zero}
		b.Return = s.Chain(r.From, r.To)
		if !b.Return.Valid {
			b.NoData = true
		} else {
			b.ReturnPct = decimal.NewNullDecimal(money.Percent(b.Return.Decimal))
		}
		if v, ok := s.prev(r.From); ok {
			b.OpenValue = decimal.NewNullDecimal(money.Cash(v))
		}
		if p, ok := s.At(r.To); ok && p.Known {
			b.Value = money.Cash(p.Value)
		}
		out = append(out, b)
	}
	return out
}
