package analytics

import (
	"folio/internal/calendar"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// Drawdown walks the flow-neutral growth index of [from, to], so deposits
// never hide a loss and withdrawals never fake one. The EUR figure scales the
// percentage by the nominal value at the peak.
func Drawdown(s Series, from, to calendar.Date) types.Drawdown {
	var (
		dd        = types.Drawdown{MaxEur: decimal.Zero, MaxPct: decimal.Zero}
		index     = one
		peak      decimal.Decimal
		peakValue decimal.Decimal
		peakDate  calendar.Date
		started   bool
	)
	for _, d := range calendar.Days(from, to) {
		p, ok := s.At(d)
		if !ok || !p.Known {
			continue
		}
		if r, ok := s.Return(d); ok && started {
			index = index.Mul(one.Add(r))
		}
		// Initialize peak with the first known day
		if !started || index.GreaterThan(peak) {
			peak, peakValue, peakDate = index, p.Value, d
			started = true
			continue
		}
		if peak.GreaterThan(decimal.Zero) {
			pct := peak.Sub(index).Div(peak)
			if pct.GreaterThan(dd.MaxPct) {
				dd.MaxPct = pct
				dd.MaxEur = money.Cash(peakValue.Mul(pct))
				dd.Peak, dd.Trough = peakDate, d
				dd.DurationDays = d.Sub(peakDate)
			}
		}
	}
	dd.MaxPct = money.Percent(dd.MaxPct)
	return dd
}
