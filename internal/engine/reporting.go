package engine

import (
	"fmt"
	"io"
	"strings"

	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// The reports below are markdown; folioctl renders them for the terminal.

func WriteAnalyticsReport(w io.Writer, r types.AnalyticsResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Performance: %s\n\n", r.Period)
	fmt.Fprintf(&b, "User %d, %s to %s (as of %s)\n\n", r.UserID, r.From, r.To, r.AsOf)

	b.WriteString("## Buckets\n\n")
	b.WriteString("| Bucket | From | To | Return | Open | Value |\n")
	b.WriteString("|---|---|---|---:|---:|---:|\n")
	for _, bk := range r.Buckets {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			bk.Label, bk.From, bk.To, pct(bk.ReturnPct), eur(bk.OpenValue), money.Display(bk.Value))
	}

	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "- Time-weighted return: %s\n", pct(r.ReturnPct))
	fmt.Fprintf(&b, "- Net flow: %s\n", money.Display(r.NetFlow))
	fmt.Fprintf(&b, "- Max drawdown: %s (%s%%)\n", money.Display(r.Drawdown.MaxEur), r.Drawdown.MaxPct.StringFixed(2))
	if r.Drawdown.DurationDays > 0 {
		fmt.Fprintf(&b, "- Drawdown period: %s to %s, %d days\n", r.Drawdown.Peak, r.Drawdown.Trough, r.Drawdown.DurationDays)
	}

	for _, bm := range r.Benchmarks {
		fmt.Fprintf(&b, "\n## Benchmark %s\n\n", bm.Symbol)
		b.WriteString("| Bucket | Return |\n|---|---:|\n")
		for _, bk := range bm.Buckets {
			fmt.Fprintf(&b, "| %s | %s |\n", bk.Label, pct(bk.ReturnPct))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func WritePortfolioReport(w io.Writer, v types.PortfolioView) error {
	var b strings.Builder
	b.WriteString("# Portfolio\n\n")
	b.WriteString("| Symbol | Class | Quantity | Avg cost | Price | Value | Weight | Unrealized |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|\n")
	for _, p := range v.Positions {
		name := p.Symbol
		if p.Nickname != "" {
			name = fmt.Sprintf("%s (%s)", p.Symbol, p.Nickname)
		}
		price := money.Display(p.LastPrice)
		if p.PricedAtCost {
			price += " *"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s%% | %s |\n",
			name, p.AssetClass, p.Quantity, money.Display(p.AvgCost), price,
			money.Display(p.Value), p.WeightPct.StringFixed(2), money.Display(p.UnrealizedPnL))
	}
	fmt.Fprintf(&b, "\n- Cash: %s\n", money.Display(v.Cash))
	fmt.Fprintf(&b, "- Positions: %s\n", money.Display(v.PositionsValue))
	fmt.Fprintf(&b, "- Total: %s\n", money.Display(v.Total))
	fmt.Fprintf(&b, "- Unrealized P/L: %s\n", money.Display(v.UnrealizedPnL))

	_, err := io.WriteString(w, b.String())
	return err
}

func WriteTransactionsReport(w io.Writer, txs []types.Transaction) error {
	var b strings.Builder
	b.WriteString("# Transactions\n\n")
	b.WriteString("| Date | Type | Symbol | Quantity | Price | Fees | Cash | Note |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|---|\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			t.Date, t.Type, t.Symbol, t.Quantity, money.Display(t.Price), money.Display(t.Fees),
			money.Display(t.CashDelta), strings.ReplaceAll(t.Note, "|", "/"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func eur(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return money.Display(d.Decimal)
}

func pct(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return d.Decimal.StringFixed(2) + "%"
}
