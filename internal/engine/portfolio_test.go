package engine

import (
	"testing"
	"time"

	"folio/internal/apperr"
	"folio/types"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyBuy(t *testing.T) {
	at := time.UnixMilli(1)
	tests := []struct {
		name     string
		start    types.Position
		qty      string
		price    string
		fees     string
		wantQty  string
		wantCost string
	}{
		{
			name:     "open position capitalizes fees",
			start:    types.Position{Symbol: "AAPL", Quantity: decimal.Zero, AvgCost: decimal.Zero},
			qty:      "10",
			price:    "100",
			fees:     "1",
			wantQty:  "10",
			wantCost: "100.1",
		},
		{
			name:     "scale in rounds WAC to six places",
			start:    types.Position{Symbol: "AAPL", Quantity: dec("10"), AvgCost: dec("100")},
			qty:      "5",
			price:    "110",
			fees:     "0",
			wantQty:  "15",
			wantCost: "103.333333",
		},
		{
			name:     "fractional crypto",
			start:    types.Position{Symbol: "BTC", Quantity: dec("0.5"), AvgCost: dec("30000")},
			qty:      "0.25",
			price:    "36000",
			fees:     "4.5",
			wantQty:  "0.75",
			wantCost: "32006",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyBuy(tt.start, dec(tt.qty), dec(tt.price), dec(tt.fees), at)
			if !got.Quantity.Equal(dec(tt.wantQty)) {
				t.Errorf("quantity = %s, want %s", got.Quantity, tt.wantQty)
			}
			if !got.AvgCost.Equal(dec(tt.wantCost)) {
				t.Errorf("avg cost = %s, want %s", got.AvgCost, tt.wantCost)
			}
			if !got.UpdatedAt.Equal(at) {
				t.Errorf("updated at = %v, want %v", got.UpdatedAt, at)
			}
		})
	}
}

func TestApplyAdd(t *testing.T) {
	start := types.Position{Symbol: "VWCE", Quantity: dec("4"), AvgCost: dec("100")}

	got := applyAdd(start, dec("4"), nil, time.UnixMilli(1))
	if !got.AvgCost.Equal(dec("100")) || !got.Quantity.Equal(dec("8")) {
		t.Errorf("add without cost = %s @ %s, want 8 @ 100", got.Quantity, got.AvgCost)
	}

	cost := dec("110")
	got = applyAdd(start, dec("4"), &cost, time.UnixMilli(1))
	if !got.AvgCost.Equal(dec("105")) {
		t.Errorf("add with cost: avg = %s, want 105", got.AvgCost)
	}

	got = applyAdd(types.Position{Symbol: "NEW", Quantity: decimal.Zero, AvgCost: decimal.Zero}, dec("3"), nil, time.UnixMilli(1))
	if !got.AvgCost.IsZero() {
		t.Errorf("new position without cost: avg = %s, want 0", got.AvgCost)
	}
}

func TestApplySell(t *testing.T) {
	tests := []struct {
		name         string
		qty          string
		price        string
		fees         string
		wantQty      string
		wantProceeds string
		wantRealized string
		wantKind     apperr.Kind
	}{
		{
			name:         "partial sell at a gain",
			qty:          "4",
			price:        "120",
			fees:         "2",
			wantQty:      "6",
			wantProceeds: "478",
			wantRealized: "78",
		},
		{
			name:         "close at a loss",
			qty:          "10",
			price:        "90",
			fees:         "0",
			wantQty:      "0",
			wantProceeds: "900",
			wantRealized: "-100",
		},
		{
			name:         "fees above proceeds",
			qty:          "1",
			price:        "1",
			fees:         "5",
			wantQty:      "9",
			wantProceeds: "-4",
			wantRealized: "-104",
		},
		{
			name:     "oversell",
			qty:      "10.5",
			price:    "100",
			fees:     "0",
			wantKind: apperr.BadInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := types.Position{Symbol: "AAPL", Quantity: dec("10"), AvgCost: dec("100")}
			pos, proceeds, realized, err := applySell(start, dec(tt.qty), dec(tt.price), dec(tt.fees), time.UnixMilli(1))
			if tt.wantKind != "" {
				if apperr.KindOf(err) != tt.wantKind {
					t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
				}
				if !pos.Quantity.Equal(start.Quantity) {
					t.Errorf("failed sell changed quantity to %s", pos.Quantity)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !pos.Quantity.Equal(dec(tt.wantQty)) {
				t.Errorf("quantity = %s, want %s", pos.Quantity, tt.wantQty)
			}
			if !pos.AvgCost.Equal(start.AvgCost) {
				t.Errorf("sell changed WAC to %s", pos.AvgCost)
			}
			if !proceeds.Equal(dec(tt.wantProceeds)) {
				t.Errorf("proceeds = %s, want %s", proceeds, tt.wantProceeds)
			}
			if !realized.Equal(dec(tt.wantRealized)) {
				t.Errorf("realized = %s, want %s", realized, tt.wantRealized)
			}
		})
	}
}

func TestWeightedAvg(t *testing.T) {
	if got := weightedAvg(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero); !got.IsZero() {
		t.Errorf("empty average = %s, want 0", got)
	}
	if got := weightedAvg(dec("10"), dec("1"), dec("20"), dec("1")); !got.Equal(dec("15")) {
		t.Errorf("average = %s, want 15", got)
	}
}
