package types

import (
	"folio/internal/calendar"

	"github.com/shopspring/decimal"
)

// Bucket is one labeled slice of a period. Return is invalid when NoData is set.
// OpenValue is the close of the day before From, invalid before the first
// snapshot; Value is the close of To.
type Bucket struct {
	Label     string              `json:"label"`
	From      calendar.Date       `json:"from"`
	To        calendar.Date       `json:"to"`
	Return    decimal.NullDecimal `json:"return"`
	ReturnPct decimal.NullDecimal `json:"return_pct"`
	OpenValue decimal.NullDecimal `json:"open_value_eur"`
	Value     decimal.Decimal     `json:"value_eur"`
	NoData    bool                `json:"no_data"`
}

type BenchmarkPoint struct {
	Date  calendar.Date   `json:"date"`
	Value decimal.Decimal `json:"value_eur"`
}

// BenchmarkSeries is a daily close series of an index, sorted by date.
type BenchmarkSeries struct {
	Symbol string           `json:"symbol"`
	Points []BenchmarkPoint `json:"points"`
}

type BenchmarkBuckets struct {
	Symbol  string   `json:"symbol"`
	Buckets []Bucket `json:"buckets"`
}

type Drawdown struct {
	MaxEur       decimal.Decimal `json:"max_drawdown_eur"`
	MaxPct       decimal.Decimal `json:"max_drawdown_pct"`
	DurationDays int             `json:"duration_days"`
	Peak         calendar.Date   `json:"peak"`
	Trough       calendar.Date   `json:"trough"`
}

type AnalyticsResult struct {
	UserID     int64               `json:"user_id"`
	Period     Period              `json:"period"`
	AsOf       calendar.Date       `json:"as_of"`
	From       calendar.Date       `json:"from"`
	To         calendar.Date       `json:"to"`
	Buckets    []Bucket            `json:"buckets"`
	Return     decimal.NullDecimal `json:"return"`
	ReturnPct  decimal.NullDecimal `json:"return_pct"`
	NetFlow    decimal.Decimal     `json:"net_flow_eur"`
	Drawdown   Drawdown            `json:"drawdown"`
	Benchmarks []BenchmarkBuckets  `json:"benchmarks"`
}
