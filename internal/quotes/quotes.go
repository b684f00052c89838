// Package quotes holds the market data pushed by the price collaborator:
// current EUR quotes with a TTL and daily benchmark series.
package quotes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"folio/internal/apperr"
	"folio/internal/calendar"
	"folio/internal/engine"
	"folio/types"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	DefaultQuoteTTL = 15 * time.Minute
	cleanupInterval = 30 * time.Minute
)

type Quote struct {
	Symbol   string          `json:"symbol"`
	PriceEur decimal.Decimal `json:"price_eur"`
	At       time.Time       `json:"at"`
}

// Store implements engine.Pricer and engine.BenchmarkSource.
type Store struct {
	quotes     *cache.Cache
	benchmarks *cache.Cache
	ttl        time.Duration

	// serializes benchmark merges, go-cache has no compare-and-set.
	mu sync.Mutex
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &Store{
		quotes:     cache.New(ttl, cleanupInterval),
		benchmarks: cache.New(cache.NoExpiration, 0),
		ttl:        ttl,
	}
}

// SetQuotes validates every quote before storing any of them.
func (s *Store) SetQuotes(qs []Quote) error {
	clean := make([]Quote, 0, len(qs))
	for _, q := range qs {
		sym, ok := types.NormalizeSymbol(q.Symbol)
		if !ok {
			return apperr.E(apperr.BadInput, "invalid symbol %q", q.Symbol)
		}
		if !q.PriceEur.IsPositive() {
			return apperr.E(apperr.BadInput, "price of %s must be positive", sym)
		}
		q.Symbol = sym
		if q.At.IsZero() {
			q.At = time.Now().UTC()
		}
		clean = append(clean, q)
	}
	for _, q := range clean {
		s.quotes.Set(q.Symbol, q, cache.DefaultExpiration)
	}
	return nil
}

func (s *Store) Quote(symbol string) (Quote, bool) {
	v, found := s.quotes.Get(symbol)
	if !found {
		return Quote{}, false
	}
	return v.(Quote), true
}

func (s *Store) PriceEUR(_ context.Context, symbol string) (decimal.Decimal, error) {
	q, ok := s.Quote(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, engine.ErrNoQuote)
	}
	return q.PriceEur, nil
}

// PutBenchmark merges points into the stored series of the same symbol.
// A point for a date already present replaces it.
func (s *Store) PutBenchmark(series types.BenchmarkSeries) error {
	sym, ok := types.NormalizeSymbol(series.Symbol)
	if !ok {
		return apperr.E(apperr.BadInput, "invalid benchmark symbol %q", series.Symbol)
	}
	for _, p := range series.Points {
		if p.Date.IsZero() {
			return apperr.E(apperr.BadInput, "benchmark %s has a point without date", sym)
		}
		if !p.Value.IsPositive() {
			return apperr.E(apperr.BadInput, "benchmark %s value on %s must be positive", sym, p.Date)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := map[calendar.Date]decimal.Decimal{}
	if v, found := s.benchmarks.Get(sym); found {
		for _, p := range v.(types.BenchmarkSeries).Points {
			byDate[p.Date] = p.Value
		}
	}
	for _, p := range series.Points {
		byDate[p.Date] = p.Value
	}
	merged := types.BenchmarkSeries{Symbol: sym, Points: make([]types.BenchmarkPoint, 0, len(byDate))}
	for d, v := range byDate {
		merged.Points = append(merged.Points, types.BenchmarkPoint{Date: d, Value: v})
	}
	sort.Slice(merged.Points, func(i, j int) bool { return merged.Points[i].Date.Before(merged.Points[j].Date) })
	s.benchmarks.Set(sym, merged, cache.NoExpiration)
	return nil
}

// Benchmarks returns every series cut to [from, to], sorted by symbol.
// Series without points in the range are left out.
func (s *Store) Benchmarks(_ context.Context, from, to calendar.Date) ([]types.BenchmarkSeries, error) {
	var out []types.BenchmarkSeries
	for sym, item := range s.benchmarks.Items() {
		series := item.Object.(types.BenchmarkSeries)
		cut := types.BenchmarkSeries{Symbol: sym}
		for _, p := range series.Points {
			if p.Date.Between(from, to) {
				cut.Points = append(cut.Points, p)
			}
		}
		if len(cut.Points) > 0 {
			out = append(out, cut)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Store) QuoteCount() int { return s.quotes.ItemCount() }
