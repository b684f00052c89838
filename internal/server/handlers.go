package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"folio/internal/apperr"
	"folio/internal/calendar"
	"folio/internal/engine"
	"folio/internal/money"
	"folio/internal/quotes"
	"folio/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.E(apperr.BadInput, "invalid user id %q", chi.URLParam(r, "userID"))
	}
	return id, nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.BadInput, err, "invalid request body")
	}
	return nil
}

// opID prefers the Idempotency-Key header over the body field.
func opID(r *http.Request, body string) string {
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(body)
}

// amount parses a money field. Empty optional fields come back as nil.
func amount(field, s string, required bool) (*decimal.Decimal, error) {
	d, err := money.Parse(s)
	if errors.Is(err, money.ErrEmpty) && !required {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.BadInput, err, "invalid %s", field)
	}
	return &d, nil
}

func requiredAmount(field, s string) (decimal.Decimal, error) {
	d, err := amount(field, s, true)
	if err != nil {
		return decimal.Zero, err
	}
	return *d, nil
}

// optionalAmount treats a missing value as zero.
func optionalAmount(field, s string) (decimal.Decimal, error) {
	d, err := amount(field, s, false)
	if err != nil || d == nil {
		return decimal.Zero, err
	}
	return *d, nil
}

func parseClass(s string) (types.AssetClass, error) {
	if strings.TrimSpace(s) == "" {
		return "", apperr.E(apperr.BadInput, "asset_class is required")
	}
	c, ok := types.ParseAssetClass(s)
	if !ok {
		return "", apperr.E(apperr.BadInput, "unknown asset_class %q", s)
	}
	return c, nil
}

// writeResult answers a mutation. Replays are 200, fresh operations 201.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res types.OperationResult, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	s.writeOK(w, status, res)
}

type userRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

func (s *Server) handleEnsureUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req userRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.engine.EnsureUser(r.Context(), types.User{
		ID:           id,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		LanguageCode: req.LanguageCode,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, u)
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.DeactivateUser(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]any{"user_id": id, "active": false})
}

type addPositionRequest struct {
	OpID       string `json:"op_id"`
	Symbol     string `json:"symbol"`
	Quantity   string `json:"quantity"`
	AssetClass string `json:"asset_class"`
	Market     string `json:"market"`
	CostEur    string `json:"cost_eur"`
}

func (s *Server) handleAddPosition(w http.ResponseWriter, r *http.Request) {
	var req addPositionRequest
	id, err := userID(r)
	if err == nil {
		err = decode(r, &req)
	}
	var (
		qty   decimal.Decimal
		cost  *decimal.Decimal
		class types.AssetClass
	)
	if err == nil {
		qty, err = requiredAmount("quantity", req.Quantity)
	}
	if err == nil {
		cost, err = amount("cost_eur", req.CostEur, false)
	}
	if err == nil {
		class, err = parseClass(req.AssetClass)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.AddPosition(r.Context(), engine.AddPositionRequest{
		UserID:     id,
		OpID:       opID(r, req.OpID),
		Symbol:     req.Symbol,
		Quantity:   qty,
		AssetClass: class,
		Market:     req.Market,
		CostEur:    cost,
	})
	s.writeResult(w, r, res, err)
}

type opRequest struct {
	OpID string `json:"op_id"`
}

func (s *Server) handleRemovePosition(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	id, err := userID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.RemovePosition(r.Context(), engine.RemovePositionRequest{
		UserID: id,
		OpID:   opID(r, req.OpID),
		Symbol: chi.URLParam(r, "symbol"),
	})
	s.writeResult(w, r, res, err)
}

type renameRequest struct {
	OpID        string `json:"op_id"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	id, err := userID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Rename(r.Context(), engine.RenameRequest{
		UserID:      id,
		OpID:        opID(r, req.OpID),
		Symbol:      chi.URLParam(r, "symbol"),
		DisplayName: req.DisplayName,
	})
	s.writeResult(w, r, res, err)
}

type tradeRequest struct {
	OpID       string `json:"op_id"`
	Symbol     string `json:"symbol"`
	Quantity   string `json:"quantity"`
	PriceEur   string `json:"price_eur"`
	FeesEur    string `json:"fees_eur"`
	AssetClass string `json:"asset_class"`
	Market     string `json:"market"`
}

func (s *Server) parseTrade(r *http.Request, buy bool) (engine.TradeRequest, error) {
	var req tradeRequest
	id, err := userID(r)
	if err != nil {
		return engine.TradeRequest{}, err
	}
	if err := decode(r, &req); err != nil {
		return engine.TradeRequest{}, err
	}
	out := engine.TradeRequest{UserID: id, OpID: opID(r, req.OpID), Symbol: req.Symbol, Market: req.Market}
	if out.Quantity, err = requiredAmount("quantity", req.Quantity); err != nil {
		return out, err
	}
	if out.PriceEur, err = requiredAmount("price_eur", req.PriceEur); err != nil {
		return out, err
	}
	if out.FeesEur, err = optionalAmount("fees_eur", req.FeesEur); err != nil {
		return out, err
	}
	if buy {
		if out.AssetClass, err = parseClass(req.AssetClass); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseTrade(r, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Buy(r.Context(), req)
	s.writeResult(w, r, res, err)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseTrade(r, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Sell(r.Context(), req)
	s.writeResult(w, r, res, err)
}

type cashRequest struct {
	OpID      string `json:"op_id"`
	AmountEur string `json:"amount_eur"`
}

func (s *Server) parseCash(r *http.Request) (engine.CashRequest, error) {
	var req cashRequest
	id, err := userID(r)
	if err != nil {
		return engine.CashRequest{}, err
	}
	if err := decode(r, &req); err != nil {
		return engine.CashRequest{}, err
	}
	amt, err := requiredAmount("amount_eur", req.AmountEur)
	if err != nil {
		return engine.CashRequest{}, err
	}
	return engine.CashRequest{UserID: id, OpID: opID(r, req.OpID), AmountEur: amt}, nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseCash(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.CashAdd(r.Context(), req)
	s.writeResult(w, r, res, err)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseCash(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.CashRemove(r.Context(), req)
	s.writeResult(w, r, res, err)
}

type allocationRequest struct {
	OpID      string `json:"op_id"`
	StockPct  int    `json:"stock_pct"`
	EtfPct    int    `json:"etf_pct"`
	CryptoPct int    `json:"crypto_pct"`
}

func (s *Server) handleEditAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	id, err := userID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.EditAllocation(r.Context(), engine.AllocationRequest{
		UserID:    id,
		OpID:      opID(r, req.OpID),
		StockPct:  req.StockPct,
		EtfPct:    req.EtfPct,
		CryptoPct: req.CryptoPct,
	})
	s.writeResult(w, r, res, err)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.engine.Portfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, view)
}

func (s *Server) handleCash(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cash, err := s.engine.Cash(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]any{"cash_eur": cash, "display": money.Display(cash)})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, apperr.E(apperr.BadInput, "invalid limit %q", v))
			return
		}
	}
	txs, err := s.engine.Transactions(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, txs)
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.engine.Allocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, view)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("period")
	if raw == "" {
		raw = string(types.PeriodWeek)
	}
	period, ok := types.ParsePeriod(raw)
	if !ok {
		s.writeError(w, r, apperr.E(apperr.BadInput, "unknown period %q", raw))
		return
	}
	res, err := s.engine.Analytics(r.Context(), id, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, res)
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	delta, err := requiredAmount("delta_pct", q.Get("delta_pct"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.WhatIf(r.Context(), id, q.Get("symbol"), delta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, res)
}

type snapshotRequest struct {
	Date     string `json:"date"`
	ValueEur string `json:"value_eur"`
}

func (s *Server) handleRecordSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	id, err := userID(r)
	if err == nil {
		err = decode(r, &req)
	}
	var (
		date  calendar.Date
		value decimal.Decimal
	)
	if err == nil {
		date, err = parseDate(req.Date, calendar.Date{})
	}
	if err == nil {
		value, err = requiredAmount("value_eur", req.ValueEur)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.engine.RecordDailySnapshot(r.Context(), id, date, value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, snap)
}

// parseDate reads YYYY-MM-DD; an empty string yields def.
func parseDate(s string, def calendar.Date) (calendar.Date, error) {
	if strings.TrimSpace(s) == "" {
		if def.IsZero() {
			return def, apperr.E(apperr.BadInput, "date is required")
		}
		return def, nil
	}
	d, err := calendar.Parse(s)
	if err != nil {
		return calendar.Date{}, apperr.Wrap(apperr.BadInput, err, "invalid date %q", s)
	}
	return d, nil
}

type quoteRequest struct {
	Symbol   string `json:"symbol"`
	PriceEur string `json:"price_eur"`
}

func (s *Server) handlePutQuotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quotes []quoteRequest `json:"quotes"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	qs := make([]quotes.Quote, 0, len(req.Quotes))
	for _, q := range req.Quotes {
		price, err := requiredAmount("price_eur", q.PriceEur)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		qs = append(qs, quotes.Quote{Symbol: q.Symbol, PriceEur: price})
	}
	if err := s.quotes.SetQuotes(qs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]int{"stored": len(qs)})
}

func (s *Server) handlePutBenchmark(w http.ResponseWriter, r *http.Request) {
	var series types.BenchmarkSeries
	if err := decode(r, &series); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.quotes.PutBenchmark(series); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, map[string]any{"symbol": series.Symbol, "points": len(series.Points)})
}

func (s *Server) handleRunSnapshots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseDate(req.Date, s.engine.Today())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	run, err := s.engine.RunSnapshots(r.Context(), date, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, run)
}

func (s *Server) handleSnapshotStatus(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), s.engine.Today())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := s.engine.SnapshotStatus(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, http.StatusOK, status)
}
