package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"folio/internal/engine"
	"folio/internal/quotes"
	"folio/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

func newTestServer(t *testing.T, rps float64, burst int) *Server {
	t.Helper()
	store := repository.NewMemory()
	q := quotes.New(0)
	e := engine.NewEngine(store, q, q, engine.NewEngineConfig(true, nil), zerolog.Nop())
	return New(Config{
		Port:           0,
		Log:            zerolog.Nop(),
		Engine:         e,
		Quotes:         q,
		Store:          store,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	})
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestDepositReplay(t *testing.T) {
	s := newTestServer(t, 0, 0)
	body := map[string]string{"amount_eur": "100.50"}

	code, resp := do(t, s, http.MethodPost, "/v1/users/1/cash/deposit", body, "Idempotency-Key", "dep-1")
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.OK)

	code, resp = do(t, s, http.MethodPost, "/v1/users/1/cash/deposit", body, "Idempotency-Key", "dep-1")
	require.Equal(t, http.StatusOK, code)
	var res struct {
		Replayed  bool `json:"replayed"`
		Portfolio struct {
			Cash decimal.Decimal `json:"cash_eur"`
		} `json:"portfolio"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.True(t, res.Replayed)
	assert.True(t, res.Portfolio.Cash.Equal(decimal.RequireFromString("100.5")))

	code, resp = do(t, s, http.MethodGet, "/v1/users/1/cash", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"100.5"`)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, 0, 0)
	do(t, s, http.MethodPost, "/v1/users/1/cash/deposit", map[string]string{"op_id": "d", "amount_eur": "10"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"withdraw over balance", http.MethodPost, "/v1/users/1/cash/withdraw",
			map[string]string{"op_id": "w", "amount_eur": "10.01"}, http.StatusUnprocessableEntity, "InsufficientFunds"},
		{"allocation not summing to 100", http.MethodPut, "/v1/users/1/allocation",
			map[string]any{"op_id": "a", "stock_pct": 50, "etf_pct": 30, "crypto_pct": 21}, http.StatusConflict, "Conflict"},
		{"missing op id", http.MethodPost, "/v1/users/1/cash/deposit",
			map[string]string{"amount_eur": "1"}, http.StatusBadRequest, "BadInput"},
		{"exponent amount", http.MethodPost, "/v1/users/1/cash/deposit",
			map[string]string{"op_id": "x", "amount_eur": "1e3"}, http.StatusBadRequest, "BadInput"},
		{"bad user id", http.MethodGet, "/v1/users/abc/portfolio", nil, http.StatusBadRequest, "BadInput"},
		{"buy without class", http.MethodPost, "/v1/users/1/buy",
			map[string]string{"op_id": "b", "symbol": "AAPL", "quantity": "1", "price_eur": "1"}, http.StatusBadRequest, "BadInput"},
		{"sell unknown position", http.MethodPost, "/v1/users/1/sell",
			map[string]string{"op_id": "s", "symbol": "AAPL", "quantity": "1", "price_eur": "1"}, http.StatusNotFound, "NotFound"},
		{"unknown period", http.MethodGet, "/v1/users/1/analytics?period=decade", nil, http.StatusBadRequest, "BadInput"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.False(t, resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, string(resp.Error.Kind))
			assert.False(t, resp.Error.Retriable)
		})
	}
}

func TestTradeWithQuotes(t *testing.T) {
	s := newTestServer(t, 0, 0)
	do(t, s, http.MethodPut, "/v1/users/5", map[string]string{"first_name": "Grace"})
	do(t, s, http.MethodPost, "/v1/users/5/cash/deposit", map[string]string{"op_id": "d", "amount_eur": "1000"})

	code, _ := do(t, s, http.MethodPost, "/v1/users/5/buy", map[string]string{
		"op_id": "b", "symbol": "vwce", "quantity": "4", "price_eur": "100", "fees_eur": "2", "asset_class": "etf",
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = do(t, s, http.MethodPut, "/v1/market/quotes", map[string]any{
		"quotes": []map[string]string{{"symbol": "VWCE", "price_eur": "110"}},
	})
	require.Equal(t, http.StatusOK, code)

	code, resp := do(t, s, http.MethodGet, "/v1/users/5/portfolio", nil)
	require.Equal(t, http.StatusOK, code)
	var view struct {
		Total     decimal.Decimal `json:"total_eur"`
		Positions []struct {
			Symbol       string `json:"symbol"`
			PricedAtCost bool   `json:"priced_at_cost"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.True(t, view.Total.Equal(decimal.NewFromInt(1038)), view.Total.String())
	require.Len(t, view.Positions, 1)
	assert.False(t, view.Positions[0].PricedAtCost)

	code, resp = do(t, s, http.MethodGet, "/v1/users/5/whatif?symbol=VWCE&delta_pct=50", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"delta_eur":"220"`)

	code, resp = do(t, s, http.MethodGet, "/v1/users/5/transactions?limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	var txs []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &txs))
	assert.Len(t, txs, 2)
	assert.Equal(t, "buy", txs[0]["type"])
}

func TestSnapshotsAndAnalytics(t *testing.T) {
	s := newTestServer(t, 0, 0)
	do(t, s, http.MethodPut, "/v1/users/9", nil)

	code, _ := do(t, s, http.MethodPost, "/v1/users/9/snapshots", map[string]string{"date": "2026-10-01", "value_eur": "100"})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodPost, "/v1/users/9/snapshots", map[string]string{"value_eur": "100"})
	require.Equal(t, http.StatusBadRequest, code)

	code, resp := do(t, s, http.MethodPost, "/v1/admin/snapshots/run", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"recorded":1`)

	code, resp = do(t, s, http.MethodGet, "/v1/admin/snapshots/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"complete":true`)

	code, resp = do(t, s, http.MethodGet, "/v1/users/9/analytics?period=y", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"period":"year"`)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0, 0)
	code, resp := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"store":"ok"`)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 0.001, 1)
	code, _ := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	code, resp := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	require.NotNil(t, resp.Error)
	assert.True(t, resp.Error.Retriable)
}
