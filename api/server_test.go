package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/simex/market"
	"github.com/rustyeddy/simex/sim"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	saved   int
	cleared int
}

func (s *fakeStore) Save(sim.Snapshot) error { s.saved++; return nil }
func (s *fakeStore) Clear() error            { s.cleared++; return nil }

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()

	store := market.NewStore(time.Minute)
	for i := 0; i < 10; i++ {
		store.Add(market.Candle{
			Symbol: "BTC-USDT",
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   100, High: 105, Low: 95, Close: 100,
			Volume: 1,
		})
	}

	engine := sim.New(sim.Config{
		StartingBalance: 1000,
		DefaultLeverage: 10,
		Start:           start,
		Step:            time.Minute,
	}, store, nil, nil)

	snaps := &fakeStore{}
	return NewServer(engine, store, snaps, nil), snaps
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestSubmitOrderFills(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/orders", map[string]any{
		"symbol": "BTC-USDT",
		"side":   "BUY",
		"size":   1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var order map[string]any
	decode(t, w, &order)
	assert.Equal(t, "FILLED", order["status"])
	assert.Equal(t, "BUY", order["side"])
	assert.Equal(t, float64(1), order["id"])
	assert.NotZero(t, order["fillPrice"])
}

func TestSubmitOrderInvalidSide(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/orders", map[string]any{
		"symbol": "BTC-USDT",
		"side":   "LONG",
		"size":   1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var reply map[string]any
	decode(t, w, &reply)
	assert.Equal(t, "INVALID_ARGUMENT", reply["code"])
}

func TestSubmitOrderNoMarketData(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/orders", map[string]any{
		"symbol": "DOGE-USDT",
		"side":   "BUY",
		"size":   1,
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	var reply map[string]any
	decode(t, w, &reply)
	assert.Equal(t, "NO_MARKET_DATA", reply["code"])

	// The rejected order record rides along in the reply.
	order, ok := reply["order"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "REJECTED", order["status"])
}

func TestSubmitOrderInsufficientMargin(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/orders", map[string]any{
		"symbol":   "BTC-USDT",
		"side":     "BUY",
		"size":     100,
		"leverage": 1,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var reply map[string]any
	decode(t, w, &reply)
	assert.Equal(t, "INSUFFICIENT_MARGIN", reply["code"])
}

func TestAdvanceMovesClock(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/advance", map[string]any{"steps": 3})
	require.Equal(t, http.StatusOK, w.Code)

	var reply map[string]string
	decode(t, w, &reply)
	assert.Equal(t, start.Add(3*time.Minute).Format(time.RFC3339), reply["time"])
}

func TestAdvanceRejectsZeroSteps(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/advance", map[string]any{"steps": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrdersAndGetByID(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := do(t, s, http.MethodPost, "/orders", map[string]any{
			"symbol": "BTC-USDT", "side": "BUY", "size": 0.1,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, s, http.MethodGet, "/orders?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []map[string]any
	decode(t, w, &orders)
	require.Len(t, orders, 2)
	assert.Equal(t, float64(2), orders[0]["id"])
	assert.Equal(t, float64(3), orders[1]["id"])

	w = do(t, s, http.MethodGet, "/orders/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var order map[string]any
	decode(t, w, &order)
	assert.Equal(t, float64(1), order["id"])

	w = do(t, s, http.MethodGet, "/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPositionsAfterFill(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/orders", map[string]any{
		"symbol": "BTC-USDT", "side": "SELL", "size": 2, "stopLoss": 120,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/positions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var positions []map[string]any
	decode(t, w, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, "SHORT", positions[0]["side"])
	assert.Equal(t, float64(2), positions[0]["size"])
	assert.Equal(t, float64(120), positions[0]["stopLoss"])
}

func TestAccountEndpoint(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/account", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var acct sim.AccountSummary
	decode(t, w, &acct)
	assert.Equal(t, 1000.0, acct.Balance)
	assert.Equal(t, 1000.0, acct.Equity)
	assert.Zero(t, acct.UsedMargin)
}

func TestTimeAndSymbolsEndpoints(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/time", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reply map[string]string
	decode(t, w, &reply)
	assert.Equal(t, start.Format(time.RFC3339), reply["time"])
	assert.Equal(t, "1m0s", reply["step"])

	w = do(t, s, http.MethodGet, "/symbols", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var symbols []string
	decode(t, w, &symbols)
	assert.Equal(t, []string{"BTC-USDT"}, symbols)
}

func TestResetClearsWorldAndState(t *testing.T) {
	t.Parallel()

	s, snaps := newTestServer(t)

	w := do(t, s, http.MethodPost, "/orders", map[string]any{
		"symbol": "BTC-USDT", "side": "BUY", "size": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	_ = do(t, s, http.MethodPost, "/advance", map[string]any{"steps": 2})

	w = do(t, s, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, snaps.cleared)

	var positions []map[string]any
	decode(t, do(t, s, http.MethodGet, "/positions", nil), &positions)
	assert.Empty(t, positions)

	var orders []map[string]any
	decode(t, do(t, s, http.MethodGet, "/orders", nil), &orders)
	assert.Empty(t, orders)

	var reply map[string]string
	decode(t, do(t, s, http.MethodGet, "/time", nil), &reply)
	assert.Equal(t, start.Format(time.RFC3339), reply["time"])
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/advance", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
