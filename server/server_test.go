package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/strategies"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func comparison(t *testing.T, f func(i int) float64) *backtest.Comparison {
	t.Helper()
	rows := make([]market.Candle, 60)
	for i := range rows {
		c := f(i)
		day := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		rows[i] = market.Candle{Time: day, Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	cmp, err := backtest.Compare(market.NewCandleSet("SPY", "test", rows), backtest.CompareOptions{
		InitialCash: 10_000,
		Commission:  0.002,
		Strategies:  []strategies.Policy{strategies.NewEmaCross(2, 4), strategies.NewPriceEmaCross(3)},
	})
	require.NoError(t, err)
	return cmp
}

func wave(i int) float64 { return 100 + 10*math.Sin(float64(i)/4) }
func flat(int) float64   { return 100 }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := New(comparison(t, wave), nil, ":0", zerolog.Nop())
	w := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSummary(t *testing.T) {
	cmp := comparison(t, wave)
	s := New(cmp, nil, ":0", zerolog.Nop())

	w := get(t, s.Handler(), "/api/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Symbol string `json:"symbol"`
		Bars   int    `json:"bars"`
		Count  int    `json:"count"`
		Data   []struct {
			Name        string         `json:"name"`
			Slug        string         `json:"slug"`
			Trades      int            `json:"trades"`
			FinalEquity float64        `json:"final_equity"`
			Stats       map[string]any `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SPY", body.Symbol)
	assert.Equal(t, 60, body.Bars)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "EMA_CROSS(2,4)", body.Data[0].Name)
	assert.Equal(t, "price_ema_cross_3", body.Data[1].Slug)
	assert.Equal(t, len(cmp.Results[0].Trades), body.Data[0].Trades)
	assert.InDelta(t, cmp.Results[0].FinalEquity(), body.Data[0].FinalEquity, 1e-6)
	assert.Contains(t, body.Data[0].Stats, "cagr_pct")
}

func TestSummaryUndefinedRatiosAreNull(t *testing.T) {
	s := New(comparison(t, flat), nil, ":0", zerolog.Nop())

	w := get(t, s.Handler(), "/api/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []struct {
			Stats map[string]any `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data)
	st := body.Data[0].Stats
	assert.Nil(t, st["sharpe"])
	assert.Nil(t, st["profit_factor"])
	assert.Equal(t, 0.0, st["return_pct"])
}

func TestEquityTable(t *testing.T) {
	cmp := comparison(t, wave)
	s := New(cmp, nil, ":0", zerolog.Nop())

	w := get(t, s.Handler(), "/api/equity")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Dates   []string    `json:"dates"`
		Columns []string    `json:"columns"`
		Values  [][]float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, cmp.Table.Columns, body.Columns)
	assert.Equal(t, backtest.BenchmarkColumn, body.Columns[len(body.Columns)-1])
	require.Len(t, body.Dates, cmp.Table.Len())
	assert.Equal(t, "2021-01-04", body.Dates[0])
	assert.Equal(t, 10_000.0, body.Values[0][len(body.Columns)-1])
}

func TestCharts(t *testing.T) {
	s := New(comparison(t, wave), nil, ":0", zerolog.Nop())

	w := get(t, s.Handler(), "/chart.svg")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "SPY Strategy Comparison")

	w = get(t, s.Handler(), "/runs/ema_cross_2_4/chart.svg")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "<?xml"))

	w = get(t, s.Handler(), "/runs/nope/chart.svg")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndex(t *testing.T) {
	s := New(comparison(t, wave), nil, ":0", zerolog.Nop())

	w := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "EMA Crossover")
	assert.Contains(t, w.Body.String(), `/runs/price_ema_cross_3/chart.svg`)
}

func TestMetricsRoute(t *testing.T) {
	cmp := comparison(t, wave)
	m := metrics.New()
	m.ObserveBars("SPY", cmp.Candles.Len())

	w := get(t, New(cmp, m, ":0", zerolog.Nop()).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `backtester_bars_loaded_total{symbol="SPY"} 60`)

	w = get(t, New(cmp, nil, ":0", zerolog.Nop()).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	s := New(comparison(t, wave), nil, "127.0.0.1:0", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
