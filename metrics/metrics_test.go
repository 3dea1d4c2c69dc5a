package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/strategies"
)

func result() *backtest.Result {
	return &backtest.Result{
		Policy:      strategies.NewEmaCross(50, 200),
		InitialCash: 10_000,
		Equity:      []backtest.EquityPoint{{Equity: 10_000}, {Equity: 12_500}},
		Trades:      []backtest.Trade{{}, {}, {}},
		Elapsed:     5 * time.Millisecond,
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveBars("SPY", 300)
	m.ObserveResult(result())

	assert.Equal(t, 300.0, testutil.ToFloat64(m.BarsLoaded.WithLabelValues("SPY")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Trades.WithLabelValues("EMA_CROSS(50,200)")))
	assert.Equal(t, 12_500.0, testutil.ToFloat64(m.FinalEquity.WithLabelValues("EMA_CROSS(50,200)")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunSeconds))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveBars("SPY", 1)
	assert.Equal(t, 0, testutil.CollectAndCount(b.BarsLoaded))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveResult(result())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `backtester_trades_total{strategy="EMA_CROSS(50,200)"} 3`)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveBars("SPY", 10)

	path := filepath.Join(t.TempDir(), "backtester.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `backtester_bars_loaded_total{symbol="SPY"} 10`)
}
