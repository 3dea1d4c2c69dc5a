// Package metrics exposes Prometheus metrics for backtest runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/backtester/backtest"
)

const namespace = "backtester"

// Metrics owns its registry so several instances (one per command, one
// per test) never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	BarsLoaded  *prometheus.CounterVec
	Trades      *prometheus.CounterVec
	FinalEquity *prometheus.GaugeVec
	RunSeconds  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BarsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "bars_loaded_total", Help: "Candles loaded from the data source"},
			[]string{"symbol"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "trades_total", Help: "Trades opened by a strategy"},
			[]string{"strategy"},
		),
		FinalEquity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "final_equity", Help: "Equity at the end of the last run"},
			[]string{"strategy"},
		),
		RunSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "run_seconds", Help: "Wall time of a strategy run", Buckets: prometheus.ExponentialBuckets(0.001, 4, 8)},
			[]string{"strategy"},
		),
	}
	m.Registry.MustRegister(m.BarsLoaded, m.Trades, m.FinalEquity, m.RunSeconds)
	return m
}

func (m *Metrics) ObserveBars(symbol string, n int) {
	m.BarsLoaded.WithLabelValues(symbol).Add(float64(n))
}

// ObserveResult records the trade count, final equity and run time of r.
func (m *Metrics) ObserveResult(r *backtest.Result) {
	name := r.Name()
	m.Trades.WithLabelValues(name).Add(float64(len(r.Trades)))
	m.FinalEquity.WithLabelValues(name).Set(r.FinalEquity())
	m.RunSeconds.WithLabelValues(name).Observe(r.Elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values in the node exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
