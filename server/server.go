// Package server serves a finished comparison over HTTP: a small HTML
// index, JSON summaries, the SVG charts and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/report"
)

// Server holds one immutable comparison. Handlers only read from it.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	cmp     *backtest.Comparison
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New builds the router for cmp. m may be nil, in which case /metrics is
// not mounted.
func New(cmp *backtest.Comparison, m *metrics.Metrics, addr string, log zerolog.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware(log))

	s := &Server{
		engine:  engine,
		cmp:     cmp,
		metrics: m,
		log:     log,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.GET("/summary", s.summary)
		api.GET("/equity", s.equity)
	}

	s.engine.GET("/chart.svg", s.comparisonChart)
	s.engine.GET("/runs/:name/chart.svg", s.runChart)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info().Str("addr", s.server.Addr).Str("symbol", s.cmp.Symbol).Msg("http server listening")

	errc := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func (s *Server) findRun(slug string) *backtest.Result {
	for _, r := range s.cmp.Results {
		if r.Policy.Slug() == slug {
			return r
		}
	}
	return nil
}

func (s *Server) summary(c *gin.Context) {
	runs := make([]gin.H, 0, len(s.cmp.Results))
	for _, r := range s.cmp.Results {
		runs = append(runs, gin.H{
			"name":         r.Name(),
			"label":        r.Label(),
			"slug":         r.Policy.Slug(),
			"policy":       r.Policy,
			"final_equity": num(r.FinalEquity()),
			"trades":       len(r.Trades),
			"stats":        statsJSON(r.Stats),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": s.cmp.Symbol,
		"bars":   s.cmp.Candles.Len(),
		"start":  s.cmp.Candles.Start().Format("2006-01-02"),
		"end":    s.cmp.Candles.End().Format("2006-01-02"),
		"count":  len(runs),
		"data":   runs,
	})
}

func (s *Server) equity(c *gin.Context) {
	t := s.cmp.Table
	dates := make([]string, len(t.Dates))
	for i, d := range t.Dates {
		dates[i] = d.Format("2006-01-02")
	}
	rows := make([][]any, len(t.Values))
	for i, row := range t.Values {
		rows[i] = make([]any, len(row))
		for j, v := range row {
			rows[i][j] = num(v)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"dates":   dates,
		"columns": t.Columns,
		"values":  rows,
	})
}

func (s *Server) comparisonChart(c *gin.Context) {
	b, err := report.RenderComparisonSVG(s.cmp.Symbol, s.cmp.Table, report.SVGOptions{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", b)
}

func (s *Server) runChart(c *gin.Context) {
	name := c.Param("name")
	r := s.findRun(name)
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy", "name": name})
		return
	}
	b, err := report.RenderRunSVG(r, s.cmp.Candles.Closes(), report.SVGOptions{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", b)
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"pct": func(x float64) string { return fmtPct(x) },
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Symbol}} Strategy Comparison</title></head>
<body style="background:#0b1220;color:#e5e7eb;font-family:ui-monospace,Menlo,monospace">
<h1>{{.Symbol}} Strategy Comparison</h1>
<p><img src="/chart.svg" alt="comparison chart"></p>
<table>
<tr><th>Strategy</th><th>Total Return</th><th>CAGR</th><th>Max Drawdown</th><th>Trades</th><th>Chart</th></tr>
{{- range .Results}}
<tr><td>{{.Label}}</td><td>{{pct .Stats.ReturnPct}}</td><td>{{pct .Stats.CAGRPct}}</td><td>{{pct .Stats.MaxDrawdownPct}}</td><td>{{len .Trades}}</td><td><a href="/runs/{{.Policy.Slug}}/chart.svg">{{.Name}}</a></td></tr>
{{- end}}
</table>
</body></html>
`))

func (s *Server) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := indexTmpl.Execute(c.Writer, s.cmp); err != nil {
		s.log.Error().Err(err).Msg("render index")
	}
}

func loggerMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// num maps NaN and ±Inf to nil; encoding/json rejects them.
func num(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

func fmtPct(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", x)
}

func statsJSON(st backtest.Stats) gin.H {
	return gin.H{
		"start":               st.Start.Format("2006-01-02"),
		"end":                 st.End.Format("2006-01-02"),
		"duration_days":       int(st.Duration.Hours() / 24),
		"exposure_pct":        num(st.ExposurePct),
		"equity_final":        num(st.EquityFinal),
		"equity_peak":         num(st.EquityPeak),
		"return_pct":          num(st.ReturnPct),
		"buy_hold_return_pct": num(st.BuyHoldReturnPct),
		"return_ann_pct":      num(st.ReturnAnnPct),
		"volatility_ann_pct":  num(st.VolatilityAnnPct),
		"cagr_pct":            num(st.CAGRPct),
		"sharpe":              num(st.Sharpe),
		"sortino":             num(st.Sortino),
		"calmar":              num(st.Calmar),
		"max_drawdown_pct":    num(st.MaxDrawdownPct),
		"avg_drawdown_pct":    num(st.AvgDrawdownPct),
		"max_drawdown_days":   int(st.MaxDrawdownDuration.Hours() / 24),
		"avg_drawdown_days":   int(st.AvgDrawdownDuration.Hours() / 24),
		"trades":              st.Trades,
		"win_rate_pct":        num(st.WinRatePct),
		"best_trade_pct":      num(st.BestTradePct),
		"worst_trade_pct":     num(st.WorstTradePct),
		"avg_trade_pct":       num(st.AvgTradePct),
		"profit_factor":       num(st.ProfitFactor),
	}
}
