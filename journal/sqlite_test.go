package journal

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func day(n int) time.Time {
	return time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// sampleResult buys on bar 3 and sells on bar 5 with Close/EMA(2).
func sampleResult(t *testing.T) *backtest.Result {
	t.Helper()
	closes := []float64{10, 10, 10, 12, 12, 8, 8, 8, 9, 11}
	rows := make([]market.Candle, len(closes))
	for i, c := range closes {
		rows[i] = market.Candle{Time: day(i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	e, err := backtest.NewEngine(market.NewCandleSet("SPY", "test", rows), 1000, 0.002)
	require.NoError(t, err)
	r, err := e.Run(strategies.NewPriceEmaCross(2))
	require.NoError(t, err)
	require.NotEmpty(t, r.Trades)
	return r
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('runs','trades','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["runs"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordResultRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)
	r := sampleResult(t)

	rec, err := j.RecordResult(ctx, r, "csv:spy.csv")
	require.NoError(t, err)
	require.NotEmpty(t, rec.RunID)

	got, err := j.GetRun(ctx, rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, "SPY", got.Symbol)
	assert.Equal(t, "PRICE_EMA_CROSS(2)", got.Strategy)
	assert.JSONEq(t, `{"kind":"price_ema_cross","period":2}`, string(got.Params))
	assert.Equal(t, "csv:spy.csv", got.Dataset)
	assert.True(t, got.Start.Equal(day(0)))
	assert.True(t, got.End.Equal(day(9)))
	assert.Equal(t, 10, got.Bars)
	assert.InDelta(t, r.FinalEquity(), got.EndEquity, 1e-9)
	assert.InDelta(t, r.Stats.ReturnPct, got.ReturnPct, 1e-9)
	assert.Equal(t, len(r.Trades), got.Trades)
	assert.Equal(t, got.Trades, got.Wins+got.Losses)

	trades, err := j.ListTradesByRunID(ctx, rec.RunID)
	require.NoError(t, err)
	require.Len(t, trades, len(r.Trades))
	assert.Equal(t, r.Trades[0].ID, trades[0].TradeID)
	assert.Equal(t, r.Trades[0].Shares, trades[0].Shares)
	assert.True(t, trades[0].OpenTime.Equal(day(3)))

	eq, err := j.ListEquityByRunID(ctx, rec.RunID)
	require.NoError(t, err)
	require.Len(t, eq, len(r.Equity))
	assert.InDelta(t, r.Equity[4].Equity, eq[4].Equity, 1e-9)
}

func TestSQLiteNaNRoundTripsAsNaN(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	rec := RunRecord{
		RunID:    "R1",
		Created:  day(0),
		Symbol:   "SPY",
		Strategy: "EMA_CROSS(50,200)",
		Params:   []byte(`{}`),
		Sharpe:   math.NaN(),
		Calmar:   math.Inf(1),
		CAGRPct:  3.5,
	}
	require.NoError(t, j.RecordRun(ctx, rec))

	got, err := j.GetRun(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.Sharpe))
	assert.True(t, math.IsNaN(got.Calmar))
	assert.Equal(t, 3.5, got.CAGRPct)
}

func TestSQLiteListRunsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)
	r := sampleResult(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := j.RecordResult(ctx, r, "")
		require.NoError(t, err)
		ids = append(ids, rec.RunID)
	}

	runs, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[0], runs[2].RunID)

	runs, err = j.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// The same result recorded again keeps its trades under each run.
	for _, id := range ids {
		trades, err := j.ListTradesByRunID(ctx, id)
		require.NoError(t, err)
		require.Len(t, trades, len(r.Trades))
		assert.Equal(t, r.Trades[0].ID, trades[0].TradeID)
	}
}

func TestSQLiteNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	_, err := j.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = j.SetChartPath(ctx, "missing", "x.svg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportBacktestOrg(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	rec, err := j.RecordResult(ctx, sampleResult(t), "yahoo")
	require.NoError(t, err)
	require.NoError(t, j.SetChartPath(ctx, rec.RunID, "out/SPY_price_ema_cross_2.svg"))

	org, err := j.ExportBacktestOrg(ctx, rec.RunID)
	require.NoError(t, err)

	assert.Contains(t, org, "* BACKTEST: PRICE_EMA_CROSS(2) SPY")
	assert.Contains(t, org, ":RUN_ID:      "+rec.RunID)
	assert.Contains(t, org, ":DATASET:     yahoo")
	assert.Contains(t, org, "[[file:out/SPY_price_ema_cross_2.svg]]")
	assert.Contains(t, org, "*** Trade: SPY (")
	assert.Contains(t, org, "**** Review")
}

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	tr := TradeRecord{
		TradeID:    "01HXYZABCDEF",
		RunID:      "R1",
		Symbol:     "SPY",
		Shares:     83,
		EntryPrice: 120,
		ExitPrice:  130.5,
		OpenTime:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		CloseTime:  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		RealizedPL: 871.5,
		Reason:     "EMA crossed above close",
	}

	out := FormatTradeOrg(tr)
	assert.Contains(t, out, "*** Trade: SPY (01HXYZAB)")
	assert.Contains(t, out, ":SHARES: 83")
	assert.Contains(t, out, ":EXIT_PRICE: 130.50")
	assert.Contains(t, out, ":CLOSE_TIME: 2024-04-01T00:00:00Z")

	tr.Open = true
	assert.Contains(t, FormatTradeOrg(tr), ":CLOSE_TIME: open")
	assert.Equal(t, "short", shortID("short"))
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "export")

	tp, ep, err := ExportCSV(dir,
		[]TradeRecord{{TradeID: "T1", RunID: "R1", Symbol: "SPY", Shares: 2, EntryPrice: 10, ExitPrice: 11, OpenTime: day(0), CloseTime: day(1), RealizedPL: 2}},
		[]EquityRecord{{RunID: "R1", Time: day(0), Equity: 100}, {RunID: "R1", Time: day(1), Equity: 102.5}},
	)
	require.NoError(t, err)

	b, err := os.ReadFile(tp)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "T1,R1,SPY,2,10,11,2022-01-03T00:00:00Z"))

	b, err = os.ReadFile(ep)
	require.NoError(t, err)
	assert.Equal(t, "time,equity\n2022-01-03T00:00:00Z,100\n2022-01-04T00:00:00Z,102.5\n", string(b))
}
