package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/strategies"
)

func TestBenchmark(t *testing.T) {
	cs := candles(50, 55, 45, 100)
	b := Benchmark(cs, 10_000)

	require.Len(t, b, 4)
	assert.Equal(t, 10_000.0, b[0].Equity)
	for i, c := range cs.Candles {
		assert.InDelta(t, 10_000*c.Close/50, b[i].Equity, 1e-9)
		assert.Equal(t, c.Time, b[i].Time)
	}

	assert.Nil(t, Benchmark(nil, 10_000))
}

func TestNewTable_TrailingWindow(t *testing.T) {
	mk := func(vals ...float64) []EquityPoint {
		out := make([]EquityPoint, len(vals))
		for i, v := range vals {
			out[i] = EquityPoint{Time: day(10 - len(vals) + i), Equity: v}
		}
		return out
	}

	tbl := NewTable(
		Curve{Name: "A", Points: mk(1, 2, 3, 4, 5)},
		Curve{Name: "B", Points: mk(30, 40, 50)},
		Curve{Name: "C", Points: mk(200, 300, 400, 500)},
	)

	assert.Equal(t, []string{"A", "B", "C"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []float64{3, 4, 5}, tbl.Column("A"))
	assert.Equal(t, []float64{30, 40, 50}, tbl.Column("B"))
	assert.Equal(t, []float64{300, 400, 500}, tbl.Column("C"))
	assert.Equal(t, day(7), tbl.Dates[0])
	assert.Nil(t, tbl.Column("missing"))

	assert.Zero(t, NewTable().Len())
}

func TestCompare(t *testing.T) {
	cs := generate(600, func(i int) float64 { return 100 + 20*math.Sin(float64(i)/40) + float64(i)/10 })

	cmp, err := Compare(cs, CompareOptions{
		InitialCash: 10_000,
		Commission:  0.002,
		Strategies:  strategies.Defaults(),
	})
	require.NoError(t, err)

	require.Len(t, cmp.Results, 2)
	assert.Equal(t, "TEST", cmp.Symbol)
	assert.Equal(t, []string{"EMA Crossover", "Price/EMA", BenchmarkColumn}, cmp.Table.Columns)

	shortest := len(cmp.Benchmark)
	for _, r := range cmp.Results {
		shortest = min(shortest, len(r.Equity))
	}
	assert.Equal(t, shortest, cmp.Table.Len())
	assert.Equal(t, 10_000.0, cmp.Table.Column(BenchmarkColumn)[0])

	for _, r := range cmp.Results {
		assert.Equal(t, 10_000.0, r.InitialCash)
		assert.Equal(t, 0.002, r.Commission)
	}
}

func TestCompare_SameKindColumnsAreDistinct(t *testing.T) {
	cs := generate(400, func(i int) float64 { return 100 + 20*math.Sin(float64(i)/25) + float64(i)/10 })

	cmp, err := Compare(cs, CompareOptions{
		InitialCash: 10_000,
		Commission:  0.002,
		Strategies: []strategies.Policy{
			strategies.NewEmaCross(5, 20),
			strategies.NewEmaCross(10, 50),
			strategies.NewPriceEmaCross(30),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"EMA_CROSS(5,20)", "EMA_CROSS(10,50)", "Price/EMA", BenchmarkColumn}, cmp.Table.Columns)

	require.Len(t, cmp.Results, 3)
	for i, name := range cmp.Table.Columns[:2] {
		col := cmp.Table.Column(name)
		require.NotEmpty(t, col)
		eq := cmp.Results[i].Equity
		assert.Equal(t, eq[len(eq)-1].Equity, col[len(col)-1], name)
	}
}

func TestCompare_Errors(t *testing.T) {
	_, err := Compare(nil, CompareOptions{InitialCash: 1, Strategies: strategies.Defaults()})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Compare(candles(1, 2), CompareOptions{InitialCash: 1})
	assert.ErrorContains(t, err, "no strategies")

	_, err = Compare(candles(1, 2), CompareOptions{
		InitialCash: 1,
		Strategies:  []strategies.Policy{{Kind: "rsi"}},
	})
	assert.ErrorContains(t, err, "rsi")
}
