package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resultFrom(cash float64, eq ...float64) *Result {
	r := &Result{InitialCash: cash}
	for i, v := range eq {
		r.Equity = append(r.Equity, EquityPoint{Time: day(i), Equity: v})
	}
	return r
}

func TestComputeStats_Drawdown(t *testing.T) {
	r := resultFrom(100, 100, 120, 90, 130, 117, 130)
	s := ComputeStats(r, []float64{10, 13})

	assert.InDelta(t, 30.0, s.ReturnPct, 1e-9)
	assert.InDelta(t, 30.0, s.BuyHoldReturnPct, 1e-9)
	assert.Equal(t, 130.0, s.EquityPeak)
	assert.InDelta(t, -25.0, s.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, -17.5, s.AvgDrawdownPct, 1e-9) // (25 + 10) / 2
	assert.Equal(t, 2*24*time.Hour, s.MaxDrawdownDuration)
	assert.Equal(t, 5*24*time.Hour, s.Duration)
	assert.False(t, math.IsNaN(s.Sharpe))
	assert.InDelta(t, s.ReturnAnnPct/25, s.Calmar, 1e-9)
}

func TestComputeStats_CAGR(t *testing.T) {
	r := &Result{InitialCash: 100}
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Equity = []EquityPoint{
		{Time: start, Equity: 100},
		{Time: start.Add(time.Duration(2*365.25*24) * time.Hour), Equity: 121},
	}

	s := ComputeStats(r, nil)
	assert.InDelta(t, 10.0, s.CAGRPct, 1e-6)
	assert.True(t, math.IsNaN(s.BuyHoldReturnPct))
}

func TestComputeStats_Trades(t *testing.T) {
	r := resultFrom(100, 100, 110)
	r.Trades = []Trade{
		{PNL: 20, ReturnPct: 20},
		{PNL: -10, ReturnPct: -10},
		{PNL: 5, ReturnPct: 5},
	}

	s := ComputeStats(r, nil)
	assert.Equal(t, 3, s.Trades)
	assert.InDelta(t, 200.0/3, s.WinRatePct, 1e-9)
	assert.Equal(t, 20.0, s.BestTradePct)
	assert.Equal(t, -10.0, s.WorstTradePct)
	assert.InDelta(t, 2.5, s.ProfitFactor, 1e-9)

	geo := (math.Cbrt(1.2*0.9*1.05) - 1) * 100
	assert.InDelta(t, geo, s.AvgTradePct, 1e-9)
}

func TestComputeStats_Empty(t *testing.T) {
	s := ComputeStats(&Result{InitialCash: 100}, nil)
	assert.Equal(t, 100.0, s.EquityFinal)
	assert.True(t, math.IsNaN(s.ReturnPct))
	assert.True(t, math.IsNaN(s.Sharpe))
	assert.Equal(t, 0, s.Trades)
}
