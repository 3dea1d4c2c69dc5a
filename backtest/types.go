package backtest

import (
	"time"

	"github.com/rustyeddy/backtester/strategies"
)

// Position is the single long position a run may hold.
type Position struct {
	Open       bool
	Shares     int64
	EntryPrice float64
	EntryCost  float64 // cash debited, commission included
	EntryIdx   int
	EntryTime  time.Time
}

// Trade is one round trip. A trade still open when the data ends has
// Open set and is marked at the last close.
type Trade struct {
	ID         string
	EntryIdx   int
	ExitIdx    int
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Shares     int64
	PNL        float64 // net of commission
	ReturnPct  float64
	Open       bool
	Reason     string
}

type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Result is everything a single strategy run produced. It is not
// modified after Run returns.
type Result struct {
	Policy      strategies.Policy
	Symbol      string
	InitialCash float64
	Commission  float64

	Equity []EquityPoint
	Trades []Trade
	Lines  strategies.Lines
	Stats  Stats

	// Bars is the number of candles replayed, InPosition how many of
	// them ended with a position open.
	Bars       int
	InPosition int
	Elapsed    time.Duration
}

func (r *Result) Name() string  { return r.Policy.Name() }
func (r *Result) Label() string { return r.Policy.Label() }

// FinalEquity is the last point of the equity curve, or the initial cash
// for an empty run.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.InitialCash
	}
	return r.Equity[len(r.Equity)-1].Equity
}

// EquityValues returns the curve without timestamps.
func (r *Result) EquityValues() []float64 {
	out := make([]float64, len(r.Equity))
	for i, p := range r.Equity {
		out[i] = p.Equity
	}
	return out
}
