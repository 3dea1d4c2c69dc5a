// Package journal persists backtest runs, their trades and equity curves
// and renders them as Org-mode reports.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/pkg/id"
)

// RunRecord mirrors the runs table. Ratio fields are NaN when the run
// left them undefined.
type RunRecord struct {
	RunID    string
	Created  time.Time
	Symbol   string
	Strategy string
	Params   []byte // strategy policy as JSON
	Dataset  string

	Start time.Time
	End   time.Time
	Bars  int

	InitialCash float64
	Commission  float64
	EndEquity   float64

	ReturnPct    float64
	BuyHoldPct   float64
	CAGRPct      float64
	MaxDDPct     float64
	Sharpe       float64
	Sortino      float64
	Calmar       float64
	ExposurePct  float64
	WinRate      float64
	ProfitFactor float64

	Trades int
	Wins   int
	Losses int

	ChartPath string
}

type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	Shares     int64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	ReturnPct  float64
	Open       bool
	Reason     string
}

type EquityRecord struct {
	RunID  string
	Time   time.Time
	Equity float64
}

type Journal interface {
	RecordResult(ctx context.Context, r *backtest.Result, dataset string) (RunRecord, error)
	SetChartPath(ctx context.Context, runID, path string) error
	Close() error
}

// NewRunRecord flattens a result into a run row with a fresh run ID.
func NewRunRecord(r *backtest.Result, dataset string) RunRecord {
	s := r.Stats
	params, _ := json.Marshal(r.Policy)

	rec := RunRecord{
		RunID:        id.New(),
		Created:      time.Now().UTC(),
		Symbol:       r.Symbol,
		Strategy:     r.Name(),
		Params:       params,
		Dataset:      dataset,
		Start:        s.Start,
		End:          s.End,
		Bars:         r.Bars,
		InitialCash:  r.InitialCash,
		Commission:   r.Commission,
		EndEquity:    r.FinalEquity(),
		ReturnPct:    s.ReturnPct,
		BuyHoldPct:   s.BuyHoldReturnPct,
		CAGRPct:      s.CAGRPct,
		MaxDDPct:     s.MaxDrawdownPct,
		Sharpe:       s.Sharpe,
		Sortino:      s.Sortino,
		Calmar:       s.Calmar,
		ExposurePct:  s.ExposurePct,
		WinRate:      s.WinRatePct,
		ProfitFactor: s.ProfitFactor,
		Trades:       len(r.Trades),
	}
	for _, t := range r.Trades {
		if t.PNL > 0 {
			rec.Wins++
		} else {
			rec.Losses++
		}
	}
	return rec
}

func NewTradeRecords(runID string, r *backtest.Result) []TradeRecord {
	out := make([]TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = TradeRecord{
			TradeID:    t.ID,
			RunID:      runID,
			Symbol:     r.Symbol,
			Shares:     t.Shares,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			OpenTime:   t.EntryTime,
			CloseTime:  t.ExitTime,
			RealizedPL: t.PNL,
			ReturnPct:  t.ReturnPct,
			Open:       t.Open,
			Reason:     t.Reason,
		}
	}
	return out
}
