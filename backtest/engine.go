// Package backtest replays a candle history through a strategy policy and
// keeps the cash, position and equity bookkeeping for it.
//
// The engine is intentionally simple:
//   - long only, one position at a time
//   - market fills at the bar close, whole shares only
//   - a flat commission rate charged on both entry and exit
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/pkg/id"
	"github.com/rustyeddy/backtester/strategies"
)

var ErrNoData = errors.New("backtest: no candles")

var one = decimal.NewFromInt(1)

// Engine holds the run configuration. Every call to Run starts from a
// fresh book, so one engine can replay several policies over the same data.
type Engine struct {
	CS          *market.CandleSet
	InitialCash float64
	Commission  float64
	Log         zerolog.Logger
}

func NewEngine(cs *market.CandleSet, initialCash, commission float64) (*Engine, error) {
	if cs.Len() == 0 {
		return nil, ErrNoData
	}
	if math.IsNaN(initialCash) || initialCash <= 0 {
		return nil, fmt.Errorf("backtest: initial cash must be positive, got %v", initialCash)
	}
	if math.IsNaN(commission) || commission < 0 || commission >= 1 {
		return nil, fmt.Errorf("backtest: commission must be in [0, 1), got %v", commission)
	}
	return &Engine{
		CS:          cs,
		InitialCash: initialCash,
		Commission:  commission,
		Log:         zerolog.Nop(),
	}, nil
}

// book is the mutable state of one run.
type book struct {
	cash   decimal.Decimal
	pos    Position
	trades []Trade
}

// Run replays every candle through p and returns the run's result.
func (e *Engine) Run(p strategies.Policy) (*Result, error) {
	if e.CS.Len() == 0 {
		return nil, ErrNoData
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	started := time.Now()
	log := e.Log.With().Str("strategy", p.Name()).Logger()

	closes := e.CS.Closes()
	if len(closes) < p.Lookback() {
		log.Warn().
			Int("bars", len(closes)).
			Int("lookback", p.Lookback()).
			Msg("insufficient history, strategy will not trade")
	}

	lines := p.Lines(closes)
	b := &book{cash: decimal.NewFromFloat(e.InitialCash)}
	equity := make([]EquityPoint, 0, len(closes))
	inPosition := 0

	for i, c := range e.CS.Candles {
		d := p.Decide(lines, i, b.pos.Open)
		switch d.Signal {
		case strategies.Buy:
			if b.pos.Open {
				return nil, fmt.Errorf("backtest: %s: buy at bar %d while a position is open", p.Name(), i)
			}
			if e.open(b, i, c) {
				log.Debug().
					Time("time", c.Time).
					Float64("price", c.Close).
					Int64("shares", b.pos.Shares).
					Str("reason", d.Reason).
					Msg("open")
			} else {
				log.Debug().Time("time", c.Time).Msg("buy skipped, cash below one share")
			}
		case strategies.Sell:
			if !b.pos.Open {
				return nil, fmt.Errorf("backtest: %s: sell at bar %d with no open position", p.Name(), i)
			}
			t := e.close(b, i, c, d.Reason)
			log.Debug().
				Time("time", c.Time).
				Float64("price", c.Close).
				Float64("pnl", t.PNL).
				Str("reason", d.Reason).
				Msg("close")
		}

		if b.pos.Open {
			inPosition++
		}
		equity = append(equity, EquityPoint{Time: c.Time, Equity: e.mark(b, c.Close)})
	}

	if b.pos.Open {
		last := len(e.CS.Candles) - 1
		b.trades = append(b.trades, e.markOpen(b, last, e.CS.Candles[last]))
	}

	r := &Result{
		Policy:      p,
		Symbol:      e.CS.Symbol,
		InitialCash: e.InitialCash,
		Commission:  e.Commission,
		Equity:      equity,
		Trades:      b.trades,
		Lines:       lines,
		Bars:        len(closes),
		InPosition:  inPosition,
	}
	r.Stats = ComputeStats(r, closes)
	r.Elapsed = time.Since(started)

	log.Info().
		Int("trades", len(r.Trades)).
		Float64("final_equity", r.FinalEquity()).
		Dur("elapsed", r.Elapsed).
		Msg("run complete")
	return r, nil
}

// open buys as many whole shares as the cash covers including commission.
// It reports false when not even one share is affordable.
func (e *Engine) open(b *book, idx int, c market.Candle) bool {
	px := decimal.NewFromFloat(c.Close)
	unit := px.Mul(one.Add(decimal.NewFromFloat(e.Commission)))
	if !unit.IsPositive() {
		return false
	}

	shares := b.cash.Div(unit).Floor()
	cost := shares.Mul(unit)
	for shares.IsPositive() && cost.GreaterThan(b.cash) {
		shares = shares.Sub(one)
		cost = shares.Mul(unit)
	}
	if !shares.IsPositive() {
		return false
	}

	b.cash = b.cash.Sub(cost)
	b.pos = Position{
		Open:       true,
		Shares:     shares.IntPart(),
		EntryPrice: c.Close,
		EntryCost:  cost.InexactFloat64(),
		EntryIdx:   idx,
		EntryTime:  c.Time,
	}
	return true
}

func (e *Engine) close(b *book, idx int, c market.Candle, reason string) Trade {
	p := b.pos
	proceeds := decimal.NewFromInt(p.Shares).
		Mul(decimal.NewFromFloat(c.Close)).
		Mul(one.Sub(decimal.NewFromFloat(e.Commission)))

	b.cash = b.cash.Add(proceeds)
	b.pos = Position{}

	t := newTrade(p, idx, c, proceeds.InexactFloat64(), reason)
	b.trades = append(b.trades, t)
	return t
}

// markOpen values a position left open at the end at the last close,
// without the exit commission, matching the equity curve.
func (e *Engine) markOpen(b *book, idx int, c market.Candle) Trade {
	p := b.pos
	value := decimal.NewFromInt(p.Shares).Mul(decimal.NewFromFloat(c.Close))
	t := newTrade(p, idx, c, value.InexactFloat64(), "open at end of data")
	t.Open = true
	return t
}

func (e *Engine) mark(b *book, price float64) float64 {
	eq := b.cash
	if b.pos.Open {
		eq = eq.Add(decimal.NewFromInt(b.pos.Shares).Mul(decimal.NewFromFloat(price)))
	}
	return eq.InexactFloat64()
}

func newTrade(p Position, exitIdx int, c market.Candle, proceeds float64, reason string) Trade {
	t := Trade{
		ID:         id.New(),
		EntryIdx:   p.EntryIdx,
		ExitIdx:    exitIdx,
		EntryTime:  p.EntryTime,
		ExitTime:   c.Time,
		EntryPrice: p.EntryPrice,
		ExitPrice:  c.Close,
		Shares:     p.Shares,
		PNL:        proceeds - p.EntryCost,
		Reason:     reason,
	}
	if p.EntryCost > 0 {
		t.ReturnPct = (proceeds/p.EntryCost - 1) * 100
	}
	return t
}
