// Package data provides the market data sources a backtest can load bars from.
package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// ErrDataUnavailable is returned when a source yields no usable bars,
// e.g. an unknown symbol or a failed download. It is fatal for a run.
var ErrDataUnavailable = errors.New("data unavailable")

// Source fetches daily OHLCV history for a symbol starting at start.
// Implementations drop incomplete rows and return ErrDataUnavailable
// (possibly wrapped) rather than an empty set.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, start time.Time) (*market.CandleSet, error)
}

// Options selects and configures a Source.
type Options struct {
	Kind string    // yahoo | csv | parquet
	Path string    // file path for csv/parquet
	End  time.Time // optional, zero means "up to today"
}

// New returns the source named by opts.Kind.
func New(opts Options) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "yahoo":
		return &Yahoo{End: opts.End}, nil
	case "csv":
		if opts.Path == "" {
			return nil, fmt.Errorf("data: csv source requires a path")
		}
		return &File{Path: opts.Path, Format: FormatCSV, End: opts.End}, nil
	case "parquet":
		if opts.Path == "" {
			return nil, fmt.Errorf("data: parquet source requires a path")
		}
		return &File{Path: opts.Path, Format: FormatParquet, End: opts.End}, nil
	default:
		return nil, fmt.Errorf("data: unknown source %q (supported: yahoo, csv, parquet)", opts.Kind)
	}
}

// window trims cs to [start, end] and turns an empty result into
// ErrDataUnavailable.
func window(cs *market.CandleSet, symbol string, start, end time.Time) (*market.CandleSet, error) {
	if cs == nil {
		return nil, fmt.Errorf("data: %s: %w", symbol, ErrDataUnavailable)
	}
	if !start.IsZero() {
		cs = cs.Since(start)
	}
	if !end.IsZero() {
		n := 0
		for n < len(cs.Candles) && !cs.Candles[n].Time.After(end) {
			n++
		}
		cs.Candles = cs.Candles[:n]
	}
	if cs.Len() == 0 {
		return nil, fmt.Errorf("data: %s: no bars since %s: %w", symbol, start.Format("2006-01-02"), ErrDataUnavailable)
	}
	return cs, nil
}
