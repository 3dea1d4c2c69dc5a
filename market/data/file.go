package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rustyeddy/backtester/market"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// File loads bars previously saved with `backtester data fetch` or any
// Date,Open,High,Low,Close,Volume CSV.
type File struct {
	Path   string
	Format Format
	End    time.Time
}

func (f *File) Name() string { return string(f.Format) + ":" + f.Path }

func (f *File) Fetch(ctx context.Context, symbol string, start time.Time) (*market.CandleSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		cs  *market.CandleSet
		err error
	)
	switch f.Format {
	case FormatCSV:
		cs, err = market.ReadCSVFile(f.Path, symbol)
	case FormatParquet:
		cs, err = market.ReadParquetFile(f.Path, symbol)
	default:
		return nil, fmt.Errorf("data: unsupported file format %q", f.Format)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("data: %s: %v: %w", f.Path, err, ErrDataUnavailable)
		}
		return nil, fmt.Errorf("data: %w", err)
	}

	return window(cs, symbol, start, f.End)
}

// Save writes cs to path in the given format.
func Save(path string, format Format, cs *market.CandleSet) error {
	switch format {
	case FormatCSV:
		return market.WriteCSVFile(path, cs)
	case FormatParquet:
		return market.WriteParquetFile(path, cs)
	default:
		return fmt.Errorf("data: unsupported file format %q", format)
	}
}
