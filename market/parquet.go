package market

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

// barRow is the on-disk Parquet layout for a candle.
type barRow struct {
	Timestamp int64   `parquet:"t"` // unix milliseconds, UTC
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
}

// WriteParquetFile stores the set as a Parquet file.
func WriteParquetFile(path string, cs *CandleSet) error {
	rows := make([]barRow, len(cs.Candles))
	for i, c := range cs.Candles {
		rows[i] = barRow{
			Timestamp: c.Time.UTC().UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("parquet: write %s: %w", path, err)
	}
	return nil
}

// ReadParquetFile loads a set written by WriteParquetFile.
func ReadParquetFile(path, symbol string) (*CandleSet, error) {
	rows, err := parquet.ReadFile[barRow](path)
	if err != nil {
		return nil, fmt.Errorf("parquet: read %s: %w", path, err)
	}

	candles := make([]Candle, len(rows))
	for i, r := range rows {
		candles[i] = Candle{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return NewCandleSet(symbol, path, candles), nil
}
