package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/backtester/backtest"
)

// TableSaver writes the combined equity table to a file.
type TableSaver interface {
	Save(t backtest.Table, path string) error
	Extension() string
}

// NewTableSaver returns the saver for format (csv, parquet), or nil if
// the format is not supported.
func NewTableSaver(format string) TableSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// CSVSaver writes a Date column followed by one column per curve.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(t backtest.Table, path string) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTableCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteTableCSV(w io.Writer, t backtest.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Date"}, t.Columns...)); err != nil {
		return err
	}
	for r, row := range t.Values {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, t.Dates[r].Format("2006-01-02"))
		for _, v := range row {
			rec = append(rec, floatStr(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// equityRow is the long form of one table cell.
type equityRow struct {
	Date   int64   `parquet:"date"` // unix ms
	Series string  `parquet:"series,dict"`
	Equity float64 `parquet:"equity"`
}

// ParquetSaver writes the table in long form: one row per (date, series).
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(t backtest.Table, path string) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	rows := make([]equityRow, 0, t.Len()*len(t.Columns))
	for r, vals := range t.Values {
		ms := t.Dates[r].UnixMilli()
		for c, v := range vals {
			rows = append(rows, equityRow{Date: ms, Series: t.Columns[c], Equity: v})
		}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("parquet: %s: %w", path, err)
	}
	return nil
}

func mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
