package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// ReadCSV reads daily bars in the common "Date,Open,High,Low,Close,Volume"
// layout. A single header row is allowed. Rows with missing or unparsable
// fields are kept as NaN so NewCandleSet drops them.
func ReadCSV(r io.Reader, symbol string) (*CandleSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []Candle
	sawFirst := false
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		if !sawFirst {
			sawFirst = true
			h := strings.ToLower(strings.TrimSpace(row[0]))
			if h == "date" || h == "time" || h == "datetime" {
				continue
			}
		}

		rows = append(rows, parseCandleRow(row))
	}

	return NewCandleSet(symbol, "csv", rows), nil
}

// ReadCSVFile is ReadCSV over a file on disk.
func ReadCSVFile(path, symbol string) (*CandleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cs, err := ReadCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cs.Source = path
	return cs, nil
}

func parseCandleRow(row []string) Candle {
	var c Candle
	if len(row) < 6 {
		return c
	}

	c.Time = parseDate(row[0])
	c.Open = parseField(row[1])
	c.High = parseField(row[2])
	c.Low = parseField(row[3])
	c.Close = parseField(row[4])
	c.Volume = parseField(row[5])
	return c
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// WriteCSV writes the set in the layout ReadCSV accepts.
func WriteCSV(w io.Writer, cs *CandleSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range cs.Candles {
		if err := cw.Write([]string{
			c.Time.Format(dateLayout),
			f(c.Open),
			f(c.High),
			f(c.Low),
			f(c.Close),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and writes the set into it.
func WriteCSVFile(path string, cs *CandleSet) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(fp, cs); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
