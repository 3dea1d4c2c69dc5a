package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategies"
)

// BenchmarkColumn is the column name of the buy and hold curve.
const BenchmarkColumn = "Benchmark"

// CompareOptions is the immutable input of a comparison.
type CompareOptions struct {
	InitialCash float64
	Commission  float64
	Strategies  []strategies.Policy
	Log         zerolog.Logger
}

// Comparison is the outcome of running every strategy over one candle set.
type Comparison struct {
	Symbol    string
	Candles   *market.CandleSet
	Results   []*Result
	Benchmark []EquityPoint
	Table     Table
}

// Compare runs each strategy in order over cs with the same cash and
// commission, builds the buy and hold benchmark and assembles the
// combined table.
func Compare(cs *market.CandleSet, opts CompareOptions) (*Comparison, error) {
	if cs.Len() == 0 {
		return nil, ErrNoData
	}
	if len(opts.Strategies) == 0 {
		return nil, fmt.Errorf("backtest: no strategies to compare")
	}

	eng, err := NewEngine(cs, opts.InitialCash, opts.Commission)
	if err != nil {
		return nil, err
	}
	eng.Log = opts.Log

	cmp := &Comparison{
		Symbol:  cs.Symbol,
		Candles: cs,
	}

	names := columnNames(opts.Strategies)
	curves := make([]Curve, 0, len(opts.Strategies)+1)
	for i, p := range opts.Strategies {
		r, err := eng.Run(p)
		if err != nil {
			return nil, fmt.Errorf("backtest: %s: %w", p.Name(), err)
		}
		cmp.Results = append(cmp.Results, r)
		curves = append(curves, Curve{Name: names[i], Points: r.Equity})
	}

	cmp.Benchmark = Benchmark(cs, opts.InitialCash)
	curves = append(curves, Curve{Name: BenchmarkColumn, Points: cmp.Benchmark})
	cmp.Table = NewTable(curves...)
	return cmp, nil
}

// columnNames picks a table column per policy: the display label when it
// is unique among policies, otherwise the parameterized name.
func columnNames(policies []strategies.Policy) []string {
	labels := make(map[string]int, len(policies))
	for _, p := range policies {
		labels[p.Label()]++
	}
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Label()
		if labels[p.Label()] > 1 {
			names[i] = p.Name()
		}
	}
	return names
}

// Benchmark is the passive curve initialCash * close[t] / close[0].
func Benchmark(cs *market.CandleSet, initialCash float64) []EquityPoint {
	if cs.Len() == 0 {
		return nil
	}
	first := cs.Candles[0].Close
	out := make([]EquityPoint, cs.Len())
	for i, c := range cs.Candles {
		v := initialCash
		if i > 0 {
			v = initialCash * c.Close / first
		}
		out[i] = EquityPoint{Time: c.Time, Equity: v}
	}
	return out
}

// Curve is a named equity series, one table column.
type Curve struct {
	Name   string
	Points []EquityPoint
}

// Table is the combined equity table: one row per date, one column per
// curve. Values[row][col].
type Table struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// NewTable aligns curves on their shared trailing window. The row count
// is the length of the shortest curve and the dates are taken from it.
func NewTable(curves ...Curve) Table {
	t := Table{Columns: make([]string, len(curves))}
	if len(curves) == 0 {
		return t
	}

	shortest := 0
	for i, c := range curves {
		t.Columns[i] = c.Name
		if len(c.Points) < len(curves[shortest].Points) {
			shortest = i
		}
	}
	n := len(curves[shortest].Points)

	t.Dates = make([]time.Time, n)
	for r, p := range curves[shortest].Points {
		t.Dates[r] = p.Time
	}

	t.Values = make([][]float64, n)
	for r := 0; r < n; r++ {
		row := make([]float64, len(curves))
		for c, curve := range curves {
			off := len(curve.Points) - n
			row[c] = curve.Points[off+r].Equity
		}
		t.Values[r] = row
	}
	return t
}

func (t Table) Len() int { return len(t.Dates) }

// Column returns the values of the named column, or nil.
func (t Table) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Values))
	for r, row := range t.Values {
		out[r] = row[idx]
	}
	return out
}
