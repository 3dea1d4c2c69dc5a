package market

import (
	"fmt"
	"io"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// CandleSet is an ordered, time-ascending series of daily candles for a
// single symbol. Timestamps are unique and strictly increasing.
type CandleSet struct {
	Symbol  string
	Source  string
	Candles []Candle

	dropped int
}

// NewCandleSet builds a CandleSet from raw rows. Incomplete rows are
// dropped, the remainder is sorted by time and duplicate timestamps keep
// the first row seen.
func NewCandleSet(symbol, source string, rows []Candle) *CandleSet {
	cs := &CandleSet{
		Symbol: symbol,
		Source: source,
	}

	kept := make([]Candle, 0, len(rows))
	for _, c := range rows {
		if !c.Complete() {
			cs.dropped++
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Time.Before(kept[j].Time) })

	out := kept[:0]
	for _, c := range kept {
		if len(out) > 0 && !c.Time.After(out[len(out)-1].Time) {
			// keep-first policy
			cs.dropped++
			continue
		}
		out = append(out, c)
	}
	cs.Candles = out
	return cs
}

func (cs *CandleSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Candles)
}

// Dropped returns how many input rows were discarded while building the set.
func (cs *CandleSet) Dropped() int { return cs.dropped }

func (cs *CandleSet) Time(idx int) time.Time {
	return cs.Candles[idx].Time
}

// Closes returns a copy of the close prices.
func (cs *CandleSet) Closes() []float64 {
	out := make([]float64, len(cs.Candles))
	for i, c := range cs.Candles {
		out[i] = c.Close
	}
	return out
}

// Times returns a copy of the candle timestamps.
func (cs *CandleSet) Times() []time.Time {
	out := make([]time.Time, len(cs.Candles))
	for i, c := range cs.Candles {
		out[i] = c.Time
	}
	return out
}

func (cs *CandleSet) Start() time.Time {
	if cs.Len() == 0 {
		return time.Time{}
	}
	return cs.Candles[0].Time
}

func (cs *CandleSet) End() time.Time {
	if cs.Len() == 0 {
		return time.Time{}
	}
	return cs.Candles[len(cs.Candles)-1].Time
}

// Validate checks the ordering invariant. Sets built with NewCandleSet
// always pass; sets assembled by hand (tests, decoders) may not.
func (cs *CandleSet) Validate() error {
	for i := 1; i < len(cs.Candles); i++ {
		if !cs.Candles[i].Time.After(cs.Candles[i-1].Time) {
			return fmt.Errorf("candle %d (%s) is not after candle %d (%s)",
				i, cs.Candles[i].Time.Format(dateLayout),
				i-1, cs.Candles[i-1].Time.Format(dateLayout))
		}
	}
	return nil
}

// Since returns a new set holding only candles at or after t.
func (cs *CandleSet) Since(t time.Time) *CandleSet {
	idx := sort.Search(len(cs.Candles), func(i int) bool { return !cs.Candles[i].Time.Before(t) })
	return &CandleSet{
		Symbol:  cs.Symbol,
		Source:  cs.Source,
		Candles: cs.Candles[idx:],
		dropped: cs.dropped,
	}
}

func (cs *CandleSet) PrintStats(w io.Writer) {
	fmt.Fprintln(w, "---- CandleSet Stats ----")
	fmt.Fprintf(w, "Symbol:  %s (%s)\n", cs.Symbol, cs.Source)
	if cs.Len() > 0 {
		fmt.Fprintf(w, "Range:   %s → %s\n", cs.Start().Format(dateLayout), cs.End().Format(dateLayout))
	}
	fmt.Fprintf(w, "Bars:    %d\n", cs.Len())
	fmt.Fprintf(w, "Dropped: %d\n", cs.dropped)
	fmt.Fprintln(w, "--------------------------")
}
