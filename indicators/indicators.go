// Package indicators provides technical analysis indicators for backtests.
package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// Series is an indicator line aligned 1:1 with the values it was derived
// from. Points inside the warm-up window are NaN.
type Series []float64

// Defined reports whether the series has a usable value at i.
func (s Series) Defined(i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	return !math.IsNaN(s[i]) && !math.IsInf(s[i], 0)
}

// At returns the value at i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if !s.Defined(i) {
		return math.NaN(), false
	}
	return s[i], true
}

// FirstDefined returns the index of the first defined value, or -1.
func (s Series) FirstDefined() int {
	for i := range s {
		if s.Defined(i) {
			return i
		}
	}
	return -1
}

// Raw wraps a price series so it can be compared against indicator lines.
func Raw(values []float64) Series {
	out := make(Series, len(values))
	copy(out, values)
	return out
}

// EMA computes the exponential moving average of values over length
// points. The first length-1 points are NaN; the value at length-1 is the
// simple average of the first length points, the usual TA-Lib seed.
// If there are fewer than length values the whole series is NaN.
func EMA(values []float64, length int) Series {
	out := make(Series, len(values))
	if length <= 0 || len(values) < length {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	ema := talib.Ema(values, length)
	copy(out, ema)
	for i := 0; i < length-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// EMAName returns a stable identifier like "EMA(50)".
func EMAName(length int) string {
	return fmt.Sprintf("EMA(%d)", length)
}
