package market

import (
	"math"
	"time"
)

// Candle represents one OHLCV bar.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	time.Time
	Volume float64
}

// Complete reports whether every price field is present and usable.
// Volume may legitimately be zero (indices, some ETFs on half days).
func (c Candle) Complete() bool {
	if c.Time.IsZero() {
		return false
	}
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return !math.IsNaN(c.Volume) && c.Volume >= 0
}
