package strategies

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/backtester/indicators"
)

func TestCrossover(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name string
		a, b indicators.Series
		i    int
		want bool
	}{
		{name: "below then above", a: indicators.Series{1, 3}, b: indicators.Series{2, 2}, i: 1, want: true},
		{name: "equal then above", a: indicators.Series{2, 3}, b: indicators.Series{2, 2}, i: 1, want: true},
		{name: "below then equal", a: indicators.Series{1, 2}, b: indicators.Series{2, 2}, i: 1, want: false},
		{name: "already above", a: indicators.Series{3, 4}, b: indicators.Series{2, 2}, i: 1, want: false},
		{name: "crossing down", a: indicators.Series{3, 1}, b: indicators.Series{2, 2}, i: 1, want: false},
		{name: "index zero", a: indicators.Series{3}, b: indicators.Series{2}, i: 0, want: false},
		{name: "prior a undefined", a: indicators.Series{nan, 3}, b: indicators.Series{2, 2}, i: 1, want: false},
		{name: "prior b undefined", a: indicators.Series{1, 3}, b: indicators.Series{nan, 2}, i: 1, want: false},
		{name: "current b undefined", a: indicators.Series{1, 3}, b: indicators.Series{2, nan}, i: 1, want: false},
		{name: "out of range", a: indicators.Series{1, 3}, b: indicators.Series{2, 2}, i: 2, want: false},
		{name: "shorter b", a: indicators.Series{1, 3}, b: indicators.Series{2}, i: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Crossover(tt.a, tt.b, tt.i))
		})
	}
}

func TestCrossover_MatchesDefinitionOnRandomSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := make(indicators.Series, 500)
	b := make(indicators.Series, 500)
	for i := range a {
		// small integer range so ties happen often
		a[i] = float64(rng.Intn(5))
		b[i] = float64(rng.Intn(5))
		if rng.Intn(20) == 0 {
			a[i] = math.NaN()
		}
	}

	for i := 1; i < len(a); i++ {
		defined := !math.IsNaN(a[i-1]) && !math.IsNaN(a[i])
		want := defined && a[i-1] <= b[i-1] && a[i] > b[i]
		assert.Equal(t, want, Crossover(a, b, i), "i=%d", i)
		if Crossover(a, b, i) {
			assert.False(t, Crossover(b, a, i), "cannot cross both ways at i=%d", i)
		}
	}
}
