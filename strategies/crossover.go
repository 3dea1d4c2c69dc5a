package strategies

import "github.com/rustyeddy/backtester/indicators"

// Crossover reports whether a crossed above b at index i: a was at or
// below b on bar i-1 and is strictly above it on bar i. Any undefined
// value (warm-up NaN or out of range) means no cross.
func Crossover(a, b indicators.Series, i int) bool {
	if i < 1 {
		return false
	}
	if !a.Defined(i-1) || !b.Defined(i-1) || !a.Defined(i) || !b.Defined(i) {
		return false
	}
	return a[i-1] <= b[i-1] && a[i] > b[i]
}
