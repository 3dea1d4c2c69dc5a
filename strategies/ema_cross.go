package strategies

// decideEmaCross: fast EMA over slow EMA opens, slow over fast closes.
func decideEmaCross(l Lines, i int, open bool) Decision {
	switch {
	case !open && Crossover(l.A, l.B, i):
		return Decision{Signal: Buy, Reason: "fast EMA crossed above slow EMA"}
	case open && Crossover(l.B, l.A, i):
		return Decision{Signal: Sell, Reason: "slow EMA crossed above fast EMA"}
	default:
		return Decision{Signal: Hold}
	}
}

// decidePriceEmaCross: close over EMA opens, EMA over close closes.
func decidePriceEmaCross(l Lines, i int, open bool) Decision {
	switch {
	case !open && Crossover(l.A, l.B, i):
		return Decision{Signal: Buy, Reason: "close crossed above EMA"}
	case open && Crossover(l.B, l.A, i):
		return Decision{Signal: Sell, Reason: "EMA crossed above close"}
	default:
		return Decision{Signal: Hold}
	}
}
