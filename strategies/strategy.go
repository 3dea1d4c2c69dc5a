// Package strategies holds the trading policies the backtester compares.
//
// A Policy is a plain value: it derives its indicator lines once from the
// full close series and then answers one pure question per bar, "given
// these lines, this index and whether a position is open, what now?".
package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/backtester/indicators"
)

type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is the outcome of evaluating a policy on one bar.
type Decision struct {
	Signal Signal
	Reason string
}

type Kind string

const (
	EmaCross      Kind = "ema_cross"
	PriceEmaCross Kind = "price_ema_cross"
)

// ParseKind accepts the canonical kind names plus the dashed and squashed
// spellings used on the command line.
func ParseKind(s string) (Kind, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.ReplaceAll(k, "-", "_")
	switch k {
	case "ema_cross", "emacross":
		return EmaCross, nil
	case "price_ema_cross", "priceemacross", "price_ema":
		return PriceEmaCross, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (supported: ema_cross, price_ema_cross)", s)
	}
}

// Policy is the tagged union of supported strategies. Fast and Slow are
// used by EmaCross, Period by PriceEmaCross.
type Policy struct {
	Kind   Kind `yaml:"kind" json:"kind"`
	Fast   int  `yaml:"fast,omitempty" json:"fast,omitempty"`
	Slow   int  `yaml:"slow,omitempty" json:"slow,omitempty"`
	Period int  `yaml:"period,omitempty" json:"period,omitempty"`
}

func NewEmaCross(fast, slow int) Policy {
	return Policy{Kind: EmaCross, Fast: fast, Slow: slow}
}

func NewPriceEmaCross(period int) Policy {
	return Policy{Kind: PriceEmaCross, Period: period}
}

// Defaults returns the two strategies of the standard comparison:
// EMA(50)/EMA(200) and Close/EMA(50).
func Defaults() []Policy {
	return []Policy{
		NewEmaCross(50, 200),
		NewPriceEmaCross(50),
	}
}

func (p Policy) Validate() error {
	switch p.Kind {
	case EmaCross:
		if p.Fast <= 0 || p.Slow <= 0 {
			return fmt.Errorf("%s: periods must be > 0", p.Kind)
		}
		if p.Fast >= p.Slow {
			return fmt.Errorf("%s: fast period (%d) must be less than slow period (%d)", p.Kind, p.Fast, p.Slow)
		}
	case PriceEmaCross:
		if p.Period <= 0 {
			return fmt.Errorf("%s: period must be > 0", p.Kind)
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", p.Kind)
	}
	return nil
}

// Name is the stable identifier used in file names, the journal and metrics.
func (p Policy) Name() string {
	switch p.Kind {
	case EmaCross:
		return fmt.Sprintf("EMA_CROSS(%d,%d)", p.Fast, p.Slow)
	case PriceEmaCross:
		return fmt.Sprintf("PRICE_EMA_CROSS(%d)", p.Period)
	default:
		return strings.ToUpper(string(p.Kind))
	}
}

// Label is the human readable column and legend title.
func (p Policy) Label() string {
	switch p.Kind {
	case EmaCross:
		return "EMA Crossover"
	case PriceEmaCross:
		return "Price/EMA"
	default:
		return string(p.Kind)
	}
}

// Slug is Name reduced to characters that are safe in a file name.
func (p Policy) Slug() string {
	r := strings.NewReplacer("(", "_", ")", "", ",", "_", " ", "")
	return strings.ToLower(r.Replace(p.Name()))
}

// Lookback is the number of bars needed before every line is defined.
func (p Policy) Lookback() int {
	switch p.Kind {
	case EmaCross:
		return max(p.Fast, p.Slow)
	case PriceEmaCross:
		return p.Period
	default:
		return 0
	}
}

// Lines are the two series a policy compares. A crossing A over B opens a
// position, B over A closes it.
type Lines struct {
	A, B         indicators.Series
	NameA, NameB string
}

func (l Lines) Len() int { return min(len(l.A), len(l.B)) }

// Lines derives the policy's series from the full close history. It is
// called once per run, before the first Decide.
func (p Policy) Lines(closes []float64) Lines {
	switch p.Kind {
	case EmaCross:
		return Lines{
			A:     indicators.EMA(closes, p.Fast),
			B:     indicators.EMA(closes, p.Slow),
			NameA: indicators.EMAName(p.Fast),
			NameB: indicators.EMAName(p.Slow),
		}
	case PriceEmaCross:
		return Lines{
			A:     indicators.Raw(closes),
			B:     indicators.EMA(closes, p.Period),
			NameA: "Close",
			NameB: indicators.EMAName(p.Period),
		}
	default:
		return Lines{}
	}
}

// Decide evaluates bar i. Only values at i and i-1 are consulted, so the
// decision never looks ahead of the current bar.
func (p Policy) Decide(l Lines, i int, open bool) Decision {
	switch p.Kind {
	case EmaCross:
		return decideEmaCross(l, i, open)
	case PriceEmaCross:
		return decidePriceEmaCross(l, i, open)
	default:
		return Decision{Signal: Hold, Reason: "unknown strategy"}
	}
}
