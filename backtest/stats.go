package backtest

import (
	"math"
	"time"
)

// TradingDays is the number of bars per year used to annualise daily
// returns.
const TradingDays = 252

// Stats summarises a run. Percentages are in percent (12.5 means 12.5%).
// Ratios that are undefined for the run, such as Sharpe on a flat equity
// curve, are NaN.
type Stats struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration

	ExposurePct float64
	EquityFinal float64
	EquityPeak  float64

	ReturnPct        float64
	BuyHoldReturnPct float64
	ReturnAnnPct     float64
	VolatilityAnnPct float64
	CAGRPct          float64

	Sharpe  float64
	Sortino float64
	Calmar  float64

	MaxDrawdownPct      float64 // <= 0
	AvgDrawdownPct      float64 // <= 0
	MaxDrawdownDuration time.Duration
	AvgDrawdownDuration time.Duration

	Trades        int
	WinRatePct    float64
	BestTradePct  float64
	WorstTradePct float64
	AvgTradePct   float64
	ProfitFactor  float64
}

// ComputeStats derives Stats from a finished run. closes is the close
// series the run replayed and feeds the buy and hold figure.
func ComputeStats(r *Result, closes []float64) Stats {
	s := Stats{
		EquityFinal: r.InitialCash,
		EquityPeak:  r.InitialCash,
		Trades:      len(r.Trades),
	}
	nan := math.NaN()

	eq := r.EquityValues()
	if len(eq) == 0 {
		s.ReturnPct, s.BuyHoldReturnPct = nan, nan
		s.ReturnAnnPct, s.VolatilityAnnPct, s.CAGRPct = nan, nan, nan
		s.Sharpe, s.Sortino, s.Calmar = nan, nan, nan
		s.ExposurePct = nan
		s.MaxDrawdownPct, s.AvgDrawdownPct = nan, nan
		fillTradeStats(&s, r.Trades)
		return s
	}

	s.Start = r.Equity[0].Time
	s.End = r.Equity[len(r.Equity)-1].Time
	s.Duration = s.End.Sub(s.Start)
	s.ExposurePct = float64(r.InPosition) / float64(len(eq)) * 100
	s.EquityFinal = eq[len(eq)-1]
	s.EquityPeak = maxOf(eq)
	s.ReturnPct = (s.EquityFinal/r.InitialCash - 1) * 100

	s.BuyHoldReturnPct = nan
	if len(closes) > 0 && closes[0] > 0 {
		s.BuyHoldReturnPct = (closes[len(closes)-1]/closes[0] - 1) * 100
	}

	rets := returns(eq)
	g := geometricMean(rets)
	annRet := math.Pow(1+g, TradingDays) - 1
	s.ReturnAnnPct = annRet * 100

	annVol := nan
	if len(rets) > 1 {
		v := variance(rets)
		annVol = math.Sqrt(math.Pow(v+(1+g)*(1+g), TradingDays) - math.Pow(1+g, 2*TradingDays))
	}
	s.VolatilityAnnPct = annVol * 100

	years := s.Duration.Hours() / 24 / 365.25
	s.CAGRPct = nan
	if years > 0 && eq[0] > 0 {
		s.CAGRPct = (math.Pow(s.EquityFinal/eq[0], 1/years) - 1) * 100
	}

	dd := drawdowns(eq)
	maxDD, avgDD, maxDur, avgDur := drawdownPeriods(dd, r.Equity)
	s.MaxDrawdownPct = -maxDD * 100
	s.AvgDrawdownPct = -avgDD * 100
	s.MaxDrawdownDuration = maxDur
	s.AvgDrawdownDuration = avgDur

	s.Sharpe = ratio(annRet, annVol)
	s.Sortino = ratio(annRet, downsideDeviation(rets)*math.Sqrt(TradingDays))
	s.Calmar = ratio(annRet, maxDD)

	fillTradeStats(&s, r.Trades)
	return s
}

func fillTradeStats(s *Stats, trades []Trade) {
	nan := math.NaN()
	s.WinRatePct, s.BestTradePct, s.WorstTradePct = nan, nan, nan
	s.AvgTradePct, s.ProfitFactor = nan, nan
	if len(trades) == 0 {
		return
	}

	wins := 0
	grossWin, grossLoss := 0.0, 0.0
	best, worst := math.Inf(-1), math.Inf(1)
	logSum := 0.0
	for _, t := range trades {
		if t.PNL > 0 {
			wins++
			grossWin += t.PNL
		} else {
			grossLoss -= t.PNL
		}
		best = math.Max(best, t.ReturnPct)
		worst = math.Min(worst, t.ReturnPct)
		logSum += math.Log1p(t.ReturnPct / 100)
	}

	s.WinRatePct = float64(wins) / float64(len(trades)) * 100
	s.BestTradePct = best
	s.WorstTradePct = worst
	s.AvgTradePct = math.Expm1(logSum/float64(len(trades))) * 100
	s.ProfitFactor = ratio(grossWin, grossLoss)
}

// ratio is a/b, or NaN when b is zero or either side is undefined.
func ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

func returns(eq []float64) []float64 {
	if len(eq) < 2 {
		return nil
	}
	out := make([]float64, 0, len(eq)-1)
	for i := 1; i < len(eq); i++ {
		out = append(out, eq[i]/eq[i-1]-1)
	}
	return out
}

// geometricMean of simple returns. Zero for an empty series or if the
// equity was ever wiped out.
func geometricMean(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rets {
		if 1+r <= 0 {
			return 0
		}
		sum += math.Log1p(r)
	}
	return math.Expm1(sum / float64(len(rets)))
}

// variance is the sample variance (n-1).
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}

func downsideDeviation(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	ss := 0.0
	for _, r := range rets {
		if r < 0 {
			ss += r * r
		}
	}
	return math.Sqrt(ss / float64(len(rets)))
}

// drawdowns returns 1 - equity/running peak for every point.
func drawdowns(eq []float64) []float64 {
	out := make([]float64, len(eq))
	peak := math.Inf(-1)
	for i, v := range eq {
		peak = math.Max(peak, v)
		if peak > 0 {
			out[i] = 1 - v/peak
		}
	}
	return out
}

// drawdownPeriods splits dd into contiguous underwater stretches and
// returns the deepest and mean depth with the longest and mean duration.
func drawdownPeriods(dd []float64, pts []EquityPoint) (maxDD, avgDD float64, maxDur, avgDur time.Duration) {
	var (
		depths []float64
		durs   []time.Duration
	)
	start := -1
	depth := 0.0
	flush := func(end int) {
		depths = append(depths, depth)
		durs = append(durs, pts[end].Time.Sub(pts[start-1].Time))
		start, depth = -1, 0
	}
	for i, d := range dd {
		if d > 0 {
			if start < 0 {
				start = i
			}
			depth = math.Max(depth, d)
			continue
		}
		if start > 0 {
			flush(i)
		}
	}
	if start > 0 {
		flush(len(dd) - 1)
	}

	if len(depths) == 0 {
		return 0, 0, 0, 0
	}
	var sumDepth float64
	var sumDur time.Duration
	for i := range depths {
		maxDD = math.Max(maxDD, depths[i])
		if durs[i] > maxDur {
			maxDur = durs[i]
		}
		sumDepth += depths[i]
		sumDur += durs[i]
	}
	return maxDD, sumDepth / float64(len(depths)), maxDur, sumDur / time.Duration(len(durs))
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}
