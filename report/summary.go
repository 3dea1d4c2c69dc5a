// Package report turns backtest results into console summaries, SVG
// charts and exported tables.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rustyeddy/backtester/backtest"
)

var money = message.NewPrinter(language.English)

// PrintSummary prints the headline metrics of one strategy run.
func PrintSummary(w io.Writer, name string, s backtest.Stats) {
	fmt.Fprintf(w, "\n📈 %s Strategy Results\n", name)
	fmt.Fprintf(w, "Total Return: %.2f%%\n", s.ReturnPct)
	fmt.Fprintf(w, "CAGR: %.2f%%\n", s.CAGRPct)
	fmt.Fprintf(w, "Max Drawdown: %.2f%%\n", s.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe Ratio: %.2f\n", s.Sharpe)
	fmt.Fprintf(w, "Sortino Ratio: %.2f\n", s.Sortino)
	fmt.Fprintf(w, "Calmar Ratio: %.2f\n", s.Calmar)
}

// PrintStats prints the full statistics block of a run.
func PrintStats(w io.Writer, r *backtest.Result) {
	s := r.Stats

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, " %s  %s\n", r.Symbol, r.Name())
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Start:                  %s\n", fmtDate(s.Start))
	fmt.Fprintf(w, "End:                    %s\n", fmtDate(s.End))
	fmt.Fprintf(w, "Duration:               %s\n", fmtDays(s.Duration))
	fmt.Fprintf(w, "Exposure Time [%%]:      %s\n", fmtNum(s.ExposurePct))
	fmt.Fprintf(w, "Equity Final [$]:       %s\n", fmtMoney(s.EquityFinal))
	fmt.Fprintf(w, "Equity Peak [$]:        %s\n", fmtMoney(s.EquityPeak))
	fmt.Fprintf(w, "Return [%%]:             %s\n", fmtNum(s.ReturnPct))
	fmt.Fprintf(w, "Buy & Hold Return [%%]:  %s\n", fmtNum(s.BuyHoldReturnPct))
	fmt.Fprintf(w, "Return (Ann.) [%%]:      %s\n", fmtNum(s.ReturnAnnPct))
	fmt.Fprintf(w, "Volatility (Ann.) [%%]:  %s\n", fmtNum(s.VolatilityAnnPct))
	fmt.Fprintf(w, "CAGR [%%]:               %s\n", fmtNum(s.CAGRPct))
	fmt.Fprintf(w, "Sharpe Ratio:           %s\n", fmtNum(s.Sharpe))
	fmt.Fprintf(w, "Sortino Ratio:          %s\n", fmtNum(s.Sortino))
	fmt.Fprintf(w, "Calmar Ratio:           %s\n", fmtNum(s.Calmar))
	fmt.Fprintf(w, "Max. Drawdown [%%]:      %s\n", fmtNum(s.MaxDrawdownPct))
	fmt.Fprintf(w, "Avg. Drawdown [%%]:      %s\n", fmtNum(s.AvgDrawdownPct))
	fmt.Fprintf(w, "Max. Drawdown Duration: %s\n", fmtDays(s.MaxDrawdownDuration))
	fmt.Fprintf(w, "Avg. Drawdown Duration: %s\n", fmtDays(s.AvgDrawdownDuration))
	fmt.Fprintf(w, "# Trades:               %d\n", s.Trades)
	fmt.Fprintf(w, "Win Rate [%%]:           %s\n", fmtNum(s.WinRatePct))
	fmt.Fprintf(w, "Best Trade [%%]:         %s\n", fmtNum(s.BestTradePct))
	fmt.Fprintf(w, "Worst Trade [%%]:        %s\n", fmtNum(s.WorstTradePct))
	fmt.Fprintf(w, "Avg. Trade [%%]:         %s\n", fmtNum(s.AvgTradePct))
	fmt.Fprintf(w, "Profit Factor:          %s\n", fmtNum(s.ProfitFactor))
}

// PrintTrades lists every trade of a run.
func PrintTrades(w io.Writer, r *backtest.Result) {
	if len(r.Trades) == 0 {
		fmt.Fprintln(w, "No trades.")
		return
	}
	fmt.Fprintf(w, "%-12s %-12s %8s %12s %12s %14s %9s\n", "Entry", "Exit", "Shares", "EntryPx", "ExitPx", "P/L", "Return")
	for _, t := range r.Trades {
		exit := fmtDate(t.ExitTime)
		if t.Open {
			exit = "open"
		}
		fmt.Fprintf(w, "%-12s %-12s %8d %12.2f %12.2f %14s %8.2f%%\n",
			fmtDate(t.EntryTime), exit, t.Shares, t.EntryPrice, t.ExitPrice, fmtMoney(t.PNL), t.ReturnPct)
	}
}

func fmtNum(x float64) string {
	if math.IsNaN(x) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", x)
}

func fmtMoney(x float64) string {
	if math.IsNaN(x) {
		return "n/a"
	}
	return money.Sprintf("%.2f", x)
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func fmtDays(d time.Duration) string {
	return fmt.Sprintf("%d days", int(d.Hours()/24))
}
