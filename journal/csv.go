package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ExportCSV writes trades.csv and equity.csv for one run into dir and
// returns the two paths.
func ExportCSV(dir string, trades []TradeRecord, equity []EquityRecord) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	tp := filepath.Join(dir, "trades.csv")
	ep := filepath.Join(dir, "equity.csv")

	tradeRows := [][]string{{"trade_id", "run_id", "symbol", "shares", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "return_pct", "open", "reason"}}
	for _, t := range trades {
		tradeRows = append(tradeRows, []string{
			t.TradeID,
			t.RunID,
			t.Symbol,
			strconv.FormatInt(t.Shares, 10),
			f(t.EntryPrice),
			f(t.ExitPrice),
			t.OpenTime.UTC().Format(time.RFC3339),
			t.CloseTime.UTC().Format(time.RFC3339),
			f(t.RealizedPL),
			f(t.ReturnPct),
			strconv.FormatBool(t.Open),
			t.Reason,
		})
	}
	if err := writeCSV(tp, tradeRows); err != nil {
		return "", "", err
	}

	equityRows := [][]string{{"time", "equity"}}
	for _, e := range equity {
		equityRows = append(equityRows, []string{e.Time.UTC().Format(time.RFC3339), f(e.Equity)})
	}
	if err := writeCSV(ep, equityRows); err != nil {
		return "", "", err
	}
	return tp, ep, nil
}

func writeCSV(path string, rows [][]string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if err := w.WriteAll(rows); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func f(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
