package journal

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"num": func(x float64) string {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"trade": FormatTradeOrg,
}

var runOrg = template.Must(template.New("run").Funcs(orgFuncs).Parse(BacktestOrgTemplate))

// FormatRunOrg renders a stored run and its trades as an Org-mode entry.
func FormatRunOrg(run RunRecord, trades []TradeRecord) (string, error) {
	var buf bytes.Buffer
	err := runOrg.Execute(&buf, struct {
		RunRecord
		TradeList []TradeRecord
	}{run, trades})
	if err != nil {
		return "", fmt.Errorf("journal: org template: %w", err)
	}
	return buf.String(), nil
}

const BacktestOrgTemplate = `
* BACKTEST: {{.Strategy}} {{.Symbol}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:PARAMS:      {{printf "%s" .Params}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:BARS:        {{.Bars}}
:START_CASH:  {{printf "%.2f" .InitialCash}}
:END_EQUITY:  {{printf "%.2f" .EndEquity}}
:COMMISSION:  {{printf "%.4f" .Commission}}
:RETURN_PCT:  {{num .ReturnPct}}
:MAX_DD_PCT:  {{num .MaxDDPct}}
:TRADES:      {{.Trades}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
| Metric            | Value |
|-------------------+-------|
| Return %          | {{num .ReturnPct}} |
| Buy & Hold %      | {{num .BuyHoldPct}} |
| CAGR %            | {{num .CAGRPct}} |
| Max Drawdown %    | {{num .MaxDDPct}} |
| Sharpe Ratio      | {{num .Sharpe}} |
| Sortino Ratio     | {{num .Sortino}} |
| Calmar Ratio      | {{num .Calmar}} |
| Exposure %        | {{num .ExposurePct}} |
| Win Rate %        | {{num .WinRate}} |
| Profit Factor     | {{num .ProfitFactor}} |

** Equity Curve
{{- if .ChartPath }}
[[file:{{.ChartPath}}]]
{{- else }}
# (optional) render with: backtester run --detailed
{{- end }}

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- range .TradeList }}

{{ trade . }}
{{- end }}
`

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts go in the PROPERTIES drawer; Thesis/Execution/Review are left for
// notes.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("*** Trade: %s (%s)", t.Symbol, shortID(t.TradeID))
	closeTime := t.CloseTime.UTC().Format(time.RFC3339)
	if t.Open {
		closeTime = "open"
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", t.RunID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":SHARES: %d\n", t.Shares))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.2f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.2f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", closeTime))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":RETURN_PCT: %.2f\n", t.ReturnPct))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("**** Thesis\n- \n\n")
	b.WriteString("**** Execution\n- \n\n")
	b.WriteString("**** Review\n- \n")

	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
