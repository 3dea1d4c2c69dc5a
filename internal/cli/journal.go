package cli

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/journal"
)

func newJournalCmd(ro *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query recorded backtest runs",
		Long: `Query and export backtest runs recorded with "run --journal".

Subcommands:
  list             - List recent runs
  show <run-id>    - Show one run and its trades
  org <run-id>     - Print an Org-mode report of a run
  export <run-id>  - Write trades.csv and equity.csv for a run

Examples:
  backtester journal list --limit 5
  backtester journal org 01J2K3M4N5P6Q7R8S9T0VWXYZA > run.org`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to SQLite journal DB (default from config)")

	open := func() (*journal.SQLite, error) {
		path := dbPath
		if path == "" {
			cfg, err := ro.load()
			if err != nil {
				return nil, err
			}
			path = cfg.Journal.DBPath
		}
		j, err := journal.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("query runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSYMBOL\tSTRATEGY\tSTART\tEND\tRETURN %\tTRADES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					r.RunID, r.Symbol, r.Strategy,
					r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"),
					pct(r.ReturnPct), r.Trades)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 = all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			run, err := j.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			trades, err := j.ListTradesByRunID(cmd.Context(), run.RunID)
			if err != nil {
				return fmt.Errorf("get trades: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:        %s\n", run.RunID)
			fmt.Fprintf(out, "Strategy:   %s on %s (%s)\n", run.Strategy, run.Symbol, run.Dataset)
			fmt.Fprintf(out, "Period:     %s → %s (%d bars)\n", run.Start.Format("2006-01-02"), run.End.Format("2006-01-02"), run.Bars)
			fmt.Fprintf(out, "Equity:     %.2f → %.2f\n", run.InitialCash, run.EndEquity)
			fmt.Fprintf(out, "Return:     %s%%  CAGR: %s%%  Max DD: %s%%\n", pct(run.ReturnPct), pct(run.CAGRPct), pct(run.MaxDDPct))
			fmt.Fprintf(out, "Sharpe:     %s  Sortino: %s  Calmar: %s\n", pct(run.Sharpe), pct(run.Sortino), pct(run.Calmar))
			fmt.Fprintf(out, "Trades:     %d (%d wins, %d losses)\n", run.Trades, run.Wins, run.Losses)
			for _, t := range trades {
				fmt.Fprintln(out)
				fmt.Fprint(out, journal.FormatTradeOrg(t))
			}
			return nil
		},
	}

	org := &cobra.Command{
		Use:   "org <run-id>",
		Short: "Print an Org-mode report of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			s, err := j.ExportBacktestOrg(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("export org: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), s)
			return nil
		},
	}

	var exportDir string
	export := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write trades.csv and equity.csv for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			if _, err := j.GetRun(ctx, args[0]); err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			trades, err := j.ListTradesByRunID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get trades: %w", err)
			}
			equity, err := j.ListEquityByRunID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get equity: %w", err)
			}

			dir := exportDir
			if dir == "" {
				dir = args[0]
			}
			tp, ep, err := journal.ExportCSV(dir, trades, equity)
			if err != nil {
				return fmt.Errorf("export csv: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s and %s\n", tp, ep)
			return nil
		},
	}
	export.Flags().StringVarP(&exportDir, "out", "o", "", "output directory (default: the run ID)")

	cmd.AddCommand(list, show, org, export)
	return cmd
}

func pct(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", x)
}
