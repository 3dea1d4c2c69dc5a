package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/market/data"
)

func newDataCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Data tooling (download and convert daily bars)",
	}
	cmd.AddCommand(newDataFetchCmd(ro))
	return cmd
}

func newDataFetchCmd(ro *rootOptions) *cobra.Command {
	var (
		symbol string
		start  string
		end    string
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download daily bars and save them as CSV or Parquet",
		Long: `Fetch daily bars from the configured source (Yahoo by default) and
write them to a file that "run --source csv|parquet --data <file>" can load.

Examples:
  backtester data fetch --symbol SPY --start 2000-01-01 --out spy.csv
  backtester data fetch --symbol QQQ --format parquet --out qqq.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("symbol") {
				cfg.Symbol = strings.ToUpper(strings.TrimSpace(symbol))
			}
			if cmd.Flags().Changed("start") {
				cfg.Start = start
			}
			if cmd.Flags().Changed("end") {
				cfg.End = end
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ff := data.Format(strings.ToLower(strings.TrimSpace(format)))
			if ff != data.FormatCSV && ff != data.FormatParquet {
				return fmt.Errorf("--format must be csv or parquet (got %q)", format)
			}
			if out == "" {
				out = strings.ToLower(cfg.Symbol) + "." + string(ff)
			}

			log := ro.logger(cfg, cmd.ErrOrStderr())
			src, err := ro.newSource(cfg.SourceOptions())
			if err != nil {
				return err
			}
			startTime, err := cfg.StartTime()
			if err != nil {
				return err
			}

			cs, err := src.Fetch(cmd.Context(), cfg.Symbol, startTime)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", cfg.Symbol, err)
			}
			if err := data.Save(out, ff, cs); err != nil {
				return fmt.Errorf("save %s: %w", out, err)
			}

			log.Info().Str("symbol", cfg.Symbol).Int("bars", cs.Len()).Int("dropped", cs.Dropped()).Str("path", out).Msg("bars saved")
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %d bars of %s to %s\n", cs.Len(), cfg.Symbol, out)
			cs.PrintStats(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Ticker symbol")
	cmd.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv|parquet")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default <symbol>.<format>)")
	return cmd
}
