package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/strategies"
)

// runFlags override the loaded configuration when set on the command line.
type runFlags struct {
	symbol      string
	start       string
	end         string
	source      string
	dataPath    string
	cash        float64
	commission  float64
	strategies  []string
	outDir      string
	detailed    bool
	saveCSV     bool
	csvPath     string
	parquetPath string
	fullStats   bool
	trades      bool
	journal     bool
	dbPath      string
	metricsFile string
}

func newRunCmd(ro *rootOptions) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured strategy and compare them against buy and hold",
		Long: `Fetch daily bars, backtest each strategy with the same cash and
commission, print a summary per strategy and write the comparison chart.

Examples:
  backtester run --symbol SPY --start 2000-01-01
  backtester run --strategy ema_cross:20,100 --strategy price_ema_cross:30 --save-csv
  backtester run --source csv --data spy.csv --full-stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.load()
			if err != nil {
				return err
			}
			if err := rf.apply(cmd, cfg); err != nil {
				return err
			}
			log := ro.logger(cfg, cmd.ErrOrStderr())
			return runComparison(cmd.Context(), ro, cfg, rf, cmd.OutOrStdout(), log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.symbol, "symbol", "", "Ticker symbol (default SPY)")
	f.StringVar(&rf.start, "start", "", "First date, YYYY-MM-DD")
	f.StringVar(&rf.end, "end", "", "Last date, YYYY-MM-DD (default: latest)")
	f.StringVar(&rf.source, "source", "", "Data source: yahoo|csv|parquet")
	f.StringVar(&rf.dataPath, "data", "", "Bar file for csv/parquet sources")
	f.Float64Var(&rf.cash, "cash", 0, "Initial cash")
	f.Float64Var(&rf.commission, "commission", 0, "Commission per side as a fraction (0.002 = 0.2%)")
	f.StringArrayVar(&rf.strategies, "strategy", nil, "Strategy as kind:params, e.g. ema_cross:50,200 or price_ema_cross:50 (repeatable)")
	f.StringVar(&rf.outDir, "out", "", "Directory for charts")
	f.BoolVar(&rf.detailed, "detailed", true, "Write a detailed chart per strategy")
	f.BoolVar(&rf.saveCSV, "save-csv", false, "Save the equity curves as CSV")
	f.StringVar(&rf.csvPath, "csv", "", "CSV output path")
	f.StringVar(&rf.parquetPath, "parquet", "", "Also save the equity curves as Parquet")
	f.BoolVar(&rf.fullStats, "full-stats", false, "Print the full statistics block per strategy")
	f.BoolVar(&rf.trades, "trades", false, "Print the trade list per strategy")
	f.BoolVar(&rf.journal, "journal", false, "Record runs in the SQLite journal")
	f.StringVar(&rf.dbPath, "db", "", "SQLite journal database")
	f.StringVar(&rf.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file")

	return cmd
}

func (rf runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	set := func(name string, fn func()) {
		if f.Changed(name) {
			fn()
		}
	}

	set("symbol", func() { cfg.Symbol = strings.ToUpper(strings.TrimSpace(rf.symbol)) })
	set("start", func() { cfg.Start = rf.start })
	set("end", func() { cfg.End = rf.end })
	set("source", func() { cfg.Data.Source = strings.ToLower(rf.source) })
	set("data", func() { cfg.Data.Path = rf.dataPath })
	set("cash", func() { cfg.InitialCash = rf.cash })
	set("commission", func() { cfg.Commission = rf.commission })
	set("out", func() { cfg.OutDir = rf.outDir })
	set("detailed", func() { cfg.ShowDetailed = rf.detailed })
	set("save-csv", func() { cfg.SaveCSV = rf.saveCSV })
	set("csv", func() { cfg.CSVPath = rf.csvPath })
	set("parquet", func() { cfg.ParquetPath = rf.parquetPath })
	set("full-stats", func() { cfg.FullStats = rf.fullStats })
	set("journal", func() { cfg.Journal.Enabled = rf.journal })
	set("db", func() { cfg.Journal.DBPath = rf.dbPath })
	set("metrics-textfile", func() { cfg.Metrics.Textfile = rf.metricsFile })

	if len(rf.strategies) > 0 {
		policies := make([]strategies.Policy, 0, len(rf.strategies))
		for _, s := range rf.strategies {
			p, err := parsePolicy(s)
			if err != nil {
				return err
			}
			policies = append(policies, p)
		}
		cfg.Strategies = policies
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// parsePolicy reads "kind:a,b". Missing parameters take the defaults.
func parsePolicy(s string) (strategies.Policy, error) {
	kindStr, params, _ := strings.Cut(strings.TrimSpace(s), ":")
	kind, err := strategies.ParseKind(kindStr)
	if err != nil {
		return strategies.Policy{}, err
	}

	var nums []int
	if params != "" {
		for _, part := range strings.Split(params, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return strategies.Policy{}, fmt.Errorf("strategy %q: bad parameter %q", s, part)
			}
			nums = append(nums, n)
		}
	}

	var p strategies.Policy
	switch kind {
	case strategies.EmaCross:
		p = strategies.NewEmaCross(50, 200)
		if len(nums) > 2 {
			return p, fmt.Errorf("strategy %q: want at most fast,slow", s)
		}
		if len(nums) > 0 {
			p.Fast = nums[0]
		}
		if len(nums) > 1 {
			p.Slow = nums[1]
		}
	case strategies.PriceEmaCross:
		p = strategies.NewPriceEmaCross(50)
		if len(nums) > 1 {
			return p, fmt.Errorf("strategy %q: want at most one period", s)
		}
		if len(nums) == 1 {
			p.Period = nums[0]
		}
	}
	return p, p.Validate()
}

// loadComparison fetches the bars and runs the comparison. A source that
// yields no data is fatal.
func loadComparison(ctx context.Context, ro *rootOptions, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (*backtest.Comparison, data.Source, error) {
	src, err := ro.newSource(cfg.SourceOptions())
	if err != nil {
		return nil, nil, err
	}
	start, err := cfg.StartTime()
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("symbol", cfg.Symbol).Str("source", src.Name()).Str("start", cfg.Start).Msg("fetching bars")
	cs, err := src.Fetch(ctx, cfg.Symbol, start)
	if err != nil {
		if errors.Is(err, data.ErrDataUnavailable) {
			return nil, nil, fmt.Errorf("no data for %s: %w", cfg.Symbol, err)
		}
		return nil, nil, err
	}
	log.Info().
		Int("bars", cs.Len()).
		Int("dropped", cs.Dropped()).
		Time("first", cs.Start()).
		Time("last", cs.End()).
		Msg("bars loaded")
	m.ObserveBars(cfg.Symbol, cs.Len())

	cmp, err := backtest.Compare(cs, cfg.CompareOptions(log))
	if err != nil {
		return nil, nil, err
	}
	for _, r := range cmp.Results {
		m.ObserveResult(r)
	}
	return cmp, src, nil
}

func runComparison(ctx context.Context, ro *rootOptions, cfg *config.Config, rf runFlags, out io.Writer, log zerolog.Logger) error {
	m := metrics.New()
	cmp, src, err := loadComparison(ctx, ro, cfg, m, log)
	if err != nil {
		return err
	}

	for _, r := range cmp.Results {
		report.PrintSummary(out, r.Label(), r.Stats)
	}
	if cfg.FullStats || rf.trades {
		for _, r := range cmp.Results {
			fmt.Fprintln(out)
			if cfg.FullStats {
				report.PrintStats(out, r)
			}
			if rf.trades {
				report.PrintTrades(out, r)
			}
		}
	}

	if path, err := report.SaveComparisonSVG(cfg.OutDir, cmp); err != nil {
		log.Error().Err(err).Msg("comparison chart")
	} else {
		log.Info().Str("path", path).Msg("comparison chart saved")
	}

	charts := map[string]string{}
	if cfg.ShowDetailed {
		fmt.Fprintln(out, "\nGenerating detailed plots...")
		closes := cmp.Candles.Closes()
		for _, r := range cmp.Results {
			path, err := report.SaveRunSVG(cfg.OutDir, r, closes)
			if err != nil {
				log.Warn().Err(err).Str("strategy", r.Name()).Msg("detailed chart")
				continue
			}
			charts[r.Name()] = path
			log.Info().Str("strategy", r.Name()).Str("path", path).Msg("detailed chart saved")
		}
	}

	if cfg.Journal.Enabled {
		if err := recordRuns(ctx, cfg.Journal.DBPath, cmp, src.Name(), charts, log); err != nil {
			log.Error().Err(err).Str("db", cfg.Journal.DBPath).Msg("journal")
		}
	}

	if cfg.SaveCSV {
		if err := report.NewTableSaver("csv").Save(cmp.Table, cfg.CSVPath); err != nil {
			log.Error().Err(err).Str("path", cfg.CSVPath).Msg("export equity curves")
		} else {
			fmt.Fprintf(out, "✅ Equity curves saved to %s\n", cfg.CSVPath)
		}
	}
	if cfg.ParquetPath != "" {
		if err := report.NewTableSaver("parquet").Save(cmp.Table, cfg.ParquetPath); err != nil {
			log.Error().Err(err).Str("path", cfg.ParquetPath).Msg("export equity curves")
		} else {
			log.Info().Str("path", cfg.ParquetPath).Msg("equity curves saved")
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error().Err(err).Str("path", cfg.Metrics.Textfile).Msg("metrics textfile")
		}
	}
	return nil
}

func recordRuns(ctx context.Context, dbPath string, cmp *backtest.Comparison, dataset string, charts map[string]string, log zerolog.Logger) error {
	j, err := journal.NewSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	return record(ctx, j, cmp, dataset, charts, log)
}

func record(ctx context.Context, j journal.Journal, cmp *backtest.Comparison, dataset string, charts map[string]string, log zerolog.Logger) error {
	for _, r := range cmp.Results {
		rec, err := j.RecordResult(ctx, r, dataset)
		if err != nil {
			return err
		}
		if path, ok := charts[r.Name()]; ok {
			if err := j.SetChartPath(ctx, rec.RunID, path); err != nil {
				return err
			}
		}
		log.Info().Str("run_id", rec.RunID).Str("strategy", rec.Strategy).Int("trades", rec.Trades).Msg("run recorded")
	}
	return nil
}
