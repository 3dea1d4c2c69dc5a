package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/logx"
	"github.com/rustyeddy/backtester/market/data"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// newSource is swapped out in tests to avoid the network.
	newSource func(data.Options) (data.Source, error)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{newSource: data.New})
}

func newRootCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtester",
		Short: "Backtester — compare EMA crossover strategies on daily bars",
		Long: `Backtester downloads daily bars for a symbol, runs each configured
strategy over them with the same cash and commission, and compares the
results against buy and hold.

Strategies:
  ema_cross        buy when EMA(fast) crosses above EMA(slow), exit on the reverse
  price_ema_cross  buy when the close crosses above EMA(period), exit on the reverse`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&ro.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&ro.LogFormat, "log-format", "", "Log format: console|json")

	cmd.AddCommand(
		newRunCmd(ro),
		newDataCmd(ro),
		newConfigCmd(ro),
		newJournalCmd(ro),
		newServeCmd(ro),
		newVersionCmd(),
	)

	return cmd
}

// load resolves the effective configuration: defaults, --config file,
// environment, then the persistent log flags.
func (ro *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(ro.ConfigPath)
	if err != nil {
		return nil, err
	}
	if ro.LogLevel != "" {
		cfg.LogLevel = ro.LogLevel
	}
	if ro.LogFormat != "" {
		cfg.LogFormat = ro.LogFormat
	}
	return cfg, nil
}

func (ro *rootOptions) logger(cfg *config.Config, w io.Writer) zerolog.Logger {
	return logx.New(cfg.LogLevel, cfg.LogFormat, w)
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
