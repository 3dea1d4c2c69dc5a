package cli

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/server"
)

func newServeCmd(ro *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the comparison once and serve it over HTTP",
		Long: `Run the configured comparison at start-up, then serve the summary,
equity table, charts and Prometheus metrics until interrupted.

Routes:
  GET /                        HTML overview
  GET /api/summary             per-strategy stats (JSON)
  GET /api/equity              combined equity table (JSON)
  GET /chart.svg               comparison chart
  GET /runs/:name/chart.svg    detailed chart of one strategy
  GET /metrics                 Prometheus metrics
  GET /health                  liveness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			log := ro.logger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			cmp, _, err := loadComparison(ctx, ro, cfg, m, log)
			if err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			return server.New(cmp, m, cfg.Server.Addr, log).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
