package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/config"
)

func newConfigCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage backtester configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  backtester config init --output backtest.yaml
  backtester config validate --file backtest.yaml`,
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  backtester run --config %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "backtest.yaml", "output config file path")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Symbol: %s from %s ($%.2f, commission %.2f%%)\n", cfg.Symbol, cfg.Start, cfg.InitialCash, cfg.Commission*100)
			fmt.Fprintf(out, "  Source: %s\n", cfg.Data.Source)
			for _, p := range cfg.Strategies {
				fmt.Fprintf(out, "  Strategy: %s\n", p.Name())
			}
			if cfg.Journal.Enabled {
				fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.DBPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
