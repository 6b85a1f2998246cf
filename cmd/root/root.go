// Package root contains the root command for the application.
package root

import (
	"github.com/spf13/cobra"

	"ledgerpipe/internal/config"
	"ledgerpipe/internal/logging"
)

var (
	// Log is the shared logger instance for commands. Reconfigured from
	// the loaded config before any subcommand runs.
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// Cfg is the loaded application configuration.
	Cfg *config.Config

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "ledgerpipe",
		Short: "Import bank statement exports into a deduplicated transaction ledger.",
		Long: `ledgerpipe turns institution-specific bank and credit-card statement
exports (CSV/Excel) into a canonical, deduplicated transaction ledger.
Each institution is described by a transform template: a parsing
configuration plus an analytical SQL query over the raw columns.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
)
