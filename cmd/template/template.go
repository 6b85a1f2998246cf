// Package template implements the template authoring commands: listing
// the registry and self-testing a template against its sample data.
package template

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"ledgerpipe/cmd/root"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/templates"
	"ledgerpipe/internal/transform"
)

// Cmd is the template command group.
var Cmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect and test transform templates",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := templates.Load(root.Cfg.Import.TemplatesFile, root.Log)
		if err != nil {
			return err
		}
		for _, tmpl := range registry.List() {
			fmt.Printf("%s\t%s\t%s\t%s\n", tmpl.ID, tmpl.Type, tmpl.Parsing.Format, tmpl.Name)
		}
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test <template-id>",
	Short: "Run a template's self-test against its sample data",
	Long: `Runs the template's own sample data through the regular
load/transform/validate path. A template is only usable when every
sample row validates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := root.Log
		cfg := root.Cfg

		registry, err := templates.Load(cfg.Import.TemplatesFile, log)
		if err != nil {
			return err
		}
		tmpl, err := registry.Get(args[0])
		if err != nil {
			return err
		}

		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is not configured")
		}
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		result, err := templates.SelfTest(ctx, tmpl, transform.NewExecutor(pool, log))
		if err != nil {
			if result != nil {
				for field, errs := range result.AggregatedErrors {
					log.Warn("field validation failures",
						logging.F("field", field),
						logging.F(logging.FieldRows, errs.Count),
						logging.F("messages", errs.Messages),
						logging.F("examples", errs.Examples))
				}
			}
			return err
		}

		log.Info("template self-test passed",
			logging.F(logging.FieldTemplateID, tmpl.ID),
			logging.F(logging.FieldRows, result.TotalRows))
		return nil
	},
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(testCmd)
}
