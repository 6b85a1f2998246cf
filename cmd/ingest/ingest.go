// Package ingest implements the command that runs a full import session.
package ingest

import (
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"ledgerpipe/cmd/root"
	"ledgerpipe/internal/export"
	"ledgerpipe/internal/fileutils"
	"ledgerpipe/internal/importer"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/store"
	"ledgerpipe/internal/templates"
	"ledgerpipe/internal/transform"
)

var (
	templateID string
	userID     string
	accountID  string
	outputFile string
)

// Cmd is the ingest command.
var Cmd = &cobra.Command{
	Use:   "ingest [files or directories...]",
	Short: "Import statement files as a single import session",
	Long: `Ingest runs one import session over the given statement files.
Directory arguments are expanded to the files matching the template's
format. All files share one import record; a file that fails to load or
transform is reported and skipped without aborting its siblings.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func init() {
	Cmd.Flags().StringVarP(&templateID, "template", "t", "", "transform template id (required)")
	Cmd.Flags().StringVarP(&userID, "user", "u", "", "user id owning the transactions (required)")
	Cmd.Flags().StringVarP(&accountID, "account", "a", "", "bank account id (required)")
	Cmd.Flags().StringVarP(&outputFile, "output", "o", "", "optional canonical CSV of inserted rows")
	_ = Cmd.MarkFlagRequired("template")
	_ = Cmd.MarkFlagRequired("user")
	_ = Cmd.MarkFlagRequired("account")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := root.Log
	cfg := root.Cfg

	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not configured")
	}

	registry, err := templates.Load(cfg.Import.TemplatesFile, log)
	if err != nil {
		return err
	}
	tmpl, err := registry.Get(templateID)
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	pgStore := store.New(pool)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		return err
	}

	paths, err := fileutils.CollectStatementPaths(args, tmpl.Parsing.Format)
	if err != nil {
		return err
	}
	files := make([]importer.File, 0, len(paths))
	for _, path := range paths {
		data, err := fileutils.ReadStatement(path)
		if err != nil {
			return err
		}
		files = append(files, importer.File{Name: filepath.Base(path), Data: data})
	}

	service := importer.New(pgStore, transform.NewExecutor(pool, log), log, importer.Options{
		Workers:     cfg.Import.Workers,
		FileTimeout: cfg.Import.FileTimeout,
		MaxExamples: cfg.Import.MaxExamples,
	})

	summary, err := service.Run(ctx, importer.Request{
		UserID:    userID,
		AccountID: accountID,
		Template:  tmpl,
		Files:     files,
	})
	if err != nil {
		return err
	}

	printSummary(log, summary)

	if outputFile != "" {
		rows := make([]models.LedgerRow, 0, summary.Inserted)
		for _, f := range summary.Files {
			rows = append(rows, f.ToInsert...)
		}
		if err := export.WriteFile(outputFile, rows); err != nil {
			return err
		}
		log.Info("canonical csv written", logging.F("path", outputFile), logging.F(logging.FieldRows, len(rows)))
	}

	if summary.AllFilesFailed() {
		return fmt.Errorf("import %s failed: every file failed", summary.Import.ID)
	}
	return nil
}

func printSummary(log logging.Logger, summary *importer.Summary) {
	for _, f := range summary.Files {
		fileLog := log.WithField(logging.FieldFile, f.Name)
		if f.Err != nil {
			fileLog.WithError(f.Err).Error("file failed")
			continue
		}
		fileLog.Info("file imported",
			logging.F(logging.FieldRows, f.Result.TotalRows),
			logging.F(logging.FieldValidRows, f.Result.ValidRows),
			logging.F(logging.FieldSkipped, f.SkippedDuplicates))
		for field, errs := range f.Result.AggregatedErrors {
			fileLog.Warn("field validation failures",
				logging.F("field", field),
				logging.F(logging.FieldRows, errs.Count),
				logging.F("messages", errs.Messages),
				logging.F("examples", errs.Examples))
		}
	}
	log.Info("import summary",
		logging.F(logging.FieldImportID, summary.Import.ID),
		logging.F(logging.FieldInserted, summary.Inserted),
		logging.F(logging.FieldSkipped, summary.SkippedDuplicates))
}
