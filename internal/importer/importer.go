// Package importer owns the end-to-end flow of one import session:
// load -> transform -> validate -> dedupe -> persist -> finalize.
//
// Files of a session are independent until persistence: each one runs its
// own load/transform/validate path, so they are processed by a bounded
// worker pool. A fatal failure in one file contributes zero rows and an
// error descriptor without aborting its siblings. Only the final bulk
// insert and the import-record update are serialized.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"ledgerpipe/internal/dedup"
	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/relation"
	"ledgerpipe/internal/store"
	"ledgerpipe/internal/validation"
)

// DefaultWorkers bounds per-file parallelism when not configured.
const DefaultWorkers = 4

// DefaultFileTimeout bounds a single file's processing time. On expiry the
// file fails fatally without touching its siblings.
const DefaultFileTimeout = 2 * time.Minute

// Executor runs a transform query against a loaded relation. Implemented
// by transform.Executor; mocked in tests.
type Executor interface {
	Execute(ctx context.Context, rel *relation.RawRelation, tmpl models.TransformTemplate) ([]models.Row, error)
}

// File is one uploaded statement file.
type File struct {
	Name string
	Data []byte
}

// Request describes one import session.
type Request struct {
	UserID    string
	AccountID string
	Template  models.TransformTemplate
	Files     []File
}

// FileResult is the per-file outcome. Err is set only for fatal, file-level
// failures (load or transform); row-level problems live in Result.
type FileResult struct {
	Name              string
	Result            *models.TransformationResult
	ToInsert          []models.LedgerRow
	SkippedDuplicates int
	Err               error
}

// Summary is the outcome of a whole import session.
type Summary struct {
	Import            *models.TransactionImport
	Files             []FileResult
	Inserted          int
	SkippedDuplicates int
}

// AllFilesFailed reports whether no file survived to the persisting step.
func (s *Summary) AllFilesFailed() bool {
	for _, f := range s.Files {
		if f.Err == nil {
			return false
		}
	}
	return len(s.Files) > 0
}

// Options tune the orchestrator.
type Options struct {
	Workers     int
	FileTimeout time.Duration
	MaxExamples int
}

// Service orchestrates import sessions.
type Service struct {
	store       store.Store
	executor    Executor
	log         logging.Logger
	workers     int
	fileTimeout time.Duration
	maxExamples int
}

// New creates an import Service.
func New(st store.Store, executor Executor, log logging.Logger, opts Options) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := opts.FileTimeout
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}
	return &Service{
		store:       st,
		executor:    executor,
		log:         log,
		workers:     workers,
		fileTimeout: timeout,
		maxExamples: opts.MaxExamples,
	}
}

// Run executes one import session. The import record is created before any
// file is touched and finalized exactly once, with the count of rows
// actually inserted. When every file fails fatally the record is left
// without a success timestamp.
func (s *Service) Run(ctx context.Context, req Request) (*Summary, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("import request has no files")
	}

	imp, err := s.store.CreateImport(ctx, req.UserID, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to create import record: %w", err)
	}
	log := s.log.WithField(logging.FieldImportID, imp.ID)
	log.Info("import session created",
		logging.F(logging.FieldUserID, req.UserID),
		logging.F(logging.FieldAccountID, req.AccountID),
		logging.F("files", len(req.Files)))

	summary := &Summary{Import: imp, Files: s.processFiles(ctx, log, req)}

	if summary.AllFilesFailed() {
		log.Error("all files failed, leaving import unfinalized")
		return summary, nil
	}

	// Files were resolved against persisted keys independently; overlap
	// between files of the same session is collapsed here, first file wins.
	toInsert := make([]models.LedgerRow, 0)
	taken := make(map[string]struct{})
	for i := range summary.Files {
		f := &summary.Files[i]
		kept := f.ToInsert[:0]
		for _, row := range f.ToInsert {
			if _, dup := taken[row.Key]; dup {
				f.SkippedDuplicates++
				continue
			}
			taken[row.Key] = struct{}{}
			kept = append(kept, row)
		}
		f.ToInsert = kept
		toInsert = append(toInsert, kept...)
		summary.SkippedDuplicates += f.SkippedDuplicates
	}

	inserted, err := s.store.InsertBatch(ctx, imp.ID, req.UserID, req.AccountID, toInsert)
	if err != nil {
		log.WithError(err).Error("bulk insert failed, leaving import unfinalized")
		return summary, &importerror.PersistenceError{ImportID: imp.ID, Err: err}
	}
	summary.Inserted = inserted

	if err := s.store.FinalizeImport(ctx, imp.ID, inserted); err != nil {
		return summary, &importerror.PersistenceError{ImportID: imp.ID, Err: err}
	}
	now := time.Now()
	imp.SuccessAt = &now
	imp.CountTransactions = &inserted

	log.Info("import finalized",
		logging.F(logging.FieldInserted, inserted),
		logging.F(logging.FieldSkipped, summary.SkippedDuplicates))
	return summary, nil
}

// processFiles fans the session's files out to a bounded worker pool and
// collects per-file results in the original file order.
func (s *Service) processFiles(ctx context.Context, log logging.Logger, req Request) []FileResult {
	results := make([]FileResult, len(req.Files))
	jobs := make(chan int, len(req.Files))

	workers := s.workers
	if workers > len(req.Files) {
		workers = len(req.Files)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = s.processFile(ctx, log, req, req.Files[idx])
			}
		}()
	}
	for i := range req.Files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// processFile runs one file through load -> transform -> validate ->
// dedupe under the per-file timeout. Fatal errors are captured in the
// result, never propagated.
func (s *Service) processFile(ctx context.Context, log logging.Logger, req Request, file File) FileResult {
	ctx, cancel := context.WithTimeout(ctx, s.fileTimeout)
	defer cancel()

	result := FileResult{Name: file.Name}
	fileLog := log.WithField(logging.FieldFile, file.Name)

	rel, err := relation.Load(bytes.NewReader(file.Data), file.Name, req.Template.Parsing)
	if err != nil {
		fileLog.WithError(err).Error("file load failed")
		result.Err = err
		return result
	}

	rows, err := s.executor.Execute(ctx, rel, req.Template)
	if err != nil {
		fileLog.WithError(err).Error("transform failed")
		result.Err = err
		return result
	}

	result.Result = validation.Validate(rows, req.Template.Parsing, validation.Options{MaxExamples: s.maxExamples})

	resolution, err := dedup.Resolve(ctx, s.store, req.UserID, result.Result.ValidatedData)
	if err != nil {
		fileLog.WithError(err).Error("duplicate resolution failed")
		result.Err = err
		return result
	}
	result.ToInsert = resolution.ToInsert
	result.SkippedDuplicates = resolution.Skipped()

	fileLog.Info("file processed",
		logging.F(logging.FieldRows, result.Result.TotalRows),
		logging.F(logging.FieldValidRows, result.Result.ValidRows),
		logging.F(logging.FieldSkipped, result.SkippedDuplicates))
	return result
}
