// Package transform executes a template's analytical SQL against a loaded
// raw relation. The relation is staged into a session-scoped temp table
// (all columns TEXT, deterministic key attached), the {{data}} placeholder
// is substituted with a reference to it, and the statement runs as-is.
// Templates are configuration, not code: nothing in them is ever executed
// outside the database session, and the session is rolled back afterwards.
package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/keygen"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/relation"
)

// Executor runs transform queries on a Postgres pool.
type Executor struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(pool *pgxpool.Pool, log logging.Logger) *Executor {
	return &Executor{pool: pool, log: log}
}

// Execute stages the relation, substitutes the placeholder and runs the
// template's query, returning the transformed rows with the select list's
// column order preserved. Any SQL failure is fatal for the file and
// reported as *importerror.TransformError.
func (e *Executor) Execute(ctx context.Context, rel *relation.RawRelation, tmpl models.TransformTemplate) ([]models.Row, error) {
	if !HasPlaceholder(tmpl.TransformQuery) {
		return nil, &importerror.TransformError{
			TemplateID: tmpl.ID,
			Query:      tmpl.TransformQuery,
			Err:        fmt.Errorf("query must reference the {{data}} placeholder"),
		}
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, &importerror.TransformError{TemplateID: tmpl.ID, Err: fmt.Errorf("failed to acquire connection: %w", err)}
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, &importerror.TransformError{TemplateID: tmpl.ID, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	// The staging table is ON COMMIT DROP and nothing here should outlive
	// the statement, so the whole session is rolled back.
	defer tx.Rollback(ctx)

	table := "import_raw_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := e.stage(ctx, tx, table, rel, tmpl); err != nil {
		return nil, &importerror.TransformError{TemplateID: tmpl.ID, Err: err}
	}

	query := SubstitutePlaceholder(tmpl.TransformQuery, table)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, &importerror.TransformError{TemplateID: tmpl.ID, Query: query, Err: err}
	}
	defer rows.Close()

	columns := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}

	var out []models.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &importerror.TransformError{TemplateID: tmpl.ID, Query: query, Err: err}
		}
		rowValues := make(map[string]any, len(columns))
		for i, name := range columns {
			rowValues[name] = values[i]
		}
		out = append(out, models.Row{Columns: columns, Values: rowValues})
	}
	if err := rows.Err(); err != nil {
		return nil, &importerror.TransformError{TemplateID: tmpl.ID, Query: query, Err: err}
	}

	e.log.Debug("transform query executed",
		logging.F(logging.FieldTemplateID, tmpl.ID),
		logging.F(logging.FieldRows, len(out)))
	return out, nil
}

// stage creates the session helpers and the temp table, then bulk-copies
// the raw rows with their deterministic keys attached. Keys are computed
// from the raw, pre-transform values so they survive template evolution.
func (e *Executor) stage(ctx context.Context, tx pgx.Tx, table string, rel *relation.RawRelation, tmpl models.TransformTemplate) error {
	for _, helper := range helperSQL(tmpl.Parsing) {
		if _, err := tx.Exec(ctx, helper); err != nil {
			return fmt.Errorf("failed to create session helpers: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, stagingDDL(table, rel.Columns)); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	headerIndex := rel.HeaderIndex()
	copyRows := make([][]any, len(rel.Rows))
	for i, row := range rel.Rows {
		values := make([]any, len(rel.Columns)+1)
		for j := range rel.Columns {
			values[j] = row[j]
		}
		values[len(rel.Columns)] = keygen.Key(row, tmpl.Parsing.IdentityColumns, headerIndex)
		copyRows[i] = values
	}

	columns := append(stagingColumns(rel.Columns), keyColumn)
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(copyRows)); err != nil {
		return fmt.Errorf("failed to stage raw rows: %w", err)
	}
	return nil
}
