package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/keygen"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/relation"
	"ledgerpipe/internal/store"
)

// passthroughExecutor maps raw rows straight to canonical columns the way
// an identity transform template would, key included.
type passthroughExecutor struct {
	err error
}

func (e *passthroughExecutor) Execute(_ context.Context, rel *relation.RawRelation, tmpl models.TransformTemplate) ([]models.Row, error) {
	if e.err != nil {
		return nil, e.err
	}
	index := rel.HeaderIndex()
	columns := []string{"key", "date", "title", "type", "accountAmount", "accountCurrency"}
	out := make([]models.Row, 0, len(rel.Rows))
	for _, raw := range rel.Rows {
		out = append(out, models.Row{
			Columns: columns,
			Values: map[string]any{
				"key":             keygen.Key(raw, tmpl.Parsing.IdentityColumns, index),
				"date":            raw[index["Date"]],
				"title":           raw[index["Description"]],
				"type":            "debit",
				"accountAmount":   raw[index["Amount"]],
				"accountCurrency": "EUR",
			},
		})
	}
	return out, nil
}

func testTemplate() models.TransformTemplate {
	return models.TransformTemplate{
		ID:   "test-template",
		Type: models.AccountTypeChecking,
		Parsing: models.ParsingConfig{
			Format:           models.FormatCSV,
			HasHeader:        true,
			DecimalSeparator: ".",
			DateFormat:       "yyyy-MM-dd",
			IdentityColumns:  []string{"Date", "Description", "Amount"},
		},
		TransformQuery: "SELECT * FROM {{data}}",
	}
}

func statementFile(name string, lines ...string) File {
	data := "Date,Description,Amount\n"
	for _, line := range lines {
		data += line + "\n"
	}
	return File{Name: name, Data: []byte(data)}
}

func newTestService(st store.Store, executor Executor) *Service {
	return New(st, executor, logging.NewNop(), Options{Workers: 2})
}

func TestRun_SingleFile(t *testing.T) {
	mock := store.NewMock()
	svc := newTestService(mock, &passthroughExecutor{})

	summary, err := svc.Run(context.Background(), Request{
		UserID:    "u1",
		AccountID: "acc1",
		Template:  testTemplate(),
		Files: []File{statementFile("may.csv",
			"2025-05-28,Coffee,4.50",
			"2025-05-29,Lunch,12.00",
		)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	assert.Zero(t, summary.SkippedDuplicates)
	require.Len(t, summary.Files, 1)
	assert.NoError(t, summary.Files[0].Err)
	assert.Equal(t, 2, summary.Files[0].Result.ValidRows)

	require.True(t, summary.Import.Succeeded())
	require.NotNil(t, summary.Import.CountTransactions)
	assert.Equal(t, 2, *summary.Import.CountTransactions)
	assert.Equal(t, 2, mock.ActiveCount("u1"))
}

func TestRun_ReimportIsIdempotent(t *testing.T) {
	mock := store.NewMock()
	svc := newTestService(mock, &passthroughExecutor{})
	req := Request{
		UserID:   "u1",
		Template: testTemplate(),
		Files:    []File{statementFile("may.csv", "2025-05-28,Coffee,4.50", "2025-05-29,Lunch,12.00")},
	}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.SkippedDuplicates)
	assert.True(t, second.Import.Succeeded())
	assert.Equal(t, 2, mock.ActiveCount("u1"))
}

func TestRun_OverlappingFilesFirstWins(t *testing.T) {
	mock := store.NewMock()
	svc := newTestService(mock, &passthroughExecutor{})

	summary, err := svc.Run(context.Background(), Request{
		UserID:   "u1",
		Template: testTemplate(),
		Files: []File{
			statementFile("may.csv", "2025-05-28,Coffee,4.50", "2025-05-31,Overlap,9.99"),
			statementFile("june.csv", "2025-05-31,Overlap,9.99", "2025-06-01,Rent,1200.00"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 1, summary.SkippedDuplicates)
	assert.Equal(t, 3, mock.ActiveCount("u1"))
}

func TestRun_FatalFileIsolation(t *testing.T) {
	mock := store.NewMock()
	svc := newTestService(mock, &passthroughExecutor{})

	summary, err := svc.Run(context.Background(), Request{
		UserID:   "u1",
		Template: testTemplate(),
		Files: []File{
			statementFile("good.csv", "2025-05-28,Coffee,4.50"),
			{Name: "empty.csv", Data: []byte("Date,Description,Amount\n")}, // header only
		},
	})
	require.NoError(t, err)

	require.Len(t, summary.Files, 2)
	assert.NoError(t, summary.Files[0].Err)
	assert.Error(t, summary.Files[1].Err)

	// The healthy file still lands and the import still finalizes.
	assert.Equal(t, 1, summary.Inserted)
	assert.True(t, summary.Import.Succeeded())
}

func TestRun_AllFilesFailedLeavesImportOpen(t *testing.T) {
	mock := store.NewMock()
	svc := newTestService(mock, &passthroughExecutor{err: fmt.Errorf("syntax error at or near FROM")})

	summary, err := svc.Run(context.Background(), Request{
		UserID:   "u1",
		Template: testTemplate(),
		Files:    []File{statementFile("a.csv", "2025-05-28,Coffee,4.50")},
	})
	require.NoError(t, err)

	assert.True(t, summary.AllFilesFailed())
	assert.Zero(t, summary.Inserted)
	assert.False(t, summary.Import.Succeeded())

	record := mock.Imports[summary.Import.ID]
	require.NotNil(t, record)
	assert.Nil(t, record.SuccessAt)
	assert.Zero(t, mock.ActiveCount("u1"))
}

func TestRun_InvalidRowsDoNotAbortFile(t *testing.T) {
	mock := store.NewMock()
	svc := newTestService(mock, &passthroughExecutor{})

	summary, err := svc.Run(context.Background(), Request{
		UserID:   "u1",
		Template: testTemplate(),
		Files: []File{statementFile("mixed.csv",
			"2025-05-28,Coffee,4.50",
			"garbage,Broken,not-a-number",
		)},
	})
	require.NoError(t, err)

	result := summary.Files[0].Result
	require.NotNil(t, result)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.ValidRows)
	assert.Contains(t, result.AggregatedErrors, "date")

	assert.Equal(t, 1, summary.Inserted)
	assert.True(t, summary.Import.Succeeded())
}

func TestRun_InsertFailureLeavesImportOpen(t *testing.T) {
	mock := store.NewMock()
	mock.FailInsert = true
	svc := newTestService(mock, &passthroughExecutor{})

	summary, err := svc.Run(context.Background(), Request{
		UserID:   "u1",
		Template: testTemplate(),
		Files:    []File{statementFile("a.csv", "2025-05-28,Coffee,4.50")},
	})
	require.Error(t, err)
	require.NotNil(t, summary)

	var pErr *importerror.PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, summary.Import.ID, pErr.ImportID)

	assert.False(t, summary.Import.Succeeded())
	assert.Nil(t, mock.Imports[summary.Import.ID].SuccessAt)
}

func TestRun_NoFiles(t *testing.T) {
	svc := newTestService(store.NewMock(), &passthroughExecutor{})
	_, err := svc.Run(context.Background(), Request{UserID: "u1", Template: testTemplate()})
	assert.Error(t, err)
}

func TestRun_ManyFilesThroughWorkerPool(t *testing.T) {
	mock := store.NewMock()
	svc := New(mock, &passthroughExecutor{}, logging.NewNop(), Options{Workers: 3})

	files := make([]File, 10)
	for i := range files {
		files[i] = statementFile(fmt.Sprintf("f%d.csv", i),
			fmt.Sprintf("2025-05-%02d,Entry %d,%d.00", i+1, i, i+1))
	}

	summary, err := svc.Run(context.Background(), Request{UserID: "u1", Template: testTemplate(), Files: files})
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Inserted)
	require.Len(t, summary.Files, 10)
	for i, f := range summary.Files {
		assert.Equal(t, fmt.Sprintf("f%d.csv", i), f.Name, "results keep file order")
		assert.NoError(t, f.Err)
	}
	assert.Equal(t, 10, mock.ActiveCount("u1"))
}
