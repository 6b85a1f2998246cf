package transform

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
	"ledgerpipe/internal/relation"
)

// testPool connects to the database named by DATABASE_URL, or skips the
// test when none is configured.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping database integration test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func loadSample(t *testing.T, csvData string, cfg models.ParsingConfig) *relation.RawRelation {
	t.Helper()
	rel, err := relation.Load(strings.NewReader(csvData), "sample.csv", cfg)
	require.NoError(t, err)
	return rel
}

func TestExecute_RejectsQueryWithoutPlaceholder(t *testing.T) {
	e := NewExecutor(nil, logging.NewNop())
	rel := &relation.RawRelation{Columns: []string{"a"}, Rows: [][]string{{"1"}}}

	_, err := e.Execute(context.Background(), rel, models.TransformTemplate{
		ID:             "bad",
		TransformQuery: "SELECT 1",
	})
	require.Error(t, err)

	var tErr *importerror.TransformError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "bad", tErr.TemplateID)
}

func TestExecute_GermanCreditCardStatement(t *testing.T) {
	pool := testPool(t)
	e := NewExecutor(pool, logging.NewNop())

	cfg := models.ParsingConfig{
		Format:           models.FormatCSV,
		Delimiter:        ";",
		SkipRows:         2,
		HasHeader:        true,
		DecimalSeparator: ",",
		DateFormat:       "dd.MM.yyyy",
		IdentityColumns:  []string{"Description", "Amount", "Authorised on", "Currency"},
	}
	rel := loadSample(t, "Miles & More Gold Credit Card;5310XXXXXXXX1598\n"+
		"\n"+
		"Authorised on;Processed on;Amount;Currency;Description\n"+
		"28.05.2025;29.05.2025;606,69;EUR;Lastschrift\n"+
		"28.05.2025;28.05.2025;-11,5;EUR;monatlicher Kartenpreis\n", cfg)

	tmpl := models.TransformTemplate{
		ID:      "dkb-test",
		Parsing: cfg,
		TransformQuery: `
			SELECT
				key,
				pg_temp.parse_date("Authorised on") AS "date",
				TRIM("Description") AS title,
				CASE WHEN pg_temp.parse_amount("Amount") < 0 THEN 'debit' ELSE 'credit' END AS "type",
				ABS(pg_temp.parse_amount("Amount")) AS "accountAmount",
				"Currency" AS "accountCurrency"
			FROM {{data}}`,
	}

	rows, err := e.Execute(context.Background(), rel, tmpl)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"key", "date", "title", "type", "accountAmount", "accountCurrency"}, rows[0].Columns)
	assert.Equal(t, "Lastschrift", rows[0].Get("title"))
	assert.Equal(t, "credit", rows[0].Get("type"))
	assert.Equal(t, "debit", rows[1].Get("type"))
	assert.NotEmpty(t, rows[0].Get("key"))
	assert.NotEqual(t, rows[0].Get("key"), rows[1].Get("key"))
}

func TestExecute_KeysAreStableAcrossRuns(t *testing.T) {
	pool := testPool(t)
	e := NewExecutor(pool, logging.NewNop())

	cfg := models.ParsingConfig{
		Format:          models.FormatCSV,
		HasHeader:       true,
		IdentityColumns: []string{"Date", "Description", "Amount"},
	}
	rel := loadSample(t, "Date,Description,Amount\n2025-05-28,Coffee,4.50\n", cfg)
	tmpl := models.TransformTemplate{ID: "stable", Parsing: cfg, TransformQuery: "SELECT key FROM {{data}}"}

	first, err := e.Execute(context.Background(), rel, tmpl)
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), rel, tmpl)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Get("key"), second[0].Get("key"))
}

func TestExecute_SQLErrorIsFatalForFile(t *testing.T) {
	pool := testPool(t)
	e := NewExecutor(pool, logging.NewNop())

	cfg := models.ParsingConfig{
		Format:          models.FormatCSV,
		HasHeader:       true,
		IdentityColumns: []string{"Date"},
	}
	rel := loadSample(t, "Date,Amount\n2025-05-28,4.50\n", cfg)
	tmpl := models.TransformTemplate{
		ID:             "broken",
		Parsing:        cfg,
		TransformQuery: `SELECT "NoSuchColumn" FROM {{data}}`,
	}

	_, err := e.Execute(context.Background(), rel, tmpl)
	require.Error(t, err)

	var tErr *importerror.TransformError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "broken", tErr.TemplateID)
}

func TestExecute_RawKeyColumnDoesNotCollide(t *testing.T) {
	pool := testPool(t)
	e := NewExecutor(pool, logging.NewNop())

	cfg := models.ParsingConfig{
		Format:          models.FormatCSV,
		HasHeader:       true,
		IdentityColumns: []string{"key"},
	}
	rel := loadSample(t, "key,Amount\nsource-id-1,4.50\n", cfg)
	tmpl := models.TransformTemplate{
		ID:             "key-collision",
		Parsing:        cfg,
		TransformQuery: `SELECT key, "key_raw" FROM {{data}}`,
	}

	rows, err := e.Execute(context.Background(), rel, tmpl)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "source-id-1", rows[0].Get("key_raw"))
	assert.Regexp(t, "^[0-9a-f]{64}$", rows[0].Get("key"))
}
