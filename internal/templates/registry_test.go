package templates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerpipe/internal/importerror"
	"ledgerpipe/internal/logging"
	"ledgerpipe/internal/models"
)

const registryYAML = `templates:
  - id: alpha-bank
    bankAccountTemplateId: alpha-bank-checking
    type: checking
    name: Alpha Bank Checking
    parsing:
      format: csv
      hasHeader: true
      dateFormat: yyyy-MM-dd
      identityColumns: ["Date", "Description", "Amount"]
    transformQuery: SELECT key FROM {{data}}
  - id: beta-card
    bankAccountTemplateId: beta-card-cc
    type: credit_card
    name: Beta Credit Card
    parsing:
      format: csv
      delimiter: ";"
      hasHeader: true
      decimalSeparator: ","
      dateFormat: dd.MM.yyyy
      identityColumns: ["Datum", "Betrag"]
    transformQuery: SELECT key FROM {{data}}
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Registry(t *testing.T) {
	reg, err := Load(writeRegistry(t, registryYAML), logging.NewNop())
	require.NoError(t, err)

	tmpl, err := reg.Get("beta-card")
	require.NoError(t, err)
	assert.Equal(t, "Beta Credit Card", tmpl.Name)
	assert.Equal(t, ";", tmpl.Parsing.Delimiter)
	assert.Equal(t, []string{"Datum", "Betrag"}, tmpl.Parsing.IdentityColumns)

	_, err = reg.Get("missing")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), logging.NewNop())
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeRegistry(t, "templates: [not: valid: yaml"), logging.NewNop())
	assert.Error(t, err)
}

func TestLoad_DuplicateID(t *testing.T) {
	dup := registryYAML + `  - id: alpha-bank
    type: checking
    parsing:
      format: csv
      identityColumns: ["Date"]
    transformQuery: SELECT key FROM {{data}}
`
	_, err := Load(writeRegistry(t, dup), logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate template id")
}

func TestLoad_RejectsUnusableTemplate(t *testing.T) {
	noPlaceholder := `templates:
  - id: broken
    type: checking
    parsing:
      format: csv
      identityColumns: ["Date"]
    transformQuery: SELECT 1
`
	_, err := Load(writeRegistry(t, noPlaceholder), logging.NewNop())
	require.Error(t, err)

	var tErr *importerror.TemplateError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "broken", tErr.TemplateID)
}

func TestForBankAccount(t *testing.T) {
	reg, err := Load(writeRegistry(t, registryYAML), logging.NewNop())
	require.NoError(t, err)

	tmpl, err := reg.ForBankAccount("beta-card-cc", models.AccountTypeCreditCard)
	require.NoError(t, err)
	assert.Equal(t, "beta-card", tmpl.ID)

	// Same bank-account template id with a different account type misses.
	_, err = reg.ForBankAccount("beta-card-cc", models.AccountTypeChecking)
	assert.Error(t, err)
}

func TestList_SortedByID(t *testing.T) {
	reg, err := Load(writeRegistry(t, registryYAML), logging.NewNop())
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha-bank", list[0].ID)
	assert.Equal(t, "beta-card", list[1].ID)
}

func TestCheck(t *testing.T) {
	good := models.TransformTemplate{
		ID:             "ok",
		TransformQuery: "SELECT key FROM {{data}}",
		Parsing: models.ParsingConfig{
			Format:          models.FormatCSV,
			IdentityColumns: []string{"Date"},
		},
	}
	assert.NoError(t, Check(good))

	tests := []struct {
		name   string
		mutate func(*models.TransformTemplate)
	}{
		{"missing id", func(m *models.TransformTemplate) { m.ID = "" }},
		{"no placeholder", func(m *models.TransformTemplate) { m.TransformQuery = "SELECT 1" }},
		{"no identity columns", func(m *models.TransformTemplate) { m.Parsing.IdentityColumns = nil }},
		{"unknown format", func(m *models.TransformTemplate) { m.Parsing.Format = "parquet" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := good
			tt.mutate(&tmpl)
			var tErr *importerror.TemplateError
			assert.True(t, errors.As(Check(tmpl), &tErr))
		})
	}
}
