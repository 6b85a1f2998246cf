package transform

import (
	"fmt"
	"regexp"
	"strings"

	"ledgerpipe/internal/dateutils"
	"ledgerpipe/internal/models"
)

// placeholderPattern matches the {{data}} placeholder, whitespace-tolerant.
var placeholderPattern = regexp.MustCompile(`\{\{\s*data\s*\}\}`)

// keyColumn is the staging column carrying the deterministic row key. A raw
// source column with the same name is renamed on staging (see stagingColumns).
const keyColumn = "key"

// HasPlaceholder reports whether the query references the {{data}} relation.
func HasPlaceholder(query string) bool {
	return placeholderPattern.MatchString(query)
}

// SubstitutePlaceholder replaces every {{data}} occurrence with a subselect
// of the staging table.
func SubstitutePlaceholder(query, table string) string {
	source := fmt.Sprintf("(SELECT * FROM %s)", quoteIdent(table))
	return placeholderPattern.ReplaceAllString(query, source)
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes. Header
// names are used verbatim as column names, spaces and all.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// stagingColumns returns the staging-table column names for the raw
// relation: every raw column, with a raw column literally named "key"
// renamed to key_raw so it cannot collide with the generated key.
func stagingColumns(raw []string) []string {
	columns := make([]string, len(raw))
	for i, name := range raw {
		if name == keyColumn {
			name = "key_raw"
		}
		columns[i] = name
	}
	return columns
}

// stagingDDL builds the CREATE TEMP TABLE statement for one raw relation.
// Every raw column is TEXT; typing is the transform query's business.
func stagingDDL(table string, rawColumns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TEMP TABLE ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	for _, name := range stagingColumns(rawColumns) {
		b.WriteString(quoteIdent(name))
		b.WriteString(" TEXT, ")
	}
	b.WriteString(quoteIdent(keyColumn))
	b.WriteString(" TEXT) ON COMMIT DROP")
	return b.String()
}

// helperSQL builds the session-scoped SQL helpers templates may call:
// pg_temp.parse_amount(text) parses a numeric value using the template's
// decimal separator, and pg_temp.parse_date(text) parses a DATE using the
// template's date format.
//
// Both collapse empty input to NULL so templates can guard optional
// columns without extra CASE expressions.
func helperSQL(cfg models.ParsingConfig) []string {
	var amountBody string
	if cfg.DecimalSeparator == "," {
		// Dots are thousands grouping, comma is the decimal mark.
		amountBody = `replace(replace(regexp_replace(btrim(coalesce($1, '')), '[^0-9,.\-−]', '', 'g'), '.', ''), ',', '.')`
	} else {
		amountBody = `replace(regexp_replace(btrim(coalesce($1, '')), '[^0-9,.\-−]', '', 'g'), ',', '')`
	}
	// U+2212 shows up as the minus sign in some exports.
	amountBody = fmt.Sprintf(`NULLIF(replace(%s, '−', '-'), '')::numeric`, amountBody)

	parseAmount := fmt.Sprintf(
		"CREATE OR REPLACE FUNCTION pg_temp.parse_amount(text) RETURNS numeric AS $fn$ SELECT %s $fn$ LANGUAGE SQL IMMUTABLE",
		amountBody,
	)

	parseDate := fmt.Sprintf(
		"CREATE OR REPLACE FUNCTION pg_temp.parse_date(text) RETURNS date AS $fn$ SELECT to_date(NULLIF(btrim(coalesce($1, '')), ''), '%s') $fn$ LANGUAGE SQL IMMUTABLE",
		dateutils.PostgresFormat(cfg.DateFormat),
	)

	return []string{parseAmount, parseDate}
}
