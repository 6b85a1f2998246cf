// Package validation checks every transformed row against the canonical
// transaction shape. A bad row never aborts a batch: rows split into
// validated and rejected sets, and per-field failures are aggregated into
// a bounded summary the caller can show to a user.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"ledgerpipe/internal/models"
)

// DefaultMaxExamples bounds how many offending raw values are kept per
// field in the aggregated error summary.
const DefaultMaxExamples = 5

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Options tune validation behavior.
type Options struct {
	// MaxExamples caps stored example values per field; DefaultMaxExamples
	// when zero or negative.
	MaxExamples int
}

// fieldError is one field failure of one row.
type fieldError struct {
	field   string
	message string
	value   any
}

// Validate validates every row independently and returns the split result
// with aggregated diagnostics. The parsing config supplies the decimal
// separator and date format used to coerce raw string values.
func Validate(rows []models.Row, cfg models.ParsingConfig, opts Options) *models.TransformationResult {
	maxExamples := opts.MaxExamples
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}

	result := &models.TransformationResult{
		Data:             rows,
		ValidatedData:    make([]models.LedgerRow, 0, len(rows)),
		AggregatedErrors: make(map[string]*models.FieldErrors),
		TotalRows:        len(rows),
	}

	var rejected []fieldError
	for _, row := range rows {
		ledgerRow, errs := validateRow(row, cfg)
		if len(errs) == 0 {
			result.ValidatedData = append(result.ValidatedData, ledgerRow)
			continue
		}
		result.RejectedData = append(result.RejectedData, row)
		rejected = append(rejected, errs...)
	}

	result.ValidRows = len(result.ValidatedData)
	result.AggregatedErrors = aggregate(rejected, maxExamples)
	return result
}

// validateRow checks a single transformed row and builds its canonical
// form. All field errors of the row are collected, not just the first.
func validateRow(row models.Row, cfg models.ParsingConfig) (models.LedgerRow, []fieldError) {
	var out models.LedgerRow
	var errs []fieldError

	fail := func(field, message string) {
		errs = append(errs, fieldError{field: field, message: message, value: row.Get(field)})
	}

	out.Key = requiredString(row, "key", fail)
	out.Title = requiredString(row, "title", fail)

	if date, err := coerceDate(row.Get("date"), cfg.DateFormat); err != nil {
		fail("date", "must be a valid date")
	} else {
		out.Date = date
	}

	typeValue := strings.ToLower(strings.TrimSpace(stringOrEmpty(row.Get("type"))))
	if !models.ValidTransactionType(typeValue) {
		fail("type", "must be one of transfer, credit, debit")
	} else {
		out.Type = models.TransactionType(typeValue)
	}

	out.AccountAmount = requiredAmount(row, "accountAmount", cfg, fail)
	out.AccountCurrency = requiredCurrency(row, "accountCurrency", fail)

	// Spending amount/currency fall back to the account values when the
	// template does not produce them; most single-currency exports don't.
	if isEmpty(row.Get("spendingAmount")) {
		out.SpendingAmount = out.AccountAmount
	} else {
		out.SpendingAmount = requiredAmount(row, "spendingAmount", cfg, fail)
	}
	if isEmpty(row.Get("spendingCurrency")) {
		out.SpendingCurrency = out.AccountCurrency
	} else {
		out.SpendingCurrency = requiredCurrency(row, "spendingCurrency", fail)
	}

	out.Counterparty = strings.TrimSpace(stringOrEmpty(row.Get("counterparty")))
	out.Reference = strings.TrimSpace(stringOrEmpty(row.Get("reference")))
	out.IBAN = strings.TrimSpace(stringOrEmpty(row.Get("iban")))

	if !isEmpty(row.Get("balance")) {
		// Balances keep their sign; only transaction amounts are absolute.
		if d, err := coerceDecimal(row.Get("balance"), cfg.DecimalSeparator); err != nil {
			fail("balance", "must be a number")
		} else {
			out.Balance = decimal.NewNullDecimal(d)
		}
	}

	return out, errs
}

func requiredString(row models.Row, field string, fail func(field, message string)) string {
	s := strings.TrimSpace(stringOrEmpty(row.Get(field)))
	if s == "" {
		fail(field, "is required")
	}
	return s
}

func requiredCurrency(row models.Row, field string, fail func(field, message string)) string {
	s := strings.TrimSpace(stringOrEmpty(row.Get(field)))
	if !currencyPattern.MatchString(s) {
		fail(field, "must be a 3-letter currency code")
		return ""
	}
	return strings.ToUpper(s)
}

// requiredAmount coerces an amount and enforces that it is non-negative.
// Direction is carried by the type field, never by the sign.
func requiredAmount(row models.Row, field string, cfg models.ParsingConfig, fail func(field, message string)) decimal.Decimal {
	v := row.Get(field)
	if isEmpty(v) {
		fail(field, "is required")
		return decimal.Zero
	}
	d, err := coerceDecimal(v, cfg.DecimalSeparator)
	if err != nil {
		fail(field, "must be a number")
		return decimal.Zero
	}
	if d.IsNegative() {
		fail(field, "must be a non-negative amount")
		return decimal.Zero
	}
	return d
}

func stringOrEmpty(v any) string {
	s, _ := coerceString(v)
	return s
}

// aggregate folds per-row field errors into the bounded per-field summary:
// messages deduplicated by text, example values unique and capped, while
// the count always reflects the true total.
func aggregate(errs []fieldError, maxExamples int) map[string]*models.FieldErrors {
	agg := make(map[string]*models.FieldErrors)
	for _, e := range errs {
		entry, ok := agg[e.field]
		if !ok {
			entry = &models.FieldErrors{}
			agg[e.field] = entry
		}
		entry.Count++

		if !containsString(entry.Messages, e.message) {
			entry.Messages = append(entry.Messages, e.message)
		}

		if e.value == nil || len(entry.Examples) >= maxExamples {
			continue
		}
		example := fmt.Sprintf("%v", e.value)
		if !containsExample(entry.Examples, example) {
			entry.Examples = append(entry.Examples, e.value)
		}
	}
	return agg
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsExample(list []any, formatted string) bool {
	for _, item := range list {
		if fmt.Sprintf("%v", item) == formatted {
			return true
		}
	}
	return false
}
