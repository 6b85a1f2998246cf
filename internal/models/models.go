// Package models provides the data structures used throughout the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Format identifies the physical layout of an uploaded statement file.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// AccountType classifies the bank account a template belongs to.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeSavings    AccountType = "savings"
)

// TransactionType is the canonical direction of a ledger row.
// The sign of an amount never carries direction; this field does.
type TransactionType string

const (
	TypeTransfer TransactionType = "transfer"
	TypeCredit   TransactionType = "credit"
	TypeDebit    TransactionType = "debit"
)

// ValidTransactionType reports whether s is one of the canonical types.
func ValidTransactionType(s string) bool {
	switch TransactionType(s) {
	case TypeTransfer, TypeCredit, TypeDebit:
		return true
	}
	return false
}

// ParsingConfig describes how to read one institution's export format
// before the transform query sees it.
type ParsingConfig struct {
	Format             Format   `yaml:"format" json:"format"`
	Encoding           string   `yaml:"encoding,omitempty" json:"encoding,omitempty"`   // defaults to UTF-8
	Delimiter          string   `yaml:"delimiter,omitempty" json:"delimiter,omitempty"` // CSV only, defaults to ','
	SkipRows           int      `yaml:"skipRows,omitempty" json:"skipRows,omitempty"`
	HasHeader          bool     `yaml:"hasHeader" json:"hasHeader"`
	SheetName          string   `yaml:"sheetName,omitempty" json:"sheetName,omitempty"` // Excel only, first sheet if empty
	DecimalSeparator   string   `yaml:"decimalSeparator,omitempty" json:"decimalSeparator,omitempty"`
	ThousandsSeparator string   `yaml:"thousandsSeparator,omitempty" json:"thousandsSeparator,omitempty"`
	DateFormat         string   `yaml:"dateFormat,omitempty" json:"dateFormat,omitempty"` // e.g. dd.MM.yyyy
	IdentityColumns    []string `yaml:"identityColumns" json:"identityColumns"`
}

// TransformTemplate pairs a parsing configuration with the SQL statement
// that maps an institution's raw columns to the canonical shape. The query
// is written against the {{data}} placeholder relation.
//
// Templates are admin-authored configuration. Once referenced by a live
// import they are immutable; edits create a new template version.
type TransformTemplate struct {
	ID                    string        `yaml:"id" json:"id"`
	BankAccountTemplateID string        `yaml:"bankAccountTemplateId" json:"bankAccountTemplateId"`
	Type                  AccountType   `yaml:"type" json:"type"`
	Name                  string        `yaml:"name" json:"name"`
	Description           string        `yaml:"description,omitempty" json:"description,omitempty"`
	TransformQuery        string        `yaml:"transformQuery" json:"transformQuery"`
	Parsing               ParsingConfig `yaml:"parsing" json:"parsing"`
	SampleData            string        `yaml:"sampleData,omitempty" json:"sampleData,omitempty"`
}

// Row is one transform-query output row before validation. Keys of Values
// are the SQL output aliases; Columns preserves the select-list order.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Get returns the value for a column, or nil when the column is absent.
func (r Row) Get(name string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[name]
}

// LedgerRow is the canonical, validated shape of one transaction as it
// will be persisted. Amounts are absolute values; direction lives in Type.
type LedgerRow struct {
	Key              string              `csv:"key"`
	Date             string              `csv:"date"` // ISO YYYY-MM-DD
	Title            string              `csv:"title"`
	Type             TransactionType     `csv:"type"`
	AccountAmount    decimal.Decimal     `csv:"account_amount"`
	AccountCurrency  string              `csv:"account_currency"`
	SpendingAmount   decimal.Decimal     `csv:"spending_amount"`
	SpendingCurrency string              `csv:"spending_currency"`
	Counterparty     string              `csv:"counterparty"`
	Reference        string              `csv:"reference"`
	Balance          decimal.NullDecimal `csv:"-"`
	IBAN             string              `csv:"iban"`
}

// FieldErrors is the per-field rollup of validation failures. Messages are
// deduplicated by text, Examples holds a bounded sample of offending raw
// values, and Count is the true number of failures for the field.
type FieldErrors struct {
	Messages []string `json:"messages"`
	Examples []any    `json:"examples"`
	Count    int      `json:"count"`
}

// TransformationResult is what every file that reached validation produces,
// valid or not. Invariants: ValidRows == len(ValidatedData) and
// TotalRows == ValidRows + len(RejectedData).
type TransformationResult struct {
	Data             []Row                   `json:"data"`
	ValidatedData    []LedgerRow             `json:"validatedData"`
	RejectedData     []Row                   `json:"rejectedData"`
	AggregatedErrors map[string]*FieldErrors `json:"aggregatedErrors"`
	TotalRows        int                     `json:"totalRows"`
	ValidRows        int                     `json:"validRows"`
}

// TransactionImport is the bookkeeping record for one import session.
// It is created before any file is touched and finalized exactly once.
type TransactionImport struct {
	ID                string
	UserID            string
	AccountID         string
	CreatedAt         time.Time
	SuccessAt         *time.Time
	CountTransactions *int
}

// Succeeded reports whether the import was finalized successfully.
func (i TransactionImport) Succeeded() bool {
	return i.SuccessAt != nil
}
