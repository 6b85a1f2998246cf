// Package export writes validated ledger rows to the canonical CSV layout
// so imports can be inspected without touching the database.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"ledgerpipe/internal/models"
)

// Write serializes ledger rows as canonical CSV.
func Write(w io.Writer, rows []models.LedgerRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write canonical csv: %w", err)
	}
	return nil
}

// WriteFile writes canonical CSV to a file path.
func WriteFile(path string, rows []models.LedgerRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, rows)
}
