// Package keygen derives the deterministic deduplication key of a source
// row. The key is computed from the raw, pre-transform values of the
// template's identity columns so that re-imports stay idempotent even when
// the transform query itself evolves.
package keygen

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// separator joins identity values before hashing. The unit separator never
// appears in statement exports.
const separator = "\x1f"

// Key returns the hex-encoded SHA-256 over the row's identity-column values
// in their declared order. Columns missing from the header, or cells the
// row is too short to have, contribute the empty string.
//
// The function is pure: same values in the same order always produce the
// same key, across runs and processes.
func Key(row []string, identityColumns []string, headerIndex map[string]int) string {
	parts := make([]string, len(identityColumns))
	for i, col := range identityColumns {
		idx, ok := headerIndex[col]
		if !ok || idx < 0 || idx >= len(row) {
			continue
		}
		parts[i] = row[idx]
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}

// HeaderIndex builds a column-name -> position lookup for Key.
func HeaderIndex(columns []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}
	return index
}
