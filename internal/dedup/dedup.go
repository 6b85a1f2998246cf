// Package dedup decides which validated rows actually need inserting. It
// removes rows whose key the user already has and collapses duplicate keys
// inside the batch itself. This is a performance and UX optimization: the
// database's unique index together with conflict-ignoring inserts remains
// the authoritative guard, so a race between overlapping imports can never
// create duplicate ledger rows.
package dedup

import (
	"context"
	"fmt"

	"ledgerpipe/internal/models"
)

// KeyStore is the slice of the persistence layer the resolver needs.
type KeyStore interface {
	ExistingKeys(ctx context.Context, userID string, keys []string) (map[string]struct{}, error)
}

// Resolution is the outcome of duplicate resolution for one batch.
type Resolution struct {
	ToInsert []models.LedgerRow
	// SkippedKeys lists the keys dropped as duplicates, in source order,
	// one entry per dropped row. Duplicates are informational, not errors.
	SkippedKeys []string
}

// Skipped returns the number of rows dropped as duplicates.
func (r Resolution) Skipped() int {
	return len(r.SkippedKeys)
}

// Resolve filters the batch against the user's persisted keys and against
// itself. The persisted-key lookup is restricted to the candidate keys of
// this batch, never a full scan. Within the batch, the first row of a key
// wins, by source order.
func Resolve(ctx context.Context, store KeyStore, userID string, rows []models.LedgerRow) (*Resolution, error) {
	if len(rows) == 0 {
		return &Resolution{}, nil
	}

	keys := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.Key]; ok {
			continue
		}
		seen[row.Key] = struct{}{}
		keys = append(keys, row.Key)
	}

	existing, err := store.ExistingKeys(ctx, userID, keys)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	resolution := &Resolution{ToInsert: make([]models.LedgerRow, 0, len(rows))}
	taken := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := existing[row.Key]; dup {
			resolution.SkippedKeys = append(resolution.SkippedKeys, row.Key)
			continue
		}
		if _, dup := taken[row.Key]; dup {
			resolution.SkippedKeys = append(resolution.SkippedKeys, row.Key)
			continue
		}
		taken[row.Key] = struct{}{}
		resolution.ToInsert = append(resolution.ToInsert, row)
	}
	return resolution, nil
}
