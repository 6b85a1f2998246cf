package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerpipe/internal/models"
)

func TestMockStore_ImportLifecycle(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	imp, err := m.CreateImport(ctx, "u1", "acc1")
	require.NoError(t, err)
	assert.NotEmpty(t, imp.ID)
	assert.Nil(t, imp.SuccessAt)
	assert.False(t, imp.Succeeded())

	require.NoError(t, m.FinalizeImport(ctx, imp.ID, 7))
	record := m.Imports[imp.ID]
	require.NotNil(t, record.SuccessAt)
	require.NotNil(t, record.CountTransactions)
	assert.Equal(t, 7, *record.CountTransactions)

	// Finalize is exactly-once.
	assert.Error(t, m.FinalizeImport(ctx, imp.ID, 7))
	assert.Error(t, m.FinalizeImport(ctx, "missing", 0))
}

func TestMockStore_InsertBatchIgnoresConflicts(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	rows := []models.LedgerRow{{Key: "a"}, {Key: "b"}}
	inserted, err := m.InsertBatch(ctx, "imp1", "u1", "acc1", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Re-inserting the same keys inserts nothing.
	inserted, err = m.InsertBatch(ctx, "imp2", "u1", "acc1", rows)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, m.ActiveCount("u1"))

	// A different user is unaffected by u1's keys.
	inserted, err = m.InsertBatch(ctx, "imp3", "u2", "acc2", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
}

func TestMockStore_ExistingKeys(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	_, err := m.InsertBatch(ctx, "imp1", "u1", "acc1", []models.LedgerRow{{Key: "a"}, {Key: "b"}})
	require.NoError(t, err)

	existing, err := m.ExistingKeys(ctx, "u1", []string{"a", "c"})
	require.NoError(t, err)
	assert.Contains(t, existing, "a")
	assert.NotContains(t, existing, "b") // not a candidate
	assert.NotContains(t, existing, "c")

	existing, err = m.ExistingKeys(ctx, "u2", []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestMockStore_SoftDeleteFreesKey(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	_, err := m.InsertBatch(ctx, "imp1", "u1", "acc1", []models.LedgerRow{{Key: "a"}})
	require.NoError(t, err)
	id := m.Transactions[0].ID

	require.NoError(t, m.SoftDelete(ctx, "u1", []string{id}))
	assert.Equal(t, 0, m.ActiveCount("u1"))

	existing, err := m.ExistingKeys(ctx, "u1", []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, existing)

	// The key can be imported again after the soft delete.
	inserted, err := m.InsertBatch(ctx, "imp2", "u1", "acc1", []models.LedgerRow{{Key: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, m.ActiveCount("u1"))
}

func TestMockStore_FailInsert(t *testing.T) {
	m := NewMock()
	m.FailInsert = true

	_, err := m.InsertBatch(context.Background(), "imp1", "u1", "acc1", []models.LedgerRow{{Key: "a"}})
	assert.Error(t, err)
}
