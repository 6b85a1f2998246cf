package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerpipe/internal/models"
)

// MockStore is an in-memory Store for tests. It enforces the same
// (user, key, not-deleted) uniqueness the database index does, so dedup
// behavior can be exercised without Postgres.
type MockStore struct {
	mu sync.Mutex

	Imports      map[string]*models.TransactionImport
	Transactions []MockTransaction

	// FailInsert makes InsertBatch return an error, simulating a
	// persistence failure.
	FailInsert bool
}

// MockTransaction is one persisted row in the mock ledger.
type MockTransaction struct {
	ID        string
	UserID    string
	AccountID string
	ImportID  string
	Row       models.LedgerRow
	IsDeleted bool
}

// NewMock creates an empty MockStore.
func NewMock() *MockStore {
	return &MockStore{Imports: make(map[string]*models.TransactionImport)}
}

func (m *MockStore) CreateImport(_ context.Context, userID, accountID string) (*models.TransactionImport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := &models.TransactionImport{
		ID:        uuid.New().String(),
		UserID:    userID,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
	m.Imports[record.ID] = record
	return record, nil
}

func (m *MockStore) FinalizeImport(_ context.Context, importID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.Imports[importID]
	if !ok {
		return fmt.Errorf("import %s not found", importID)
	}
	if record.SuccessAt != nil {
		return fmt.Errorf("import %s already finalized", importID)
	}
	now := time.Now()
	record.SuccessAt = &now
	record.CountTransactions = &count
	return nil
}

func (m *MockStore) ExistingKeys(_ context.Context, userID string, keys []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidates := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		candidates[key] = struct{}{}
	}
	existing := make(map[string]struct{})
	for _, tx := range m.Transactions {
		if tx.UserID != userID || tx.IsDeleted {
			continue
		}
		if _, ok := candidates[tx.Row.Key]; ok {
			existing[tx.Row.Key] = struct{}{}
		}
	}
	return existing, nil
}

func (m *MockStore) InsertBatch(_ context.Context, importID, userID, accountID string, rows []models.LedgerRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert {
		return 0, fmt.Errorf("mock insert failure")
	}

	inserted := 0
	for _, row := range rows {
		if m.hasKeyLocked(userID, row.Key) {
			continue // conflict-ignoring insert
		}
		m.Transactions = append(m.Transactions, MockTransaction{
			ID:        uuid.New().String(),
			UserID:    userID,
			AccountID: accountID,
			ImportID:  importID,
			Row:       row,
		})
		inserted++
	}
	return inserted, nil
}

func (m *MockStore) SoftDelete(_ context.Context, userID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for i := range m.Transactions {
		if m.Transactions[i].UserID != userID {
			continue
		}
		if _, ok := wanted[m.Transactions[i].ID]; ok {
			m.Transactions[i].IsDeleted = true
		}
	}
	return nil
}

// ActiveCount returns the number of non-deleted rows for a user.
func (m *MockStore) ActiveCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, tx := range m.Transactions {
		if tx.UserID == userID && !tx.IsDeleted {
			count++
		}
	}
	return count
}

func (m *MockStore) hasKeyLocked(userID, key string) bool {
	for _, tx := range m.Transactions {
		if tx.UserID == userID && !tx.IsDeleted && tx.Row.Key == key {
			return true
		}
	}
	return false
}
