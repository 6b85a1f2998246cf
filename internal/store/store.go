// Package store persists the transaction ledger and the per-session import
// bookkeeping records in Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerpipe/internal/models"
)

// Schema is the DDL for the tables this package owns. The composite unique
// index on (user_id, key, is_deleted) is the system's authoritative dedup
// guard; application-level pre-filtering is an optimization on top of it.
const Schema = `
CREATE TABLE IF NOT EXISTS transaction_import (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	account_id         TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	success_at         TIMESTAMPTZ,
	count_transactions INTEGER
);

CREATE TABLE IF NOT EXISTS transaction (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	account_id        TEXT NOT NULL,
	import_id         TEXT NOT NULL REFERENCES transaction_import(id),
	key               TEXT NOT NULL,
	date              DATE NOT NULL,
	title             TEXT NOT NULL,
	type              TEXT NOT NULL,
	account_amount    NUMERIC(12,2) NOT NULL,
	account_currency  CHAR(3) NOT NULL,
	spending_amount   NUMERIC(12,2) NOT NULL,
	spending_currency CHAR(3) NOT NULL,
	counterparty      TEXT,
	reference         TEXT,
	balance           NUMERIC(12,2),
	iban              TEXT,
	is_deleted        BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS transaction_user_key_unique
	ON transaction (user_id, key, is_deleted);
`

// Store is the persistence surface the pipeline depends on. The orchestrator
// and resolver accept this interface so tests can run against a mock.
type Store interface {
	// CreateImport inserts a fresh import record before any file is touched.
	CreateImport(ctx context.Context, userID, accountID string) (*models.TransactionImport, error)

	// FinalizeImport stamps success_at and the actually-inserted row count.
	// Called exactly once per import, and only when at least one file
	// survived to persistence.
	FinalizeImport(ctx context.Context, importID string, count int) error

	// ExistingKeys returns which of the candidate keys already exist for
	// the user among non-deleted transactions.
	ExistingKeys(ctx context.Context, userID string, keys []string) (map[string]struct{}, error)

	// InsertBatch bulk-inserts ledger rows tagged with the import id,
	// ignoring unique-key conflicts, and returns the number of rows
	// actually inserted.
	InsertBatch(ctx context.Context, importID, userID, accountID string, rows []models.LedgerRow) (int, error)

	// SoftDelete marks transactions as deleted. Ledger rows are never
	// hard-deleted so the key-uniqueness history survives.
	SoftDelete(ctx context.Context, userID string, ids []string) error
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New creates a PostgresStore on the given pool.
func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateImport(ctx context.Context, userID, accountID string) (*models.TransactionImport, error) {
	record := &models.TransactionImport{
		ID:        uuid.New().String(),
		UserID:    userID,
		AccountID: accountID,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transaction_import (id, user_id, account_id) VALUES ($1, $2, $3) RETURNING created_at`,
		record.ID, record.UserID, record.AccountID,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create import record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FinalizeImport(ctx context.Context, importID string, count int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transaction_import SET success_at = now(), count_transactions = $2
		 WHERE id = $1 AND success_at IS NULL`,
		importID, count,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize import %s: %w", importID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import %s not found or already finalized", importID)
	}
	return nil
}

func (s *PostgresStore) ExistingKeys(ctx context.Context, userID string, keys []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(keys) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT key FROM transaction
		 WHERE user_id = $1 AND is_deleted = false AND key = ANY($2)`,
		userID, keys,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		existing[key] = struct{}{}
	}
	return existing, rows.Err()
}

// InsertBatch uses a single pgx batch of conflict-ignoring inserts. The
// returned count comes from the command tags, so rows lost to a concurrent
// overlapping import are not counted.
func (s *PostgresStore) InsertBatch(ctx context.Context, importID, userID, accountID string, ledgerRows []models.LedgerRow) (int, error) {
	if len(ledgerRows) == 0 {
		return 0, nil
	}

	const insertSQL = `
		INSERT INTO transaction (
			id, user_id, account_id, import_id, key, date, title, type,
			account_amount, account_currency, spending_amount, spending_currency,
			counterparty, reference, balance, iban
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id, key, is_deleted) DO NOTHING`

	batch := &pgx.Batch{}
	for _, row := range ledgerRows {
		var balance any
		if row.Balance.Valid {
			balance = row.Balance.Decimal
		}
		batch.Queue(insertSQL,
			uuid.New().String(), userID, accountID, importID, row.Key,
			row.Date, row.Title, string(row.Type),
			row.AccountAmount, row.AccountCurrency,
			row.SpendingAmount, row.SpendingCurrency,
			nullable(row.Counterparty), nullable(row.Reference), balance, nullable(row.IBAN),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range ledgerRows {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("bulk insert failed: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE transaction SET is_deleted = true
		 WHERE user_id = $1 AND id = ANY($2) AND is_deleted = false`,
		userID, ids,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete transactions: %w", err)
	}
	return nil
}

// GetImport loads one import record.
func (s *PostgresStore) GetImport(ctx context.Context, importID string) (*models.TransactionImport, error) {
	var record models.TransactionImport
	var successAt *time.Time
	var count *int
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, account_id, created_at, success_at, count_transactions
		 FROM transaction_import WHERE id = $1`,
		importID,
	).Scan(&record.ID, &record.UserID, &record.AccountID, &record.CreatedAt, &successAt, &count)
	if err != nil {
		return nil, fmt.Errorf("failed to load import %s: %w", importID, err)
	}
	record.SuccessAt = successAt
	record.CountTransactions = count
	return &record, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
