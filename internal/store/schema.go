package store

import (
	"context"
	"fmt"
)

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id        VARCHAR(255) PRIMARY KEY,
    name              VARCHAR(255),
    official_name     VARCHAR(255),
    type              VARCHAR(50),
    subtype           VARCHAR(50),
    mask              VARCHAR(10),
    current_balance   DECIMAL(15,2),
    available_balance DECIMAL(15,2),
    currency_code     VARCHAR(10),
    created_at        TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at        TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
)`

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
    transaction_id    VARCHAR(255) PRIMARY KEY,
    account_id        VARCHAR(255) REFERENCES accounts(account_id),
    amount            DECIMAL(15,2),
    date              DATE,
    name              VARCHAR(500),
    merchant_name     VARCHAR(255),
    category          TEXT[],
    pending           BOOLEAN,
    payment_channel   VARCHAR(50),
    transaction_type  VARCHAR(50),
    location          JSONB,
    created_at        TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
    updated_at        TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
)`

const createAccountIndex = `CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id)`
const createDateIndex = `CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`

// EnsureSchema creates the target tables and indexes when they do not exist
// yet, in one transaction.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		createAccountsTable,
		createTransactionsTable,
		createAccountIndex,
		createDateIndex,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("EnsureSchema: begin: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("EnsureSchema: commit: %w", err)
	}
	return nil
}
