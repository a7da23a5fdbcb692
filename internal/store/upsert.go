package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

var accountColumns = []string{
	"account_id", "name", "official_name", "type", "subtype", "mask",
	"current_balance", "available_balance", "currency_code", "created_at", "updated_at",
}

var transactionColumns = []string{
	"transaction_id", "account_id", "amount", "date", "name", "merchant_name",
	"category", "pending", "payment_channel", "transaction_type", "location",
	"created_at", "updated_at",
}

// LoadError is a bulk statement failure. The surrounding transaction has been
// rolled back; none of the batch was committed.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Table, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// UpsertAccounts writes the batch in one INSERT ... ON CONFLICT statement
// inside a single transaction. The xmax pre-image of each returned row tells
// fresh inserts apart from updates without a separate existence check, so
// there is no window between check and write. created_at is only set on
// insert; updated_at advances on every call. An empty batch is a no-op.
func (s *Store) UpsertAccounts(ctx context.Context, rows []AccountRow) (UpsertResult, error) {
	if len(rows) == 0 {
		return UpsertResult{}, nil
	}

	now := time.Now().UTC()
	args := make([]interface{}, 0, len(rows)*len(accountColumns))
	for _, r := range rows {
		args = append(args,
			r.AccountID, r.Name, r.OfficialName, r.Type, r.Subtype, r.Mask,
			r.CurrentBalance, r.AvailableBalance, r.CurrencyCode, now, now,
		)
	}

	query := fmt.Sprintf(`INSERT INTO accounts (%s) VALUES %s
ON CONFLICT (account_id) DO UPDATE SET
    name = EXCLUDED.name,
    official_name = EXCLUDED.official_name,
    type = EXCLUDED.type,
    subtype = EXCLUDED.subtype,
    mask = EXCLUDED.mask,
    current_balance = EXCLUDED.current_balance,
    available_balance = EXCLUDED.available_balance,
    currency_code = EXCLUDED.currency_code,
    updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`,
		strings.Join(accountColumns, ", "), valuesClause(len(rows), len(accountColumns)))

	return s.runUpsert(ctx, "accounts", query, args)
}

// UpsertTransactions writes the batch like UpsertAccounts. Rows referencing
// an account that is not in the store fail the whole batch: the foreign key
// rejects them and the transaction rolls back with nothing committed.
func (s *Store) UpsertTransactions(ctx context.Context, rows []TransactionRow) (UpsertResult, error) {
	if len(rows) == 0 {
		return UpsertResult{}, nil
	}

	now := time.Now().UTC()
	args := make([]interface{}, 0, len(rows)*len(transactionColumns))
	for _, r := range rows {
		args = append(args,
			r.TransactionID, r.AccountID, r.Amount, r.Date.In(time.UTC),
			r.Name, r.MerchantName, pq.Array(r.Category), r.Pending,
			r.PaymentChannel, r.TransactionType, r.Location, now, now,
		)
	}

	query := fmt.Sprintf(`INSERT INTO transactions (%s) VALUES %s
ON CONFLICT (transaction_id) DO UPDATE SET
    account_id = EXCLUDED.account_id,
    amount = EXCLUDED.amount,
    date = EXCLUDED.date,
    name = EXCLUDED.name,
    merchant_name = EXCLUDED.merchant_name,
    category = EXCLUDED.category,
    pending = EXCLUDED.pending,
    payment_channel = EXCLUDED.payment_channel,
    transaction_type = EXCLUDED.transaction_type,
    location = EXCLUDED.location,
    updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`,
		strings.Join(transactionColumns, ", "), valuesClause(len(rows), len(transactionColumns)))

	return s.runUpsert(ctx, "transactions", query, args)
}

// valuesClause builds ($1,$2,...),($n+1,...) for n rows of the given width.
func valuesClause(rows, cols int) string {
	var b strings.Builder
	p := 1
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (s *Store) runUpsert(ctx context.Context, table, query string, args []interface{}) (UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, &LoadError{Table: table, Err: fmt.Errorf("begin: %w", err)}
	}

	res, err := scanInserted(ctx, tx, query, args)
	if err != nil {
		tx.Rollback()
		return UpsertResult{}, &LoadError{Table: table, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, &LoadError{Table: table, Err: fmt.Errorf("commit: %w", err)}
	}
	return res, nil
}

func scanInserted(ctx context.Context, tx *sql.Tx, query string, args []interface{}) (UpsertResult, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return UpsertResult{}, err
	}
	defer rows.Close()

	var res UpsertResult
	for rows.Next() {
		var inserted bool
		if err := rows.Scan(&inserted); err != nil {
			return UpsertResult{}, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	if err := rows.Err(); err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}
