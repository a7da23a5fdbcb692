package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"cloud.google.com/go/civil"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func sampleAccounts(n int) []AccountRow {
	rows := make([]AccountRow, n)
	for i := range rows {
		rows[i] = AccountRow{
			AccountID:      "acct-" + string(rune('a'+i)),
			CurrentBalance: decimal.NullDecimal{Decimal: decimal.RequireFromString("100.25"), Valid: true},
		}
	}
	return rows
}

func sampleTransactions(n int) []TransactionRow {
	rows := make([]TransactionRow, n)
	for i := range rows {
		rows[i] = TransactionRow{
			TransactionID: "tx-" + string(rune('a'+i)),
			AccountID:     "acct-a",
			Amount:        decimal.RequireFromString("1234.56"),
			Date:          civil.Date{Year: 2025, Month: 2, Day: 14},
			Category:      []string{"Food and Drink", "Coffee"},
			Location:      []byte("{}"),
		}
	}
	return rows
}

func insertedRows(flags ...bool) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"inserted"})
	for _, f := range flags {
		rows.AddRow(f)
	}
	return rows
}

func TestUpsertAccountsEmptyBatchIsNoOp(t *testing.T) {
	st, mock := newMockStore(t)

	res, err := st.UpsertAccounts(context.Background(), nil)
	if err != nil {
		t.Fatalf("UpsertAccounts error: %v", err)
	}
	if res.Inserted != 0 || res.Updated != 0 {
		t.Errorf("expected zero counts, got %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("statements were issued for an empty batch: %v", err)
	}
}

func TestUpsertAccountsCountsInserts(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO accounts .*ON CONFLICT \(account_id\) DO UPDATE SET.*RETURNING \(xmax = 0\) AS inserted`).
		WillReturnRows(insertedRows(true, true))
	mock.ExpectCommit()

	res, err := st.UpsertAccounts(context.Background(), sampleAccounts(2))
	if err != nil {
		t.Fatalf("UpsertAccounts error: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 0 {
		t.Errorf("got %+v, want inserted 2 updated 0", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertAccountsIdempotentReplay(t *testing.T) {
	st, mock := newMockStore(t)

	// First run inserts both rows; replay of the same batch reports both as
	// updates and nothing as inserts.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO accounts`).WillReturnRows(insertedRows(true, true))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO accounts`).WillReturnRows(insertedRows(false, false))
	mock.ExpectCommit()

	batch := sampleAccounts(2)
	first, err := st.UpsertAccounts(context.Background(), batch)
	if err != nil {
		t.Fatalf("first UpsertAccounts error: %v", err)
	}
	second, err := st.UpsertAccounts(context.Background(), batch)
	if err != nil {
		t.Fatalf("second UpsertAccounts error: %v", err)
	}

	if first.Inserted != 2 || second.Inserted != 0 || second.Updated != 2 {
		t.Errorf("first %+v second %+v; want 2 inserts then 0 inserts 2 updates", first, second)
	}
	if first.Total() != second.Total() {
		t.Errorf("replay changed the touched row count: %d vs %d", first.Total(), second.Total())
	}
}

func TestUpsertTransactionsRollsBackOnError(t *testing.T) {
	st, mock := newMockStore(t)

	fkErr := errors.New(`insert or update on table "transactions" violates foreign key constraint`)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO transactions`).WillReturnError(fkErr)
	mock.ExpectRollback()

	_, err := st.UpsertTransactions(context.Background(), sampleTransactions(3))
	if err == nil {
		t.Fatal("expected error")
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T: %v", err, err)
	}
	if loadErr.Table != "transactions" {
		t.Errorf("Table = %q", loadErr.Table)
	}
	if !errors.Is(err, fkErr) {
		t.Error("LoadError should wrap the driver error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("rollback was not issued: %v", err)
	}
}

func TestUpsertTransactionsSingleStatement(t *testing.T) {
	st, mock := newMockStore(t)

	// 150 rows still go through exactly one statement in one transaction.
	flags := make([]bool, 150)
	for i := range flags {
		flags[i] = true
	}
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO transactions`).WillReturnRows(insertedRows(flags...))
	mock.ExpectCommit()

	rows := make([]TransactionRow, 150)
	for i := range rows {
		rows[i] = sampleTransactions(1)[0]
	}
	res, err := st.UpsertTransactions(context.Background(), rows)
	if err != nil {
		t.Fatalf("UpsertTransactions error: %v", err)
	}
	if res.Inserted != 150 {
		t.Errorf("Inserted = %d, want 150", res.Inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestValuesClause(t *testing.T) {
	tests := []struct {
		rows, cols int
		want       string
	}{
		{1, 1, "($1)"},
		{1, 3, "($1,$2,$3)"},
		{2, 2, "($1,$2), ($3,$4)"},
	}
	for _, tt := range tests {
		if got := valuesClause(tt.rows, tt.cols); got != tt.want {
			t.Errorf("valuesClause(%d, %d) = %q, want %q", tt.rows, tt.cols, got, tt.want)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("accounts"); got != `"accounts"` {
		t.Errorf("quoteIdent = %s", got)
	}
	if got := quoteIdent(`bad"name`); got != `"bad""name"` {
		t.Errorf("quoteIdent = %s", got)
	}
}
