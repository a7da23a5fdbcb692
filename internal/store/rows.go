package store

import (
	"database/sql"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// AccountRow is one row of the accounts table, keyed by the source-assigned
// account_id. Optional fields are SQL NULL when the source did not report
// them, keeping "unknown" distinct from "empty".
type AccountRow struct {
	AccountID        string
	Name             sql.NullString
	OfficialName     sql.NullString
	Type             sql.NullString
	Subtype          sql.NullString
	Mask             sql.NullString
	CurrentBalance   decimal.NullDecimal
	AvailableBalance decimal.NullDecimal
	CurrencyCode     sql.NullString
}

// TransactionRow is one row of the transactions table, keyed by
// transaction_id and referencing accounts(account_id). Location holds the
// serialized JSON object; it is stored opaquely.
type TransactionRow struct {
	TransactionID   string
	AccountID       string
	Amount          decimal.Decimal
	Date            civil.Date
	Name            sql.NullString
	MerchantName    sql.NullString
	Category        []string
	Pending         sql.NullBool
	PaymentChannel  sql.NullString
	TransactionType sql.NullString
	Location        []byte
}

// UpsertResult reports how many rows of a batch were fresh inserts and how
// many modified an existing row.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// Total is the number of rows the batch touched.
func (r UpsertResult) Total() int { return r.Inserted + r.Updated }
