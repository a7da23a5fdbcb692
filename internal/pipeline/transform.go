package pipeline

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finsync/internal/plaid"
	"github.com/dvloznov/finsync/internal/store"
)

// emptyObject is what an absent location serializes to, so the column is
// always a valid JSON object and never SQL NULL.
var emptyObject = []byte("{}")

// MapAccounts converts source accounts to rows. Field presence is validated
// here, once; downstream components trust the rows.
func MapAccounts(accounts []plaid.Account) ([]store.AccountRow, error) {
	rows := make([]store.AccountRow, 0, len(accounts))
	for i, a := range accounts {
		row, err := MapAccount(a)
		if err != nil {
			return nil, fmt.Errorf("map account %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MapAccount flattens one source account into its row form. Missing optional
// fields become SQL NULL, never empty strings.
func MapAccount(a plaid.Account) (store.AccountRow, error) {
	if a.AccountID == "" {
		return store.AccountRow{}, fmt.Errorf("account_id is empty")
	}
	return store.AccountRow{
		AccountID:        a.AccountID,
		Name:             nullString(a.Name),
		OfficialName:     nullString(a.OfficialName),
		Type:             canonicalEnum(a.Type),
		Subtype:          canonicalEnumPtr(a.Subtype),
		Mask:             nullString(a.Mask),
		CurrentBalance:   nullDecimal(a.Balances.Current),
		AvailableBalance: nullDecimal(a.Balances.Available),
		CurrencyCode:     nullString(a.Balances.ISOCurrencyCode),
	}, nil
}

// MapTransactions converts source transactions to rows in source order.
func MapTransactions(transactions []plaid.Transaction) ([]store.TransactionRow, error) {
	rows := make([]store.TransactionRow, 0, len(transactions))
	for i, t := range transactions {
		row, err := MapTransaction(t)
		if err != nil {
			return nil, fmt.Errorf("map transaction %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MapTransaction flattens one source transaction. The nested location object
// is serialized opaquely; nil serializes to an empty object. A nil category
// list becomes an empty array so the column is never NULL.
func MapTransaction(t plaid.Transaction) (store.TransactionRow, error) {
	if t.TransactionID == "" {
		return store.TransactionRow{}, fmt.Errorf("transaction_id is empty")
	}
	if t.AccountID == "" {
		return store.TransactionRow{}, fmt.Errorf("transaction %s: account_id is empty", t.TransactionID)
	}

	location, err := serializeLocation(t.Location)
	if err != nil {
		return store.TransactionRow{}, fmt.Errorf("transaction %s: location: %w", t.TransactionID, err)
	}

	category := t.Category
	if category == nil {
		category = []string{}
	}

	return store.TransactionRow{
		TransactionID:   t.TransactionID,
		AccountID:       t.AccountID,
		Amount:          t.Amount,
		Date:            t.Date,
		Name:            nullString(t.Name),
		MerchantName:    nullString(t.MerchantName),
		Category:        category,
		Pending:         nullBool(t.Pending),
		PaymentChannel:  canonicalEnum(t.PaymentChannel),
		TransactionType: canonicalEnum(t.TransactionType),
		Location:        location,
	}, nil
}

func serializeLocation(loc *plaid.Location) ([]byte, error) {
	if loc == nil {
		return emptyObject, nil
	}
	return json.Marshal(loc)
}

// canonicalEnum lower-cases an enum-like classification so equal values from
// differently-cased responses store identically. Empty stays NULL.
func canonicalEnum(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.ToLower(s), Valid: true}
}

func canonicalEnumPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return canonicalEnum(*s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
