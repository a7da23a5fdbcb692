package plaid

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Balances is the nested balance object carried on every account. Amounts are
// decimals: currency values must round-trip without drift.
type Balances struct {
	Available       *decimal.Decimal `json:"available"`
	Current         *decimal.Decimal `json:"current"`
	ISOCurrencyCode *string          `json:"iso_currency_code"`
}

// Account is one account as the source API reports it. AccountID is the
// source-assigned natural key.
type Account struct {
	AccountID    string   `json:"account_id"`
	Name         *string  `json:"name"`
	OfficialName *string  `json:"official_name"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Mask         *string  `json:"mask"`
	Balances     Balances `json:"balances"`
}

// Location is the nested place-of-transaction object. It is stored opaquely
// downstream and never queried field by field.
type Location struct {
	Address     *string  `json:"address,omitempty"`
	City        *string  `json:"city,omitempty"`
	Region      *string  `json:"region,omitempty"`
	PostalCode  *string  `json:"postal_code,omitempty"`
	Country     *string  `json:"country,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	StoreNumber *string  `json:"store_number,omitempty"`
}

// Transaction is one transaction as the source API reports it, keyed by
// TransactionID and referencing its account by AccountID.
type Transaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Date            civil.Date      `json:"date"`
	Name            *string         `json:"name"`
	MerchantName    *string         `json:"merchant_name"`
	Category        []string        `json:"category"`
	Pending         *bool           `json:"pending"`
	PaymentChannel  string          `json:"payment_channel"`
	TransactionType string          `json:"transaction_type"`
	Location        *Location       `json:"location"`
}
