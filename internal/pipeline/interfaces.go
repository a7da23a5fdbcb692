package pipeline

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finsync/internal/export"
	"github.com/dvloznov/finsync/internal/plaid"
	"github.com/dvloznov/finsync/internal/store"
)

// SourceClient is the slice of the source API the pipeline drives.
type SourceClient interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	GetAccounts(ctx context.Context, accessToken string) ([]plaid.Account, error)
	GetTransactions(ctx context.Context, accessToken string, start, end civil.Date) ([]plaid.Transaction, int, error)
}

// RecordStore is the slice of the relational store the pipeline drives. The
// orchestrator owns the connection lifecycle: it calls Close exactly once
// when the run ends, on success or failure.
type RecordStore interface {
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	UpsertAccounts(ctx context.Context, rows []store.AccountRow) (store.UpsertResult, error)
	UpsertTransactions(ctx context.Context, rows []store.TransactionRow) (store.UpsertResult, error)
	Close() error
}

// TableExporter ships one table to object storage.
type TableExporter interface {
	Export(ctx context.Context, table, prefix string) (export.Result, error)
}
