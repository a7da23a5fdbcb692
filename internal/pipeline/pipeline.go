// Package pipeline sequences one sync run: resolve a credential, connect,
// provision schema, extract from the source API, map, load, and optionally
// export. A run is a linear state machine with no internal retries; a failed
// run is re-attempted only as a fresh run by the caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsync/internal/export"
	"github.com/dvloznov/finsync/internal/logger"
	"github.com/dvloznov/finsync/internal/store"
)

// DefaultWindowDays is the extraction window used when no dates are given:
// the last 90 days ending today.
const DefaultWindowDays = 90

// ErrNoCredential means neither an access token nor a public token was
// supplied, so the run cannot reach the source API.
var ErrNoCredential = errors.New("pipeline: an access token or a public token is required")

// Options are the per-run inputs.
type Options struct {
	// AccessToken is used directly when set; otherwise PublicToken is
	// exchanged for one. One of the two must be present.
	AccessToken string
	PublicToken string

	// Start and End bound the transaction window, inclusive. Zero values
	// default to the last DefaultWindowDays ending today.
	Start civil.Date
	End   civil.Date

	// ExportTables, when non-empty, are exported after a successful load.
	// An export failure here fails the run.
	ExportTables []string
	ExportPrefix string
}

// Report summarizes a finished run.
type Report struct {
	RunID        string
	ItemID       string
	Accounts     store.UpsertResult
	Transactions store.UpsertResult
	Exports      []export.Result
}

// Orchestrator drives one run against injected collaborators. It owns the
// store connection and releases it when Run returns.
type Orchestrator struct {
	source   SourceClient
	store    RecordStore
	exporter TableExporter
	state    State
}

// New creates an orchestrator. exporter may be nil when no export is
// requested; Run fails if ExportTables is set without one.
func New(source SourceClient, st RecordStore, exporter TableExporter) *Orchestrator {
	return &Orchestrator{source: source, store: st, exporter: exporter}
}

// State reports where the run currently sits. After Run returns it is either
// StateDone or StateFailed.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the pipeline once. Any component failure moves the run to
// StateFailed and surfaces the triggering error; the store connection is
// released either way. The returned report is only meaningful on success.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Report, error) {
	o.state = StateIdle
	report := Report{RunID: uuid.NewString()}

	log := logger.FromContext(ctx).With().Str("run_id", report.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if err := o.store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing store connection")
		}
	}()

	start, end, err := resolveWindow(opts.Start, opts.End)
	if err != nil {
		return report, o.fail(log, err)
	}
	if len(opts.ExportTables) > 0 && o.exporter == nil {
		return report, o.fail(log, errors.New("export requested without an exporter"))
	}

	accessToken := opts.AccessToken
	switch {
	case accessToken != "":
	case opts.PublicToken != "":
		accessToken, report.ItemID, err = o.source.ExchangePublicToken(ctx, opts.PublicToken)
		if err != nil {
			return report, o.fail(log, err)
		}
		log.Info().Str("item_id", report.ItemID).Msg("exchanged public token")
	default:
		return report, o.fail(log, ErrNoCredential)
	}

	if err := o.store.Ping(ctx); err != nil {
		return report, o.fail(log, fmt.Errorf("connect store: %w", err))
	}
	o.state = StateConnected

	if err := o.store.EnsureSchema(ctx); err != nil {
		return report, o.fail(log, err)
	}
	o.state = StateSchemaReady
	log.Info().Msg("store connected, schema ready")

	accounts, err := o.source.GetAccounts(ctx, accessToken)
	if err != nil {
		return report, o.fail(log, err)
	}
	transactions, total, err := o.source.GetTransactions(ctx, accessToken, start, end)
	if err != nil {
		return report, o.fail(log, err)
	}
	o.state = StateExtracted
	log.Info().
		Int("accounts", len(accounts)).
		Int("transactions", total).
		Stringer("start", start).
		Stringer("end", end).
		Msg("extracted")

	// Accounts load first: transactions reference them by foreign key.
	accountRows, err := MapAccounts(accounts)
	if err != nil {
		return report, o.fail(log, err)
	}
	report.Accounts, err = o.store.UpsertAccounts(ctx, accountRows)
	if err != nil {
		return report, o.fail(log, err)
	}

	transactionRows, err := MapTransactions(transactions)
	if err != nil {
		return report, o.fail(log, err)
	}
	report.Transactions, err = o.store.UpsertTransactions(ctx, transactionRows)
	if err != nil {
		return report, o.fail(log, err)
	}
	o.state = StateLoaded
	log.Info().
		Int("accounts_inserted", report.Accounts.Inserted).
		Int("accounts_updated", report.Accounts.Updated).
		Int("transactions_inserted", report.Transactions.Inserted).
		Int("transactions_updated", report.Transactions.Updated).
		Msg("loaded")

	if len(opts.ExportTables) > 0 {
		for _, table := range opts.ExportTables {
			res, err := o.exporter.Export(ctx, table, opts.ExportPrefix)
			if err != nil {
				return report, o.fail(log, err)
			}
			report.Exports = append(report.Exports, res)
			log.Info().Str("table", res.Table).Int64("rows", res.Rows).Str("key", res.Key).Msg("exported")
		}
		o.state = StateExported
	}

	o.state = StateDone
	log.Info().Msg("run complete")
	return report, nil
}

// fail marks the run failed, logs the triggering error, and wraps it with the
// state the run failed from.
func (o *Orchestrator) fail(log zerolog.Logger, err error) error {
	prior := o.state
	o.state = StateFailed
	log.Error().Err(err).Stringer("state", prior).Msg("run failed")
	return fmt.Errorf("pipeline failed in state %s: %w", prior, err)
}

// resolveWindow fills in defaults for an unset window: end today, start
// DefaultWindowDays earlier.
func resolveWindow(start, end civil.Date) (civil.Date, civil.Date, error) {
	if !end.IsValid() {
		end = civil.DateOf(time.Now().UTC())
	}
	if !start.IsValid() {
		start = end.AddDays(-DefaultWindowDays)
	}
	if end.Before(start) {
		return civil.Date{}, civil.Date{}, fmt.Errorf("invalid window: start %s is after end %s", start, end)
	}
	return start, end, nil
}
