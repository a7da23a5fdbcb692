package cli

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finsync/internal/config"
	"github.com/dvloznov/finsync/internal/export"
	"github.com/dvloznov/finsync/internal/logger"
	"github.com/dvloznov/finsync/internal/pipeline"
	"github.com/dvloznov/finsync/internal/plaid"
	"github.com/dvloznov/finsync/internal/store"
)

type syncOptions struct {
	exportTables []string
	timeout      time.Duration
}

func NewSyncCmd() *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync [start-date] [end-date]",
		Short: "Pull accounts and transactions into Postgres",
		Long: `Sync runs the full pipeline: fetch accounts and transactions from Plaid
for the given date window (default: the last 90 days) and upsert them into
Postgres. Dates are YYYY-MM-DD.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.exportTables, "export-tables", nil,
		"tables to export to the configured bucket after a successful load")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall run timeout")

	return cmd
}

func runSync(ctx context.Context, opts *syncOptions, args []string) error {
	log := logger.New()
	ctx, cancel := context.WithTimeout(logger.WithContext(ctx, log), opts.timeout)
	defer cancel()

	var window [2]civil.Date
	for i, arg := range args {
		d, err := civil.ParseDate(arg)
		if err != nil {
			return fmt.Errorf("parse date %q: %w", arg, err)
		}
		window[i] = d
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireSync(); err != nil {
		return err
	}

	st, err := store.Open(cfg.ConnString())
	if err != nil {
		return err
	}

	var exporter pipeline.TableExporter
	if len(opts.exportTables) > 0 {
		if cfg.Bucket == "" {
			st.Close()
			return &config.MissingVarError{Key: "GCS_BUCKET"}
		}
		sink, err := export.NewGCSSink(ctx)
		if err != nil {
			st.Close()
			return err
		}
		defer sink.Close()
		exporter = export.New(st, sink, cfg.Bucket)
	}

	client := plaid.NewClient(cfg.PlaidBaseURL, cfg.PlaidClientID, cfg.PlaidSecret)
	orch := pipeline.New(client, st, exporter)

	report, err := orch.Run(ctx, pipeline.Options{
		AccessToken:  cfg.PlaidAccessToken,
		PublicToken:  cfg.PlaidPublicToken,
		Start:        window[0],
		End:          window[1],
		ExportTables: opts.exportTables,
		ExportPrefix: cfg.Prefix,
	})
	if err != nil {
		return err
	}

	fmt.Printf("accounts loaded: %d (inserted %d, updated %d)\n",
		report.Accounts.Total(), report.Accounts.Inserted, report.Accounts.Updated)
	fmt.Printf("transactions loaded: %d (inserted %d, updated %d)\n",
		report.Transactions.Total(), report.Transactions.Inserted, report.Transactions.Updated)
	for _, res := range report.Exports {
		fmt.Printf("exported %s: %d rows -> %s\n", res.Table, res.Rows, res.Key)
	}
	return nil
}
