package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finsync/internal/config"
	"github.com/dvloznov/finsync/internal/export"
	"github.com/dvloznov/finsync/internal/logger"
	"github.com/dvloznov/finsync/internal/store"
)

const (
	exitMissingBucket = 2
	exitStoreConnect  = 3
)

type exportOptions struct {
	bucket  string
	prefix  string
	tables  []string
	dryRun  bool
	timeout time.Duration
}

// tableOutcome is one line of the run summary: either a finished export or
// the error that stopped this table. Failures never abort sibling tables.
type tableOutcome struct {
	table string
	rows  int64
	key   string
	err   error
}

func NewExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tables as csv artifacts to Cloud Storage",
		Long: `Export streams each table out of Postgres into a timestamped csv object
under the given bucket and prefix. Tables export independently: a failure in
one is reported in the summary without stopping the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.bucket, "bucket", "b", "", "destination bucket (default: GCS_BUCKET)")
	cmd.Flags().StringVarP(&opts.prefix, "prefix", "p", "", "object key prefix (default: GCS_PREFIX)")
	cmd.Flags().StringSliceVarP(&opts.tables, "tables", "t", []string{"accounts", "transactions"},
		"tables to export")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "count rows without writing anything")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall run timeout")

	return cmd
}

func runExport(ctx context.Context, opts *exportOptions) error {
	log := logger.New()
	ctx, cancel := context.WithTimeout(logger.WithContext(ctx, log), opts.timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireStore(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitStoreConnect)
	}

	if opts.bucket == "" {
		opts.bucket = cfg.Bucket
	}
	if opts.prefix == "" {
		opts.prefix = cfg.Prefix
	}
	if opts.bucket == "" && !opts.dryRun {
		fmt.Fprintln(os.Stderr, "error: no destination bucket: pass --bucket or set GCS_BUCKET")
		os.Exit(exitMissingBucket)
	}

	st, err := store.Open(cfg.ConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitStoreConnect)
	}
	defer st.Close()

	if opts.dryRun {
		return dryRun(ctx, st, opts)
	}

	sink, err := export.NewGCSSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	exporter := export.New(st, sink, opts.bucket)

	outcomes := make([]tableOutcome, 0, len(opts.tables))
	for _, table := range opts.tables {
		res, err := exporter.Export(ctx, table, opts.prefix)
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("export failed")
			outcomes = append(outcomes, tableOutcome{table: table, err: err})
			continue
		}
		log.Info().Str("table", table).Int64("rows", res.Rows).Str("key", res.Key).Msg("exported")
		outcomes = append(outcomes, tableOutcome{table: table, rows: res.Rows, key: res.Key})
	}

	return printSummary(outcomes)
}

// dryRun reports what an export would ship without touching object storage.
// Requested tables are checked against the schema so a typo shows up here
// instead of as a query error mid-export.
func dryRun(ctx context.Context, st *store.Store, opts *exportOptions) error {
	fmt.Println("Dry run: nothing will be written.")

	tables, err := st.ListTables(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}

	outcomes := make([]tableOutcome, 0, len(opts.tables))
	for _, table := range opts.tables {
		if !known[table] {
			outcomes = append(outcomes, tableOutcome{table: table, err: fmt.Errorf("table does not exist")})
			continue
		}
		n, err := st.CountRows(ctx, table)
		if err != nil {
			outcomes = append(outcomes, tableOutcome{table: table, err: err})
			continue
		}
		outcomes = append(outcomes, tableOutcome{
			table: table,
			rows:  n,
			key:   export.ArtifactKey(opts.prefix, table, time.Now()),
		})
	}
	return printSummary(outcomes)
}

func printSummary(outcomes []tableOutcome) error {
	failed := 0
	fmt.Println("Summary:")
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Printf("  %s: FAILED: %v\n", o.table, o.err)
			continue
		}
		fmt.Printf("  %s: %d rows -> %s\n", o.table, o.rows, o.key)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tables failed to export", failed, len(outcomes))
	}
	return nil
}
