// Package export streams relational tables into csv artifacts in object
// storage, keyed by table name and export timestamp.
package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const contentTypeCSV = "text/csv"

// RowSource is the slice of the relational store the exporter reads.
type RowSource interface {
	QueryTable(ctx context.Context, table string) (*sql.Rows, error)
	CountRows(ctx context.Context, table string) (int64, error)
}

// Result describes one finished export.
type Result struct {
	Table string
	Rows  int64
	Key   string
}

// Error is a per-table export failure. Sibling table exports keep going; the
// caller collects these into a run summary.
type Error struct {
	Table string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("export %s: %v", e.Table, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Exporter streams tables out of the store into csv artifacts in a bucket.
// Exports of different tables share no state and may run concurrently.
type Exporter struct {
	source    RowSource
	sink      ObjectSink
	bucket    string
	threshold int
	now       func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithSpoolThreshold sets the in-memory spill threshold in bytes.
func WithSpoolThreshold(n int) Option {
	return func(e *Exporter) { e.threshold = n }
}

// WithClock replaces the artifact timestamp source. Tests use it for
// deterministic keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func New(source RowSource, sink ObjectSink, bucket string, opts ...Option) *Exporter {
	e := &Exporter{
		source:    source,
		sink:      sink,
		bucket:    bucket,
		threshold: defaultSpoolThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ArtifactKey builds the immutable object key for one export:
// prefix/table.YYYYMMDDTHHMMSSZ.csv. The timestamp comes from the export's
// start instant in UTC, so exports of a table at different times never
// collide and every artifact stays independently retrievable.
func ArtifactKey(prefix, table string, t time.Time) string {
	key := fmt.Sprintf("%s.%s.csv", table, t.UTC().Format("20060102T150405")+"Z")
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/" + key
	}
	return key
}

// Export streams the full table through a spill buffer into the sink and
// returns the artifact key with the post-export row count. Rows comes from an
// actual COUNT query, not an estimate, so callers can assert completeness.
func (e *Exporter) Export(ctx context.Context, table, prefix string) (Result, error) {
	key := ArtifactKey(prefix, table, e.now())

	spool := NewSpool(e.threshold)
	defer spool.Close()

	if err := e.writeCSV(ctx, table, spool); err != nil {
		return Result{}, &Error{Table: table, Err: err}
	}

	body, err := spool.Reader()
	if err != nil {
		return Result{}, &Error{Table: table, Err: err}
	}
	if err := e.sink.Put(ctx, e.bucket, key, contentTypeCSV, body); err != nil {
		return Result{}, &Error{Table: table, Err: err}
	}

	count, err := e.source.CountRows(ctx, table)
	if err != nil {
		return Result{}, &Error{Table: table, Err: err}
	}
	return Result{Table: table, Rows: count, Key: key}, nil
}

// writeCSV streams the table into w: one header row of column names, then
// one record per row, with quoting for embedded delimiters and newlines. An
// empty table still yields the header row.
func (e *Exporter) writeCSV(ctx context.Context, table string, w io.Writer) error {
	rows, err := e.source.QueryTable(ctx, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// formatValue renders one scanned column for csv output. NULL becomes an
// empty field, matching COPY ... WITH CSV.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
