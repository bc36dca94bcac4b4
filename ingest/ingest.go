// Package ingest loads every file of one format from a directory into a
// single named database table.
//
// All files in the source directory are read as one combined record stream
// and written through a Backend, so the table ends up holding the union of
// their rows. Loading the same directory twice under PolicyAppend inserts
// every row again; the loader never deduplicates.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/huandu/xstrings"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	sqliteint "github.com/arcbench/arcbench/integrations/sqlite"
	"github.com/arcbench/arcbench/internal/arrio"
	"github.com/arcbench/arcbench/internal/logging"
	"github.com/arcbench/arcbench/internal/schemas"
	"github.com/arcbench/arcbench/pipeline"
)

// ErrSchemaMismatch reports that an append target already exists with
// columns that do not line up with the incoming data. The load is aborted
// before any row is written.
var ErrSchemaMismatch = errors.New("table schema mismatch")

// Policy controls what happens when the destination table already exists.
type Policy int

const (
	PolicyInvalid Policy = iota
	// PolicyReplace drops any existing table and recreates it from the
	// incoming schema before loading.
	PolicyReplace
	// PolicyAppend creates the table when missing and otherwise appends to
	// it, provided the existing columns match the incoming schema.
	PolicyAppend
)

// ParsePolicy maps a policy name from the command line onto a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "replace":
		return PolicyReplace, nil
	case "append":
		return PolicyAppend, nil
	default:
		return PolicyInvalid, fmt.Errorf("unknown ingest policy %q (valid: replace, append)", name)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyReplace:
		return "replace"
	case PolicyAppend:
		return "append"
	default:
		return "invalid"
	}
}

// A Backend prepares a destination table and hands back a writer that loads
// Arrow records into it. SQLite and DuckDB backends are provided; any store
// that can honor the replace/append policies can slot in here.
type Backend interface {
	// Prepare applies the policy to the table and returns a writer for the
	// incoming schema. Under PolicyAppend it must fail with
	// ErrSchemaMismatch, without writing anything, when an existing table
	// does not match the schema.
	Prepare(ctx context.Context, table string, schema *arrow.Schema, policy Policy) (arrio.Writer, error)

	// RowCount reports how many rows the table currently holds.
	RowCount(ctx context.Context, table string) (int64, error)

	Close() error
}

// NormalizeTable folds a user-supplied table name into snake_case and
// verifies the result is a plain SQL identifier.
func NormalizeTable(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("table name cannot be empty")
	}
	norm := xstrings.ToSnakeCase(strings.TrimSpace(name))
	if !sqliteint.ValidIdent(norm) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return norm, nil
}

// Options tunes a directory load.
type Options struct {
	// Policy picks the replace or append behavior. Required.
	Policy Policy

	// Logger receives progress output. Defaults to a nop logger.
	Logger kitlog.Logger
}

// Result summarizes a completed load.
type Result struct {
	Table     string
	Files     []string
	RowsRead  int64
	TableRows int64
}

// Run reads every file matching the format's extension under dir and loads
// the combined stream into the named table through the backend. An empty
// directory is a successful no-op.
func Run(ctx context.Context, backend Backend, dir, table string, format integrations.FileFormat, opts *Options) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("source directory cannot be empty")
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.Policy != PolicyReplace && opts.Policy != PolicyAppend {
		return nil, fmt.Errorf("unknown ingest policy %v (valid: replace, append)", opts.Policy)
	}
	logger := logging.OrNop(opts.Logger)

	norm, err := NormalizeTable(table)
	if err != nil {
		return nil, err
	}

	open, err := integrations.ReaderFor(format, schemas.PeopleSchema())
	if err != nil {
		return nil, err
	}

	reader, err := integrations.NewDirectoryReader(ctx, dir, format.Glob(), open)
	if err != nil {
		return nil, err
	}

	res := &Result{Table: norm, Files: reader.Files()}
	if len(res.Files) == 0 {
		reader.Close()
		level.Info(logger).Log("msg", "nothing to ingest", "dir", dir, "format", format)
		return res, nil
	}

	level.Info(logger).Log("msg", "ingesting files", "dir", dir, "format", format,
		"files", len(res.Files), "table", norm, "policy", opts.Policy)

	writer, err := backend.Prepare(ctx, norm, schemas.PeopleSchema(), opts.Policy)
	if err != nil {
		reader.Close()
		return nil, err
	}

	metrics, err := pipeline.NewDataPipeline(reader, writer).WithLogger(logger).Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest %s files from %s: %w", format, dir, err)
	}
	res.RowsRead = metrics.Rows()

	rows, err := backend.RowCount(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows in %s: %w", norm, err)
	}
	res.TableRows = rows

	level.Info(logger).Log("msg", "ingest complete", "table", norm,
		"rows_read", res.RowsRead, "table_rows", res.TableRows,
		"duration", metrics.Duration())
	return res, nil
}

// columnsMatch compares an existing table's column names against the
// incoming schema, in order.
func columnsMatch(existing []string, schema *arrow.Schema) bool {
	if len(existing) != schema.NumFields() {
		return false
	}
	for i, name := range existing {
		if !strings.EqualFold(name, schema.Field(i).Name) {
			return false
		}
	}
	return true
}

func schemaMismatchErr(table string, existing []string, schema *arrow.Schema) error {
	incoming := make([]string, schema.NumFields())
	for i := range incoming {
		incoming[i] = schema.Field(i).Name
	}
	return fmt.Errorf("%w: table %q has columns %v, incoming data has %v",
		ErrSchemaMismatch, table, existing, incoming)
}
