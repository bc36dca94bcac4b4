package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow/array"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	duckdbint "github.com/arcbench/arcbench/integrations/duckdb"
	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/config"
	"github.com/arcbench/arcbench/internal/schemas"
)

// viewName is what the source files are exposed as inside a database
// session, and the table the fixed query selects from.
const viewName = "people"

// embeddedEngine hands the files to DuckDB: the load phase creates a view
// over them and forces a full scan, the query phase runs the fixed SQL.
type embeddedEngine struct {
	cfg    *config.Config
	logger kitlog.Logger
}

func (e *embeddedEngine) Kind() Kind { return KindEmbeddedDB }

func (e *embeddedEngine) options() *duckdbint.Options {
	// In-memory database: the engine queries files, it does not keep state.
	return &duckdbint.Options{
		DriverCandidates: e.cfg.DuckDBDriverCandidates(),
		Entrypoint:       e.cfg.DuckDB.Entrypoint,
	}
}

func (e *embeddedEngine) Validate(ctx context.Context) error {
	if _, err := e.options().ResolveDriver(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (e *embeddedEngine) Run(ctx context.Context, req *Request) (*Result, error) {
	return runSQL(ctx, e.Kind(), e.options(), req, e.logger)
}

// sourceExpr renders the DuckDB table function that reads the request's
// files.
func sourceExpr(req *Request) (string, error) {
	glob := duckdbint.QuoteLiteral(filepath.ToSlash(filepath.Join(req.Dir, req.Format.Glob())))
	switch req.Format {
	case integrations.FormatCSV:
		return "read_csv_auto(" + glob + ", header = true)", nil
	case integrations.FormatJSON:
		return "read_json_auto(" + glob + ", format = 'newline_delimited')", nil
	case integrations.FormatParquet:
		return "parquet_scan(" + glob + ")", nil
	default:
		return "", fmt.Errorf("unsupported source format %q (valid: csv, json, parquet)", req.Format)
	}
}

// runSQL executes the benchmark through an ADBC connection. Both the
// embedded and the GPU engine share this path; they differ only in which
// driver library the connection loads.
func runSQL(ctx context.Context, kind Kind, opts *duckdbint.Options, req *Request, logger kitlog.Logger) (*Result, error) {
	files, err := filepath.Glob(filepath.Join(req.Dir, req.Format.Glob()))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", req.Dir, err)
	}
	res := &Result{Engine: kind, Files: len(files)}
	if len(files) == 0 {
		level.Info(logger).Log("msg", "no source files", "dir", req.Dir, "format", req.Format)
		return res, nil
	}

	conn, err := duckdbint.Connect(ctx, opts)
	if err != nil {
		if errors.Is(err, duckdbint.ErrDriverMissing) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	defer conn.Close()

	expr, err := sourceExpr(req)
	if err != nil {
		return nil, err
	}

	res.LoadDuration, err = timed(func() error {
		if err := conn.Exec(ctx, "CREATE OR REPLACE VIEW "+duckdbint.QuoteIdent(viewName)+" AS SELECT * FROM "+expr); err != nil {
			return fmt.Errorf("failed to create view over %s: %w", req.Dir, err)
		}
		if err := checkViewColumns(ctx, conn); err != nil {
			return err
		}
		n, err := conn.QueryCount(ctx, "SELECT COUNT(*) FROM "+duckdbint.QuoteIdent(viewName))
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", req.Dir, err)
		}
		res.RowsScanned = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.QueryDuration, err = timed(func() error {
		rows, err := queryRows(ctx, conn)
		if err != nil {
			return err
		}
		res.Rows = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.ExportPath != "" {
		n, err := exportSQL(ctx, conn, req.ExportPath)
		if err != nil {
			return nil, err
		}
		res.ExportedRows = n
		res.ExportPath = req.ExportPath
	}

	return res, nil
}

// timed runs fn against the monotonic clock.
func timed(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// checkViewColumns verifies the view exposes the columns the fixed query
// needs, so a malformed source fails during load rather than mid-query.
func checkViewColumns(ctx context.Context, conn *duckdbint.Conn) error {
	records, err := conn.Query(ctx, "DESCRIBE "+duckdbint.QuoteIdent(viewName))
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", viewName, err)
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	seen := make(map[string]bool)
	for _, rec := range records {
		col, ok := rec.Column(0).(*array.String)
		if !ok {
			return fmt.Errorf("unexpected describe column type %T", rec.Column(0))
		}
		for i := 0; i < col.Len(); i++ {
			seen[col.Value(i)] = true
		}
	}
	for _, want := range []string{schemas.PeopleName, schemas.PeopleAge} {
		if !seen[want] {
			return fmt.Errorf("source files have no %q column", want)
		}
	}
	return nil
}

// queryRows streams the fixed query's answer off the connection.
func queryRows(ctx context.Context, conn *duckdbint.Conn) ([]Row, error) {
	reader, err := duckdbint.NewReader(ctx, conn, FixedQuerySQL(duckdbint.QuoteIdent(viewName)))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer reader.Close()

	var rows []Row
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		names, nameOK := rec.Column(0).(*array.String)
		avgs, avgOK := rec.Column(1).(*array.Float64)
		if !nameOK || !avgOK {
			rec.Release()
			return nil, fmt.Errorf("unexpected result columns %T, %T", rec.Column(0), rec.Column(1))
		}
		for i := 0; i < names.Len(); i++ {
			rows = append(rows, Row{Name: names.Value(i), AvgAge: avgs.Value(i)})
		}
		rec.Release()
	}
	return rows, nil
}

// exportSQL copies the export projection straight out of the database.
func exportSQL(ctx context.Context, conn *duckdbint.Conn, path string) (int64, error) {
	format, err := exportFormat(path)
	if err != nil {
		return 0, err
	}

	sel := fmt.Sprintf("SELECT name, email, age FROM %s WHERE age >= %d",
		duckdbint.QuoteIdent(viewName), ExportMinAge)

	copyOpts := "(FORMAT PARQUET)"
	if format == integrations.FormatCSV {
		copyOpts = "(FORMAT CSV, HEADER)"
	}
	target := duckdbint.QuoteLiteral(filepath.ToSlash(path))
	if err := conn.Exec(ctx, "COPY ("+sel+") TO "+target+" "+copyOpts); err != nil {
		return 0, fmt.Errorf("failed to export to %s: %w", path, err)
	}

	return conn.QueryCount(ctx, "SELECT COUNT(*) FROM ("+sel+")")
}
