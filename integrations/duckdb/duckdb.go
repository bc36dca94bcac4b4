// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

// Package integrations drives DuckDB (and any other ADBC driver library)
// through the ADBC driver manager: SQL execution, record streaming, and
// Arrow-native table ingestion.
package integrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-adbc/go/adbc/drivermgr"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	pool "github.com/arcbench/arcbench/internal/memory"
)

// ErrDriverMissing reports that no usable driver shared library was found.
// Callers decide how fatal that is; the engine layer maps it to its own
// unavailability error.
var ErrDriverMissing = errors.New("adbc driver library not found")

// Extension represents a DuckDB extension with its name and load preference.
type Extension struct {
	Name          string
	LoadByDefault bool
}

// Options configures a driver-manager connection.
type Options struct {
	// Path is the database location; empty means in-memory.
	Path string
	// Driver locations tried in order; the first one present on disk wins.
	DriverCandidates []string
	// Entrypoint is the driver's init symbol, e.g. duckdb_adbc_init.
	Entrypoint string
	Extensions []Extension
}

// ResolveDriver returns the first driver candidate present on disk, or an
// error wrapping ErrDriverMissing when none is.
func (o *Options) ResolveDriver() (string, error) {
	for _, cand := range o.DriverCandidates {
		if cand == "" {
			continue
		}
		if _, err := os.Stat(cand); err == nil {
			return cand, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrDriverMissing, strings.Join(o.DriverCandidates, ", "))
}

// Conn is one open ADBC database connection.
type Conn struct {
	db   adbc.Database
	conn adbc.Connection
}

// Connect loads the driver library, opens the database at opts.Path and
// installs any requested extensions.
func Connect(ctx context.Context, opts *Options) (*Conn, error) {
	if opts == nil {
		return nil, fmt.Errorf("options cannot be nil")
	}
	if opts.Entrypoint == "" {
		return nil, fmt.Errorf("driver entrypoint cannot be empty")
	}

	driverPath, err := opts.ResolveDriver()
	if err != nil {
		return nil, err
	}

	dbConfig := map[string]string{
		"driver":     driverPath,
		"entrypoint": opts.Entrypoint,
	}
	// Omitting path gives an in-memory database.
	if opts.Path != "" {
		dbConfig["path"] = opts.Path
	}

	var drv drivermgr.Driver
	db, err := drv.NewDatabase(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	conn, err := db.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	c := &Conn{db: db, conn: conn}
	for _, ext := range opts.Extensions {
		if !ext.LoadByDefault {
			continue
		}
		if err := c.installAndLoadExtension(ctx, ext.Name); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to install/load extension '%s': %w", ext.Name, err)
		}
	}
	return c, nil
}

// Close releases the connection and the database handle.
func (c *Conn) Close() error {
	var errs []error
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
		c.conn = nil
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
		c.db = nil
	}
	return errors.Join(errs...)
}

// Exec runs a statement and discards any result rows.
func (c *Conn) Exec(ctx context.Context, sql string) error {
	stmt, err := c.conn.NewStatement()
	if err != nil {
		return fmt.Errorf("failed to create statement: %w", err)
	}
	defer stmt.Close()

	if err := stmt.SetSqlQuery(sql); err != nil {
		return fmt.Errorf("failed to set SQL query: %w", err)
	}
	out, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return fmt.Errorf("failed to execute %q: %w", sql, err)
	}
	out.Release()
	return nil
}

// Query runs sql and returns every result batch, retained for the caller.
func (c *Conn) Query(ctx context.Context, sql string) ([]arrow.Record, error) {
	stmt, err := c.conn.NewStatement()
	if err != nil {
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}
	defer stmt.Close()

	if err := stmt.SetSqlQuery(sql); err != nil {
		return nil, fmt.Errorf("failed to set SQL query: %w", err)
	}

	out, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer out.Release()

	var records []arrow.Record
	for out.Next() {
		rec := out.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := out.Err(); err != nil && err != io.EOF {
		for _, rec := range records {
			rec.Release()
		}
		return nil, err
	}
	return records, nil
}

// QueryCount runs a query whose first column of the first row is an integer,
// such as SELECT COUNT(*), and returns that value.
func (c *Conn) QueryCount(ctx context.Context, sql string) (int64, error) {
	records, err := c.Query(ctx, sql)
	if err != nil {
		return 0, err
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	for _, rec := range records {
		if rec.NumRows() == 0 {
			continue
		}
		switch col := rec.Column(0).(type) {
		case *array.Int64:
			return col.Value(0), nil
		case *array.Int32:
			return int64(col.Value(0)), nil
		case *array.Uint64:
			return int64(col.Value(0)), nil
		default:
			return 0, fmt.Errorf("unexpected count column type %s", rec.Column(0).DataType())
		}
	}
	return 0, fmt.Errorf("count query returned no rows")
}

func (c *Conn) installAndLoadExtension(ctx context.Context, name string) error {
	if err := c.Exec(ctx, fmt.Sprintf("INSTALL %s;", name)); err != nil {
		return err
	}
	return c.Exec(ctx, fmt.Sprintf("LOAD %s;", name))
}

// Reader streams the result of one query as an arrio.Reader.
type Reader struct {
	recordReader array.RecordReader
	records      []arrow.Record
	schema       *arrow.Schema
}

// NewReader executes query on conn and returns a reader over its results.
// An empty result set reads as an immediate io.EOF.
func NewReader(ctx context.Context, conn *Conn, query string) (*Reader, error) {
	records, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Reader{}, nil
	}

	schema := records[0].Schema()
	reader, err := array.NewRecordReader(schema, records)
	if err != nil {
		for _, rec := range records {
			rec.Release()
		}
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}

	return &Reader{recordReader: reader, records: records, schema: schema}, nil
}

// Read returns the next record, retained for the caller.
func (r *Reader) Read() (arrow.Record, error) {
	if r.recordReader == nil {
		return nil, io.EOF
	}
	if r.recordReader.Next() {
		record := r.recordReader.Record()
		record.Retain()
		return record, nil
	}
	if err := r.recordReader.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the buffered result set.
func (r *Reader) Close() error {
	if r.recordReader != nil {
		r.recordReader.Release()
	}
	for _, rec := range r.records {
		rec.Release()
	}
	r.records = nil
	return nil
}

// Schema returns the result schema.
func (r *Reader) Schema() *arrow.Schema {
	return r.schema
}

// Writer ingests Arrow records into a named table through the driver's bulk
// path. The ingest mode is one of the adbc.OptionValueIngestMode* constants;
// policy decisions (drop first, create vs append) belong to the caller.
type Writer struct {
	conn  *Conn
	stmt  adbc.Statement
	table string
	alloc memory.Allocator
}

// NewWriter prepares an ingest statement against conn for tableName.
func NewWriter(ctx context.Context, conn *Conn, tableName, ingestMode string) (*Writer, error) {
	if tableName == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}

	stmt, err := conn.conn.NewStatement()
	if err != nil {
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}

	if err := stmt.SetOption(adbc.OptionKeyIngestMode, ingestMode); err != nil {
		stmt.Close()
		return nil, fmt.Errorf("failed to set ingest mode: %w", err)
	}
	if err := stmt.SetOption(adbc.OptionKeyIngestTargetTable, tableName); err != nil {
		stmt.Close()
		return nil, fmt.Errorf("failed to set target table: %w", err)
	}

	return &Writer{
		conn:  conn,
		stmt:  stmt,
		table: tableName,
		alloc: pool.GetAllocator(),
	}, nil
}

// Write binds one record through an IPC stream and executes the ingest.
func (w *Writer) Write(record arrow.Record) error {
	if record.NumRows() == 0 {
		return nil
	}

	buf := new(bytes.Buffer)
	writer := ipc.NewWriter(buf, ipc.WithSchema(record.Schema()), ipc.WithAllocator(w.alloc))
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to IPC stream: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close IPC writer: %w", err)
	}

	reader, err := ipc.NewReader(buf, ipc.WithAllocator(w.alloc))
	if err != nil {
		return fmt.Errorf("failed to create IPC reader: %w", err)
	}
	defer reader.Release()

	if err := w.stmt.BindStream(context.Background(), reader); err != nil {
		return fmt.Errorf("failed to bind stream: %w", err)
	}
	if _, err := w.stmt.ExecuteUpdate(context.Background()); err != nil {
		return fmt.Errorf("failed to execute update: %w", err)
	}

	// Later writes must append regardless of the initial mode, otherwise the
	// second batch would try to recreate the table.
	if err := w.stmt.SetOption(adbc.OptionKeyIngestMode, adbc.OptionValueIngestModeAppend); err != nil {
		return fmt.Errorf("failed to switch ingest mode to append: %w", err)
	}

	return nil
}

// Close releases the ingest statement. The connection stays open.
func (w *Writer) Close() error {
	defer pool.PutAllocator(w.alloc)
	if w.stmt == nil {
		return nil
	}
	err := w.stmt.Close()
	w.stmt = nil
	return err
}

// QuoteIdent quotes an identifier for DuckDB SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal for DuckDB SQL.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
