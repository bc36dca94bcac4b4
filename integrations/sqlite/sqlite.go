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

// Package integrations implements the SQLite side of table loading with the
// pure-Go driver: DDL derived from Arrow schemas, and batched inserts inside
// a single transaction. SQLite has no bulk-load API, so a prepared INSERT in
// one transaction is the fast path.
package integrations

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"

	_ "modernc.org/sqlite"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is safe to splice into DDL as an
// identifier.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// QuoteIdent quotes an identifier for SQLite SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DB wraps a SQLite handle opened for single-writer loading.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at path and applies
// the write-side pragmas. It pings with a short timeout to fail fast on a
// bad path.
func Open(ctx context.Context, path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path must not be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer connection; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// TableExists reports whether a table of that name exists.
func (d *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := d.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: table lookup: %w", err)
	}
	return true, nil
}

// TableColumns returns the column names of table in declaration order.
func (d *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("sqlite: table_info scan: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// RowCount returns SELECT COUNT(*) for table.
func (d *DB) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(table))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// DropTable drops table if it exists.
func (d *DB) DropTable(ctx context.Context, table string) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(table))); err != nil {
		return fmt.Errorf("sqlite: drop table: %w", err)
	}
	return nil
}

// CreateTable creates table for the given Arrow schema if it does not exist.
func (d *DB) CreateTable(ctx context.Context, table string, schema *arrow.Schema) error {
	ddl, err := BuildCreateTableSQL(table, schema)
	if err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table: %w", err)
	}
	return nil
}

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS DDL for an Arrow
// schema, mapping each field to its SQLite storage class.
func BuildCreateTableSQL(table string, schema *arrow.Schema) (string, error) {
	if !ValidIdent(table) {
		return "", fmt.Errorf("sqlite: invalid table name %q", table)
	}
	if schema == nil || len(schema.Fields()) == 0 {
		return "", fmt.Errorf("sqlite: schema must have at least one field")
	}

	cols := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		if !ValidIdent(f.Name) {
			return "", fmt.Errorf("sqlite: invalid column name %q", f.Name)
		}
		cols = append(cols, fmt.Sprintf("%s %s", QuoteIdent(f.Name), sqliteType(f.Type)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(table), strings.Join(cols, ", ")), nil
}

func sqliteType(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.BOOL:
		return "INTEGER"
	case arrow.FLOAT32, arrow.FLOAT64:
		return "REAL"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BLOB"
	default:
		// Strings, dates, timestamps and anything exotic travel as text.
		return "TEXT"
	}
}

// Writer loads Arrow records into one table inside a single transaction,
// committing on Close. A failed Write poisons the transaction and Close
// rolls it back instead, so a load is all-or-nothing.
type Writer struct {
	tx     *sql.Tx
	stmt   *sql.Stmt
	schema *arrow.Schema
	failed bool
	rows   int64
}

// NewWriter begins the load transaction and prepares the insert statement
// for the given schema. The target table must already exist.
func NewWriter(ctx context.Context, db *DB, table string, schema *arrow.Schema) (*Writer, error) {
	if !ValidIdent(table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", table)
	}

	colNames := make([]string, 0, len(schema.Fields()))
	placeholders := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		colNames = append(colNames, QuoteIdent(f.Name))
		placeholders = append(placeholders, "?")
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("sqlite: prepare insert: %w", err)
	}

	return &Writer{tx: tx, stmt: stmt, schema: schema}, nil
}

// Write inserts every row of the record.
func (w *Writer) Write(record arrow.Record) error {
	if int(record.NumCols()) != len(w.schema.Fields()) {
		w.failed = true
		return fmt.Errorf("sqlite: record has %d columns, expected %d", record.NumCols(), len(w.schema.Fields()))
	}

	args := make([]interface{}, int(record.NumCols()))
	for i := 0; i < int(record.NumRows()); i++ {
		for j := 0; j < int(record.NumCols()); j++ {
			v, err := bindValue(record.Column(j), i)
			if err != nil {
				w.failed = true
				return fmt.Errorf("sqlite: column %s row %d: %w", w.schema.Field(j).Name, i, err)
			}
			args[j] = v
		}
		if _, err := w.stmt.Exec(args...); err != nil {
			w.failed = true
			return fmt.Errorf("sqlite: insert: %w", err)
		}
		w.rows++
	}
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 {
	return w.rows
}

// Close commits the load, or rolls it back when a Write failed.
func (w *Writer) Close() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	if w.failed {
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("sqlite: rollback: %w", err)
		}
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func bindValue(col arrow.Array, row int) (interface{}, error) {
	if col.IsNull(row) {
		return nil, nil
	}
	switch arr := col.(type) {
	case *array.Int64:
		return arr.Value(row), nil
	case *array.Int32:
		return int64(arr.Value(row)), nil
	case *array.Float64:
		return arr.Value(row), nil
	case *array.Float32:
		return float64(arr.Value(row)), nil
	case *array.String:
		return arr.Value(row), nil
	case *array.Boolean:
		if arr.Value(row) {
			return int64(1), nil
		}
		return int64(0), nil
	case *array.Date32:
		return arr.Value(row).ToTime().Format("2006-01-02"), nil
	case *array.Timestamp:
		return arr.ValueStr(row), nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", col.DataType())
	}
}
