package ingest

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	sqliteint "github.com/arcbench/arcbench/integrations/sqlite"
	"github.com/arcbench/arcbench/internal/arrio"
)

// SQLiteBackend loads records into a SQLite database file.
type SQLiteBackend struct {
	db *sqliteint.DB
}

// NewSQLiteBackend opens (creating if needed) the SQLite database at path.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sqliteint.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

// Prepare applies the load policy to the table and returns a transactional
// writer for it. The append path verifies an existing table's columns
// against the incoming schema before anything is written.
func (b *SQLiteBackend) Prepare(ctx context.Context, table string, schema *arrow.Schema, policy Policy) (arrio.Writer, error) {
	switch policy {
	case PolicyReplace:
		if err := b.db.DropTable(ctx, table); err != nil {
			return nil, err
		}
		if err := b.db.CreateTable(ctx, table, schema); err != nil {
			return nil, err
		}
	case PolicyAppend:
		exists, err := b.db.TableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := b.db.CreateTable(ctx, table, schema); err != nil {
				return nil, err
			}
			break
		}
		cols, err := b.db.TableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		if !columnsMatch(cols, schema) {
			return nil, schemaMismatchErr(table, cols, schema)
		}
	default:
		return nil, fmt.Errorf("unsupported ingest policy %v", policy)
	}
	return sqliteint.NewWriter(ctx, b.db, table, schema)
}

// RowCount reports how many rows the table currently holds.
func (b *SQLiteBackend) RowCount(ctx context.Context, table string) (int64, error) {
	return b.db.RowCount(ctx, table)
}

// Close releases the underlying database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
