package ingest

import (
	"context"
	"fmt"

	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"

	duckdbint "github.com/arcbench/arcbench/integrations/duckdb"
	"github.com/arcbench/arcbench/internal/arrio"
)

// DuckDBBackend loads records into a DuckDB database through ADBC bulk
// ingestion.
type DuckDBBackend struct {
	conn *duckdbint.Conn
}

// NewDuckDBBackend connects to the DuckDB database described by opts.
func NewDuckDBBackend(ctx context.Context, opts *duckdbint.Options) (*DuckDBBackend, error) {
	conn, err := duckdbint.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &DuckDBBackend{conn: conn}, nil
}

// Prepare applies the load policy to the table and returns an ADBC ingest
// writer for it.
func (b *DuckDBBackend) Prepare(ctx context.Context, table string, schema *arrow.Schema, policy Policy) (arrio.Writer, error) {
	mode := adbc.OptionValueIngestModeCreate
	switch policy {
	case PolicyReplace:
		if err := b.conn.Exec(ctx, "DROP TABLE IF EXISTS "+duckdbint.QuoteIdent(table)); err != nil {
			return nil, err
		}
	case PolicyAppend:
		exists, err := b.tableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if exists {
			cols, err := b.tableColumns(ctx, table)
			if err != nil {
				return nil, err
			}
			if !columnsMatch(cols, schema) {
				return nil, schemaMismatchErr(table, cols, schema)
			}
			mode = adbc.OptionValueIngestModeAppend
		}
	default:
		return nil, fmt.Errorf("unsupported ingest policy %v", policy)
	}
	return duckdbint.NewWriter(ctx, b.conn, table, mode)
}

// RowCount reports how many rows the table currently holds.
func (b *DuckDBBackend) RowCount(ctx context.Context, table string) (int64, error) {
	return b.conn.QueryCount(ctx, "SELECT COUNT(*) FROM "+duckdbint.QuoteIdent(table))
}

// Close tears down the ADBC connection.
func (b *DuckDBBackend) Close() error {
	return b.conn.Close()
}

func (b *DuckDBBackend) tableExists(ctx context.Context, table string) (bool, error) {
	n, err := b.conn.QueryCount(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = "+duckdbint.QuoteLiteral(table))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *DuckDBBackend) tableColumns(ctx context.Context, table string) ([]string, error) {
	records, err := b.conn.Query(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_name = "+
			duckdbint.QuoteLiteral(table)+" ORDER BY ordinal_position")
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	var names []string
	for _, rec := range records {
		col, ok := rec.Column(0).(*array.String)
		if !ok {
			return nil, fmt.Errorf("unexpected column_name type %T", rec.Column(0))
		}
		for i := 0; i < col.Len(); i++ {
			names = append(names, col.Value(i))
		}
	}
	return names, nil
}
