// Package testutil carries comparison helpers shared by the package tests.
package testutil

import (
	"io"
	"math"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/google/go-cmp/cmp"

	"github.com/arcbench/arcbench/internal/arrio"
)

var (
	alwaysEqual = cmp.Comparer(func(_, _ interface{}) bool { return true })

	defaultCmpOptions = []cmp.Option{
		// NaNs compare equal
		cmp.FilterValues(func(x, y float64) bool {
			return math.IsNaN(x) && math.IsNaN(y)
		}, alwaysEqual),
		cmp.FilterValues(func(x, y float32) bool {
			return math.IsNaN(float64(x)) && math.IsNaN(float64(y))
		}, alwaysEqual),
	}
)

// Equal tests two values for equality.
func Equal(x, y interface{}, opts ...cmp.Option) bool {
	// Put default options at the end. Order doesn't matter.
	opts = append(opts[:len(opts):len(opts)], defaultCmpOptions...)
	return cmp.Equal(x, y, opts...)
}

// Diff reports the differences between two values.
// Diff(x, y) == "" iff Equal(x, y).
func Diff(x, y interface{}, opts ...cmp.Option) string {
	// Put default options at the end. Order doesn't matter.
	opts = append(opts[:len(opts):len(opts)], defaultCmpOptions...)
	return cmp.Diff(x, y, opts...)
}

// RecordCells flattens a record into row-major cells, each rendered with
// its column's string formatter. Null cells render as "null".
func RecordCells(record arrow.Record) [][]string {
	rows := make([][]string, record.NumRows())
	for i := range rows {
		row := make([]string, record.NumCols())
		for j := 0; j < int(record.NumCols()); j++ {
			col := record.Column(j)
			if col.IsNull(i) {
				row[j] = "null"
				continue
			}
			row[j] = col.ValueStr(i)
		}
		rows[i] = row
	}
	return rows
}

// ReadAllCells drains a reader into row-major cells, releasing each record.
// The reader itself is left for the caller to close.
func ReadAllCells(r arrio.Reader) ([][]string, error) {
	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, RecordCells(record)...)
		record.Release()
	}
}
