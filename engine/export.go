package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/arrio"
	pool "github.com/arcbench/arcbench/internal/memory"
	"github.com/arcbench/arcbench/internal/schemas"
)

// exportFormat maps an export path's extension onto its file format.
func exportFormat(path string) (integrations.FileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return integrations.FormatParquet, nil
	case ".csv":
		return integrations.FormatCSV, nil
	default:
		return integrations.FormatInvalid,
			fmt.Errorf("unsupported export extension %q (valid: .parquet, .csv)", filepath.Ext(path))
	}
}

// exporter collects everyone at or above ExportMinAge as records stream
// past, then writes the name/email/age projection out in one batch.
type exporter struct {
	builder *array.RecordBuilder
	rows    int64
}

func newExporter() *exporter {
	return &exporter{
		builder: array.NewRecordBuilder(pool.NewGoAllocator(), schemas.ExportSchema()),
	}
}

// addRecord appends the record's matching rows. The record is not released.
func (e *exporter) addRecord(record arrow.Record) error {
	names, ages, err := peopleColumns(record)
	if err != nil {
		return err
	}

	schema := record.Schema()
	emailIdx := schema.FieldIndices(schemas.PeopleEmail)
	if len(emailIdx) == 0 {
		return fmt.Errorf("record has no %q column", schemas.PeopleEmail)
	}
	emails, ok := record.Column(emailIdx[0]).(*array.String)
	if !ok {
		return fmt.Errorf("column %q is %T, expected string", schemas.PeopleEmail, record.Column(emailIdx[0]))
	}

	nameB := e.builder.Field(0).(*array.StringBuilder)
	emailB := e.builder.Field(1).(*array.StringBuilder)
	ageB := e.builder.Field(2).(*array.Int64Builder)
	for i := 0; i < int(record.NumRows()); i++ {
		if ages.IsNull(i) || ages.Value(i) < ExportMinAge {
			continue
		}
		nameB.Append(names.Value(i))
		emailB.Append(emails.Value(i))
		ageB.Append(ages.Value(i))
		e.rows++
	}
	return nil
}

// flush writes the collected rows to path, choosing the writer by extension,
// and releases the builder.
func (e *exporter) flush(ctx context.Context, path string) (int64, error) {
	defer e.builder.Release()

	format, err := exportFormat(path)
	if err != nil {
		return 0, err
	}

	record := e.builder.NewRecord()
	defer record.Release()

	var writer arrio.Writer
	switch format {
	case integrations.FormatParquet:
		writer, err = integrations.NewParquetWriter(path, schemas.ExportSchema(), integrations.NewDefaultParquetWriterProperties())
	case integrations.FormatCSV:
		writer, err = integrations.NewCSVWriter(ctx, path, schemas.ExportSchema(), nil)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create export writer: %w", err)
	}

	if err := writer.Write(record); err != nil {
		writer.Close()
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize export: %w", err)
	}
	return e.rows, nil
}
