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

package integrations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	pool "github.com/arcbench/arcbench/internal/memory"
)

// ParquetReadOptions defines options for reading Parquet files.
type ParquetReadOptions struct {
	MemoryMap     bool
	ColumnIndices []int
	RowGroups     []int
	BatchSize     int64
}

func (o *ParquetReadOptions) toArrowReadProperties() pqarrow.ArrowReadProperties {
	batch := o.BatchSize
	if batch <= 0 {
		batch = 64 * 1024
	}
	return pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: batch,
	}
}

// NewDefaultParquetWriterProperties returns the writer properties every
// Parquet artifact in the project is produced with.
func NewDefaultParquetWriterProperties() *parquet.WriterProperties {
	return parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithBatchSize(64*1024*1024),
		parquet.WithAllocator(pool.GetAllocator()),
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithDataPageSize(1024*1024),
		parquet.WithMaxRowGroupLength(64*1024*1024),
		parquet.WithCreatedBy("ArcBench"),
	)
}

// ParquetReader reads Arrow records from a Parquet file.
type ParquetReader struct {
	recordReader pqarrow.RecordReader
	fileReader   *file.Reader
	schema       *arrow.Schema
	alloc        memory.Allocator
}

// NewParquetReader opens filePath for record-batch reading.
func NewParquetReader(ctx context.Context, filePath string, opts *ParquetReadOptions) (*ParquetReader, error) {
	if filePath == "" {
		return nil, fmt.Errorf("parquet file path cannot be empty")
	}
	if opts == nil {
		opts = &ParquetReadOptions{}
	}

	alloc := pool.GetAllocator()

	rdr, err := file.OpenParquetFile(filePath, opts.MemoryMap)
	if err != nil {
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	fileReader, err := pqarrow.NewFileReader(rdr, opts.toArrowReadProperties(), alloc)
	if err != nil {
		rdr.Close()
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}

	schema, err := fileReader.Schema()
	if err != nil {
		rdr.Close()
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	recordReader, err := fileReader.GetRecordReader(ctx, opts.ColumnIndices, opts.RowGroups)
	if err != nil {
		rdr.Close()
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}

	return &ParquetReader{
		recordReader: recordReader,
		fileReader:   rdr,
		schema:       schema,
		alloc:        alloc,
	}, nil
}

// Read returns the next record batch, retained for the caller.
func (p *ParquetReader) Read() (arrow.Record, error) {
	if p.recordReader.Next() {
		record := p.recordReader.Record()
		record.Retain()
		return record, nil
	}
	if err := p.recordReader.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the record reader and the underlying file.
func (p *ParquetReader) Close() error {
	defer pool.PutAllocator(p.alloc)
	p.recordReader.Release()
	return p.fileReader.Close()
}

// Schema returns the file's Arrow schema.
func (p *ParquetReader) Schema() *arrow.Schema {
	return p.schema
}

// ParquetWriter writes Arrow records to a Parquet file.
type ParquetWriter struct {
	writer *pqarrow.FileWriter
	file   *os.File
	alloc  memory.Allocator
}

// NewParquetWriter creates filePath and returns a writer for records of the
// given schema.
func NewParquetWriter(filePath string, schema *arrow.Schema, props *parquet.WriterProperties) (*ParquetWriter, error) {
	if filePath == "" {
		return nil, fmt.Errorf("parquet file path cannot be empty")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if props == nil {
		props = NewDefaultParquetWriterProperties()
	}

	alloc := pool.GetAllocator()

	file, err := os.Create(filePath)
	if err != nil {
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	writer, err := pqarrow.NewFileWriter(schema, file, props, pqarrow.NewArrowWriterProperties())
	if err != nil {
		file.Close()
		pool.PutAllocator(alloc)
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &ParquetWriter{writer: writer, file: file, alloc: alloc}, nil
}

// Write appends one record to the file.
func (p *ParquetWriter) Write(record arrow.Record) error {
	if err := p.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close finalizes the footer and closes the file. The file is not a valid
// Parquet artifact until Close returns nil.
func (p *ParquetWriter) Close() error {
	defer pool.PutAllocator(p.alloc)
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	// The footer writer closes the sink itself; only a real failure matters
	// here, not the second close.
	if err := p.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
