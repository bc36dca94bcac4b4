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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/csv"
)

// CSVReadOptions defines options for reading records from a CSV file.
type CSVReadOptions struct {
	HasHeader        bool
	ChunkSize        int64
	Delimiter        rune
	NullValues       []string
	StringsCanBeNull bool
}

func (o *CSVReadOptions) normalize() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1024
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
}

// CSVWriteOptions defines options for writing records to a CSV file.
type CSVWriteOptions struct {
	Delimiter       rune
	IncludeHeader   bool
	NullValue       string
	StringsReplacer *strings.Replacer
	BoolFormatter   func(bool) string
}

// CSVReader reads Arrow records from a CSV file against a known schema.
type CSVReader struct {
	reader *csv.Reader
	file   *os.File
}

// NewCSVReader opens filePath and returns a reader producing records in
// chunks of opts.ChunkSize rows.
func NewCSVReader(ctx context.Context, filePath string, schema *arrow.Schema, opts *CSVReadOptions) (*CSVReader, error) {
	if filePath == "" {
		return nil, fmt.Errorf("CSV file path cannot be empty")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if opts == nil {
		opts = &CSVReadOptions{HasHeader: true}
	}
	opts.normalize()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	reader := csv.NewReader(file, schema,
		csv.WithChunk(int(opts.ChunkSize)),
		csv.WithComma(opts.Delimiter),
		csv.WithHeader(opts.HasHeader),
		csv.WithNullReader(opts.StringsCanBeNull, opts.NullValues...),
	)

	return &CSVReader{reader: reader, file: file}, nil
}

// Read returns the next chunk of rows, retained for the caller.
func (r *CSVReader) Read() (arrow.Record, error) {
	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading CSV record: %w", err)
		}
		return nil, io.EOF
	}

	record := r.reader.Record()
	if record == nil {
		return nil, io.EOF
	}

	record.Retain()
	return record, nil
}

// Close releases the underlying csv reader and file handle.
func (r *CSVReader) Close() error {
	if r.reader != nil {
		r.reader.Release()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Schema returns the schema the reader was opened with.
func (r *CSVReader) Schema() *arrow.Schema {
	return r.reader.Schema()
}

// CSVWriter writes Arrow records to a CSV file.
type CSVWriter struct {
	writer *csv.Writer
	file   *os.File
}

// NewCSVWriter creates filePath and returns a writer for records of the
// given schema.
func NewCSVWriter(ctx context.Context, filePath string, schema *arrow.Schema, opts *CSVWriteOptions) (*CSVWriter, error) {
	if filePath == "" {
		return nil, fmt.Errorf("CSV file path cannot be empty")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if opts == nil {
		opts = &CSVWriteOptions{IncludeHeader: true}
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.StringsReplacer == nil {
		opts.StringsReplacer = strings.NewReplacer()
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	options := []csv.Option{
		csv.WithComma(opts.Delimiter),
		csv.WithHeader(opts.IncludeHeader),
		csv.WithNullWriter(opts.NullValue),
		csv.WithStringsReplacer(opts.StringsReplacer),
	}
	if opts.BoolFormatter != nil {
		options = append(options, csv.WithBoolWriter(opts.BoolFormatter))
	}

	writer := csv.NewWriter(file, schema, options...)

	return &CSVWriter{writer: writer, file: file}, nil
}

// Write appends one record to the file.
func (w *CSVWriter) Write(record arrow.Record) error {
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer encountered an error: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *CSVWriter) Close() error {
	if w.writer != nil {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush CSV writer: %w", err)
		}
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
