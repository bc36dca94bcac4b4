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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	jsoncodec "github.com/arcbench/arcbench/internal/json"
)

// JSONReadOptions defines options for reading line-delimited JSON files.
type JSONReadOptions struct {
	ChunkSize int
}

// JSONReader reads Arrow records from a line-delimited JSON file, one object
// per line, against a known schema.
type JSONReader struct {
	reader *array.JSONReader
	file   *os.File
}

// NewJSONReader opens filePath and returns a reader producing records in
// chunks of opts.ChunkSize rows.
func NewJSONReader(ctx context.Context, filePath string, schema *arrow.Schema, opts *JSONReadOptions) (*JSONReader, error) {
	if filePath == "" {
		return nil, fmt.Errorf("JSON file path cannot be empty")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	chunk := 1024
	if opts != nil && opts.ChunkSize > 0 {
		chunk = opts.ChunkSize
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}

	reader := array.NewJSONReader(file, schema, array.WithChunk(chunk))

	return &JSONReader{reader: reader, file: file}, nil
}

// Read returns the next chunk of rows, retained for the caller.
func (r *JSONReader) Read() (arrow.Record, error) {
	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading JSON record: %w", err)
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

// Close releases the underlying json reader and file handle.
func (r *JSONReader) Close() error {
	if r.reader != nil {
		r.reader.Release()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// JSONWriter writes Arrow records as line-delimited JSON, the framing the
// JSON reader above and DuckDB's read_json_auto both accept. Dates and other
// non-primitive values are emitted in their marshal form (ISO text).
type JSONWriter struct {
	file *os.File
	buf  *bufio.Writer
}

// NewJSONWriter creates filePath and returns a writer producing one JSON
// object per row.
func NewJSONWriter(ctx context.Context, filePath string) (*JSONWriter, error) {
	if filePath == "" {
		return nil, fmt.Errorf("JSON file path cannot be empty")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file: %w", err)
	}

	return &JSONWriter{file: file, buf: bufio.NewWriter(file)}, nil
}

// Write appends every row of the record as one JSON line, keys in schema
// column order.
func (w *JSONWriter) Write(record arrow.Record) error {
	schema := record.Schema()

	// Field names only need encoding once per record.
	keys := make([][]byte, int(record.NumCols()))
	for j := range keys {
		k, err := jsoncodec.Marshal(schema.Field(j).Name)
		if err != nil {
			return fmt.Errorf("failed to marshal field name: %w", err)
		}
		keys[j] = k
	}

	for i := 0; i < int(record.NumRows()); i++ {
		w.buf.WriteByte('{')
		for j := 0; j < int(record.NumCols()); j++ {
			if j > 0 {
				w.buf.WriteByte(',')
			}
			w.buf.Write(keys[j])
			w.buf.WriteByte(':')

			col := record.Column(j)
			if col.IsNull(i) {
				w.buf.WriteString("null")
				continue
			}
			val, err := jsoncodec.Marshal(col.GetOneForMarshal(i))
			if err != nil {
				return fmt.Errorf("failed to marshal value for %s: %w", schema.Field(j).Name, err)
			}
			w.buf.Write(val)
		}
		w.buf.WriteByte('}')
		if err := w.buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write JSON line: %w", err)
		}
	}

	return nil
}

// Close flushes buffered lines and closes the file.
func (w *JSONWriter) Close() error {
	if w.buf != nil {
		if err := w.buf.Flush(); err != nil {
			return fmt.Errorf("failed to flush JSON writer: %w", err)
		}
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
