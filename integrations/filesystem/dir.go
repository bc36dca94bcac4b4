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
	"path/filepath"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/arcbench/arcbench/internal/arrio"
)

// OpenFileFunc opens one file of a directory scan as a record reader.
type OpenFileFunc func(ctx context.Context, path string) (arrio.Reader, error)

// ReaderFor returns the per-file reader constructor for a format. CSV and
// JSON files are decoded against schema; Parquet files carry their own.
func ReaderFor(format FileFormat, schema *arrow.Schema) (OpenFileFunc, error) {
	switch format {
	case FormatCSV:
		return func(ctx context.Context, path string) (arrio.Reader, error) {
			return NewCSVReader(ctx, path, schema, nil)
		}, nil
	case FormatJSON:
		return func(ctx context.Context, path string) (arrio.Reader, error) {
			return NewJSONReader(ctx, path, schema, nil)
		}, nil
	case FormatParquet:
		return func(ctx context.Context, path string) (arrio.Reader, error) {
			return NewParquetReader(ctx, path, nil)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported source format %q (valid: csv, json, parquet)", format)
	}
}

// DirectoryReader chains every file matching a glob pattern into a single
// record stream, in lexical filename order. Only one file is open at a time,
// so memory stays bounded by the chunk size of the per-file readers.
type DirectoryReader struct {
	ctx   context.Context
	files []string
	next  int
	cur   arrio.Reader
	open  OpenFileFunc
}

// NewDirectoryReader lists dir for files matching pattern (e.g. "*.csv") and
// returns a reader over their concatenation. The listing happens once, up
// front; files appearing later are not picked up.
func NewDirectoryReader(ctx context.Context, dir, pattern string, open OpenFileFunc) (*DirectoryReader, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if open == nil {
		return nil, fmt.Errorf("open function cannot be nil")
	}

	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)

	return &DirectoryReader{ctx: ctx, files: files, open: open}, nil
}

// Files returns the matched file paths in read order.
func (d *DirectoryReader) Files() []string {
	return d.files
}

// Read returns the next record from the current file, rolling over to the
// next file on EOF and returning io.EOF only when every file is exhausted.
func (d *DirectoryReader) Read() (arrow.Record, error) {
	for {
		if d.cur == nil {
			if d.next >= len(d.files) {
				return nil, io.EOF
			}
			reader, err := d.open(d.ctx, d.files[d.next])
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", d.files[d.next], err)
			}
			d.cur = reader
			d.next++
		}

		record, err := d.cur.Read()
		if err == io.EOF {
			if cerr := d.cur.Close(); cerr != nil {
				d.cur = nil
				return nil, cerr
			}
			d.cur = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		return record, nil
	}
}

// Close closes the file currently being read, if any.
func (d *DirectoryReader) Close() error {
	if d.cur == nil {
		return nil
	}
	err := d.cur.Close()
	d.cur = nil
	return err
}
