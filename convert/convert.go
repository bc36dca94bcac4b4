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

// Package convert turns source CSV/JSON files into Parquet, incrementally:
// only sources without a Parquet counterpart of the same stem are touched.
// A Parquet file produced from data_0.csv therefore also suppresses
// data_0.json; the first conversion wins and Force is the explicit override.
package convert

import (
	"context"
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/arrio"
	"github.com/arcbench/arcbench/internal/schemas"
	"github.com/arcbench/arcbench/pipeline"
)

// FileOptions carries the per-file reader settings. The zero value reads
// comma-separated sources with a header row in 1024-row chunks.
type FileOptions struct {
	ChunkSize int64
	Delimiter rune
	// NoHeader marks CSV sources that carry no header row.
	NoHeader bool
}

func (o *FileOptions) normalize() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1024
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
}

// ConvertFileToParquet converts one CSV or JSON source file into
// parquetPath, streaming record batches through a pipeline so the whole
// file is never resident. Returns the number of rows written.
func ConvertFileToParquet(ctx context.Context, sourcePath, parquetPath string, format integrations.FileFormat, opts *FileOptions, logger kitlog.Logger) (int64, error) {
	if sourcePath == "" {
		return 0, fmt.Errorf("source path cannot be empty")
	}
	if parquetPath == "" {
		return 0, fmt.Errorf("parquet path cannot be empty")
	}
	if ctx == nil {
		return 0, fmt.Errorf("context cannot be nil")
	}
	if opts == nil {
		opts = &FileOptions{}
	}
	opts.normalize()

	reader, err := newSourceReader(ctx, sourcePath, format, opts)
	if err != nil {
		return 0, err
	}

	// Write to a temp name and rename on success, so a failed conversion
	// never leaves a .parquet file that would suppress a future run.
	tmpPath := parquetPath + ".tmp"
	writer, err := integrations.NewParquetWriter(tmpPath, schemas.PeopleSchema(), integrations.NewDefaultParquetWriterProperties())
	if err != nil {
		reader.Close()
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	metrics, err := pipeline.NewDataPipeline(reader, writer).WithLogger(logger).Start(ctx)
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to convert %s: %w", sourcePath, err)
	}
	if err := os.Rename(tmpPath, parquetPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to finalize %s: %w", parquetPath, err)
	}
	return metrics.Rows(), nil
}

func newSourceReader(ctx context.Context, path string, format integrations.FileFormat, opts *FileOptions) (arrio.Reader, error) {
	switch format {
	case integrations.FormatCSV:
		return integrations.NewCSVReader(ctx, path, schemas.PeopleSchema(), &integrations.CSVReadOptions{
			HasHeader: !opts.NoHeader,
			ChunkSize: opts.ChunkSize,
			Delimiter: opts.Delimiter,
		})
	case integrations.FormatJSON:
		return integrations.NewJSONReader(ctx, path, schemas.PeopleSchema(), &integrations.JSONReadOptions{
			ChunkSize: int(opts.ChunkSize),
		})
	default:
		return nil, fmt.Errorf("unsupported source format %q (valid: csv, json)", format)
	}
}
