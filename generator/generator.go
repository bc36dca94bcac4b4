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

// Package generator fabricates the synthetic people dataset: N files of M
// rows each, written as CSV or line-delimited JSON through the filesystem
// integrations. A Generator is constructed and seeded explicitly, so tests
// and benchmark runs can reproduce their inputs.
package generator

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/go-faker/faker/v4"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/arrio"
	"github.com/arcbench/arcbench/internal/logging"
	pool "github.com/arcbench/arcbench/internal/memory"
	"github.com/arcbench/arcbench/internal/schemas"
)

const (
	minAge = 18
	maxAge = 80
	// Sign-up dates land within roughly the last three years.
	signedUpWindowDays = 3 * 365
)

// Seeded runs draw names from this corpus instead of the faker library,
// whose source is process-wide and would couple generators to each other.
// The repeated names also give the group-by query real groups to chew on.
var (
	firstNames = []string{
		"Ada", "Alan", "Alonzo", "Barbara", "Claude", "Donald", "Edsger",
		"Frances", "Grace", "John", "Katherine", "Ken", "Leslie", "Margaret",
		"Maurice", "Niklaus", "Radia", "Robin", "Sophie", "Tony",
	}
	lastNames = []string{
		"Backus", "Church", "Dijkstra", "Hamilton", "Hoare", "Hopper",
		"Johnson", "Kay", "Knuth", "Lamport", "Liskov", "Lovelace",
		"McCarthy", "Milner", "Perlman", "Ritchie", "Shannon", "Thompson",
		"Turing", "Wilkes",
	}
)

// seededAnchor pins the sign-up window for seeded runs, so the same seed
// yields the same bytes on any day.
var seededAnchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes a run reproducible: every column derives from a rand.Rand
// owned by this Generator, names come from a fixed corpus, and sign-up
// dates anchor to a fixed day. Two generators with the same seed produce
// identical files, independently of each other and of the host.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
		g.seeded = true
	}
}

// WithFileCount sets how many files one Generate call writes.
func WithFileCount(n int) Option {
	return func(g *Generator) { g.fileCount = n }
}

// WithRowsPerFile sets how many rows each file holds.
func WithRowsPerFile(n int) Option {
	return func(g *Generator) { g.rowsPerFile = n }
}

// WithBatchSize caps how many rows are built in memory per record batch.
func WithBatchSize(n int) Option {
	return func(g *Generator) { g.batchSize = n }
}

// WithLogger attaches a logger for per-file progress.
func WithLogger(logger kitlog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// Generator produces synthetic people files.
type Generator struct {
	rng         *rand.Rand
	seeded      bool
	anchor      time.Time
	fileCount   int
	rowsPerFile int
	batchSize   int
	logger      kitlog.Logger
	nextID      int64
}

// New constructs a Generator with the defaults of the conventional scenario
// (10 files of 100 rows) unless overridden by options.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		fileCount:   10,
		rowsPerFile: 100,
		batchSize:   1000,
		logger:      logging.OrNop(nil),
		nextID:      1,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrNop(g.logger)
	g.anchor = time.Now().UTC().Truncate(24 * time.Hour)
	if g.seeded {
		g.anchor = seededAnchor
	}
	return g
}

// nextPerson fabricates one name and email. Unseeded generators lean on the
// faker library; seeded ones stay within the fixed corpus.
func (g *Generator) nextPerson() (name, email string) {
	if !g.seeded {
		return faker.Name(), faker.Email()
	}
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	return first + " " + last,
		fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), g.rng.Intn(1000))
}

// Summary reports what one Generate call did.
type Summary struct {
	FilesWritten int   `json:"files_written"`
	FilesSkipped int   `json:"files_skipped"`
	RowsWritten  int64 `json:"rows_written"`
}

// Generate writes data_0..data_{n-1} files of the requested format into dir.
// Files that already exist are left untouched and counted as skipped, so a
// rerun only fills in the gaps.
func (g *Generator) Generate(ctx context.Context, dir string, format integrations.FileFormat) (*Summary, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if g.fileCount < 0 || g.rowsPerFile < 0 {
		return nil, fmt.Errorf("file and row counts must be non-negative")
	}
	if format != integrations.FormatCSV && format != integrations.FormatJSON {
		return nil, fmt.Errorf("unsupported generation format %q (valid: csv, json)", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &Summary{}
	for i := 0; i < g.fileCount; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		path := filepath.Join(dir, fmt.Sprintf("data_%d%s", i, format.Ext()))
		if _, err := os.Stat(path); err == nil {
			level.Debug(g.logger).Log("msg", "file exists, skipping", "path", path)
			summary.FilesSkipped++
			continue
		}

		rows, err := g.writeFile(ctx, path, format)
		if err != nil {
			return summary, fmt.Errorf("failed to generate %s: %w", path, err)
		}
		summary.FilesWritten++
		summary.RowsWritten += rows
		level.Info(g.logger).Log("msg", "generated file", "path", path, "rows", rows)
	}

	return summary, nil
}

func (g *Generator) writeFile(ctx context.Context, path string, format integrations.FileFormat) (int64, error) {
	writer, err := g.newWriter(ctx, path, format)
	if err != nil {
		return 0, err
	}

	if _, err := arrio.Copy(writer, &batchReader{gen: g, remaining: g.rowsPerFile}); err != nil {
		writer.Close()
		os.Remove(path)
		return 0, err
	}
	if err := writer.Close(); err != nil {
		os.Remove(path)
		return 0, err
	}
	return int64(g.rowsPerFile), nil
}

// batchReader streams fabricated batches until the requested row count is
// reached.
type batchReader struct {
	gen       *Generator
	remaining int
}

func (r *batchReader) Read() (arrow.Record, error) {
	if r.remaining <= 0 {
		return nil, io.EOF
	}
	n := r.gen.batchSize
	if r.remaining < n {
		n = r.remaining
	}
	r.remaining -= n
	return r.gen.buildBatch(n), nil
}

func (r *batchReader) Close() error { return nil }

func (g *Generator) newWriter(ctx context.Context, path string, format integrations.FileFormat) (arrio.Writer, error) {
	switch format {
	case integrations.FormatCSV:
		return integrations.NewCSVWriter(ctx, path, schemas.PeopleSchema(), &integrations.CSVWriteOptions{
			IncludeHeader: true,
		})
	case integrations.FormatJSON:
		return integrations.NewJSONWriter(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported generation format %q", format)
	}
}

// buildBatch fabricates one record of n rows.
func (g *Generator) buildBatch(n int) arrow.Record {
	mem := pool.GetAllocator()
	defer pool.PutAllocator(mem)

	builder := array.NewRecordBuilder(mem, schemas.PeopleSchema())
	defer builder.Release()

	idBldr := builder.Field(0).(*array.Int64Builder)
	nameBldr := builder.Field(1).(*array.StringBuilder)
	emailBldr := builder.Field(2).(*array.StringBuilder)
	ageBldr := builder.Field(3).(*array.Int64Builder)
	scoreBldr := builder.Field(4).(*array.Float64Builder)
	signedUpBldr := builder.Field(5).(*array.Date32Builder)

	for i := 0; i < n; i++ {
		idBldr.Append(g.nextID)
		g.nextID++
		name, email := g.nextPerson()
		nameBldr.Append(name)
		emailBldr.Append(email)
		ageBldr.Append(int64(minAge + g.rng.Intn(maxAge-minAge+1)))
		scoreBldr.Append(g.rng.Float64() * 100)
		signedUp := g.anchor.AddDate(0, 0, -g.rng.Intn(signedUpWindowDays))
		signedUpBldr.Append(arrow.Date32FromTime(signedUp))
	}

	return builder.NewRecord()
}
