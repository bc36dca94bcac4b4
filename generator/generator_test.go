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

package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/schemas"
	"github.com/arcbench/arcbench/internal/testutil"
)

func TestGenerateWritesRequestedFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format      integrations.FileFormat
		files       int
		rows        int
		description string
	}{
		{
			format:      integrations.FormatCSV,
			files:       10,
			rows:        5,
			description: "ten CSV files of five rows",
		},
		{
			format:      integrations.FormatJSON,
			files:       3,
			rows:        4,
			description: "three JSON files of four rows",
		},
	}

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.description, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			gen := New(WithSeed(42), WithFileCount(test.files), WithRowsPerFile(test.rows))
			sum, err := gen.Generate(ctx, dir, test.format)
			require.NoError(t, err, "Error should be nil when generating files")
			assert.Equal(t, test.files, sum.FilesWritten, "Every requested file should be written")
			assert.Equal(t, 0, sum.FilesSkipped, "A fresh directory has nothing to skip")
			assert.Equal(t, int64(test.files*test.rows), sum.RowsWritten, "Row total should match files x rows")

			matches, err := filepath.Glob(filepath.Join(dir, test.format.Glob()))
			require.NoError(t, err)
			assert.Len(t, matches, test.files, "Each generated file should exist on disk")

			open, err := integrations.ReaderFor(test.format, schemas.PeopleSchema())
			require.NoError(t, err)

			total := 0
			for _, path := range matches {
				r, err := open(ctx, path)
				require.NoError(t, err, "Error should be nil when reopening %s", path)
				cells, err := testutil.ReadAllCells(r)
				require.NoError(t, err, "Error should be nil when reading %s back", path)
				require.NoError(t, r.Close())
				total += len(cells)
			}
			assert.Equal(t, test.files*test.rows, total, "Every generated row should read back")
		})
	}
}

func TestGenerateSeedDeterminism(t *testing.T) {
	t.Parallel()

	dirA, dirB := t.TempDir(), t.TempDir()
	ctx := context.Background()

	_, err := New(WithSeed(7), WithFileCount(2), WithRowsPerFile(25)).Generate(ctx, dirA, integrations.FormatCSV)
	require.NoError(t, err)
	_, err = New(WithSeed(7), WithFileCount(2), WithRowsPerFile(25)).Generate(ctx, dirB, integrations.FormatCSV)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		name := fmt.Sprintf("data_%d.csv", i)
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "Same seed should produce identical bytes for %s", name)
	}

	dirC := t.TempDir()
	_, err = New(WithSeed(8), WithFileCount(1), WithRowsPerFile(25)).Generate(ctx, dirC, integrations.FormatCSV)
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(dirA, "data_0.csv"))
	require.NoError(t, err)
	c, err := os.ReadFile(filepath.Join(dirC, "data_0.csv"))
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(c), "Different seeds should diverge")
}

func TestGenerateSkipsExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	first, err := New(WithSeed(1), WithFileCount(4), WithRowsPerFile(3)).Generate(ctx, dir, integrations.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, 4, first.FilesWritten)

	// Remove one file; a rerun should fill only the gap.
	require.NoError(t, os.Remove(filepath.Join(dir, "data_2.csv")))

	second, err := New(WithSeed(1), WithFileCount(4), WithRowsPerFile(3)).Generate(ctx, dir, integrations.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilesWritten, "Only the missing file should be rewritten")
	assert.Equal(t, 3, second.FilesSkipped, "Files already on disk should be skipped")
	assert.Equal(t, int64(3), second.RowsWritten, "Only the filled gap contributes rows")
}

func TestGenerateUnseededUsesFaker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sum, err := New(WithFileCount(1), WithRowsPerFile(10)).Generate(context.Background(), dir, integrations.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.RowsWritten)

	open, err := integrations.ReaderFor(integrations.FormatJSON, schemas.PeopleSchema())
	require.NoError(t, err)
	r, err := open(context.Background(), filepath.Join(dir, "data_0.json"))
	require.NoError(t, err)
	defer r.Close()

	cells, err := testutil.ReadAllCells(r)
	require.NoError(t, err)
	require.Len(t, cells, 10)
	for _, row := range cells {
		assert.NotEmpty(t, row[1], "Name column should be populated")
		assert.NotEmpty(t, row[2], "Email column should be populated")
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		description string
		format      integrations.FileFormat
		useTempDir  bool
	}{
		{
			description: "parquet output is not supported",
			format:      integrations.FormatParquet,
			useTempDir:  true,
		},
		{
			description: "empty directory is rejected",
			format:      integrations.FormatCSV,
		},
	}

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.description, func(t *testing.T) {
			t.Parallel()

			dir := ""
			if test.useTempDir {
				dir = t.TempDir()
			}
			_, err := New().Generate(context.Background(), dir, test.format)
			assert.Error(t, err)
		})
	}
}
