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

package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbench/arcbench/generator"
	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/schemas"
	"github.com/arcbench/arcbench/internal/testutil"
)

func touchSources(t *testing.T, dir string, format integrations.FileFormat, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("data_%d%s", i, format.Ext())), csvHeader+csvRow(i, "Ada", 30+i))
	}
}

func TestBuildPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		description string
		existing    []string
		force       bool
		wantStems   []string
		wantSkipped []string
	}{
		{
			description: "fresh target plans every source",
			wantStems:   []string{"data_0", "data_1", "data_2"},
		},
		{
			description: "existing parquet suppresses its stem",
			existing:    []string{"data_1"},
			wantStems:   []string{"data_0", "data_2"},
			wantSkipped: []string{"data_1"},
		},
		{
			description: "force replans suppressed stems",
			existing:    []string{"data_0", "data_1", "data_2"},
			force:       true,
			wantStems:   []string{"data_0", "data_1", "data_2"},
		},
	}

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.description, func(t *testing.T) {
			t.Parallel()

			sourceDir, targetDir := t.TempDir(), t.TempDir()
			touchSources(t, sourceDir, integrations.FormatCSV, 3)
			for _, stem := range test.existing {
				writeFile(t, filepath.Join(targetDir, stem+".parquet"), "")
			}

			plan, err := BuildPlan(sourceDir, targetDir, integrations.FormatCSV, test.force)
			require.NoError(t, err)

			var stems []string
			for _, item := range plan.Items {
				stems = append(stems, item.Stem)
				assert.Equal(t, filepath.Join(targetDir, item.Stem+".parquet"), item.TargetPath)
			}
			assert.Equal(t, test.wantStems, stems, "Planned stems should be exactly the pending ones")
			assert.Equal(t, test.wantSkipped, plan.SkippedStems, "Skipped stems should be exactly the converted ones")
		})
	}
}

func TestBuildPlanValidation(t *testing.T) {
	t.Parallel()

	_, err := BuildPlan("", t.TempDir(), integrations.FormatCSV, false)
	assert.Error(t, err, "Empty source directory should be rejected")

	_, err = BuildPlan(t.TempDir(), t.TempDir(), integrations.FormatParquet, false)
	assert.Error(t, err, "Parquet is a target, not a source format")
}

// A parquet stem suppresses sources of either format: once data_0.csv has
// been converted, planning the JSON side skips data_0.json too.
func TestBuildPlanStemsAreFormatAgnostic(t *testing.T) {
	t.Parallel()

	sourceDir, targetDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "data_0.json"), jsonRow(1, "Ada", 36))
	writeFile(t, filepath.Join(targetDir, "data_0.parquet"), "")

	plan, err := BuildPlan(sourceDir, targetDir, integrations.FormatJSON, false)
	require.NoError(t, err)
	assert.Empty(t, plan.Items, "The stem already has a parquet counterpart")
	assert.Equal(t, []string{"data_0"}, plan.SkippedStems)
}

// Ten generated CSV files of five rows become ten parquet files carrying
// fifty rows, and the rows read back through the parquet reader.
func TestRunConvertsGeneratedData(t *testing.T) {
	t.Parallel()

	sourceDir, targetDir := t.TempDir(), t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err := generator.New(generator.WithSeed(11), generator.WithFileCount(10), generator.WithRowsPerFile(5)).
		Generate(ctx, sourceDir, integrations.FormatCSV)
	require.NoError(t, err)

	result, err := Run(ctx, sourceDir, targetDir, integrations.FormatCSV, &Options{Verify: true})
	require.NoError(t, err, "Error should be nil when converting generated data")
	assert.Equal(t, 10, result.Converted, "Every source file should convert")
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, int64(50), result.Rows, "Ten files of five rows carry fifty rows")

	targets, err := filepath.Glob(filepath.Join(targetDir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, targets, 10)

	var total int64
	for _, target := range targets {
		count, err := integrations.ParquetRowCount(target)
		require.NoError(t, err)
		total += count
	}
	assert.Equal(t, int64(50), total, "Footer row counts should sum to the generated total")

	open, err := integrations.ReaderFor(integrations.FormatParquet, schemas.PeopleSchema())
	require.NoError(t, err)
	dirReader, err := integrations.NewDirectoryReader(ctx, targetDir, "*.parquet", open)
	require.NoError(t, err)
	defer dirReader.Close()
	cells, err := testutil.ReadAllCells(dirReader)
	require.NoError(t, err)
	assert.Len(t, cells, 50, "Every converted row should read back")
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	sourceDir, targetDir := t.TempDir(), t.TempDir()
	touchSources(t, sourceDir, integrations.FormatCSV, 4)

	first, err := Run(context.Background(), sourceDir, targetDir, integrations.FormatCSV, nil)
	require.NoError(t, err)
	require.Equal(t, 4, first.Converted)

	second, err := Run(context.Background(), sourceDir, targetDir, integrations.FormatCSV, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Converted, "A rerun with all targets present converts nothing")
	assert.Equal(t, 4, second.Skipped, "A rerun skips every converted stem")

	forced, err := Run(context.Background(), sourceDir, targetDir, integrations.FormatCSV, &Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 4, forced.Converted, "Force overrides the incremental check")
	assert.Equal(t, 0, forced.Skipped)
}

func TestRunContinuesPastMalformedSources(t *testing.T) {
	t.Parallel()

	sourceDir, targetDir := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(sourceDir, "data_0.csv"), csvHeader+csvRow(1, "Ada", 36))
	writeFile(t, filepath.Join(sourceDir, "data_1.csv"), csvHeader+"2,Grace,grace@example.com,notanumber,9.5,2024-03-01\n")
	writeFile(t, filepath.Join(sourceDir, "data_2.csv"), csvHeader+csvRow(3, "Alan", 29))

	result, err := Run(context.Background(), sourceDir, targetDir, integrations.FormatCSV, &Options{Workers: 1})
	require.Error(t, err, "A run with failures should report them")
	assert.Contains(t, err.Error(), "1 of 3 conversions failed")

	assert.Equal(t, 2, result.Converted, "Well-formed files should convert despite the failure")
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Path, "data_1.csv")

	for _, stem := range []string{"data_0", "data_2"} {
		_, statErr := os.Stat(filepath.Join(targetDir, stem+".parquet"))
		assert.NoError(t, statErr, "Converted files should be kept after a partial failure")
	}
	_, statErr := os.Stat(filepath.Join(targetDir, "data_1.parquet"))
	assert.True(t, os.IsNotExist(statErr), "The failed stem must not gain a parquet file")
}

func TestRunEmptyDirectory(t *testing.T) {
	t.Parallel()

	result, err := Run(context.Background(), t.TempDir(), t.TempDir(), integrations.FormatCSV, nil)
	require.NoError(t, err, "A directory with no sources is a no-op, not an error")
	assert.Equal(t, 0, result.Converted)
	assert.Equal(t, 0, result.Skipped)
}

// Whatever subset of stems already has parquet counterparts, one planning
// pass covers exactly the complement and a follow-up pass plans nothing.
func TestBuildPlanCoversExactlyThePendingStems(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("planned stems are the complement of converted stems", prop.ForAll(
		func(converted []int) bool {
			sourceDir, targetDir := t.TempDir(), t.TempDir()
			const universe = 8
			for i := 0; i < universe; i++ {
				if os.WriteFile(filepath.Join(sourceDir, fmt.Sprintf("data_%d.csv", i)), []byte(csvHeader), 0o644) != nil {
					return false
				}
			}
			done := map[int]bool{}
			for _, i := range converted {
				done[i] = true
				if os.WriteFile(filepath.Join(targetDir, fmt.Sprintf("data_%d.parquet", i)), nil, 0o644) != nil {
					return false
				}
			}

			var want []string
			for i := 0; i < universe; i++ {
				if !done[i] {
					want = append(want, fmt.Sprintf("data_%d", i))
				}
			}
			sort.Strings(want)

			plan, err := BuildPlan(sourceDir, targetDir, integrations.FormatCSV, false)
			if err != nil {
				return false
			}
			var got []string
			for _, item := range plan.Items {
				got = append(got, item.Stem)
			}
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return len(plan.Items)+len(plan.SkippedStems) == universe
		},
		gen.SliceOf(gen.IntRange(0, 7)),
	))

	properties.TestingRun(t)
}
