package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbench/arcbench/generator"
	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/config"
	pool "github.com/arcbench/arcbench/internal/memory"
	"github.com/arcbench/arcbench/internal/schemas"
	"github.com/arcbench/arcbench/internal/testutil"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.GPU.Library = ""
	return cfg
}

func writeCSV(t *testing.T, path string, rows ...string) {
	t.Helper()
	content := "id,name,email,age,score,signed_up\n" + strings.Join(rows, "")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func person(id int, name string, age int) string {
	return fmt.Sprintf("%d,%s,%s@example.com,%d,%.1f,2024-03-01\n", id, name, strings.ToLower(name), age, float64(age))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds() {
		kind := kind // capture range variable
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			parsed, err := ParseKind(kind.String())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed, "Kind names should round-trip through ParseKind")
		})
	}

	_, err := ParseKind("columnar-quantum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columnar-basic", "The error should list the valid engines")

	_, err = ParseKind("")
	assert.Error(t, err)
}

func TestAggregatorAppliesHavingOrderAndLimit(t *testing.T) {
	t.Parallel()

	agg := newAggregator()
	// Exactly 30 must not survive the strict > comparison.
	agg.add("Boundary", 30)
	agg.add("Young", 12)
	// Ties on the average break by name, ascending.
	agg.add("Zed", 40)
	agg.add("Amy", 40)
	// Averaged across two rows.
	agg.add("Ada", 40)
	agg.add("Ada", 44)

	rows := agg.results()
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Name: "Ada", AvgAge: 42}, rows[0])
	assert.Equal(t, Row{Name: "Amy", AvgAge: 40}, rows[1])
	assert.Equal(t, Row{Name: "Zed", AvgAge: 40}, rows[2])
}

func TestAggregatorLimitsToTopGroups(t *testing.T) {
	t.Parallel()

	agg := newAggregator()
	for i := 0; i < TopGroups+2; i++ {
		agg.add(fmt.Sprintf("Group%d", i), int64(31+i))
	}

	rows := agg.results()
	require.Len(t, rows, TopGroups, "The result should be capped")
	assert.Equal(t, fmt.Sprintf("Group%d", TopGroups+1), rows[0].Name, "The highest average should lead")
}

func TestAggregatorSkipsNulls(t *testing.T) {
	t.Parallel()

	builder := array.NewRecordBuilder(pool.NewGoAllocator(), schemas.PeopleSchema())
	defer builder.Release()

	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	nameBuilder := builder.Field(1).(*array.StringBuilder)
	nameBuilder.Append("Ada")
	nameBuilder.AppendNull()
	nameBuilder.Append("Grace")
	builder.Field(2).(*array.StringBuilder).AppendValues([]string{"a@x", "b@x", "c@x"}, nil)
	ageBuilder := builder.Field(3).(*array.Int64Builder)
	ageBuilder.Append(40)
	ageBuilder.Append(41)
	ageBuilder.AppendNull()
	builder.Field(4).(*array.Float64Builder).AppendValues([]float64{1, 2, 3}, nil)
	builder.Field(5).(*array.Date32Builder).AppendValues([]arrow.Date32{0, 0, 0}, nil)

	record := builder.NewRecord()
	defer record.Release()

	agg := newAggregator()
	require.NoError(t, agg.addRecord(record))
	assert.Equal(t, int64(3), agg.rows, "Every row is scanned")

	rows := agg.results()
	require.Len(t, rows, 1, "Null names and null ages drop out of the aggregate")
	assert.Equal(t, "Ada", rows[0].Name)
}

func TestFixedQuerySQL(t *testing.T) {
	t.Parallel()

	sql := FixedQuerySQL("people")
	assert.Contains(t, sql, "GROUP BY name")
	assert.Contains(t, sql, "HAVING AVG(age) > 30")
	assert.Contains(t, sql, "ORDER BY avg_age DESC, name ASC")
	assert.Contains(t, sql, "LIMIT 5")
}

func TestProcessKnownData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "data_0.csv"),
		person(1, "Ada", 40),
		person(2, "Ada", 44),
		person(3, "Grace", 31),
	)
	writeCSV(t, filepath.Join(dir, "data_1.csv"),
		person(4, "Alan", 30),
		person(5, "Bob", 10),
	)

	want := []Row{
		{Name: "Ada", AvgAge: 42},
		{Name: "Grace", AvgAge: 31},
	}

	for _, kind := range []Kind{KindColumnarBasic, KindColumnarStreaming} {
		kind := kind // capture range variable
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			result, err := Process(context.Background(), kind, testConfig(), &Request{Dir: dir, Format: integrations.FormatCSV}, nil)
			require.NoError(t, err)
			assert.Equal(t, kind, result.Engine)
			assert.Equal(t, 2, result.Files)
			assert.Equal(t, int64(5), result.RowsScanned)
			assert.Equal(t, want, result.Rows, "An average of exactly thirty must not survive the filter")
		})
	}
}

func TestEagerAndStreamingAgree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err := generator.New(generator.WithSeed(3), generator.WithFileCount(4), generator.WithRowsPerFile(50)).
		Generate(ctx, dir, integrations.FormatCSV)
	require.NoError(t, err)

	req := &Request{Dir: dir, Format: integrations.FormatCSV}
	eager, err := Process(ctx, KindColumnarBasic, testConfig(), req, nil)
	require.NoError(t, err)
	streaming, err := Process(ctx, KindColumnarStreaming, testConfig(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, eager.RowsScanned, streaming.RowsScanned, "Both engines scan the same rows")
	assert.Equal(t, eager.Files, streaming.Files)
	assert.Equal(t, eager.Rows, streaming.Rows, "Both engines must agree on the fixed query's answer")
}

func TestProcessExportsOlderPeople(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "data_0.csv"),
		person(1, "Ada", 52),
		person(2, "Grace", 50),
		person(3, "Alan", 49),
	)

	tests := []struct {
		description string
		file        string
	}{
		{description: "csv export", file: "olders.csv"},
		{description: "parquet export", file: "olders.parquet"},
	}

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.description, func(t *testing.T) {
			t.Parallel()

			exportPath := filepath.Join(t.TempDir(), test.file)
			result, err := Process(context.Background(), KindColumnarStreaming, testConfig(),
				&Request{Dir: dir, Format: integrations.FormatCSV, ExportPath: exportPath}, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(2), result.ExportedRows, "Only ages fifty and over are exported")
			assert.Equal(t, exportPath, result.ExportPath)

			format, err := integrations.ParseFileFormat(strings.TrimPrefix(filepath.Ext(test.file), "."))
			require.NoError(t, err)
			open, err := integrations.ReaderFor(format, schemas.ExportSchema())
			require.NoError(t, err)
			reader, err := open(context.Background(), exportPath)
			require.NoError(t, err)
			defer reader.Close()

			cells, err := testutil.ReadAllCells(reader)
			require.NoError(t, err)
			require.Len(t, cells, 2)
			for _, row := range cells {
				assert.Len(t, row, 3, "The export carries name, email and age only")
				assert.NotEqual(t, "Alan", row[0], "Alan is under fifty and stays out")
			}
		})
	}
}

func TestProcessEmptyDirectory(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindColumnarBasic, KindColumnarStreaming} {
		kind := kind // capture range variable
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			result, err := Process(context.Background(), kind, testConfig(), &Request{Dir: t.TempDir(), Format: integrations.FormatCSV}, nil)
			require.NoError(t, err, "No input files is an empty result, not an error")
			assert.Equal(t, 0, result.Files)
			assert.Empty(t, result.Rows)
		})
	}
}

func TestProcessRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		description string
		kind        Kind
		req         *Request
	}{
		{
			description: "nil request",
			kind:        KindColumnarBasic,
		},
		{
			description: "empty directory",
			kind:        KindColumnarBasic,
			req:         &Request{Format: integrations.FormatCSV},
		},
		{
			description: "unknown export extension",
			kind:        KindColumnarBasic,
			req:         &Request{Dir: ".", Format: integrations.FormatCSV, ExportPath: "out.txt"},
		},
	}

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.description, func(t *testing.T) {
			t.Parallel()

			_, err := Process(context.Background(), test.kind, testConfig(), test.req, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrInvalid), "Request problems are configuration errors: %v", err)
		})
	}

	_, err := Process(context.Background(), KindInvalid, testConfig(), &Request{Dir: ".", Format: integrations.FormatCSV}, nil)
	assert.Error(t, err, "An unknown engine kind cannot run")
}

// The GPU engine must be rejected during validation, before any file is
// opened: a request pointing at a directory that does not exist still
// reports engine unavailability, not an I/O failure.
func TestGPUFailsFastDuringValidation(t *testing.T) {
	t.Parallel()

	missingDir := filepath.Join(t.TempDir(), "never-created")

	t.Run("no driver configured", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		_, err := Process(context.Background(), KindColumnarGPU, cfg, &Request{Dir: missingDir, Format: integrations.FormatCSV}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnavailable), "Expected the unavailability sentinel, got: %v", err)
	})

	t.Run("configured driver library does not exist", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.GPU.Library = filepath.Join(t.TempDir(), "libmissing.so")
		_, err := Process(context.Background(), KindColumnarGPU, cfg, &Request{Dir: missingDir, Format: integrations.FormatCSV}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnavailable), "Expected the unavailability sentinel, got: %v", err)
	})

	t.Run("driver present but no cuda runtime", func(t *testing.T) {
		t.Parallel()

		if cudaPresent() {
			t.Skip("CUDA runtime detected; the no-CUDA path cannot be exercised here.")
		}
		lib := filepath.Join(t.TempDir(), "libcudf.so")
		require.NoError(t, os.WriteFile(lib, []byte("stub"), 0o644))

		cfg := testConfig()
		cfg.GPU.Library = lib
		_, err := Process(context.Background(), KindColumnarGPU, cfg, &Request{Dir: missingDir, Format: integrations.FormatCSV}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnavailable))
		assert.Contains(t, err.Error(), "CUDA")
	})
}

func TestExportFormat(t *testing.T) {
	t.Parallel()

	format, err := exportFormat("out.parquet")
	require.NoError(t, err)
	assert.Equal(t, integrations.FormatParquet, format)

	format, err = exportFormat("out.csv")
	require.NoError(t, err)
	assert.Equal(t, integrations.FormatCSV, format)

	_, err = exportFormat("out.txt")
	assert.Error(t, err)
}

func TestEmbeddedDBEngine(t *testing.T) {
	if os.Getenv("CI") == "true" {
		t.Skip("Skipping DuckDB integration test in CI environment.")
	}

	cfg := testConfig()
	engine, err := New(KindEmbeddedDB, cfg, nil)
	require.NoError(t, err)
	if err := engine.Validate(context.Background()); err != nil {
		t.Skipf("DuckDB driver not installed: %v", err)
	}

	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "data_0.csv"),
		person(1, "Ada", 40),
		person(2, "Ada", 44),
		person(3, "Grace", 31),
		person(4, "Alan", 30),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := Process(ctx, KindEmbeddedDB, cfg, &Request{Dir: dir, Format: integrations.FormatCSV}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.RowsScanned)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Ada", result.Rows[0].Name)
	assert.InDelta(t, 42.0, result.Rows[0].AvgAge, 0.001)
	assert.Equal(t, "Grace", result.Rows[1].Name)
	assert.InDelta(t, 31.0, result.Rows[1].AvgAge, 0.001)
}
