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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbench/arcbench/internal/schemas"
	"github.com/arcbench/arcbench/internal/testutil"
)

func TestParseFileFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		description string
		name        string
		want        FileFormat
		wantErr     bool
	}{
		{description: "csv", name: "csv", want: FormatCSV},
		{description: "json", name: "json", want: FormatJSON},
		{description: "parquet", name: "parquet", want: FormatParquet},
		{description: "unknown name", name: "avro", wantErr: true},
		{description: "empty name", name: "", wantErr: true},
	}

	for _, test := range tests {
		test := test // capture range variable
		t.Run(test.description, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFileFormat(test.name)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.name, got.String(), "Format names should round-trip")
			assert.Equal(t, "."+test.name, got.Ext())
			assert.Equal(t, "*."+test.name, got.Glob())
		})
	}

	t.Run("case and whitespace folded", func(t *testing.T) {
		t.Parallel()

		got, err := ParseFileFormat(" CSV ")
		require.NoError(t, err)
		assert.Equal(t, FormatCSV, got)
	})
}

func TestReaderForRejectsInvalidFormat(t *testing.T) {
	t.Parallel()

	_, err := ReaderFor(FormatInvalid, schemas.PeopleSchema())
	assert.Error(t, err)
}

func TestDirectoryReaderChainsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		content := fmt.Sprintf("id,name,email,age,score,signed_up\n%d,Name%d,n%d@example.com,%d,1.5,2024-03-01\n", i, i, i, 20+i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("data_%d.csv", i)), []byte(content), 0o644))
	}

	open, err := ReaderFor(FormatCSV, schemas.PeopleSchema())
	require.NoError(t, err)
	reader, err := NewDirectoryReader(context.Background(), dir, "*.csv", open)
	require.NoError(t, err)
	defer reader.Close()

	require.Len(t, reader.Files(), 3)
	assert.Equal(t, filepath.Join(dir, "data_0.csv"), reader.Files()[0], "Files should chain in lexical order")

	cells, err := testutil.ReadAllCells(reader)
	require.NoError(t, err)
	require.Len(t, cells, 3, "One row per file should flow through the chain")
	assert.Equal(t, "Name0", cells[0][1])
	assert.Equal(t, "Name2", cells[2][1])
}

func TestDirectoryReaderEmptyDirectory(t *testing.T) {
	t.Parallel()

	open, err := ReaderFor(FormatCSV, schemas.PeopleSchema())
	require.NoError(t, err)
	reader, err := NewDirectoryReader(context.Background(), t.TempDir(), "*.csv", open)
	require.NoError(t, err)
	defer reader.Close()

	assert.Empty(t, reader.Files())
	_, err = reader.Read()
	assert.Equal(t, io.EOF, err, "An empty directory yields EOF immediately")
}

func TestDirectoryReaderValidation(t *testing.T) {
	t.Parallel()

	open, err := ReaderFor(FormatCSV, schemas.PeopleSchema())
	require.NoError(t, err)

	_, err = NewDirectoryReader(context.Background(), "", "*.csv", open)
	assert.Error(t, err, "An empty directory path is rejected")

	_, err = NewDirectoryReader(context.Background(), t.TempDir(), "*.csv", nil)
	assert.Error(t, err, "A nil open function is rejected")
}
