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
	"fmt"
	"strings"
)

// FileFormat enumerates the on-disk formats the harness understands. The
// zero value is invalid so an unset format cannot slip through a switch.
type FileFormat int

const (
	FormatInvalid FileFormat = iota
	FormatCSV
	FormatJSON
	FormatParquet
)

// ParseFileFormat maps a user-facing name to its FileFormat.
func ParseFileFormat(name string) (FileFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return FormatInvalid, fmt.Errorf("unknown file format %q (valid: csv, json, parquet)", name)
	}
}

// String returns the user-facing name.
func (f FileFormat) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return "invalid"
	}
}

// Ext returns the file extension including the dot.
func (f FileFormat) Ext() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	case FormatParquet:
		return ".parquet"
	default:
		return ""
	}
}

// Glob returns the pattern matching files of this format.
func (f FileFormat) Glob() string {
	return "*" + f.Ext()
}
