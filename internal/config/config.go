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

// Package config carries the paths, table names and driver locations every
// subcommand shares. Values resolve in order: built-in defaults, then an
// optional YAML file, then .env / environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration and usage errors so the binary can map them
// to their own exit code. Wrap it: fmt.Errorf("%w: ...", config.ErrInvalid).
var ErrInvalid = errors.New("invalid configuration")

// Paths locates every artifact the harness touches on disk.
type Paths struct {
	DataDir    string `yaml:"data_dir"`
	CSVDir     string `yaml:"csv_dir"`
	JSONDir    string `yaml:"json_dir"`
	ParquetDir string `yaml:"parquet_dir"`
	ResultsDir string `yaml:"results_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	DuckDBPath string `yaml:"duckdb_path"`
}

// Driver names an ADBC driver shared library and its init entrypoint.
type Driver struct {
	Library    string `yaml:"library"`
	Entrypoint string `yaml:"entrypoint"`
}

// Config is the root configuration document.
type Config struct {
	Paths    Paths  `yaml:"paths"`
	Table    string `yaml:"table"`
	LogLevel string `yaml:"log_level"`
	DuckDB   Driver `yaml:"duckdb"`
	GPU      Driver `yaml:"gpu"`
}

// Default returns the conventional layout: everything under ./data, SQLite
// table my_table, DuckDB loaded through the stock adbc entrypoint.
func Default() *Config {
	cfg := &Config{
		Table:    "my_table",
		LogLevel: "info",
		DuckDB:   Driver{Entrypoint: "duckdb_adbc_init"},
		GPU:      Driver{Entrypoint: "AdbcDriverInit"},
	}
	cfg.Paths.DataDir = "data"
	cfg.fillDerived()
	return cfg
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or absent), .env, and ARCBENCH_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to env resolution
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: cannot parse %s: %v", ErrInvalid, path, err)
			}
		}
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.fillDerived()
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"ARCBENCH_DATA_DIR":          &c.Paths.DataDir,
		"ARCBENCH_SQLITE_PATH":       &c.Paths.SQLitePath,
		"ARCBENCH_DUCKDB_PATH":       &c.Paths.DuckDBPath,
		"ARCBENCH_TABLE":             &c.Table,
		"ARCBENCH_LOG_LEVEL":         &c.LogLevel,
		"ARCBENCH_DUCKDB_DRIVER":     &c.DuckDB.Library,
		"ARCBENCH_DUCKDB_ENTRYPOINT": &c.DuckDB.Entrypoint,
		"ARCBENCH_GPU_DRIVER":        &c.GPU.Library,
		"ARCBENCH_GPU_ENTRYPOINT":    &c.GPU.Entrypoint,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// fillDerived resolves the per-artifact paths that were left empty relative
// to DataDir, so overriding only the data dir moves the whole layout.
func (c *Config) fillDerived() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	derive := func(dst *string, name string) {
		if *dst == "" {
			*dst = filepath.Join(c.Paths.DataDir, name)
		}
	}
	derive(&c.Paths.CSVDir, "fake_csvs")
	derive(&c.Paths.JSONDir, "fake_jsons")
	derive(&c.Paths.ParquetDir, "parquets")
	derive(&c.Paths.ResultsDir, "results")
	derive(&c.Paths.SQLitePath, "arcbench.db")
	derive(&c.Paths.DuckDBPath, "arcbench.duckdb")
}

// EnsureDirs creates the working directories. Called once at startup so the
// individual commands can assume the layout exists.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.Paths.DataDir,
		c.Paths.CSVDir,
		c.Paths.JSONDir,
		c.Paths.ParquetDir,
		c.Paths.ResultsDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DuckDBDriverCandidates lists the library paths tried, in order, when no
// explicit DuckDB driver is configured.
func (c *Config) DuckDBDriverCandidates() []string {
	if c.DuckDB.Library != "" {
		return []string{c.DuckDB.Library}
	}
	return []string{
		"/usr/local/lib/libduckdb.so",
		"/usr/local/lib/libduckdb.dylib",
		"/usr/lib/libduckdb.so",
	}
}
