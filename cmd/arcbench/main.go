package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	kitlog "github.com/go-kit/log"

	"github.com/arcbench/arcbench/convert"
	"github.com/arcbench/arcbench/engine"
	"github.com/arcbench/arcbench/generator"
	"github.com/arcbench/arcbench/ingest"
	duckdbint "github.com/arcbench/arcbench/integrations/duckdb"
	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/cli"
	"github.com/arcbench/arcbench/internal/config"
	"github.com/arcbench/arcbench/internal/logging"
	"github.com/arcbench/arcbench/pkg/report"
)

const usage = `ArcBench, a benchmarking harness for data processing engines.

Generates synthetic people data, converts it to Parquet, loads it into a
database, and times one fixed query (top five names by average age over 30)
across interchangeable engines.

Usage:
  arcbench generate [--format=<fmt>] [--files=<n>] [--rows=<n>] [--seed=<n>] [--dir=<path>] [--config=<path>] [--log-level=<lvl>]
  arcbench convert [--format=<fmt>] [--force] [--verify] [--workers=<n>] [--dir=<path>] [--out=<path>] [--config=<path>] [--log-level=<lvl>]
  arcbench ingest [--format=<fmt>] [--policy=<p>] [--backend=<b>] [--table=<name>] [--dir=<path>] [--config=<path>] [--log-level=<lvl>]
  arcbench process [--engine=<e>] [--format=<fmt>] [--dir=<path>] [--export=<path>] [--config=<path>] [--log-level=<lvl>]
  arcbench menu [--config=<path>]
  arcbench -h | --help
  arcbench --version

Options:
  -h --help          Show this screen.
  --version          Show version.
  --config=<path>    Configuration file [default: arcbench.yaml].
  --log-level=<lvl>  Log level: debug, info, warn or error.
  --format=<fmt>     Source format: csv, json or parquet. Defaults to csv for
                     generate and convert, parquet for ingest and process.
  --dir=<path>       Override the format's conventional directory.
  --files=<n>        Number of files to generate [default: 10].
  --rows=<n>         Rows per generated file [default: 100].
  --seed=<n>         Seed the generator for reproducible data.
  --force            Convert even when the Parquet file already exists.
  --verify           Re-read each written Parquet footer and compare row counts.
  --workers=<n>      Parallel file conversions [default: 4].
  --out=<path>       Parquet output directory.
  --policy=<p>       What to do when the table exists: replace or append [default: replace].
  --backend=<b>      Ingest backend: sqlite or duckdb [default: sqlite].
  --table=<name>     Destination table name.
  --engine=<e>       columnar-basic, columnar-streaming, columnar-gpu or embedded-db [default: columnar-basic].
  --export=<path>    After the query, write everyone aged 50+ to this .parquet or .csv file.

Exit codes:
  0  success
  1  runtime failure; partial results are kept on disk
  2  invalid configuration or usage
  3  engine or backend unavailable on this machine
  4  table schema mismatch on append
`

const version = "arcbench 0.1.0"

const (
	exitOK          = 0
	exitRuntime     = 1
	exitConfig      = 2
	exitUnavailable = 3
	exitSchema      = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	// Bare invocation drops into the interactive menu.
	if len(os.Args) < 2 {
		cfg, err := config.Load("arcbench.yaml")
		if err == nil {
			err = cli.RunMenu(cfg)
		}
		return finish(err)
	}

	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			if err != nil {
				fmt.Fprintln(os.Stderr, usage)
				os.Exit(exitConfig)
			}
			fmt.Println(usage)
			os.Exit(exitOK)
		},
	}
	args, err := parser.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		return finish(usageErr(err))
	}

	cfgPath := stringArg(args, "--config", "arcbench.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return finish(err)
	}
	if lvl := stringArg(args, "--log-level", ""); lvl != "" {
		cfg.LogLevel = lvl
	}
	logger := logging.Default(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	switch {
	case boolArg(args, "menu"):
		err = cli.RunMenu(cfg)
	case boolArg(args, "generate"):
		err = runGenerate(ctx, cfg, args, logger)
	case boolArg(args, "convert"):
		err = runConvert(ctx, cfg, args, logger)
	case boolArg(args, "ingest"):
		err = runIngest(ctx, cfg, args, logger)
	case boolArg(args, "process"):
		err = runProcess(ctx, cfg, args, logger)
	default:
		err = usageErr(fmt.Errorf("no command given"))
	}
	return finish(err)
}

func finish(err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps an error onto the documented exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, engine.ErrUnavailable), errors.Is(err, duckdbint.ErrDriverMissing):
		return exitUnavailable
	case errors.Is(err, ingest.ErrSchemaMismatch):
		return exitSchema
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	default:
		return exitRuntime
	}
}

func usageErr(err error) error {
	return fmt.Errorf("%w: %v", config.ErrInvalid, err)
}

func stringArg(args docopt.Opts, key, def string) string {
	if v, err := args.String(key); err == nil && v != "" {
		return v
	}
	return def
}

func boolArg(args docopt.Opts, key string) bool {
	v, _ := args.Bool(key)
	return v
}

func intArg(args docopt.Opts, key string, def int) (int, error) {
	s := stringArg(args, key, "")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, usageErr(fmt.Errorf("%s must be an integer, got %q", key, s))
	}
	return n, nil
}

// parseFormat resolves --format with a per-command default, and --dir with
// the format's conventional directory.
func parseFormat(args docopt.Opts, cfg *config.Config, def string) (integrations.FileFormat, string, error) {
	format, err := integrations.ParseFileFormat(stringArg(args, "--format", def))
	if err != nil {
		return integrations.FormatInvalid, "", usageErr(err)
	}
	return format, stringArg(args, "--dir", cli.SourceDir(cfg, format)), nil
}

func runGenerate(ctx context.Context, cfg *config.Config, args docopt.Opts, logger kitlog.Logger) error {
	format, dir, err := parseFormat(args, cfg, "csv")
	if err != nil {
		return err
	}
	if format != integrations.FormatCSV && format != integrations.FormatJSON {
		return usageErr(fmt.Errorf("generate writes csv or json, not %s", format))
	}
	files, err := intArg(args, "--files", 10)
	if err != nil {
		return err
	}
	rows, err := intArg(args, "--rows", 100)
	if err != nil {
		return err
	}

	opts := []generator.Option{
		generator.WithFileCount(files),
		generator.WithRowsPerFile(rows),
		generator.WithLogger(logger),
	}
	if s := stringArg(args, "--seed", ""); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return usageErr(fmt.Errorf("--seed must be an integer, got %q", s))
		}
		opts = append(opts, generator.WithSeed(seed))
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	sum, err := generator.New(opts...).Generate(ctx, dir, format)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d files (%d rows) to %s, skipped %d already present\n",
		sum.FilesWritten, sum.RowsWritten, dir, sum.FilesSkipped)
	return nil
}

func runConvert(ctx context.Context, cfg *config.Config, args docopt.Opts, logger kitlog.Logger) error {
	format, dir, err := parseFormat(args, cfg, "csv")
	if err != nil {
		return err
	}
	if format != integrations.FormatCSV && format != integrations.FormatJSON {
		return usageErr(fmt.Errorf("convert reads csv or json, not %s", format))
	}
	workers, err := intArg(args, "--workers", 4)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	out := stringArg(args, "--out", cfg.Paths.ParquetDir)
	res, err := convert.Run(ctx, dir, out, format, &convert.Options{
		Force:   boolArg(args, "--force"),
		Verify:  boolArg(args, "--verify"),
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Converted %d files (%d rows) to %s, skipped %d up to date\n",
		res.Converted, res.Rows, out, res.Skipped)
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, args docopt.Opts, logger kitlog.Logger) error {
	format, dir, err := parseFormat(args, cfg, "parquet")
	if err != nil {
		return err
	}
	policy, err := ingest.ParsePolicy(stringArg(args, "--policy", "replace"))
	if err != nil {
		return usageErr(err)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	var backend ingest.Backend
	switch name := stringArg(args, "--backend", "sqlite"); name {
	case "sqlite":
		backend, err = ingest.NewSQLiteBackend(ctx, cfg.Paths.SQLitePath)
	case "duckdb":
		backend, err = ingest.NewDuckDBBackend(ctx, &duckdbint.Options{
			Path:             cfg.Paths.DuckDBPath,
			DriverCandidates: cfg.DuckDBDriverCandidates(),
			Entrypoint:       cfg.DuckDB.Entrypoint,
		})
	default:
		return usageErr(fmt.Errorf("unknown ingest backend %q (valid: sqlite, duckdb)", name))
	}
	if err != nil {
		return err
	}
	defer backend.Close()

	table := stringArg(args, "--table", cfg.Table)
	res, err := ingest.Run(ctx, backend, dir, table, format, &ingest.Options{Policy: policy, Logger: logger})
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d rows from %d files; table %s now holds %d rows\n",
		res.RowsRead, len(res.Files), res.Table, res.TableRows)
	return nil
}

func runProcess(ctx context.Context, cfg *config.Config, args docopt.Opts, logger kitlog.Logger) error {
	kind, err := engine.ParseKind(stringArg(args, "--engine", "columnar-basic"))
	if err != nil {
		return usageErr(err)
	}
	format, dir, err := parseFormat(args, cfg, "parquet")
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	res, err := engine.Process(ctx, kind, cfg, &engine.Request{
		Dir:        dir,
		Format:     format,
		ExportPath: stringArg(args, "--export", ""),
	}, logger)
	if err != nil {
		return err
	}

	rep := report.New(res)
	fmt.Println(rep.Render())
	path, err := rep.Save(cfg.Paths.ResultsDir)
	if err != nil {
		return err
	}
	fmt.Printf("Report saved to %s\n", path)
	return nil
}
