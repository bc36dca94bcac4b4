package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/arcbench/arcbench/convert"
	"github.com/arcbench/arcbench/engine"
	"github.com/arcbench/arcbench/generator"
	"github.com/arcbench/arcbench/ingest"
	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/config"
	"github.com/arcbench/arcbench/internal/logging"
	"github.com/arcbench/arcbench/pkg/report"
)

// SourceDir returns the conventional directory for a source format.
func SourceDir(cfg *config.Config, format integrations.FileFormat) string {
	switch format {
	case integrations.FormatJSON:
		return cfg.Paths.JSONDir
	case integrations.FormatParquet:
		return cfg.Paths.ParquetDir
	default:
		return cfg.Paths.CSVDir
	}
}

func ExecuteCommand(cfg *config.Config, choice string) error {
	switch choice {
	case "Generate Data":
		return generateData(cfg)
	case "Convert to Parquet":
		return convertToParquet(cfg)
	case "Ingest to SQLite":
		return ingestToSQLite(cfg)
	case "Run Benchmark":
		return runBenchmark(cfg)
	default:
		return fmt.Errorf("unknown command: %s", choice)
	}
}

func prompt(label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	var s string
	fmt.Scanln(&s)
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func promptInt(label string, def int) int {
	n, err := strconv.Atoi(prompt(label, strconv.Itoa(def)))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func promptFormat(def string) (integrations.FileFormat, error) {
	return integrations.ParseFileFormat(prompt("Source format (csv/json/parquet)", def))
}

func generateData(cfg *config.Config) error {
	format, err := integrations.ParseFileFormat(prompt("Output format (csv/json)", "csv"))
	if err != nil {
		return err
	}
	files := promptInt("Number of files", 10)
	rows := promptInt("Rows per file", 100)

	gen := generator.New(
		generator.WithFileCount(files),
		generator.WithRowsPerFile(rows),
		generator.WithLogger(logging.Default(cfg.LogLevel)),
	)
	sum, err := gen.Generate(context.Background(), SourceDir(cfg, format), format)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d files (%d rows), skipped %d already present\n",
		sum.FilesWritten, sum.RowsWritten, sum.FilesSkipped)
	return nil
}

func convertToParquet(cfg *config.Config) error {
	format, err := integrations.ParseFileFormat(prompt("Source format (csv/json)", "csv"))
	if err != nil {
		return err
	}

	res, err := convert.Run(context.Background(), SourceDir(cfg, format), cfg.Paths.ParquetDir, format,
		&convert.Options{Logger: logging.Default(cfg.LogLevel)})
	if err != nil {
		return err
	}
	fmt.Printf("Converted %d files (%d rows), skipped %d up to date\n",
		res.Converted, res.Rows, res.Skipped)
	return nil
}

func ingestToSQLite(cfg *config.Config) error {
	format, err := promptFormat("parquet")
	if err != nil {
		return err
	}
	policy, err := ingest.ParsePolicy(prompt("Policy (replace/append)", "replace"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	backend, err := ingest.NewSQLiteBackend(ctx, cfg.Paths.SQLitePath)
	if err != nil {
		return err
	}
	defer backend.Close()

	res, err := ingest.Run(ctx, backend, SourceDir(cfg, format), cfg.Table, format,
		&ingest.Options{Policy: policy, Logger: logging.Default(cfg.LogLevel)})
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d rows from %d files; table %s now holds %d rows\n",
		res.RowsRead, len(res.Files), res.Table, res.TableRows)
	return nil
}

func runBenchmark(cfg *config.Config) error {
	kind, err := engine.ParseKind(prompt("Engine (columnar-basic/columnar-streaming/columnar-gpu/embedded-db)", "columnar-basic"))
	if err != nil {
		return err
	}
	format, err := promptFormat("parquet")
	if err != nil {
		return err
	}

	res, err := engine.Process(context.Background(), kind, cfg,
		&engine.Request{Dir: SourceDir(cfg, format), Format: format},
		logging.Default(cfg.LogLevel))
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
