// Package engine runs one fixed benchmark query over a directory of data
// files through interchangeable execution engines.
//
// The query is: group people by name, keep groups whose average age exceeds
// 30, order by that average descending (ties broken by name) and return the
// top five. Every engine answers it; what differs is how the data gets there.
//
// Each run is timed in two phases against the monotonic clock:
//
//   - load: bringing source bytes into the engine's queryable form
//     (decoding files into memory, or building the database view over them);
//   - query: executing the fixed aggregation, and nothing else.
//
// The streaming engine is the deliberate boundary case: it has no separate
// load phase, decoding flows straight into the aggregation, so its load time
// is near zero and its query time covers both. Results record the two
// durations separately so the engines stay comparable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/config"
	"github.com/arcbench/arcbench/internal/logging"
)

// ErrUnavailable reports that an engine cannot run in this environment, for
// example a missing accelerator runtime or driver library. It is detected
// during Validate, before any data file is opened, and never degrades into
// a silent fallback onto another engine.
var ErrUnavailable = errors.New("engine unavailable")

// Kind identifies one of the four supported engines.
type Kind int

const (
	KindInvalid Kind = iota
	// KindColumnarBasic decodes every file into memory, then aggregates.
	KindColumnarBasic
	// KindColumnarStreaming aggregates batch by batch as files decode.
	KindColumnarStreaming
	// KindColumnarGPU pushes the query through a GPU-accelerated ADBC
	// driver. Requires a configured driver library and a CUDA runtime.
	KindColumnarGPU
	// KindEmbeddedDB lets DuckDB query the files through a view.
	KindEmbeddedDB
)

// Kinds lists the supported engines in display order.
func Kinds() []Kind {
	return []Kind{KindColumnarBasic, KindColumnarStreaming, KindColumnarGPU, KindEmbeddedDB}
}

// ParseKind maps an engine name from the command line onto a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "columnar-basic":
		return KindColumnarBasic, nil
	case "columnar-streaming":
		return KindColumnarStreaming, nil
	case "columnar-gpu":
		return KindColumnarGPU, nil
	case "embedded-db":
		return KindEmbeddedDB, nil
	default:
		return KindInvalid, fmt.Errorf("unknown engine %q (valid: columnar-basic, columnar-streaming, columnar-gpu, embedded-db)", name)
	}
}

func (k Kind) String() string {
	switch k {
	case KindColumnarBasic:
		return "columnar-basic"
	case KindColumnarStreaming:
		return "columnar-streaming"
	case KindColumnarGPU:
		return "columnar-gpu"
	case KindEmbeddedDB:
		return "embedded-db"
	default:
		return "invalid"
	}
}

// MarshalText makes saved reports carry the engine's name instead of its
// enum value.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses an engine name, so reports read back.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Request describes one benchmark run.
type Request struct {
	// Dir holds the source files.
	Dir string
	// Format selects which files in Dir are read.
	Format integrations.FileFormat
	// ExportPath, when set, writes everyone aged 50 or over (name, email,
	// age) to this file after the query; .parquet and .csv extensions are
	// supported.
	ExportPath string
}

func (r *Request) validate() error {
	if r == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if r.Dir == "" {
		return fmt.Errorf("source directory cannot be empty")
	}
	switch r.Format {
	case integrations.FormatCSV, integrations.FormatJSON, integrations.FormatParquet:
	default:
		return fmt.Errorf("unsupported source format %q (valid: csv, json, parquet)", r.Format)
	}
	if r.ExportPath != "" {
		if _, err := exportFormat(r.ExportPath); err != nil {
			return err
		}
	}
	return nil
}

// Row is one line of the fixed query's output.
type Row struct {
	Name   string  `json:"name"`
	AvgAge float64 `json:"avg_age"`
}

// Result captures one engine run.
type Result struct {
	Engine        Kind          `json:"engine"`
	Files         int           `json:"files"`
	RowsScanned   int64         `json:"rows_scanned"`
	LoadDuration  time.Duration `json:"load_duration"`
	QueryDuration time.Duration `json:"query_duration"`
	Rows          []Row         `json:"rows"`
	ExportedRows  int64         `json:"exported_rows,omitempty"`
	ExportPath    string        `json:"export_path,omitempty"`
}

// An Engine loads source files and executes the fixed benchmark query.
type Engine interface {
	Kind() Kind

	// Validate checks that the engine can run in this environment. It is
	// called before any data file is opened; engines backed by optional
	// runtimes report their absence here, wrapped in ErrUnavailable.
	Validate(ctx context.Context) error

	// Run loads the data and executes the query, timing the two phases
	// separately.
	Run(ctx context.Context, req *Request) (*Result, error)
}

// New builds the engine for kind, using cfg for driver locations.
func New(kind Kind, cfg *config.Config, logger kitlog.Logger) (Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger = logging.OrNop(logger)
	switch kind {
	case KindColumnarBasic:
		return &eagerEngine{logger: logger}, nil
	case KindColumnarStreaming:
		return &streamingEngine{logger: logger}, nil
	case KindColumnarGPU:
		return &gpuEngine{cfg: cfg, logger: logger}, nil
	case KindEmbeddedDB:
		return &embeddedEngine{cfg: cfg, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown engine %v", kind)
	}
}

// Process builds the engine for kind, validates that it can run here, then
// executes the fixed query over the request.
func Process(ctx context.Context, kind Kind, cfg *config.Config, req *Request, logger kitlog.Logger) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	logger = logging.OrNop(logger)

	eng, err := New(kind, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := eng.Validate(ctx); err != nil {
		return nil, err
	}

	level.Info(logger).Log("msg", "running engine", "engine", kind,
		"dir", req.Dir, "format", req.Format)
	res, err := eng.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("engine %s failed: %w", kind, err)
	}
	level.Info(logger).Log("msg", "engine finished", "engine", kind,
		"files", res.Files, "rows_scanned", res.RowsScanned,
		"load", res.LoadDuration, "query", res.QueryDuration)
	return res, nil
}
