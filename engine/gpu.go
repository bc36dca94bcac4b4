package engine

import (
	"context"
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"

	duckdbint "github.com/arcbench/arcbench/integrations/duckdb"
	"github.com/arcbench/arcbench/internal/config"
)

// gpuEngine pushes the fixed query through a GPU-accelerated ADBC driver.
// It shares the SQL path with the embedded engine; only the driver library
// differs. There is no CPU fallback: when the accelerator is absent the
// engine refuses to run at all.
type gpuEngine struct {
	cfg    *config.Config
	logger kitlog.Logger
}

func (e *gpuEngine) Kind() Kind { return KindColumnarGPU }

func (e *gpuEngine) options() *duckdbint.Options {
	return &duckdbint.Options{
		DriverCandidates: []string{e.cfg.GPU.Library},
		Entrypoint:       e.cfg.GPU.Entrypoint,
	}
}

// Validate reports ErrUnavailable before any data file is opened when the
// accelerator driver or the CUDA runtime is missing.
func (e *gpuEngine) Validate(ctx context.Context) error {
	if e.cfg.GPU.Library == "" {
		return fmt.Errorf("%w: no GPU query driver configured (set gpu.library or ARCBENCH_GPU_DRIVER)", ErrUnavailable)
	}
	if _, err := os.Stat(e.cfg.GPU.Library); err != nil {
		return fmt.Errorf("%w: GPU query driver %s: %v", ErrUnavailable, e.cfg.GPU.Library, err)
	}
	if !cudaPresent() {
		return fmt.Errorf("%w: no CUDA runtime detected", ErrUnavailable)
	}
	return nil
}

func (e *gpuEngine) Run(ctx context.Context, req *Request) (*Result, error) {
	return runSQL(ctx, e.Kind(), e.options(), req, e.logger)
}

// cudaPresent probes the NVIDIA device files the CUDA runtime needs.
func cudaPresent() bool {
	for _, p := range []string{"/proc/driver/nvidia/version", "/dev/nvidiactl"} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}
