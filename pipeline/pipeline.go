// Package pipeline pumps records from a reader to a writer through a
// buffered channel, collecting throughput metrics along the way. Every
// conversion and load in the project is one of these pipelines.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/arcbench/arcbench/internal/arrio"
	"github.com/arcbench/arcbench/internal/json"
	"github.com/arcbench/arcbench/internal/logging"
)

// Metrics stores pipeline processing metrics.
type Metrics struct {
	sync.Mutex
	RecordsProcessed int64
	TotalBytes       int64
	StartTime        time.Time
	EndTime          time.Time
	TotalDuration    time.Duration
	Throughput       float64
	ThroughputBytes  float64
}

// UpdateMetrics calculates the total duration and the throughput figures.
func (m *Metrics) UpdateMetrics() {
	m.Lock()
	defer m.Unlock()

	m.TotalDuration = m.EndTime.Sub(m.StartTime)
	if m.TotalDuration > 0 {
		m.Throughput = float64(m.RecordsProcessed) / m.TotalDuration.Seconds()
		m.ThroughputBytes = float64(m.TotalBytes) / m.TotalDuration.Seconds()
	} else {
		m.Throughput = 0
		m.ThroughputBytes = 0
	}
}

// Rows returns the number of rows moved through the pipeline.
func (m *Metrics) Rows() int64 {
	m.Lock()
	defer m.Unlock()
	return m.RecordsProcessed
}

// Duration returns the wall-clock duration of the pipeline run.
func (m *Metrics) Duration() time.Duration {
	m.Lock()
	defer m.Unlock()
	return m.EndTime.Sub(m.StartTime)
}

// Report generates a JSON summary of the collected metrics.
func (m *Metrics) Report() string {
	m.Lock()
	defer m.Unlock()

	report := struct {
		RecordsProcessed int64   `json:"records_processed"`
		TotalBytes       int64   `json:"total_bytes"`
		TotalDuration    string  `json:"total_duration"`
		Throughput       float64 `json:"throughput_records_per_second"`
		ThroughputBytes  float64 `json:"throughput_bytes_per_second"`
	}{
		RecordsProcessed: m.RecordsProcessed,
		TotalBytes:       m.TotalBytes,
		TotalDuration:    m.TotalDuration.String(),
		Throughput:       m.Throughput,
		ThroughputBytes:  m.ThroughputBytes,
	}

	out, err := PrettyPrint(report)
	if err != nil {
		return fmt.Sprintf("error generating report: %v", err)
	}
	return out
}

// DataPipeline moves records from one reader to one writer.
type DataPipeline struct {
	reader  arrio.Reader
	writer  arrio.Writer
	logger  kitlog.Logger
	errCh   chan error
	metrics *Metrics
}

// NewDataPipeline creates a pipeline over the given endpoints.
func NewDataPipeline(reader arrio.Reader, writer arrio.Writer) *DataPipeline {
	return &DataPipeline{
		reader: reader,
		writer: writer,
		logger: logging.OrNop(nil),
		errCh:  make(chan error, 2),
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// WithLogger attaches a logger for per-record diagnostics and returns the
// pipeline for chaining.
func (dp *DataPipeline) WithLogger(logger kitlog.Logger) *DataPipeline {
	dp.logger = logging.OrNop(logger)
	return dp
}

// Start runs the pipeline to completion and returns its metrics. The reader
// and writer are both closed by the time Start returns.
func (dp *DataPipeline) Start(ctx context.Context) (*Metrics, error) {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recordChan := make(chan arrow.Record, 100)

	wg.Add(1)
	go dp.startReader(ctx, recordChan, &wg)

	wg.Add(1)
	go dp.startWriter(ctx, recordChan, &wg)

	go func() {
		wg.Wait()
		dp.metrics.Lock()
		dp.metrics.EndTime = time.Now()
		dp.metrics.Unlock()
		dp.metrics.UpdateMetrics()
		close(dp.errCh)
	}()

	// The deferred cancel unblocks the other goroutine when one side fails.
	for err := range dp.errCh {
		if err != nil {
			return dp.metrics, err
		}
	}

	return dp.metrics, nil
}

// fail reports an error without blocking; the first two failures are kept.
func (dp *DataPipeline) fail(err error) {
	select {
	case dp.errCh <- err:
	default:
	}
}

func (dp *DataPipeline) startReader(ctx context.Context, ch chan arrow.Record, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(ch)
	defer dp.reader.Close()

	for {
		select {
		case <-ctx.Done():
			level.Debug(dp.logger).Log("msg", "context canceled, stopping reader")
			return
		default:
		}

		record, err := dp.reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			level.Error(dp.logger).Log("msg", "error reading record", "err", err)
			dp.fail(err)
			return
		}
		if record == nil {
			continue
		}
		if record.NumCols() == 0 || record.NumRows() == 0 {
			record.Release()
			continue
		}

		dp.metrics.Lock()
		dp.metrics.RecordsProcessed += record.NumRows()
		dp.metrics.TotalBytes += calculateRecordSize(record)
		dp.metrics.Unlock()

		select {
		case ch <- record:
		case <-ctx.Done():
			record.Release()
			return
		}
	}
}

func (dp *DataPipeline) startWriter(ctx context.Context, ch chan arrow.Record, wg *sync.WaitGroup) {
	defer wg.Done()
	// Close can carry the real failure (a parquet footer or a commit), so it
	// is reported rather than swallowed.
	defer func() {
		if err := dp.writer.Close(); err != nil {
			level.Error(dp.logger).Log("msg", "error closing writer", "err", err)
			dp.fail(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			level.Debug(dp.logger).Log("msg", "context canceled, stopping writer")
			return
		case record, ok := <-ch:
			if !ok {
				return
			}
			err := dp.writer.Write(record)
			record.Release()
			if err != nil {
				level.Error(dp.logger).Log("msg", "error writing record", "err", err)
				dp.fail(err)
				return
			}
		}
	}
}

// calculateRecordSize approximates the record's size from its buffers.
func calculateRecordSize(record arrow.Record) int64 {
	size := int64(0)
	for _, col := range record.Columns() {
		for _, buf := range col.Data().Buffers() {
			if buf != nil {
				size += int64(buf.Len())
			}
		}
	}
	return size
}

// PrettyPrint marshals the provided value into an indented JSON string.
func PrettyPrint(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("json: failed to pretty print: %w", err)
	}
	return buf.String(), nil
}
