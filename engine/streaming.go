package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/schemas"
)

// streamingEngine folds each batch into the aggregate as it decodes and
// never materializes a file. Its load phase covers only the directory
// listing; decode time lands in the query phase.
type streamingEngine struct {
	logger kitlog.Logger
}

func (e *streamingEngine) Kind() Kind { return KindColumnarStreaming }

func (e *streamingEngine) Validate(ctx context.Context) error { return nil }

func (e *streamingEngine) Run(ctx context.Context, req *Request) (*Result, error) {
	open, err := integrations.ReaderFor(req.Format, schemas.PeopleSchema())
	if err != nil {
		return nil, err
	}

	loadStart := time.Now()
	reader, err := integrations.NewDirectoryReader(ctx, req.Dir, req.Format.Glob(), open)
	if err != nil {
		return nil, err
	}
	loadDur := time.Since(loadStart)

	res := &Result{Engine: e.Kind(), Files: len(reader.Files()), LoadDuration: loadDur}

	queryStart := time.Now()
	agg := newAggregator()
	var exp *exporter
	if req.ExportPath != "" {
		exp = newExporter()
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("failed to stream %s: %w", req.Dir, err)
		}
		err = agg.addRecord(record)
		if err == nil && exp != nil {
			err = exp.addRecord(record)
		}
		record.Release()
		if err != nil {
			reader.Close()
			return nil, err
		}
	}
	if err := reader.Close(); err != nil {
		return nil, err
	}
	res.Rows = agg.results()
	res.QueryDuration = time.Since(queryStart)
	res.RowsScanned = agg.rows

	level.Debug(e.logger).Log("msg", "stream complete", "files", res.Files,
		"rows", res.RowsScanned, "duration", res.QueryDuration)

	if exp != nil {
		n, err := exp.flush(ctx, req.ExportPath)
		if err != nil {
			return nil, err
		}
		res.ExportedRows = n
		res.ExportPath = req.ExportPath
	}

	return res, nil
}
