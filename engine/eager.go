package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/schemas"
)

// eagerEngine decodes every source file into memory during the load phase
// and aggregates the materialized batches during the query phase.
type eagerEngine struct {
	logger kitlog.Logger
}

func (e *eagerEngine) Kind() Kind { return KindColumnarBasic }

func (e *eagerEngine) Validate(ctx context.Context) error { return nil }

func (e *eagerEngine) Run(ctx context.Context, req *Request) (*Result, error) {
	open, err := integrations.ReaderFor(req.Format, schemas.PeopleSchema())
	if err != nil {
		return nil, err
	}

	loadStart := time.Now()
	reader, err := integrations.NewDirectoryReader(ctx, req.Dir, req.Format.Glob(), open)
	if err != nil {
		return nil, err
	}

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("failed to load %s: %w", req.Dir, err)
		}
		records = append(records, record)
	}
	if err := reader.Close(); err != nil {
		return nil, err
	}
	loadDur := time.Since(loadStart)

	res := &Result{Engine: e.Kind(), Files: len(reader.Files()), LoadDuration: loadDur}
	level.Debug(e.logger).Log("msg", "load complete", "files", res.Files,
		"batches", len(records), "duration", loadDur)

	queryStart := time.Now()
	agg := newAggregator()
	for _, record := range records {
		if err := agg.addRecord(record); err != nil {
			return nil, err
		}
	}
	res.Rows = agg.results()
	res.QueryDuration = time.Since(queryStart)
	res.RowsScanned = agg.rows

	if req.ExportPath != "" {
		exp := newExporter()
		for _, record := range records {
			if err := exp.addRecord(record); err != nil {
				return nil, err
			}
		}
		n, err := exp.flush(ctx, req.ExportPath)
		if err != nil {
			return nil, err
		}
		res.ExportedRows = n
		res.ExportPath = req.ExportPath
	}

	return res, nil
}
