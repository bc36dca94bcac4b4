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

package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	integrations "github.com/arcbench/arcbench/integrations/filesystem"
	"github.com/arcbench/arcbench/internal/logging"
)

// Item is one pending conversion.
type Item struct {
	SourcePath string
	TargetPath string
	Stem       string
}

// Plan is the set of conversions one run will perform. Sources whose stem
// already has a Parquet counterpart are listed in SkippedStems.
type Plan struct {
	Items        []Item
	SkippedStems []string
}

// BuildPlan lists format-matching files in sourceDir, Parquet stems in
// targetDir, and plans a conversion for every source stem not yet present.
// With force, every source is planned regardless of the target listing.
func BuildPlan(sourceDir, targetDir string, format integrations.FileFormat, force bool) (*Plan, error) {
	if sourceDir == "" || targetDir == "" {
		return nil, fmt.Errorf("source and target directories cannot be empty")
	}
	if format != integrations.FormatCSV && format != integrations.FormatJSON {
		return nil, fmt.Errorf("unsupported source format %q (valid: csv, json)", format)
	}

	sources, err := filepath.Glob(filepath.Join(sourceDir, format.Glob()))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", sourceDir, err)
	}
	sort.Strings(sources)

	targets, err := filepath.Glob(filepath.Join(targetDir, integrations.FormatParquet.Glob()))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", targetDir, err)
	}

	converted := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		converted[stemOf(t)] = struct{}{}
	}

	plan := &Plan{}
	for _, src := range sources {
		stem := stemOf(src)
		if _, done := converted[stem]; done && !force {
			plan.SkippedStems = append(plan.SkippedStems, stem)
			continue
		}
		plan.Items = append(plan.Items, Item{
			SourcePath: src,
			TargetPath: filepath.Join(targetDir, stem+integrations.FormatParquet.Ext()),
			Stem:       stem,
		})
	}
	return plan, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileError records one failed conversion.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Result summarizes a conversion run.
type Result struct {
	Converted int
	Skipped   int
	Failed    int
	Rows      int64
	Failures  []FileError
}

// Options configures a conversion run.
type Options struct {
	// Force reconverts sources even when their Parquet counterpart exists.
	Force bool
	// Verify reopens each written file's footer and checks its row count.
	Verify bool
	// Workers bounds the number of concurrent file conversions.
	Workers int
	File    FileOptions
	Logger  kitlog.Logger
}

// Run builds the plan for sourceDir -> targetDir and executes it with a
// bounded worker pool. A malformed source file is logged and counted, and
// the run carries on; successfully written Parquet files are always kept.
// The returned error is non-nil when at least one file failed.
func Run(ctx context.Context, sourceDir, targetDir string, format integrations.FileFormat, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := logging.OrNop(opts.Logger)
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	plan, err := BuildPlan(sourceDir, targetDir, format, opts.Force)
	if err != nil {
		return nil, err
	}

	result := &Result{Skipped: len(plan.SkippedStems)}
	if len(plan.Items) == 0 {
		level.Info(logger).Log("msg", "nothing to convert", "skipped", result.Skipped)
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range plan.Items {
		item := item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rows, err := convertOne(gctx, item, format, opts, logger)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				level.Warn(logger).Log("msg", "conversion failed", "source", item.SourcePath, "err", err)
				result.Failed++
				result.Failures = append(result.Failures, FileError{Path: item.SourcePath, Err: err})
				return nil
			}
			result.Converted++
			result.Rows += rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	level.Info(logger).Log("msg", "conversion run finished",
		"converted", result.Converted, "skipped", result.Skipped, "failed", result.Failed, "rows", result.Rows)

	if result.Failed > 0 {
		return result, fmt.Errorf("%d of %d conversions failed", result.Failed, len(plan.Items))
	}
	return result, nil
}

func convertOne(ctx context.Context, item Item, format integrations.FileFormat, opts *Options, logger kitlog.Logger) (int64, error) {
	fileOpts := opts.File
	rows, err := ConvertFileToParquet(ctx, item.SourcePath, item.TargetPath, format, &fileOpts, logger)
	if err != nil {
		return 0, err
	}

	if opts.Verify {
		count, err := integrations.ParquetRowCount(item.TargetPath)
		if err != nil {
			return 0, fmt.Errorf("verification failed: %w", err)
		}
		if count != rows {
			return 0, fmt.Errorf("verification failed: footer reports %d rows, wrote %d", count, rows)
		}
		level.Debug(logger).Log("msg", "verified parquet footer", "target", item.TargetPath, "rows", count)
	}

	level.Info(logger).Log("msg", "converted", "source", item.SourcePath, "target", item.TargetPath, "rows", rows)
	return rows, nil
}
