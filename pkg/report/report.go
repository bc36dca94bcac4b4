// Package report persists benchmark results in the results directory and
// renders them for the terminal.
package report

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"

	"github.com/arcbench/arcbench/engine"
	"github.com/arcbench/arcbench/internal/json"
	"github.com/arcbench/arcbench/internal/ui"
)

// Report is one benchmark run as written to disk.
type Report struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Result    *engine.Result `json:"result"`
}

// New wraps an engine result in a report carrying a fresh run ID.
func New(res *engine.Result) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Result:    res,
	}
}

// Save writes the report as indented JSON into dir and returns the file
// path. Files are named by a ULID so a directory listing sorts runs
// chronologically.
func (r *Report) Save(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("results directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	entropy := rand.New(rand.NewSource(r.CreatedAt.UnixNano()))
	id := ulid.MustNew(ulid.Timestamp(r.CreatedAt), entropy)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", id, r.Result.Engine))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Render returns a terminal panel summarizing the run.
func (r *Report) Render() string {
	res := r.Result

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", ui.LabelStyle.Render("engine"), res.Engine)
	fmt.Fprintf(&b, "%s     %s\n", ui.LabelStyle.Render("run"), r.RunID)
	fmt.Fprintf(&b, "%s   %d files, %d rows\n", ui.LabelStyle.Render("input"), res.Files, res.RowsScanned)
	fmt.Fprintf(&b, "%s    %s\n", ui.LabelStyle.Render("load"), res.LoadDuration)
	fmt.Fprintf(&b, "%s   %s\n", ui.LabelStyle.Render("query"), res.QueryDuration)

	if len(res.Rows) == 0 {
		b.WriteString("\n" + ui.FaintStyle.Render("no groups above the age threshold") + "\n")
	} else {
		b.WriteString("\n")
		for i, row := range res.Rows {
			fmt.Fprintf(&b, "%d. %-24s %6.2f\n", i+1, row.Name, row.AvgAge)
		}
	}

	if res.ExportPath != "" {
		fmt.Fprintf(&b, "\n%s %d rows to %s\n", ui.LabelStyle.Render("exported"), res.ExportedRows, res.ExportPath)
	}

	return ui.PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
