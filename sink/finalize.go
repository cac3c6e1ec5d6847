package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
)

// Finalizer persists a finished run and derives the exit code.
type Finalizer struct {
	resultsDir string
	table      Table
	tableName  string
	timeout    time.Duration
	now        func() time.Time
}

// NewFinalizer creates a Finalizer. table may be nil.
func NewFinalizer(out config.OutputConfig, sheet config.SheetConfig, table Table) *Finalizer {
	return &Finalizer{
		resultsDir: out.ResultsDir,
		table:      table,
		tableName:  sheet.SheetName,
		timeout:    sheet.Timeout,
		now:        time.Now,
	}
}

// Finalize re-establishes the count invariants, writes the JSON snapshot,
// appends the summary row best-effort and returns 0 iff the run succeeded.
// Neither artifact nor table failures change the exit code.
func (f *Finalizer) Finalize(ctx context.Context, r *models.RunResult) int {
	r.Normalize()

	if path, err := WriteArtifact(f.resultsDir, r, f.now()); err != nil {
		slog.Error("result snapshot not written", "error", err)
	} else {
		slog.Info("result snapshot written", "path", path)
	}

	f.appendRow(ctx, r)

	if r.Succeeded() {
		return 0
	}
	return 1
}

func (f *Finalizer) appendRow(ctx context.Context, r *models.RunResult) {
	if f.table == nil {
		slog.Warn("table sink unavailable, row not appended")
		return
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if err := f.table.EnsureTable(ctx, f.tableName, Header()); err != nil {
		slog.Error("table not ready, row not appended", "table", f.tableName, "error", err)
		return
	}
	if err := f.table.AppendRow(ctx, f.tableName, BuildRow(r)); err != nil {
		slog.Error("row append failed", "table", f.tableName, "error", err)
		return
	}
	slog.Info("row appended", "table", f.tableName)
}
