// Package sink persists run results: a JSON snapshot on disk and one
// summary row in an append-only table.
package sink

import (
	"context"
	"log/slog"

	"github.com/use-agent/slotwatch/config"
)

// Table is an append-only tabular store. Both calls are safe to repeat
// every run: EnsureTable is a no-op when the table and header exist.
type Table interface {
	EnsureTable(ctx context.Context, name string, header []any) error
	AppendRow(ctx context.Context, name string, values []any) error
}

// OpenTable picks the configured table: Google Sheets when a spreadsheet
// is set, else a local CSV file, else none (nil, nil).
func OpenTable(ctx context.Context, cfg config.SheetConfig) (Table, error) {
	switch {
	case cfg.SpreadsheetID != "":
		s, err := NewSheets(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.CSVPath != "":
		return NewCSV(cfg.CSVPath), nil
	default:
		slog.Warn("no table sink configured; set SPREADSHEET_ID or SLOTWATCH_CSV_PATH")
		return nil, nil
	}
}
