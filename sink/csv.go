package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/use-agent/slotwatch/models"
)

// CSV is a local append-only table in a single file. The table name is
// ignored: one file holds one table.
type CSV struct {
	path string
}

// NewCSV creates a CSV table at path.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// EnsureTable writes the header when the file is missing or empty.
func (c *CSV) EnsureTable(_ context.Context, _ string, header []any) error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.NewMonitorError(models.ErrCodeSinkWrite, "create csv dir", err)
		}
	}
	info, err := os.Stat(c.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return models.NewMonitorError(models.ErrCodeSinkWrite, "stat csv", err)
	}
	return c.write(header)
}

// AppendRow appends one record.
func (c *CSV) AppendRow(_ context.Context, _ string, values []any) error {
	return c.write(values)
}

func (c *CSV) write(values []any) error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return models.NewMonitorError(models.ErrCodeSinkWrite, "open csv", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(stringsOf(values)); err != nil {
		f.Close()
		return models.NewMonitorError(models.ErrCodeSinkWrite, "write csv", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return models.NewMonitorError(models.ErrCodeSinkWrite, "flush csv", err)
	}
	if err := f.Close(); err != nil {
		return models.NewMonitorError(models.ErrCodeSinkWrite, fmt.Sprintf("close %s", c.path), err)
	}
	return nil
}
