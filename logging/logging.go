// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
)

// Setup installs the default slog logger writing to console and, when
// cfg.File is set, to logs/monitor_YYYYMMDD_HHMMSS.log as well. The
// returned func closes the log file.
func Setup(cfg config.LogConfig, console io.Writer, logsDir string, now time.Time) (func(), error) {
	w := console
	closeFn := func() {}

	if cfg.File {
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return closeFn, fmt.Errorf("create logs dir: %w", err)
		}
		name := "monitor_" + now.In(models.KST).Format("20060102_150405") + ".log"
		f, err := os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closeFn, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(console, f)
		closeFn = func() { _ = f.Close() }
	}

	slog.SetDefault(slog.New(NewHandler(cfg, w)))
	return closeFn, nil
}

// NewHandler builds the slog handler for cfg: "json", "tint" (colorized
// console lines) or plain text.
func NewHandler(cfg config.LogConfig, w io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)
	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "tint":
		// Colors would end up in the log file too.
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    cfg.File,
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// ParseLevel maps a level name to a slog.Level; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
