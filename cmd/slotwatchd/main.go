// Command slotwatchd runs the monitor on a schedule and serves results over
// HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/slotwatch/api"
	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/history"
	"github.com/use-agent/slotwatch/logging"
	"github.com/use-agent/slotwatch/monitor"
	"github.com/use-agent/slotwatch/sink"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	closeLog, err := logging.Setup(cfg.Log, os.Stdout, cfg.Output.LogsDir, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("slotwatchd starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"url", cfg.Target.URL,
		"interval", cfg.Schedule.Interval,
		"cron", cfg.Schedule.Cron,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 3. Wire the monitor, sink and scheduler ─────────────────────
	table, err := sink.OpenTable(ctx, cfg.Sheet)
	if err != nil {
		slog.Warn("table sink unavailable", "error", err)
		table = nil
	}
	store := history.New(cfg.Schedule.HistorySize)
	if cfg.Schedule.HistoryDir != "" {
		backend, err := history.OpenBadger(cfg.Schedule.HistoryDir, cfg.Schedule.HistorySize)
		if err != nil {
			slog.Error("failed to open history", "dir", cfg.Schedule.HistoryDir, "error", err)
			os.Exit(1)
		}
		defer backend.Close()
		if store, err = history.NewPersistent(cfg.Schedule.HistorySize, backend); err != nil {
			slog.Error("failed to restore history", "error", err)
			os.Exit(1)
		}
		slog.Info("history restored", "dir", cfg.Schedule.HistoryDir, "runs", store.Len())
	}
	svc := monitor.NewService(
		monitor.New(cfg, monitor.BrowserOpener(cfg.Browser)),
		sink.NewFinalizer(cfg.Output, cfg.Sheet, table),
		store,
		cfg.Schedule,
	)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		svc.Start(ctx, cfg.Schedule.RunOnStart)
	}()

	// ── 4. Start HTTP server ────────────────────────────────────────
	router := api.NewRouter(svc, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Cancelling aborts an in-flight run; its result is still persisted.
	cancel()
	<-schedulerDone
	svc.Wait()
	slog.Info("slotwatchd stopped")
}
