package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/logging"
	"github.com/use-agent/slotwatch/models"
	"github.com/use-agent/slotwatch/monitor"
	"github.com/use-agent/slotwatch/sink"
)

var runCmd = &cobra.Command{
	Use:   "run [--print] [--table]",
	Short: "Performs one monitoring run (the default command).",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print the run result as JSON to stdout")
	cmd.Flags().Bool("table", false, "print slots and broken links as tables to stdout")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	printJSON, _ := cmd.Flags().GetBool("print")
	printTable, _ := cmd.Flags().GetBool("table")
	ctx := cmd.Context()

	cfg := config.Load()

	// stdout carries the result when asked for, so logs move to stderr.
	var console io.Writer = os.Stdout
	if printJSON || printTable {
		console = os.Stderr
	}
	closeLog, err := logging.Setup(cfg.Log, console, cfg.Output.LogsDir, time.Now())
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitError{code: 1}
	}
	slog.Info("slotwatch starting", "url", cfg.Target.URL, "groups", len(cfg.Extract.Groups))

	table, err := sink.OpenTable(ctx, cfg.Sheet)
	if err != nil {
		slog.Warn("table sink unavailable", "error", err)
		table = nil
	}

	result := monitor.New(cfg, monitor.BrowserOpener(cfg.Browser)).Run(ctx)

	// Interruption must not lose the snapshot.
	code := sink.NewFinalizer(cfg.Output, cfg.Sheet, table).Finalize(context.WithoutCancel(ctx), result)

	if printJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			slog.Error("print result", "error", err)
		}
	}
	if printTable {
		renderResult(os.Stdout, result)
	}

	slog.Info("slotwatch finished", "status", result.Status, "exit_code", code)
	if code != 0 {
		return exitError{code: code}
	}
	return nil
}

func renderResult(w io.Writer, r *models.RunResult) {
	summary := newTable(w)
	summary.AppendHeader(tableRow("Run", "Status", "Access", "Login", "Slots", "Links", "Broken"))
	summary.AppendRow(tableRow(r.ID, r.Status, r.AccessStatus, r.LoginStatus, r.TotalSlots, r.TotalLinks, r.BrokenLinkCount))
	summary.Render()

	if len(r.Slots) > 0 {
		slots := newTable(w)
		slots.AppendHeader(tableRow("#", "Type", "Tag", "Visible", "Text"))
		for _, s := range r.Slots {
			slots.AppendRow(tableRow(s.Index, s.Type, s.Tag, s.Visible, models.Truncate(s.Text, 60)))
		}
		slots.Render()
	}

	if len(r.BrokenLinks) > 0 {
		broken := newTable(w)
		broken.AppendHeader(tableRow("Status", "URL", "Text"))
		for _, bl := range r.BrokenLinks {
			broken.AppendRow(tableRow(bl.Status.String(), bl.URL, models.Truncate(bl.Text, 40)))
		}
		broken.Render()
	}
}
