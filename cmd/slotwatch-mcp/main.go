// Command slotwatch-mcp exposes a running slotwatchd over the Model Context
// Protocol (stdio).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/slotwatch/models"
)

// apiClient talks to the slotwatchd HTTP API.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &apiClient{http: c}
}

func main() {
	apiURL := os.Getenv("SLOTWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	client := newAPIClient(apiURL, os.Getenv("SLOTWATCH_API_KEY"))

	s := server.NewMCPServer(
		"slotwatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	runTool := mcp.NewTool("run_monitor",
		mcp.WithDescription("Trigger a monitoring run of the configured page and wait for its result: status, slot count, broken links and errors."),
		mcp.WithNumber("wait_seconds",
			mcp.Description("How long to wait for the run to finish (default: 180, max: 600)"),
		),
	)
	s.AddTool(runTool, handleRunMonitor(client))

	latestTool := mcp.NewTool("latest_result",
		mcp.WithDescription("Return the most recent finished monitoring run."),
		mcp.WithBoolean("include_slots",
			mcp.Description("Also list every extracted slot (default: false)"),
		),
	)
	s.AddTool(latestTool, handleLatestResult(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request and returns the status code and body.
func (c *apiClient) do(ctx context.Context, method, path string) (int, []byte, error) {
	res, err := c.http.R().SetContext(ctx).Execute(method, path)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	return res.StatusCode(), res.Body(), nil
}

// pollRun polls GET /api/v1/runs/:id until the run is recorded or ctx ends.
func (c *apiClient) pollRun(ctx context.Context, id string) (*models.RunResult, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			code, body, err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id)
			if err != nil {
				return nil, err
			}
			if code == http.StatusAccepted {
				continue
			}
			var resp models.RunResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("parse run response: %w", err)
			}
			if !resp.Success || resp.Run == nil {
				return nil, apiError(resp.Error, "run lookup failed")
			}
			return resp.Run, nil
		}
	}
}

func handleRunMonitor(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		wait := request.GetFloat("wait_seconds", 180)
		if wait <= 0 || wait > 600 {
			wait = 180
		}

		_, body, err := c.do(ctx, http.MethodPost, "/api/v1/runs")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var trig models.TriggerResponse
		if err := json.Unmarshal(body, &trig); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse trigger response: %v", err)), nil
		}
		if !trig.Accepted {
			return mcp.NewToolResultError(apiError(trig.Error, "run not accepted").Error()), nil
		}

		pollCtx, cancel := context.WithTimeout(ctx, time.Duration(wait*float64(time.Second)))
		defer cancel()
		run, err := c.pollRun(pollCtx, trig.RunID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %s: %v", trig.RunID, err)), nil
		}
		return mcp.NewToolResultText(formatRun(run, false)), nil
	}
}

func handleLatestResult(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		includeSlots := request.GetBool("include_slots", false)

		_, body, err := c.do(ctx, http.MethodGet, "/api/v1/runs/latest")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var resp models.RunResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success || resp.Run == nil {
			return mcp.NewToolResultError(apiError(resp.Error, "no result available").Error()), nil
		}
		text := formatRun(resp.Run, includeSlots)
		if resp.Running {
			text += "\n(another run is in progress)"
		}
		return mcp.NewToolResultText(text), nil
	}
}

func apiError(detail *models.ErrorDetail, fallback string) error {
	if detail == nil {
		return fmt.Errorf("%s", fallback)
	}
	return fmt.Errorf("[%s] %s", detail.Code, detail.Message)
}

// formatRun renders a run as plain text for the model.
func formatRun(r *models.RunResult, includeSlots bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s at %s %s\n", r.ID, r.Date, r.Time)
	fmt.Fprintf(&sb, "URL: %s\n", r.URL)
	if r.PageTitle != "" {
		fmt.Fprintf(&sb, "Title: %s\n", r.PageTitle)
	}
	fmt.Fprintf(&sb, "Status: %s (access %s, login %s)\n", r.Status, r.AccessStatus, r.LoginStatus)
	fmt.Fprintf(&sb, "Slots: %d  Links checked: %d  Broken: %d\n", r.TotalSlots, r.TotalLinks, r.BrokenLinkCount)

	for _, bl := range r.BrokenLinks {
		fmt.Fprintf(&sb, "  - [%s] %s %s\n", bl.Status, bl.URL, bl.Text)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "Error: %s\n", e)
	}
	if includeSlots {
		sb.WriteString("\nSlots:\n")
		for _, s := range r.Slots {
			fmt.Fprintf(&sb, "  %s %-14s <%s> %s\n", s.Index, s.Type, s.Tag, s.Text)
		}
	}
	return sb.String()
}
