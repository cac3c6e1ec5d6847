package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string   `json:"status"` // "healthy" or "degraded"
	Uptime   string   `json:"uptime"`
	RunStats RunStats `json:"run_stats"`
	Version  string   `json:"version"`
}

// RunStats reports scheduler state.
type RunStats struct {
	Running       bool      `json:"running"`
	CompletedRuns int64     `json:"completed_runs"`
	LastStatus    RunStatus `json:"last_status,omitempty"`
	LastRunAt     string    `json:"last_run_at,omitempty"`
	NextRunAt     string    `json:"next_run_at,omitempty"`
}

// ErrorResponse is the body of a request rejected before reaching a handler.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
