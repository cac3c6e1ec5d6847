package models

// TriggerResponse is the response for POST /api/v1/runs.
type TriggerResponse struct {
	Accepted bool         `json:"accepted"`
	RunID    string       `json:"run_id,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// RunListResponse is the response for GET /api/v1/runs.
type RunListResponse struct {
	Runs  []RunSummary `json:"runs"`
	Total int          `json:"total"`
}

// RunSummary is the compact listing form of a RunResult.
type RunSummary struct {
	ID              string       `json:"id"`
	Timestamp       string       `json:"timestamp"`
	Status          RunStatus    `json:"status"`
	AccessStatus    AccessStatus `json:"access_status"`
	TotalSlots      int          `json:"total_slots"`
	BrokenLinkCount int          `json:"broken_link_count"`
}

// Summarize builds the listing form of r.
func (r *RunResult) Summarize() RunSummary {
	return RunSummary{
		ID:              r.ID,
		Timestamp:       r.Timestamp,
		Status:          r.Status,
		AccessStatus:    r.AccessStatus,
		TotalSlots:      r.TotalSlots,
		BrokenLinkCount: r.BrokenLinkCount,
	}
}

// RunResponse wraps a single run for GET /api/v1/runs/:id and /latest.
type RunResponse struct {
	Success bool         `json:"success"`
	Run     *RunResult   `json:"run,omitempty"`
	Running bool         `json:"running"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
