package models

import "time"

// RunSummary is the metadata published next to the dataset after a run.
// The publish guard reads the previous run's summary to detect
// zero-result regressions.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	Source        string     `json:"source"`
	Timestamp     time.Time  `json:"timestamp"`
	TotalItems    int        `json:"total_items"`
	PagesScraped  int        `json:"pages_scraped"`
	QueryUsed     string     `json:"query_used"`
	StoppedReason StopReason `json:"stopped_reason"`
	DurationMs    int64      `json:"duration_ms"`
}

// RunStatus is the live progress snapshot served by the status API.
type RunStatus struct {
	State     string    `json:"state"` // "idle", "running", "publishing"
	Source    string    `json:"source,omitempty"`
	Query     string    `json:"query,omitempty"`
	Page      int       `json:"page,omitempty"`
	Records   int       `json:"records,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// BrowserStats is a snapshot of the rendering browser's state.
type BrowserStats struct {
	Alive          bool `json:"alive"`
	ActiveSessions int  `json:"active_sessions"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Uptime  string       `json:"uptime"`
	Browser BrowserStats `json:"browser"`
	Version string       `json:"version"`
}
