package model

import "time"

// RunStatus is the state of a scrape run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunStats summarizes one pipeline run over a single location. Created,
// Updated, and Skipped count actual store outcomes, not candidate counts.
type RunStats struct {
	Total      int            `json:"total"`
	Created    int            `json:"created"`
	Updated    int            `json:"updated"`
	Skipped    int            `json:"skipped"`
	Sources    map[string]int `json:"sources"`
	DurationMs int64          `json:"duration_ms"`
}

// ScrapeRun is the persisted record of a pipeline run.
type ScrapeRun struct {
	ID         string     `json:"id"`
	Location   string     `json:"location"`
	Status     RunStatus  `json:"status"`
	Stats      *RunStats  `json:"stats,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
