package model

import "time"

// RunStatus is the lifecycle state of an acquisition run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one ledger entry: a single acquisition, from filter to outcome.
type Run struct {
	ID        string       `json:"id"`
	Filter    SearchFilter `json:"filter"`
	Status    RunStatus    `json:"status"`
	Result    *RunResult   `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RunResult records what a completed acquisition produced.
type RunResult struct {
	Source      string   `json:"source"`
	RowCount    int      `json:"row_count"`
	PagesParsed int      `json:"pages_parsed,omitempty"`
	Degraded    int      `json:"degraded,omitempty"`
	OutputPath  string   `json:"output_path,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}
