package store

// Run statuses.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// Step outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Run is one execution of a scenario.
type Run struct {
	ID         string `json:"id"`
	Scenario   string `json:"scenario"`
	Status     string `json:"status"`
	ErrorCount int    `json:"error_count"`
}

// Step is one executed scenario step.
type Step struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	Seq        int64  `json:"seq"`
	Op         string `json:"op"`
	Target     string `json:"target"` // binding the step ran on
	Mode       string `json:"mode"`
	Outcome    string `json:"outcome"`
	ErrorCode  string `json:"error_code,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Snapshot   string `json:"snapshot,omitempty"` // canonical JSON
}
