package harness

// Step outcomes recorded in the trace.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Values of TraceStep.Returned.
const (
	ReturnedSelf = "self" // the step returned the host it ran on
	ReturnedNew  = "new"  // the step returned a different host
)

// TraceStep records one executed scenario step.
type TraceStep struct {
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	On      string `json:"on"`
	Mode    string `json:"mode"`
	Outcome string `json:"outcome"`

	// ErrorCode is set when Outcome is "error".
	ErrorCode string `json:"error_code,omitempty"`

	// Returned says whether a host-returning op handed back the host it ran
	// on or a new one. Empty for at and inspect.
	Returned string `json:"returned,omitempty"`

	// Result is the snapshot of the returned host, or the record returned by
	// at. Nil on error.
	Result map[string]any `json:"result,omitempty"`

	// SnapshotID and StepID are content hashes. They depend on the run id
	// and are left out of golden files.
	SnapshotID string `json:"snapshot_id,omitempty"`
	StepID     string `json:"step_id,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the store.
	RunID string `json:"run_id"`

	// Trace contains every executed step in order.
	Trace []TraceStep `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []TraceStep{},
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(step TraceStep) {
	r.Trace = append(r.Trace, step)
}
