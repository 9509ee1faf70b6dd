package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fanout/internal/canon"
)

// TraceSnapshot captures the trace of a scenario execution for golden
// comparison. Content hashes are left out because they depend on the run id.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	RunID        string      `json:"run_id,omitempty"`
	Trace        []TraceStep `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map canon can encode.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, st := range s.Trace {
		m := map[string]any{
			"seq":     st.Seq,
			"op":      st.Op,
			"on":      st.On,
			"mode":    st.Mode,
			"outcome": st.Outcome,
		}
		if st.ErrorCode != "" {
			m["error_code"] = st.ErrorCode
		}
		if st.Returned != "" {
			m["returned"] = st.Returned
		}
		if st.Result != nil {
			m["result"] = st.Result
		}
		traceList[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.RunID != "" {
		result["run_id"] = s.RunID
	}
	return result
}

// GoldenBytes returns the canonical JSON golden form of a result. The run id
// is included only when the scenario fixes it.
func GoldenBytes(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunID:        scenario.RunID,
		Trace:        result.Trace,
	}
	return canon.Marshal(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts Options) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
