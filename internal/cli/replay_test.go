package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fanout/internal/harness"
	"github.com/roach88/fanout/internal/store"
)

func runReplayCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestReplayMissingFlags(t *testing.T) {
	_, err := runReplayCommand(t, "text", "specs", "scenario.yaml", "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayDeterministic(t *testing.T) {
	dbPath, runs := recordRuns(t)
	scenario := filepath.Join(testScenariosDir, "index-errors.yaml")

	out, err := runReplayCommand(t, "text", testSpecsDir, scenario, "--db", dbPath, "--run", runs["index-errors"].ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "index-errors): 3 step(s)")
	assert.Contains(t, out, "✓ Replay matches recording")
}

func TestReplayDeterministicJSON(t *testing.T) {
	dbPath, runs := recordRuns(t)
	scenario := filepath.Join(testScenariosDir, "nested-slice.yaml")

	out, err := runReplayCommand(t, "json", testSpecsDir, scenario, "--db", dbPath, "--run", runs["nested-slice"].ID)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.Equal(t, 2, resp.Data.Steps)
}

func TestReplayScenarioMismatch(t *testing.T) {
	dbPath, runs := recordRuns(t)
	scenario := filepath.Join(testScenariosDir, "nested-slice.yaml")

	_, err := runReplayCommand(t, "text", testSpecsDir, scenario, "--db", dbPath, "--run", runs["sort-and-clip"].ID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `recorded scenario "sort-and-clip"`)
}

func TestReplayDetectsTamperedRecording(t *testing.T) {
	requireTestdata(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	scenarioFile := filepath.Join(testScenariosDir, "sort-and-clip.yaml")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	scenario, err := harness.LoadScenarioWithBasePath(scenarioFile, testSpecsDir)
	require.NoError(t, err)
	scenario.RunID = "tampered"
	_, err = harness.Run(context.Background(), scenario, harness.Options{Store: st})
	require.NoError(t, err)

	// Re-record the run with only its first step.
	steps, err := st.ReadSteps(context.Background(), "tampered")
	require.NoError(t, err)
	require.NoError(t, st.BeginRun(context.Background(), "tampered", "sort-and-clip"))
	require.NoError(t, st.WriteStep(context.Background(), steps[0]))
	require.NoError(t, st.Close())

	out, err := runReplayCommand(t, "text", testSpecsDir, scenarioFile, "--db", dbPath, "--run", "tampered")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[2] step: recorded missing, replayed clip_on")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestCompareSteps(t *testing.T) {
	recorded := []store.Step{
		{Seq: 1, ID: "a", Op: "qsort", Outcome: "ok", SnapshotID: "s1"},
		{Seq: 2, ID: "b", Op: "at", Outcome: "ok"},
	}
	trace := []harness.TraceStep{
		{Seq: 1, StepID: "a", Op: "qsort", Outcome: "ok", SnapshotID: "s1"},
		{Seq: 2, StepID: "c", Op: "at", Outcome: "error", ErrorCode: "INDEX_ERROR"},
	}

	diffs := compareSteps(recorded, trace)
	require.Len(t, diffs, 3)
	assert.Equal(t, StepDiff{Seq: 2, Field: "id", Recorded: "b", Replayed: "c"}, diffs[0])
	assert.Equal(t, "outcome", diffs[1].Field)
	assert.Equal(t, "error_code", diffs[2].Field)

	assert.Empty(t, compareSteps(recorded[:1], trace[:1]))
}
