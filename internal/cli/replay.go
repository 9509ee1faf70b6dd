package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fanout/internal/harness"
	"github.com/roach88/fanout/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// StepDiff describes one step whose replay differs from the recording.
type StepDiff struct {
	Seq      int64  `json:"seq"`
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// ReplayResult holds the replay comparison for one run.
type ReplayResult struct {
	RunID         string     `json:"run_id"`
	Scenario      string     `json:"scenario"`
	Steps         int        `json:"steps"`
	Deterministic bool       `json:"deterministic"`
	Diffs         []StepDiff `json:"diffs,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir> <scenario-file>",
		Short: "Re-run a recorded scenario and verify determinism",
		Long: `Re-run a scenario under the run id of a recorded run and compare
every step id, outcome and snapshot id with the recording.

Exit codes:
  0 - Replay matches the recording
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, run not found, etc.)

Examples:
  fanout replay ./specs ./scenarios/sort.yaml --db ./runs.db --run 0192...
  fanout replay ./specs ./scenarios/sort.yaml --db ./runs.db --run 0192... --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to replay (required)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir, scenarioFile string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	recorded, err := st.ReadSteps(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}

	scenario, err := harness.LoadScenarioWithBasePath(scenarioFile, specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if scenario.Name != run.Scenario {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("run %s recorded scenario %q, not %q", run.ID, run.Scenario, scenario.Name))
	}

	// The replay goes to a scratch store so the recording is left intact.
	scenario.RunID = run.ID
	replayed, err := harness.Run(ctx, scenario, harness.Options{Logger: replayLogger(opts, cmd)})
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		RunID:    run.ID,
		Scenario: run.Scenario,
		Steps:    len(recorded),
		Diffs:    compareSteps(recorded, replayed.Trace),
	}
	result.Deterministic = len(result.Diffs) == 0

	if opts.Format == "json" {
		return outputReplayJSON(cmd.OutOrStdout(), result)
	}
	return outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
}

func replayLogger(opts *ReplayOptions, cmd *cobra.Command) *slog.Logger {
	return newLogger(opts.RootOptions, cmd.ErrOrStderr()).With("replay", opts.RunID)
}

// compareSteps compares recorded steps with a replayed trace, seq by seq.
func compareSteps(recorded []store.Step, trace []harness.TraceStep) []StepDiff {
	var diffs []StepDiff
	n := max(len(recorded), len(trace))
	for i := 0; i < n; i++ {
		if i >= len(recorded) {
			diffs = append(diffs, StepDiff{Seq: trace[i].Seq, Field: "step", Recorded: "missing", Replayed: trace[i].Op})
			continue
		}
		if i >= len(trace) {
			diffs = append(diffs, StepDiff{Seq: recorded[i].Seq, Field: "step", Recorded: recorded[i].Op, Replayed: "missing"})
			continue
		}
		rec, rep := recorded[i], trace[i]
		for _, f := range []struct{ name, a, b string }{
			{"id", rec.ID, rep.StepID},
			{"outcome", rec.Outcome, rep.Outcome},
			{"error_code", rec.ErrorCode, rep.ErrorCode},
			{"snapshot_id", rec.SnapshotID, rep.SnapshotID},
		} {
			if f.a != f.b {
				diffs = append(diffs, StepDiff{Seq: rec.Seq, Field: f.name, Recorded: f.a, Replayed: f.b})
			}
		}
	}
	return diffs
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(w io.Writer, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	formatter := &OutputFormatter{Format: "json", Writer: w}
	if err := formatter.Response(response); err != nil {
		return err
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	fmt.Fprintf(w, "Replay of %s (%s): %d step(s)\n", result.RunID, result.Scenario, result.Steps)
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches recording")
		return nil
	}

	for _, d := range result.Diffs {
		if verbose {
			fmt.Fprintf(w, "  [%d] %s: recorded %s, replayed %s\n", d.Seq, d.Field, d.Recorded, d.Replayed)
		} else {
			fmt.Fprintf(w, "  [%d] %s: recorded %s, replayed %s\n", d.Seq, d.Field, truncateID(d.Recorded), truncateID(d.Replayed))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
