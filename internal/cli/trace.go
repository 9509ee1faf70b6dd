package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fanout/internal/fanout"
	"github.com/roach88/fanout/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RunID     string // optional - list runs when empty
	Failed    bool   // only failed steps
	ErrorCode string // only failed steps with this code
}

// TraceResult holds the trace of one recorded run.
type TraceResult struct {
	Run   store.Run    `json:"run"`
	Steps []store.Step `json:"steps"`
	Stats TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalSteps int            `json:"total_steps"`
	Failed     int            `json:"failed"`
	ByMode     map[string]int `json:"by_mode"`
}

// RunList holds every recorded run.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded scenario runs",
		Long: `Show the steps of a run recorded by "fanout test --db".

Without --run, lists every recorded run. With --run, prints each step
with its mode, outcome and snapshot id. --failed and --error-code narrow
the listing to failed steps.

Examples:
  fanout trace --db ./runs.db
  fanout trace --db ./runs.db --run 0192...
  fanout trace --db ./runs.db --run 0192... --error-code INDEX_ERROR
  fanout trace --db ./runs.db --run 0192... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "show failed steps only")
	cmd.Flags().StringVar(&opts.ErrorCode, "error-code", "", "show failed steps with this error code only")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Response(CLIResponse{Status: "ok", Data: RunList{Runs: runs}})
		}
		outputRunList(formatter.Writer, runs)
		return nil
	}

	result, err := buildTrace(ctx, st, opts)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error("E_RUN_NOT_FOUND", fmt.Sprintf("no run with id %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format == "json" {
		return formatter.Response(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return TraceResult{}, err
	}

	all, err := st.ReadSteps(ctx, opts.RunID)
	if err != nil {
		return TraceResult{}, err
	}

	stats := TraceStats{TotalSteps: len(all), ByMode: make(map[string]int)}
	for _, s := range all {
		stats.ByMode[s.Mode]++
		if s.Outcome == store.OutcomeError {
			stats.Failed++
		}
	}

	steps := all
	if opts.Failed || opts.ErrorCode != "" {
		steps, err = st.FailedSteps(ctx, opts.RunID, opts.ErrorCode)
		if err != nil {
			return TraceResult{}, err
		}
	}

	return TraceResult{Run: run, Steps: steps, Stats: stats}, nil
}

func outputRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-7s  %s", r.ID, r.Status, r.Scenario)
		if r.ErrorCount > 0 {
			fmt.Fprintf(w, " (%d error(s))", r.ErrorCount)
		}
		fmt.Fprintln(w)
	}
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Scenario: %s\n", result.Run.Scenario)
	fmt.Fprintf(w, "Status: %s\n", result.Run.Status)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Steps ===")
	if len(result.Steps) == 0 {
		fmt.Fprintln(w, "  (no steps)")
	}
	for _, s := range result.Steps {
		fmt.Fprintf(w, "  [%d] %s on=%s mode=%s %s", s.Seq, s.Op, s.Target, s.Mode, s.Outcome)
		if s.ErrorCode != "" {
			fmt.Fprintf(w, " (%s)", s.ErrorCode)
		}
		fmt.Fprintln(w)
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(s.ID))
			if s.SnapshotID != "" {
				fmt.Fprintf(w, "       Snapshot: %s\n", truncateID(s.SnapshotID))
			}
			if s.Snapshot != "" {
				fmt.Fprintf(w, "       %s\n", s.Snapshot)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Steps: %d\n", result.Stats.TotalSteps)
	fmt.Fprintf(w, "  Failed:      %d\n", result.Stats.Failed)
	for _, mode := range sortedModes(result.Stats.ByMode) {
		fmt.Fprintf(w, "  %s: %d\n", mode, result.Stats.ByMode[mode])
	}
}

func sortedModes(m map[string]int) []string {
	modes := make([]string, 0, len(m))
	for _, known := range []fanout.Mode{fanout.NotInplace, fanout.InplaceViaAccessor, fanout.InplaceViaStore} {
		if _, ok := m[known.String()]; ok {
			modes = append(modes, known.String())
		}
	}
	return modes
}

// truncateID shortens a hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}
