package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/fanout/internal/store"
	"github.com/roach88/fanout/internal/table"
	"github.com/roach88/fanout/internal/testutil"
)

// AssertionContext carries what run-level assertions may inspect.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	RunID    string
	Bindings map[string]*table.Table
}

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceStep
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, st := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s on=%s mode=%s %s", st.Seq, st.Op, st.On, st.Mode, st.Outcome)
			if st.ErrorCode != "" {
				fmt.Fprintf(&buf, " (%s)", st.ErrorCode)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks each assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(actx, result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// matchStep reports whether st matches the assertion's op, on and outcome.
// Empty on/outcome match anything.
func matchStep(st TraceStep, a Assertion) bool {
	if st.Op != a.Op {
		return false
	}
	if a.On != "" && st.On != a.On {
		return false
	}
	if a.Outcome != "" && st.Outcome != a.Outcome {
		return false
	}
	return true
}

// assertTraceContains checks that some step matches.
func assertTraceContains(trace []TraceStep, a Assertion) error {
	for _, st := range trace {
		if matchStep(st, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatch(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the specified order.
// Ops don't need to be consecutive.
func assertTraceOrder(trace []TraceStep, a Assertion) error {
	positions := make(map[string]int)
	for i, st := range trace {
		if positions[st.Op] == 0 {
			positions[st.Op] = i + 1 // 1-indexed so 0 means absent
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount counts matching steps in the store, so it also checks
// that every step was recorded.
func assertTraceCount(actx *AssertionContext, trace []TraceStep, a Assertion) error {
	query := "SELECT COUNT(*) FROM steps WHERE run_id = ? AND op = ?"
	args := []any{actx.RunID, a.Op}
	if a.On != "" {
		query += " AND target = ?"
		args = append(args, a.On)
	}
	if a.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, a.Outcome)
	}

	rows, err := actx.Store.Query(actx.Ctx, query, args...)
	if err != nil {
		return fmt.Errorf("trace_count query: %w", err)
	}
	defer rows.Close()

	count := 0
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return fmt.Errorf("trace_count scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("trace_count rows: %w", err)
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeMatch(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares a binding's columns after the last step.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	t, ok := actx.Bindings[a.Binding]
	if !ok {
		return fmt.Errorf("%w %q", errUnknownBinding, a.Binding)
	}
	for _, path := range sortedKeys(a.Arrays) {
		col, err := lookupColumn(t, "final_state", path)
		if err != nil {
			return err
		}
		if diff := testutil.ValuesDiff(a.Arrays[path].Flat(), col); diff != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Binding, path, a.Arrays[path].Flat()),
				Actual:   fmt.Sprintf("%v", col.Values()),
			}
		}
	}
	return nil
}

func describeMatch(a Assertion) string {
	desc := "op " + a.Op
	if a.On != "" {
		desc += " on " + a.On
	}
	if a.Outcome != "" {
		desc += " with outcome " + a.Outcome
	}
	return desc
}
