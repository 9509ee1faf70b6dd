package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/fanout/internal/canon"
	"github.com/roach88/fanout/internal/compiler"
	"github.com/roach88/fanout/internal/fanout"
	"github.com/roach88/fanout/internal/ndarray"
	"github.com/roach88/fanout/internal/store"
	"github.com/roach88/fanout/internal/table"
	"github.com/roach88/fanout/internal/testutil"
)

// RunIDGenerator hands out run ids.
type RunIDGenerator interface {
	NewRunID() string
}

// UUIDv7RunIDs generates time-ordered UUIDv7 run ids.
type UUIDv7RunIDs struct{}

// NewRunID returns a fresh UUIDv7.
func (UUIDv7RunIDs) NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Options configures a scenario run. The zero value is usable.
type Options struct {
	// Store receives the run and its steps. If nil, a fresh in-memory store
	// is used and discarded afterwards.
	Store *store.Store

	// Logger receives one Debug record per step. Defaults to discarding.
	Logger *slog.Logger

	// RunIDs is used when the scenario has no fixed run_id. Defaults to
	// UUIDv7RunIDs.
	RunIDs RunIDGenerator
}

// Harness executes the steps of one scenario.
type Harness struct {
	store    *store.Store
	registry *table.Registry
	clock    *testutil.StepClock
	logger   *slog.Logger
	runID    string
	bindings map[string]*table.Table
}

// Error codes for failures that do not come from the fan-out machinery.
const (
	ErrCodeIndex          = "INDEX_ERROR"
	ErrCodeShapeMismatch  = "SHAPE_MISMATCH"
	ErrCodeNotOwner       = "NOT_OWNER"
	ErrCodeStaleView      = "STALE_VIEW"
	ErrCodeInvalidSlice   = "INVALID_SLICE"
	ErrCodeTooManyIndices = "TOO_MANY_INDICES"
	ErrCodeUnknownBinding = "UNKNOWN_BINDING"
	ErrCodeGeneric        = "ERROR"
)

// ErrorCode classifies a step error for traces and expectations.
func ErrorCode(err error) string {
	if code := fanout.ErrorCodeOf(err); code != "" {
		return string(code)
	}
	switch {
	case ndarray.IsIndexError(err):
		return ErrCodeIndex
	case errors.Is(err, ndarray.ErrShapeMismatch):
		return ErrCodeShapeMismatch
	case errors.Is(err, ndarray.ErrNotOwner):
		return ErrCodeNotOwner
	case errors.Is(err, ndarray.ErrStaleView):
		return ErrCodeStaleView
	case errors.Is(err, ndarray.ErrInvalidSlice):
		return ErrCodeInvalidSlice
	case errors.Is(err, ndarray.ErrTooManyIndices):
		return ErrCodeTooManyIndices
	case errors.Is(err, errUnknownBinding):
		return ErrCodeUnknownBinding
	}
	return ErrCodeGeneric
}

var errUnknownBinding = errors.New("unknown binding")

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the scenario's CUE specs into a kind registry
// 2. Build the initial host and bind it as "host"
// 3. Execute each step, checking its expectations and recording it
// 4. Evaluate run-level assertions
// 5. Mark the run passed or failed in the store
//
// A returned error means the scenario could not be executed at all;
// expectation failures are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	registry, err := compiler.LoadRegistry(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	host, err := BuildHost(registry, scenario.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to build host: %w", err)
	}

	st := opts.Store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var runIDs RunIDGenerator = UUIDv7RunIDs{}
	switch {
	case scenario.RunID != "":
		runIDs = testutil.NewFixedRunIDs(scenario.RunID)
	case opts.RunIDs != nil:
		runIDs = opts.RunIDs
	}

	h := &Harness{
		store:    st,
		registry: registry,
		clock:    testutil.NewStepClock(),
		logger:   logger.With("scenario", scenario.Name),
		runID:    runIDs.NewRunID(),
		bindings: map[string]*table.Table{DefaultBinding: host},
	}

	if err := st.BeginRun(ctx, h.runID, scenario.Name); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	result := NewResult(h.runID)
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i+1, err)
		}
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		RunID:    h.runID,
		Bindings: h.bindings,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	if err := st.FinishRun(ctx, h.runID, result.Pass, len(result.Errors)); err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}
	h.logger.Debug("run finished", "run_id", h.runID, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// BuildHost builds a table from scenario host data. Groups without a kind
// take the kind their parent declares for them.
func BuildHost(registry *table.Registry, data HostData) (*table.Table, error) {
	return buildHost(registry, data, "")
}

func buildHost(registry *table.Registry, data HostData, defaultKind string) (*table.Table, error) {
	kindName := data.Kind
	if kindName == "" {
		kindName = defaultKind
	}
	kind, ok := registry.Kind(kindName)
	if !ok {
		return nil, fmt.Errorf("unknown host kind %q", kindName)
	}

	columns := make(map[string]*ndarray.Array, len(data.Arrays))
	for name, col := range data.Arrays {
		arr, err := col.Array()
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", kindName, name, err)
		}
		columns[name] = arr
	}

	groups := make(map[string]*table.Table, len(data.Groups))
	for name, gd := range data.Groups {
		gk, ok := kind.GroupKind(name)
		if !ok {
			return nil, fmt.Errorf("kind %s has no group %q", kindName, name)
		}
		child, err := buildHost(registry, gd, gk.Name())
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", kindName, name, err)
		}
		groups[name] = child
	}

	return kind.New(columns, groups, data.Meta)
}

// executeStep runs one step, checks its expectations and records it.
// The returned error is reserved for store failures.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	on := step.On
	if on == "" {
		on = DefaultBinding
	}
	label := fmt.Sprintf("step %d (%s on %s)", index+1, step.Op, on)

	mode := fanout.NotInplace
	switch step.Inplace {
	case InplaceAccessor:
		mode = fanout.InplaceViaAccessor
	case InplaceStore:
		mode = fanout.InplaceViaStore
	}

	ts := TraceStep{
		Seq:     h.clock.Next(),
		Op:      step.Op,
		On:      on,
		Mode:    mode.String(),
		Outcome: OutcomeOK,
	}

	var (
		out *table.Table
		rec *fanout.Record
		err error
	)
	target, ok := h.bindings[on]
	if ok {
		if mode != fanout.NotInplace {
			if err := target.Fanout().SetInplaceMode(mode); err != nil {
				return err
			}
		}
		// A mode left pending by an earlier failed step applies here too.
		ts.Mode = target.Fanout().Mode().String()
		out, rec, err = h.dispatch(target, step)
	} else {
		err = fmt.Errorf("%w %q", errUnknownBinding, on)
	}

	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	if err != nil {
		ts.Outcome = OutcomeError
		ts.ErrorCode = ErrorCode(err)
		switch {
		case exp.Error == "":
			result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
		case exp.Error != ts.ErrorCode:
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", label, exp.Error, ts.ErrorCode, err))
		}
	} else {
		if exp.Error != "" {
			result.AddError(fmt.Sprintf("%s: expected error %s, got success", label, exp.Error))
		}
		switch {
		case rec != nil:
			ts.Result = recordMap(*rec)
		case out != nil:
			ts.Result = out.Snapshot()
			if returnsHost(step.Op) {
				ts.Returned = ReturnedNew
				if out == target {
					ts.Returned = ReturnedSelf
				}
			}
		}
		if step.As != "" && out != nil {
			h.bindings[step.As] = out
		}
	}

	if ok {
		for _, msg := range h.checkExpect(exp, target, out, rec, err == nil) {
			result.AddError(fmt.Sprintf("%s: %s", label, msg))
		}
	}

	var snapshot string
	if ts.Result != nil {
		data, err := canon.Marshal(ts.Result)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: snapshot: %v", label, err))
			ts.Result = nil
		} else {
			snapshot = string(data)
			ts.SnapshotID = canon.HashWithDomain(canon.DomainSnapshot, data)
		}
	}
	stepID, err := canon.StepID(h.runID, ts.Seq, ts.Op, ts.SnapshotID)
	if err != nil {
		return err
	}
	ts.StepID = stepID

	h.logger.Debug("step",
		"seq", ts.Seq,
		"op", ts.Op,
		"on", ts.On,
		"mode", ts.Mode,
		"outcome", ts.Outcome,
		"error_code", ts.ErrorCode,
	)

	if err := h.store.WriteStep(ctx, store.Step{
		ID:         ts.StepID,
		RunID:      h.runID,
		Seq:        ts.Seq,
		Op:         ts.Op,
		Target:     ts.On,
		Mode:       ts.Mode,
		Outcome:    ts.Outcome,
		ErrorCode:  ts.ErrorCode,
		SnapshotID: ts.SnapshotID,
		Snapshot:   snapshot,
	}); err != nil {
		return err
	}

	result.AddStep(ts)
	return nil
}

// returnsHost reports whether op is a fan-out operation returning a host.
func returnsHost(op string) bool {
	switch op {
	case OpAt, OpSetItem, OpInspect:
		return false
	}
	return true
}

// dispatch runs the step's operation on t. Exactly one of the returned host
// and record is set on success.
func (h *Harness) dispatch(t *table.Table, step Step) (*table.Table, *fanout.Record, error) {
	p := t.Fanout()
	var (
		out *table.Table
		err error
	)
	switch step.Op {
	case OpWhere:
		out, err = p.Where(step.Mask)
	case OpIndexBy:
		out, err = p.IndexBy(step.Indices)
	case OpSliceBy:
		out, err = p.SliceBy(step.Slice.Slice())
	case OpAt:
		rec, err := p.At(step.Index...)
		if err != nil {
			return nil, nil, err
		}
		return nil, &rec, nil
	case OpCopy:
		out, err = p.Copy()
	case OpSever:
		out = p.Sever()
	case OpQsort:
		out, err = p.Qsort()
	case OpQsortOn:
		key, lerr := lookupColumn(t, step.Op, step.Key)
		if lerr != nil {
			return nil, nil, lerr
		}
		out, err = p.QsortOn(key)
	case OpClipOn:
		col, lerr := lookupColumn(t, step.Op, step.Column)
		if lerr != nil {
			return nil, nil, lerr
		}
		var bounds []fanout.Bound
		if step.Min != nil {
			bounds = append(bounds, fanout.AtLeast(*step.Min))
		}
		if step.Max != nil {
			bounds = append(bounds, fanout.Below(*step.Max))
		}
		out, err = p.ClipOn(col, bounds...)
	case OpSetAttributes:
		values := make(map[string]any, len(step.Values)+len(step.Meta))
		for name, c := range step.Values {
			arr, aerr := c.Array()
			if aerr != nil {
				return nil, nil, aerr
			}
			values[name] = arr
		}
		for name, v := range step.Meta {
			values[name] = v
		}
		out, err = p.SetAttributes(values)
	case OpSetItem:
		col, lerr := lookupColumn(t, step.Op, step.Column)
		if lerr != nil {
			return nil, nil, lerr
		}
		if err := col.Set(*step.Value, step.Index...); err != nil {
			return nil, nil, err
		}
		out = t
	case OpInspect:
		out = t
	default:
		return nil, nil, fmt.Errorf("unknown op %q", step.Op)
	}
	if err != nil {
		return nil, nil, err
	}
	return out, nil, nil
}
