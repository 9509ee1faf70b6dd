package store

import (
	"context"
	"errors"
	"testing"
)

func TestReadSteps_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	// Insert out of order.
	for _, st := range []Step{
		createTestStep("c", "run-1", 3),
		createTestStep("a", "run-1", 1),
		createTestStep("b", "run-1", 2),
	} {
		if err := s.WriteStep(ctx, st); err != nil {
			t.Fatalf("WriteStep(%s) failed: %v", st.ID, err)
		}
	}

	steps, err := s.ReadSteps(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadSteps() failed: %v", err)
	}
	var got []int64
	for _, st := range steps {
		got = append(got, st.Seq)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("seq order = %v, expected [1 2 3]", got)
	}
}

func TestReadSteps_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	steps, err := s.ReadSteps(context.Background(), "none")
	if err != nil {
		t.Fatalf("ReadSteps() failed: %v", err)
	}
	if steps == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestReadSteps_RoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	want := Step{
		ID:         "step-x",
		RunID:      "run-1",
		Seq:        7,
		Op:         "index_by",
		Target:     "sorted",
		Mode:       "inplace_via_store",
		Outcome:    OutcomeError,
		ErrorCode:  "NOT_OWNER",
		SnapshotID: "abc",
		Snapshot:   `{"kind":"Particles"}`,
	}
	if err := s.WriteStep(ctx, want); err != nil {
		t.Fatalf("WriteStep() failed: %v", err)
	}

	steps, err := s.ReadSteps(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadSteps() failed: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("got %d steps, expected 1", len(steps))
	}
	if steps[0] != want {
		t.Errorf("ReadSteps()[0] = %+v, expected %+v", steps[0], want)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadRun() error = %v, expected ErrRunNotFound", err)
	}
}

func TestListRuns_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		beginTestRun(t, s, id)
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, expected 3", len(runs))
	}
	for i, id := range []string{"zeta", "alpha", "mid"} {
		if runs[i].ID != id {
			t.Errorf("runs[%d].ID = %q, expected %q", i, runs[i].ID, id)
		}
	}
}

func TestFailedSteps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	ok := createTestStep("a", "run-1", 1)
	bad := createTestStep("b", "run-1", 2)
	bad.Outcome = OutcomeError
	bad.ErrorCode = "NOT_OWNER"
	other := createTestStep("c", "run-1", 3)
	other.Outcome = OutcomeError
	other.ErrorCode = "INDEX_ERROR"
	for _, st := range []Step{ok, bad, other} {
		if err := s.WriteStep(ctx, st); err != nil {
			t.Fatalf("WriteStep(%s) failed: %v", st.ID, err)
		}
	}

	all, err := s.FailedSteps(ctx, "run-1", "")
	if err != nil {
		t.Fatalf("FailedSteps() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d failed steps, expected 2", len(all))
	}

	owners, err := s.FailedSteps(ctx, "run-1", "NOT_OWNER")
	if err != nil {
		t.Fatalf("FailedSteps() failed: %v", err)
	}
	if len(owners) != 1 || owners[0].ID != "b" {
		t.Errorf("FailedSteps(NOT_OWNER) = %+v", owners)
	}
}
