package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestStep creates a successful step with minimal required fields.
func createTestStep(id, runID string, seq int64) Step {
	return Step{
		ID:      id,
		RunID:   runID,
		Seq:     seq,
		Op:      "where",
		Target:  "host",
		Mode:    "not_inplace",
		Outcome: OutcomeOK,
	}
}

// beginTestRun starts a run or fails the test.
func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.BeginRun(context.Background(), id, "scenario-"+id); err != nil {
		t.Fatalf("BeginRun(%q) failed: %v", id, err)
	}
}
