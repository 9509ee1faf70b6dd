package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fanout/internal/store"
)

var (
	testSpecsDir     = filepath.Join("..", "..", "testdata", "specs")
	testScenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
)

// requireTestdata skips the test when the repository testdata is missing.
func requireTestdata(t *testing.T) {
	t.Helper()
	for _, dir := range []string{testSpecsDir, testScenariosDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Skipf("%s not found", dir)
		}
	}
}

// writeSpec writes a single CUE file into a fresh directory.
func writeSpec(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hosts.cue"), []byte(content), 0o644))
	return dir
}

// recordRuns runs the repository scenarios with --db and returns the
// database path and the recorded runs keyed by scenario name.
func recordRuns(t *testing.T) (string, map[string]store.Run) {
	t.Helper()
	requireTestdata(t)

	dbPath := filepath.Join(t.TempDir(), "runs.db")
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{testSpecsDir, testScenariosDir, "--db", dbPath})
	require.NoError(t, cmd.Execute())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	byName := make(map[string]store.Run, len(runs))
	for _, r := range runs {
		byName[r.Scenario] = r
	}
	return dbPath, byName
}
