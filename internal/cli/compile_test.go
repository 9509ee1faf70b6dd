package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fanout/internal/table"
)

func TestCompileValidSpecs(t *testing.T) {
	requireTestdata(t)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 2 host kind(s)")
	assert.Contains(t, output, "Particles: 2 array(s), 0 group(s), sorted by p2")
	assert.Contains(t, output, "Swarm: 1 array(s), 1 group(s), sorted by mass")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	requireTestdata(t)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Hosts, 2)
	assert.Equal(t, "Particles", resp.Data.Hosts[0].Name)
	assert.Equal(t, []string{"p1", "p2"}, resp.Data.Hosts[0].Arrays)
	assert.Equal(t, map[string]string{"units": "m"}, resp.Data.Hosts[0].Meta)
	assert.Equal(t, map[string]string{"particles": "Particles"}, resp.Data.Hosts[1].Groups)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := writeSpec(t, `
package specs

host: Points: {
	arrays: ["y", "x"]
	sort_key: "x"
}
`)
	outFile := filepath.Join(t.TempDir(), "hosts.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "-o", outFile})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote canonical declarations to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t,
		`{"hosts":[{"arrays":["y","x"],"groups":[],"meta":{},"name":"Points","sort_key":"x"}]}`,
		string(data))
}

func TestCompileNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestCompileNoHosts(t *testing.T) {
	dir := writeSpec(t, "package specs\n\nother: 1\n")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, ErrCodeNoHosts, resp.Error.Code)
}

func TestCompileInvalidHost(t *testing.T) {
	dir := writeSpec(t, `
package specs

host: Bad: {
	arrays: ["p1"]
	sort_key: "missing"
}
`)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Validation failed")
	assert.Contains(t, buf.String(), "E104")
}

func TestCompileMalformedHost(t *testing.T) {
	dir := writeSpec(t, `
package specs

host: Bad: {
	arrays: "p1"
}
`)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeBadArrays)
	assert.Contains(t, buf.String(), "arrays must be a list of names")
}

func TestCompileVerboseOutput(t *testing.T) {
	requireTestdata(t)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{testSpecsDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "Found 1 CUE file(s)")
	assert.Contains(t, errOut.String(), "Compiling host: Swarm")
	assert.Contains(t, out.String(), "arrays: p1, p2")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"arrays", ErrCodeBadArrays},
		{"groups", ErrCodeBadGroups},
		{"groups.members", ErrCodeBadGroups},
		{"sort_key", ErrCodeBadSortKey},
		{"meta.units", ErrCodeBadMeta},
		{"cue", ErrCodeGeneric},
		{"colums", ErrCodeUnknownField},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestDeclMapKeepsGroupOrder(t *testing.T) {
	m := declMap(table.Decl{
		Name:   "Swarm",
		Arrays: []string{"mass"},
		Groups: []table.GroupDecl{{Name: "z", Kind: "A"}, {Name: "a", Kind: "B"}},
	})

	groups := m["groups"].([]any)
	require.Len(t, groups, 2)
	assert.Equal(t, "z", groups[0].(map[string]any)["name"])
	_, hasSortKey := m["sort_key"]
	assert.False(t, hasSortKey)
}
