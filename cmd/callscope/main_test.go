package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/callscope/internal/export"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var observerProject = map[string]string{
	"observer.py": "class Observer:\n    def update(self, event):\n        raise NotImplementedError\n",
	"concrete.py": "from observer import Observer\n\nclass Concrete(Observer):\n    def update(self, event):\n        print(event)\n",
	"subject.py":  "from concrete import Concrete\n\ndef notify_all(event):\n    observers = [Concrete(), Concrete()]\n    for o in observers:\n        o.update(event)\n",
}

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.CreateFileTree(t, root, observerProject)
	return root
}

// run executes the CLI and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run(append([]string{"callscope"}, args...))
	return stdout.String(), err
}

func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"no args defaults to current dir", nil, []string{"."}},
		{"single path", []string{"/foo/bar"}, []string{"/foo/bar"}},
		{"multiple paths", []string{"/foo", "/bar"}, []string{"/foo", "/bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Action: func(c *cli.Context) error {
					assert.Equal(t, tt.expected, getPaths(c))
					return nil
				},
			}
			require.NoError(t, app.Run(append([]string{"test"}, tt.args...)))
		})
	}
}

func TestQueryArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		function string
		paths    []string
		wantErr  bool
	}{
		{"missing function", nil, "", nil, true},
		{"function only", []string{"main"}, "main", []string{"."}, false},
		{"function and paths", []string{"main", "a", "b"}, "main", []string{"a", "b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Commands: []*cli.Command{{
					Name:      "callers",
					ArgsUsage: "<function> [path...]",
					Action: func(c *cli.Context) error {
						fn, paths, err := queryArgs(c)
						if tt.wantErr {
							assert.Error(t, err)
							return nil
						}
						require.NoError(t, err)
						assert.Equal(t, tt.function, fn)
						assert.Equal(t, tt.paths, paths)
						return nil
					},
				}},
			}
			require.NoError(t, app.Run(append([]string{"test", "callers"}, tt.args...)))
		})
	}
}

func TestAnalyzeCommand(t *testing.T) {
	root := project(t)

	out, err := run(t, "-f", "json", "analyze", root)
	require.NoError(t, err)
	var doc models.CallGraphDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 3, doc.Summary.FilesAnalyzed)
	assert.Len(t, doc.Patterns, 1)
	assert.Positive(t, doc.Summary.EdgesByKind[models.CallPatternDispatch])

	out, err = run(t, "analyze", "--summary", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Call Graph Summary")
	assert.Contains(t, out, "Files analyzed")
}

func TestAnalyzeNoFiles(t *testing.T) {
	_, err := run(t, "analyze", t.TempDir())
	assert.ErrorIs(t, err, errNoFiles)
}

func TestCallersCommand(t *testing.T) {
	root := project(t)

	out, err := run(t, "-f", "json", "callers", "Concrete.update", root)
	require.NoError(t, err)
	var got output.NeighbourData
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "callers", got.Direction)
	require.Len(t, got.Edges, 2)
	for _, e := range got.Edges {
		assert.Equal(t, "notify_all", e.Function.QualifiedName)
	}

	_, err = run(t, "callers", "update", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
	assert.Contains(t, err.Error(), "concrete.py:Concrete.update")

	_, err = run(t, "callers", "missing", root)
	assert.Error(t, err)
}

func TestCalleesCommand(t *testing.T) {
	root := project(t)
	out, err := run(t, "callees", "notify_all", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Callees of notify_all (subject.py:3)")
	assert.Contains(t, out, "pattern_dispatch")
}

func TestFunctionsCommand(t *testing.T) {
	root := project(t)
	out, err := run(t, "-f", "json", "functions", "--filter", "update", root)
	require.NoError(t, err)
	var ids []models.FunctionID
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Len(t, ids, 2)
}

func TestPatternsCommand(t *testing.T) {
	root := project(t)

	out, err := run(t, "-f", "json", "patterns", "--kind", "observer", root)
	require.NoError(t, err)
	var got []models.PatternInstance
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, models.PatternObserver, got[0].Kind)

	out, err = run(t, "-f", "json", "patterns", "--kind", "factory", root)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = run(t, "patterns", "--kind", "visitor", root)
	assert.ErrorContains(t, err, "unknown pattern kind")
}

func TestStatsCommand(t *testing.T) {
	root := project(t)
	out, err := run(t, "-f", "json", "stats", "--top", "2", root)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got, "fingerprint")
	if hubs, ok := got["hubs"].([]any); ok {
		assert.LessOrEqual(t, len(hubs), 2)
	}
}

func TestOutputFile(t *testing.T) {
	root := project(t)
	path := filepath.Join(t.TempDir(), "graph.yaml")
	out, err := run(t, "-f", "yaml", "-o", path, "analyze", root)
	require.NoError(t, err)
	assert.Empty(t, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pattern_dispatch")
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "callscope.toml")
	testutil.WriteFile(t, valid, "[analysis]\nworkers = 2\n")

	out, err := run(t, "-c", valid, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Configuration from: "+valid)
	assert.Contains(t, out, "workers = 2")

	out, err = run(t, "-c", valid, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")

	invalid := filepath.Join(dir, "bad.toml")
	testutil.WriteFile(t, invalid, "[analysis]\nworkers = -1\n")
	_, err = run(t, "-c", invalid, "config", "validate")
	assert.Error(t, err)
}

func TestConfigFormatDefault(t *testing.T) {
	root := project(t)
	cfgPath := filepath.Join(t.TempDir(), "callscope.toml")
	testutil.WriteFile(t, cfgPath, "[output]\nformat = \"json\"\n")

	out, err := run(t, "-c", cfgPath, "functions", root)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), "config output format applies without --format")
}

func TestExportRequiresPassword(t *testing.T) {
	t.Setenv("CALLSCOPE_NEO4J_PASSWORD", "")
	_, err := run(t, "export", project(t))
	assert.ErrorIs(t, err, export.ErrNoPassword)
}

func TestMCPManifestCommand(t *testing.T) {
	out, err := run(t, "mcp", "manifest")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "io.github.panbanda/callscope", m["name"])
}
