package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statement struct {
	cypher string
	params map[string]any
}

type recorder struct {
	statements []statement
	failOn     string
}

func (r *recorder) Run(_ context.Context, cypher string, params map[string]any) error {
	if r.failOn != "" && strings.Contains(cypher, r.failOn) {
		return errors.New("boom")
	}
	r.statements = append(r.statements, statement{cypher: cypher, params: params})
	return nil
}

func (r *recorder) matching(fragment string) []statement {
	var out []statement
	for _, s := range r.statements {
		if strings.Contains(s.cypher, fragment) {
			out = append(out, s)
		}
	}
	return out
}

func analyzeObserver(t *testing.T) *graph.Result {
	t.Helper()
	root := t.TempDir()
	sources := map[string]string{
		"observer.py": "class Observer:\n    def update(self, event):\n        raise NotImplementedError\n",
		"concrete.py": "from observer import Observer\n\nclass Concrete(Observer):\n    def update(self, event):\n        print(event)\n",
		"subject.py":  "from concrete import Concrete\n\ndef notify_all(event):\n    observers = [Concrete(), Concrete()]\n    for o in observers:\n        o.update(event)\n",
	}
	testutil.CreateFileTree(t, root, sources)
	var files []string
	for _, n := range testutil.Names(sources) {
		files = append(files, filepath.Join(root, n))
	}
	res, err := graph.New(graph.WithRoot(root)).Analyze(context.Background(), files)
	require.NoError(t, err)
	return res
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name  string
		rows  int
		size  int
		sizes []int
	}{
		{"empty", 0, 10, nil},
		{"exact", 4, 2, []int{2, 2}},
		{"remainder", 5, 2, []int{2, 2, 1}},
		{"single", 3, 10, []int{3}},
		{"default size", 3, 0, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]int, tt.rows)
			var sizes []int
			for _, b := range Batches(rows, tt.size) {
				sizes = append(sizes, len(b))
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestRows(t *testing.T) {
	res := analyzeObserver(t)

	functions := FunctionRows(res)
	require.Len(t, functions, res.Graph.NodeCount())
	keys := make(map[string]bool)
	for _, row := range functions {
		keys[row["key"].(string)] = true
		assert.False(t, filepath.IsAbs(row["file"].(string)), "file is relative to the root")
		assert.Equal(t, res.RunID.String(), row["run_id"])
	}
	assert.Len(t, keys, len(functions), "function keys are unique")

	edges := EdgeRows(res)
	require.Len(t, edges, res.Graph.EdgeCount())
	for _, row := range edges {
		assert.True(t, keys[row["caller"].(string)], "caller key refers to a function row")
		assert.True(t, keys[row["callee"].(string)], "callee key refers to a function row")
		assert.NotNil(t, row["provenance"])
	}

	patterns := PatternRows(res)
	require.Len(t, patterns, 1)
	assert.Equal(t, "observer", patterns[0]["kind"])
	assert.Equal(t, "update", patterns[0]["method"])
	assert.Len(t, patterns[0]["implementations"], len(res.Patterns[0].Implementations))
}

func TestPatternKeyStable(t *testing.T) {
	p := models.PatternInstance{Kind: models.PatternObserver, DefiningType: models.TypeID{Name: "Observer"}, Method: "update"}
	q := p
	q.Implementations = []models.FunctionID{{QualifiedName: "A.update", File: "a.py", Line: 2}}
	assert.Equal(t, PatternKey(p), PatternKey(q))

	q.Method = "notify"
	assert.NotEqual(t, PatternKey(p), PatternKey(q))
}

func TestExport(t *testing.T) {
	res := analyzeObserver(t)
	rec := &recorder{}
	st, err := New(rec, WithBatchSize(2), WithLogger(quiet())).Export(context.Background(), res)
	require.NoError(t, err)

	assert.Equal(t, res.Graph.NodeCount(), st.Functions)
	assert.Equal(t, res.Graph.EdgeCount(), st.Edges)
	assert.Equal(t, 1, st.Patterns)
	assert.Equal(t, len(rec.statements), st.Statements)

	assert.Len(t, rec.matching("CREATE INDEX"), 2)
	assert.Empty(t, rec.matching("DELETE"), "no clean unless requested")

	fnBatches := rec.matching("MERGE (n:Function")
	assert.Len(t, fnBatches, (st.Functions+1)/2)
	for _, s := range fnBatches {
		assert.LessOrEqual(t, len(s.params["batch"].([]map[string]any)), 2)
	}
	assert.Len(t, rec.matching("MERGE (caller)-[r:CALLS"), (st.Edges+1)/2)

	// Functions are loaded before the edges that match on them.
	first := func(fragment string) int {
		for i, s := range rec.statements {
			if strings.Contains(s.cypher, fragment) {
				return i
			}
		}
		return -1
	}
	assert.Less(t, first("MERGE (n:Function"), first("CALLS {kind"))
}

func TestExportClean(t *testing.T) {
	res := analyzeObserver(t)
	rec := &recorder{}
	_, err := New(rec, WithClean(true), WithLogger(quiet())).Export(context.Background(), res)
	require.NoError(t, err)
	assert.Len(t, rec.matching("DELETE"), 3)
}

func TestExportErrors(t *testing.T) {
	res := analyzeObserver(t)
	tests := []struct {
		failOn string
		want   string
	}{
		{"CREATE INDEX", "creating index"},
		{"MERGE (n:Function", "loading functions"},
		{"CALLS {kind", "loading call edges"},
		{"MERGE (p:Pattern", "loading patterns"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := New(&recorder{failOn: tt.failOn}, WithLogger(quiet())).Export(context.Background(), res)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDialRequiresPassword(t *testing.T) {
	_, err := Dial(context.Background(), config.DefaultConfig().Neo4j)
	assert.ErrorIs(t, err, ErrNoPassword)
}
