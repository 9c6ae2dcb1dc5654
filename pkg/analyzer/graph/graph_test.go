package graph

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var observerProject = map[string]string{
	"observer.py": `class Observer:
    def update(self, event):
        raise NotImplementedError
`,
	"concrete.py": `from observer import Observer

class Concrete(Observer):
    def update(self, event):
        print(event)
`,
	"subject.py": `from concrete import Concrete

def notify_all(event):
    observers = [Concrete(), Concrete()]
    for o in observers:
        o.update(event)
`,
}

func writeProject(t *testing.T, sources map[string]string) (string, []string) {
	t.Helper()
	root := t.TempDir()
	testutil.CreateFileTree(t, root, sources)
	files := make([]string, 0, len(sources))
	for _, n := range testutil.Names(sources) {
		files = append(files, filepath.Join(root, n))
	}
	return root, files
}

func analyze(t *testing.T, sources map[string]string, opts ...Option) *Result {
	t.Helper()
	root, files := writeProject(t, sources)
	a := New(append([]Option{WithRoot(root)}, opts...)...)
	defer a.Close()
	res, err := a.Analyze(context.Background(), files)
	require.NoError(t, err)
	return res
}

func one(t *testing.T, res *Result, query string) models.FunctionID {
	t.Helper()
	ids := res.Find(query)
	require.Len(t, ids, 1, query)
	return ids[0]
}

func edgeKinds(res *Result, caller, callee models.FunctionID) []models.CallKind {
	var out []models.CallKind
	for _, e := range res.Graph.EdgesFrom(caller) {
		if e.Callee == callee {
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	a := New()
	require.NotNil(t, a)
	assert.True(t, a.basename)
	assert.Len(t, a.recognizers, len(patterns.All()))
	assert.NotNil(t, a.logger)
	a.Close()
}

func TestNewWithOptions(t *testing.T) {
	a := New(
		WithRoot("/src"),
		WithWorkers(3),
		WithResolveWorkers(2),
		WithMaxFileSize(1024),
		WithBasenameFallback(false),
		WithRecognizers(nil),
	)
	assert.Equal(t, "/src", a.root)
	assert.Equal(t, 3, a.workers)
	assert.Equal(t, 2, a.resolveWorkers)
	assert.Equal(t, int64(1024), a.maxFileSize)
	assert.False(t, a.basename)
	assert.Empty(t, a.recognizers)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.Workers = 5
	cfg.Analysis.Patterns = []string{"factory"}
	cfg.Analysis.BasenameFallback = false

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	a := New(opts...)
	assert.Equal(t, 5, a.workers)
	assert.False(t, a.basename)
	require.Len(t, a.recognizers, 1)
	assert.Equal(t, models.PatternFactory, a.recognizers[0].Kind())

	cfg.Analysis.Patterns = []string{"visitor"}
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestAnalyzeObserverAcrossFiles(t *testing.T) {
	res := analyze(t, observerProject)

	caller := one(t, res, "notify_all")
	impl := one(t, res, "Concrete.update")
	kinds := edgeKinds(res, caller, impl)
	assert.Contains(t, kinds, models.CallDynamic)
	assert.Contains(t, kinds, models.CallPatternDispatch)
	assert.Empty(t, edgeKinds(res, caller, one(t, res, "Observer.update")))

	require.Len(t, res.Patterns, 1)
	assert.Equal(t, models.PatternObserver, res.Patterns[0].Kind)
	assert.Contains(t, res.Graph.CallersOf(impl), caller)
	assert.True(t, res.Graph.Frozen())
	assert.Nil(t, res.Errors)
	assert.Len(t, res.Files, 3)
}

func TestAnalyzeFactory(t *testing.T) {
	res := analyze(t, map[string]string{
		"handlers.py": `class HandlerA:
    def handle(self):
        return "a"

class HandlerB:
    def handle(self):
        return "b"

def create_handler(kind):
    if kind == "a":
        return HandlerA()
    return HandlerB()
`,
		"app.py": `from handlers import create_handler

def main():
    create_handler("a").handle()
`,
	})

	main := one(t, res, "main")
	assert.Equal(t, []models.CallKind{models.CallPatternDispatch}, edgeKinds(res, main, one(t, res, "HandlerA.handle")))
	assert.Equal(t, []models.CallKind{models.CallPatternDispatch}, edgeKinds(res, main, one(t, res, "HandlerB.handle")))
	assert.Equal(t, []models.CallKind{models.CallDirect}, edgeKinds(res, main, one(t, res, "create_handler")))
}

func TestAnalyzeFactoryBareNames(t *testing.T) {
	tests := []struct {
		name    string
		factory string
		body    string
	}{
		{"conditional", "create", `    return HandlerA() if kind == "a" else HandlerB()`},
		{"mapping", "build", `    return HANDLERS[kind]()`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(t, map[string]string{
				"handlers.py": `class HandlerA:
    def handle(self):
        return "a"

class HandlerB:
    def handle(self):
        return "b"

HANDLERS = {"a": HandlerA, "b": HandlerB}

def ` + tt.factory + `(kind):
` + tt.body + `
`,
				"app.py": `from handlers import ` + tt.factory + `

def main(kind):
    ` + tt.factory + `(kind).handle()
`,
			})

			main := one(t, res, "main")
			assert.Equal(t, []models.CallKind{models.CallPatternDispatch}, edgeKinds(res, main, one(t, res, "HandlerA.handle")))
			assert.Equal(t, []models.CallKind{models.CallPatternDispatch}, edgeKinds(res, main, one(t, res, "HandlerB.handle")))
			assert.Equal(t, []models.CallKind{models.CallDirect}, edgeKinds(res, main, one(t, res, tt.factory)))
		})
	}
}

func TestAnalyzeDeclarationLine(t *testing.T) {
	res := analyze(t, map[string]string{
		"app.py": `import functools

@functools.lru_cache(maxsize=None)
def compute(x):
    return x

class Service:
    @staticmethod
    def run():
        return compute(1)
`,
	})
	assert.Equal(t, 4, one(t, res, "compute").Line)
	assert.Equal(t, 9, one(t, res, "Service.run").Line)
}

func TestAnalyzeDeterministicAcrossWorkerCounts(t *testing.T) {
	root, files := writeProject(t, observerProject)

	var fingerprints []uint64
	for _, workers := range []int{1, 2, 8} {
		a := New(WithRoot(root), WithWorkers(workers), WithResolveWorkers(workers))
		res, err := a.Analyze(context.Background(), files)
		require.NoError(t, err)
		fingerprints = append(fingerprints, res.Graph.Fingerprint())
	}
	assert.Equal(t, fingerprints[0], fingerprints[1])
	assert.Equal(t, fingerprints[0], fingerprints[2])
}

func TestAnalyzeSkipsUnreadableFiles(t *testing.T) {
	root, files := writeProject(t, map[string]string{
		"ok.py":    "def f():\n    pass\n",
		"large.py": "def g():\n    return '" + string(make([]byte, 256)) + "'\n",
	})
	missing := filepath.Join(root, "missing.py")

	a := New(WithRoot(root), WithMaxFileSize(128))
	res, err := a.Analyze(context.Background(), append(files, missing))
	require.NoError(t, err)

	require.Equal(t, 2, res.Errors.Len())
	assert.True(t, errors.Is(res.Errors, ErrFileTooLarge))
	assert.Equal(t, []string{filepath.Join(root, "ok.py")}, res.Files)
	assert.Len(t, res.Find("f"), 1)
	assert.Empty(t, res.Find("g"))
	assert.Equal(t, 2, res.Summary().FilesSkipped)
}

func TestAnalyzeCancelled(t *testing.T) {
	_, files := writeProject(t, observerProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Analyze(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestAnalyzeReportsProgress(t *testing.T) {
	_, files := writeProject(t, observerProject)

	var mu sync.Mutex
	var seen []string
	tracker := analyzer.NewTracker(func(p analyzer.Progress) {
		if p.Stage != analyzer.StageExtract || p.Item == "" {
			return
		}
		mu.Lock()
		seen = append(seen, p.Item)
		mu.Unlock()
	})
	_, err := New().Analyze(analyzer.WithTracker(context.Background(), tracker), files)
	require.NoError(t, err)
	assert.ElementsMatch(t, files, seen)
	assert.Equal(t, analyzer.StageResolve, tracker.Stage())
	assert.Equal(t, tracker.Total(), tracker.Current())
}

func TestAnalyzeDefaultsRootToCommonDir(t *testing.T) {
	root, files := writeProject(t, map[string]string{
		"pkg/a/one.py": "def one():\n    pass\n",
		"pkg/b/two.py": "def two():\n    pass\n",
	})
	res, err := New().Analyze(context.Background(), files)
	require.NoError(t, err)
	want, err := filepath.Abs(filepath.Join(root, "pkg"))
	require.NoError(t, err)
	assert.Equal(t, want, res.Root)
}

func TestResultViews(t *testing.T) {
	res := analyze(t, observerProject)

	s := res.Summary()
	assert.Equal(t, res.Graph.NodeCount(), s.TotalNodes)
	assert.Equal(t, res.Graph.EdgeCount(), s.TotalEdges)
	assert.Equal(t, 1, s.Patterns)
	assert.Equal(t, 3, s.FilesAnalyzed)
	assert.Positive(t, s.EdgesByKind[models.CallPatternDispatch])

	doc := res.Document()
	assert.Len(t, doc.Nodes, s.TotalNodes)
	assert.Len(t, doc.Patterns, 1)

	st := res.Stats(3)
	assert.Equal(t, res.RunID.String(), st.RunID)
	assert.Len(t, st.Fingerprint, 16)
	assert.LessOrEqual(t, len(st.Hubs), 3)

	assert.Len(t, res.Find("concrete.py:Concrete.update"), 1)
	assert.Empty(t, res.Find("observer.py:Concrete.update"))
	assert.Len(t, res.Find("update"), 2)
	assert.Empty(t, res.Find(" "))
	assert.Equal(t, "subject.py", res.Rel(filepath.Join(res.Root, "subject.py")))
}
