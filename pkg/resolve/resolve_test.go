package resolve

import (
	"context"
	"testing"

	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	graph    *callgraph.Graph
	resolver *Resolver
	results  map[string]*extract.Result
}

func setup(t *testing.T, root string, sources map[string]string, opts ...Option) *project {
	t.Helper()
	ctx, res := testutil.Extract(t, root, sources, nil)
	g := callgraph.New()
	r := New(ctx, g, opts...)
	for _, n := range testutil.Names(sources) {
		g.Merge(res[n].Graph)
		require.NoError(t, r.Collect(res[n].Unresolved...))
	}
	return &project{graph: g, resolver: r, results: res}
}

func run(t *testing.T, root string, sources map[string]string, opts ...Option) *project {
	t.Helper()
	p := setup(t, root, sources, opts...)
	require.NoError(t, p.resolver.Run(context.Background()))
	return p
}

func (p *project) fid(t *testing.T, file, qualified string) models.FunctionID {
	t.Helper()
	for _, id := range p.results[file].Functions {
		if id.QualifiedName == qualified {
			return id
		}
	}
	t.Fatalf("function %q not found in %s", qualified, file)
	return models.FunctionID{}
}

func (p *project) edges(caller, callee models.FunctionID) []callgraph.Edge {
	var out []callgraph.Edge
	for _, e := range p.graph.EdgesFrom(caller) {
		if e.Callee == callee {
			out = append(out, e)
		}
	}
	return out
}

func kinds(es []callgraph.Edge) []models.CallKind {
	var out []models.CallKind
	for _, e := range es {
		out = append(out, e.Kind)
	}
	return out
}

var observerSources = map[string]string{
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

func TestObserverDispatchAcrossFiles(t *testing.T) {
	p := run(t, t.TempDir(), observerSources)

	caller := p.fid(t, "subject.py", "notify_all")
	impl := p.fid(t, "concrete.py", "Concrete.update")
	got := kinds(p.edges(caller, impl))
	assert.Contains(t, got, models.CallDynamic)
	assert.Contains(t, got, models.CallPatternDispatch)

	abstract := p.fid(t, "observer.py", "Observer.update")
	assert.Empty(t, p.edges(caller, abstract))
	assert.Equal(t, 1, p.resolver.Stats().PatternInstances)
}

func TestFactoryDispatch(t *testing.T) {
	sources := map[string]string{
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
	}
	p := run(t, t.TempDir(), sources)

	main := p.fid(t, "app.py", "main")
	for _, name := range []string{"HandlerA.handle", "HandlerB.handle"} {
		es := p.edges(main, p.fid(t, "handlers.py", name))
		require.Len(t, es, 1, name)
		assert.Equal(t, models.CallPatternDispatch, es[0].Kind)
		assert.Equal(t, []string{"factory"}, es[0].Provenance)
	}
	assert.Len(t, p.edges(main, p.fid(t, "handlers.py", "create_handler")), 1)
}

func TestConstructorInjectionSettlesAcrossFiles(t *testing.T) {
	sources := map[string]string{
		"strategy.py": `class Fast:
    def execute(self, data):
        return data

class Runner:
    def __init__(self, strategy):
        self.strategy = strategy

    def run(self, data):
        return self.strategy.execute(data)
`,
		"main.py": `from strategy import Fast, Runner

def main():
    r = Runner(Fast())
    r.run(1)
`,
	}
	p := run(t, t.TempDir(), sources)

	main := p.fid(t, "main.py", "main")
	assert.NotEmpty(t, p.edges(main, p.fid(t, "strategy.py", "Runner.__init__")))
	assert.NotEmpty(t, p.edges(main, p.fid(t, "strategy.py", "Runner.run")))

	run := p.fid(t, "strategy.py", "Runner.run")
	es := p.edges(run, p.fid(t, "strategy.py", "Fast.execute"))
	assert.Contains(t, kinds(es), models.CallDynamic)
}

func TestImportsAndSuper(t *testing.T) {
	sources := map[string]string{
		"util.py": `def helper():
    return 1

class Base:
    def __init__(self):
        self.ready = True

    def greet(self):
        return helper()
`,
		"app.py": `import util
from util import Base

class Child(Base):
    def __init__(self):
        super().__init__()

    def hello(self):
        return self.greet()

def main():
    util.helper()
    Child().hello()
`,
	}
	p := run(t, t.TempDir(), sources)

	tests := []struct {
		caller, callerFile string
		callee, calleeFile string
		kind               models.CallKind
	}{
		{"main", "app.py", "helper", "util.py", models.CallDirect},
		{"Child.__init__", "app.py", "Base.__init__", "util.py", models.CallDirect},
		{"Child.hello", "app.py", "Base.greet", "util.py", models.CallDirect},
		{"Base.greet", "util.py", "helper", "util.py", models.CallDirect},
	}
	for _, tt := range tests {
		t.Run(tt.caller+"->"+tt.callee, func(t *testing.T) {
			es := p.edges(p.fid(t, tt.callerFile, tt.caller), p.fid(t, tt.calleeFile, tt.callee))
			assert.Contains(t, kinds(es), tt.kind)
		})
	}
}

func TestPlaceholderBodiesYieldToOverrides(t *testing.T) {
	sources := map[string]string{
		"base.py": `class Base:
    def run(self):
        raise NotImplementedError

    def close(self):
        pass

class Fast(Base):
    def run(self):
        super().run()
        return 1
`,
		"app.py": `from base import Base

def drive(item: Base):
    item.run()
    item.close()
`,
	}
	p := run(t, t.TempDir(), sources)

	drive := p.fid(t, "app.py", "drive")
	stub := p.fid(t, "base.py", "Base.run")
	assert.Empty(t, p.edges(drive, stub), "overridden placeholder is not a call target")
	assert.Contains(t, kinds(p.edges(drive, p.fid(t, "base.py", "Base.close"))), models.CallDynamic)
	assert.Contains(t, kinds(p.edges(p.fid(t, "base.py", "Fast.run"), stub)), models.CallDirect)
}

func TestBasenameFallback(t *testing.T) {
	sources := map[string]string{
		"a.py": `class Engine:
    def ignite(self):
        return 1
`,
		"b.py": `def start(car):
    car.engine.ignite()
`,
	}

	p := run(t, t.TempDir(), sources)
	start := p.fid(t, "b.py", "start")
	es := p.edges(start, p.fid(t, "a.py", "Engine.ignite"))
	require.Len(t, es, 1)
	assert.Equal(t, models.CallDynamic, es[0].Kind)
	assert.Equal(t, []string{ProvenanceBasename}, es[0].Provenance)
	assert.Equal(t, 1, p.resolver.Stats().Basename)

	p = run(t, t.TempDir(), sources, WithBasenameFallback(false))
	assert.Empty(t, p.graph.EdgesFrom(p.fid(t, "b.py", "start")))
}

func TestMissesAreDropped(t *testing.T) {
	sources := map[string]string{
		"a.py": `import requests

def fetch(url):
    requests.get(url)
    undefined_function()
`,
	}
	p := run(t, t.TempDir(), sources)
	assert.Empty(t, p.graph.EdgesFrom(p.fid(t, "a.py", "fetch")))
	assert.Equal(t, p.resolver.Stats().Collected, p.resolver.Stats().Dropped)
	for _, res := range p.resolver.Results() {
		assert.Equal(t, StepDropped, res.Step)
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	root := t.TempDir()
	want := run(t, root, observerSources, WithWorkers(1)).graph.Fingerprint()
	for _, n := range []int{2, 4, 8} {
		got := run(t, root, observerSources, WithWorkers(n)).graph.Fingerprint()
		assert.Equal(t, want, got, "workers=%d", n)
	}
}

func TestStateTransitions(t *testing.T) {
	p := setup(t, t.TempDir(), observerSources)
	r := p.resolver
	assert.Equal(t, StateCollecting, r.State())

	assert.ErrorIs(t, r.ApplySequential(), ErrInvalidTransition)

	require.NoError(t, r.ResolveParallel(context.Background()))
	assert.Equal(t, StateResolvingParallel, r.State())
	assert.False(t, p.graph.Frozen())

	assert.ErrorIs(t, r.Collect(extract.UnresolvedCall{}), ErrInvalidTransition)
	assert.ErrorIs(t, r.ResolveParallel(context.Background()), ErrInvalidTransition)

	require.NoError(t, r.ApplySequential())
	assert.Equal(t, StateDone, r.State())
	assert.True(t, p.graph.Frozen())

	assert.ErrorIs(t, r.ApplySequential(), ErrInvalidTransition)
	assert.Equal(t, "done", r.State().String())
}

func TestResolveDoesNotTouchGraph(t *testing.T) {
	p := setup(t, t.TempDir(), observerSources)
	before := p.graph.Fingerprint()
	require.NoError(t, p.resolver.ResolveParallel(context.Background()))
	assert.Equal(t, before, p.graph.Fingerprint())
}

func TestCancelledResolve(t *testing.T) {
	p := setup(t, t.TempDir(), observerSources)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.resolver.ResolveParallel(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.resolver.Results())
	assert.ErrorIs(t, p.resolver.ApplySequential(), ErrInvalidTransition)
}
