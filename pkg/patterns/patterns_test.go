package patterns

import (
	"path/filepath"
	"testing"

	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fid(t *testing.T, res *extract.Result, qualified string) models.FunctionID {
	t.Helper()
	for _, id := range res.Functions {
		if id.QualifiedName == qualified {
			return id
		}
	}
	t.Fatalf("function %q not found in %s", qualified, res.File)
	return models.FunctionID{}
}

func facts(ctx *crossmod.Context) *Facts {
	ctx.Propagate()
	return NewFacts(ctx)
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

class Other(Observer):
    def update(self, event):
        return event
`,
	"subject.py": `from concrete import Concrete

def notify_all(event):
    observers = [Concrete(), Concrete()]
    for o in observers:
        o.update(event)
`,
}

func TestObserverAcrossFiles(t *testing.T) {
	root := t.TempDir()
	ctx, res := testutil.Extract(t, root, observerSources, nil)

	got := Observer{}.Detect(facts(ctx))
	require.Len(t, got, 1)
	inst := got[0]
	assert.Equal(t, models.PatternObserver, inst.Kind)
	assert.Equal(t, models.TypeID{Name: "Observer", Module: filepath.Join(root, "observer.py")}, inst.DefiningType)
	assert.Equal(t, "update", inst.Method)
	assert.Equal(t, []models.FunctionID{fid(t, res["concrete.py"], "Concrete.update")}, inst.Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, res["subject.py"], "notify_all")}, inst.DispatchSites)
	assert.Equal(t, "observer", inst.Provenance)
}

func TestObserverIndependentOfOrder(t *testing.T) {
	root := t.TempDir()
	ctx, _ := testutil.Extract(t, root, observerSources, nil)
	want := Observer{}.Detect(facts(ctx))
	require.NotEmpty(t, want)

	orders := [][]string{
		{"subject.py", "concrete.py", "observer.py"},
		{"concrete.py", "subject.py", "observer.py"},
		{"observer.py", "subject.py", "concrete.py"},
	}
	for _, order := range orders {
		ctx, _ := testutil.Extract(t, root, observerSources, order)
		assert.Equal(t, want, Observer{}.Detect(facts(ctx)), "order %v", order)
	}
	for range 4 {
		ctx, _ := testutil.ExtractConcurrently(t, root, observerSources)
		assert.Equal(t, want, Observer{}.Detect(facts(ctx)))
	}
}

func TestObserverNeedsInterfaceAndLoop(t *testing.T) {
	tests := []struct {
		name    string
		sources map[string]string
	}{
		{
			name: "loop without interface",
			sources: map[string]string{"a.py": `class A:
    def update(self):
        return 1

def f():
    for a in [A()]:
        a.update()
`},
		},
		{
			name: "interface without loop",
			sources: map[string]string{
				"observer.py": observerSources["observer.py"],
				"concrete.py": observerSources["concrete.py"],
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := testutil.Extract(t, t.TempDir(), tt.sources, nil)
			assert.Empty(t, Observer{}.Detect(facts(ctx)))
		})
	}
}

func TestObserverExplainsLoopCall(t *testing.T) {
	ctx, res := testutil.Extract(t, t.TempDir(), observerSources, nil)
	f := facts(ctx)

	var call extract.UnresolvedCall
	for _, c := range res["subject.py"].Unresolved {
		if c.Callee == "update" {
			call = c
		}
	}
	require.Equal(t, "update", call.Callee)

	inst := Observer{}.ExplainsEdge(call, f)
	require.NotNil(t, inst)
	assert.Equal(t, []models.FunctionID{fid(t, res["concrete.py"], "Concrete.update")}, inst.Implementations)

	call.Callee = "close"
	assert.Nil(t, Observer{}.ExplainsEdge(call, f))
}

func TestFactoryFunction(t *testing.T) {
	for _, name := range []string{"create_handler", "create", "build", "make", "new"} {
		t.Run(name, func(t *testing.T) {
			sources := map[string]string{
				"handlers.py": `class HandlerA:
    def handle(self):
        return "a"

class HandlerB:
    def handle(self):
        return "b"

def ` + name + `(kind):
    if kind == "a":
        return HandlerA()
    return HandlerB()
`,
				"app.py": `from handlers import ` + name + `

def main():
    ` + name + `("a").handle()
`,
			}
			ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)

			got := Factory{}.Detect(facts(ctx))
			require.Len(t, got, 1)
			assert.Equal(t, "handle", got[0].Method)
			assert.Equal(t, name, got[0].DefiningType.Name)
			assert.Equal(t, []models.FunctionID{
				fid(t, res["handlers.py"], "HandlerA.handle"),
				fid(t, res["handlers.py"], "HandlerB.handle"),
			}, got[0].Implementations)
			assert.Equal(t, []models.FunctionID{fid(t, res["app.py"], "main")}, got[0].DispatchSites)
		})
	}
}

func TestFactoryFunctionOverMapping(t *testing.T) {
	sources := map[string]string{
		"handlers.py": `class HandlerA:
    def handle(self):
        return "a"

class HandlerB:
    def handle(self):
        return "b"

HANDLERS = {"a": HandlerA, "b": HandlerB}

def build(kind):
    return HANDLERS[kind]()
`,
		"app.py": `from handlers import build

def main(kind):
    build(kind).handle()
`,
	}
	ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)
	f := facts(ctx)

	require.Len(t, f.Evidence.FactoryFunctions, 1)
	assert.Equal(t, fid(t, res["handlers.py"], "build"), f.Evidence.FactoryFunctions[0].ID)
	assert.Equal(t, []string{"HANDLERS"}, f.Evidence.FactoryFunctions[0].Mappings)

	got := Factory{}.Detect(f)
	require.Len(t, got, 1)
	assert.Equal(t, models.TypeID{Name: "build", Module: res["handlers.py"].File}, got[0].DefiningType)
	assert.Equal(t, []models.FunctionID{
		fid(t, res["handlers.py"], "HandlerA.handle"),
		fid(t, res["handlers.py"], "HandlerB.handle"),
	}, got[0].Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, res["app.py"], "main")}, got[0].DispatchSites)
}

func TestFactoryMapping(t *testing.T) {
	sources := map[string]string{
		"loaders.py": `class Csv:
    def load(self):
        return 1

class Json:
    def load(self):
        return 2

LOADERS = {"csv": Csv, "json": Json}

def read(kind):
    loader = LOADERS[kind]()
    return loader.load()
`,
	}
	ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)
	file := res["loaders.py"]

	got := Factory{}.Detect(facts(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, models.TypeID{Name: "LOADERS", Module: file.File}, got[0].DefiningType)
	assert.Equal(t, []models.FunctionID{fid(t, file, "Csv.load"), fid(t, file, "Json.load")}, got[0].Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, file, "read")}, got[0].DispatchSites)
}

func TestSingleton(t *testing.T) {
	sources := map[string]string{
		"config.py": `class Settings:
    def reload(self):
        return 1

settings = Settings()
`,
		"app.py": `from config import settings

def boot():
    settings.reload()
`,
	}
	ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)
	f := facts(ctx)

	got := Singleton{}.Detect(f)
	require.Len(t, got, 1)
	assert.Equal(t, []models.FunctionID{fid(t, res["config.py"], "Settings.reload")}, got[0].Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, res["app.py"], "boot")}, got[0].DispatchSites)

	var call extract.UnresolvedCall
	for _, c := range res["app.py"].Unresolved {
		if c.Callee == "reload" {
			call = c
		}
	}
	inst := Singleton{}.ExplainsEdge(call, f)
	require.NotNil(t, inst)
	assert.Equal(t, got[0].Implementations, inst.Implementations)
}

func TestStrategy(t *testing.T) {
	sources := map[string]string{
		"strategy.py": `class Strategy:
    def execute(self, data):
        raise NotImplementedError

class Fast(Strategy):
    def execute(self, data):
        return data

class Slow(Strategy):
    def execute(self, data):
        return data * 2

class Runner:
    def __init__(self, strategy):
        self.strategy = strategy

    def run(self, data):
        return self.strategy.execute(data)

def main():
    r = Runner(Fast())
    r.run(1)
`,
	}
	ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)
	file := res["strategy.py"]

	got := Strategy{}.Detect(facts(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, "Runner", got[0].DefiningType.Name)
	assert.Equal(t, []models.FunctionID{fid(t, file, "Fast.execute")}, got[0].Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, file, "Runner.run")}, got[0].DispatchSites)
}

func TestCallback(t *testing.T) {
	sources := map[string]string{
		"events.js": `function onData(x) { return x; }

function wire(emitter) {
  emitter.on("data", onData);
}
`,
	}
	ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)
	file := res["events.js"]

	got := Callback{}.Detect(facts(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, "on", got[0].Method)
	assert.Equal(t, []models.FunctionID{fid(t, file, "onData")}, got[0].Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, file, "wire")}, got[0].DispatchSites)
}

func TestTemplateMethod(t *testing.T) {
	sources := map[string]string{
		"base.py": `class Base:
    def run(self):
        self.step()

    def step(self):
        raise NotImplementedError
`,
		"impl.py": `from base import Base

class Impl(Base):
    def step(self):
        return 1
`,
	}
	ctx, res := testutil.Extract(t, t.TempDir(), sources, nil)

	got := TemplateMethod{}.Detect(facts(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, "step", got[0].Method)
	assert.Equal(t, []models.FunctionID{fid(t, res["impl.py"], "Impl.step")}, got[0].Implementations)
	assert.Equal(t, []models.FunctionID{fid(t, res["base.py"], "Base.run")}, got[0].DispatchSites)
}

func TestByName(t *testing.T) {
	all, err := ByName(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(models.AllPatternKinds()))

	some, err := ByName([]string{"Factory", " observer "})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, models.PatternObserver, some[0].Kind())
	assert.Equal(t, models.PatternFactory, some[1].Kind())

	_, err = ByName([]string{"visitor"})
	assert.Error(t, err)
}
