// Package patterns recognizes design patterns that route calls through
// indirection the extractor cannot follow: observers iterated in a loop,
// module-level singletons, factories, injected strategies, registered
// callbacks and template methods.
//
// Recognizers are pure functions of a Facts snapshot. They never mutate the
// call graph; the resolver turns their instances into PatternDispatch edges.
package patterns

import (
	"fmt"
	"slices"
	"strings"

	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// Recognizer detects one pattern kind.
type Recognizer interface {
	Kind() models.PatternKind
	// Detect returns every instance supported by the facts, sorted.
	Detect(f *Facts) []models.PatternInstance
	// ExplainsEdge returns the instance that accounts for an unresolved
	// call, or nil.
	ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance
}

// All returns every recognizer in a stable order.
func All() []Recognizer {
	return []Recognizer{
		Observer{},
		Singleton{},
		Factory{},
		Strategy{},
		Callback{},
		TemplateMethod{},
	}
}

// ByName returns the recognizers named in names, in the order of All. An
// empty list selects every recognizer.
func ByName(names []string) ([]Recognizer, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[models.PatternKind]bool, len(names))
	for _, n := range names {
		k := models.PatternKind(strings.ToLower(strings.TrimSpace(n)))
		if !slices.Contains(models.AllPatternKinds(), k) {
			return nil, fmt.Errorf("unknown pattern %q", n)
		}
		want[k] = true
	}
	var out []Recognizer
	for _, r := range all {
		if want[r.Kind()] {
			out = append(out, r)
		}
	}
	return out, nil
}

// Facts is a read-only view of the run state recognizers work from. Build it
// after type flow has been propagated; later facts are not observed.
type Facts struct {
	Ctx      *crossmod.Context
	Evidence *crossmod.Evidence

	loops      map[models.FunctionID][]crossmod.DispatchLoop
	instances  map[string][]crossmod.ModuleInstance
	factories  map[models.FunctionID]crossmod.FactoryFunction
	mappings   map[string]crossmod.FactoryMapping
	injections map[string][]crossmod.Injection
}

func memberKey(module, name string) string {
	return module + "\x00" + name
}

// NewFacts snapshots the evidence of ctx and indexes it.
func NewFacts(ctx *crossmod.Context) *Facts {
	ev := ctx.Evidence()
	f := &Facts{
		Ctx:        ctx,
		Evidence:   ev,
		loops:      make(map[models.FunctionID][]crossmod.DispatchLoop),
		instances:  make(map[string][]crossmod.ModuleInstance),
		factories:  make(map[models.FunctionID]crossmod.FactoryFunction),
		mappings:   make(map[string]crossmod.FactoryMapping),
		injections: make(map[string][]crossmod.Injection),
	}
	for _, d := range ev.DispatchLoops {
		f.loops[d.Caller] = append(f.loops[d.Caller], d)
	}
	for _, mi := range ev.ModuleInstances {
		k := memberKey(ctx.ModuleOf(mi.File), mi.Name)
		f.instances[k] = append(f.instances[k], mi)
	}
	for _, ff := range ev.FactoryFunctions {
		f.factories[ff.ID] = ff
	}
	for _, fm := range ev.FactoryMappings {
		f.mappings[memberKey(ctx.ModuleOf(fm.File), fm.Name)] = fm
	}
	for _, inj := range ev.Injections {
		f.injections[inj.Field] = append(f.injections[inj.Field], inj)
	}
	return f
}

// concreteMethod returns the non-abstract definitions of method that an
// instance of t runs.
func (f *Facts) concreteMethod(t models.TypeID, method string) []models.FunctionID {
	l, ok := f.Ctx.LookupMethod(t, method)
	if !ok || l.Abstract {
		return nil
	}
	var out []models.FunctionID
	for _, id := range l.IDs {
		if info, ok := f.Ctx.Function(id); ok && !info.Abstract {
			out = append(out, id)
		}
	}
	return out
}

// dispatchTargets returns the definitions of method a receiver whose facts
// are types may reach. An interface-like type with no definition of its own
// reaches every implementation.
func (f *Facts) dispatchTargets(types []models.TypeID, method string) []models.FunctionID {
	var out []models.FunctionID
	for _, t := range types {
		ct, ok := f.Ctx.Canonical(t)
		if !ok {
			continue
		}
		if ids := f.concreteMethod(ct, method); len(ids) > 0 {
			out = append(out, ids...)
			continue
		}
		if f.Ctx.IsInterface(ct) {
			out = append(out, f.Ctx.Implementations(ct, method)...)
		}
	}
	return models.SortedUnique(out)
}

func (f *Facts) slotTypes(slots ...typeflow.Slot) []models.TypeID {
	var out []models.TypeID
	for _, s := range slots {
		if !s.IsZero() {
			out = append(out, f.Ctx.Types(s)...)
		}
	}
	return out
}

// resolveName resolves a function name as written in file, including
// alias.name through a module alias.
func (f *Facts) resolveName(file, name string) []models.FunctionID {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return f.Ctx.ResolveFunction(file, name)
	}
	prefix, last := name[:i], name[i+1:]
	if b, ok := f.Ctx.Binding(file, prefix); ok && b.IsModule() {
		return f.Ctx.ModuleMember(b.Module, last)
	}
	// Cls.create() or self.create(): any factory of that name.
	var out []models.FunctionID
	for _, id := range f.Ctx.FunctionsNamed(last) {
		if _, ok := f.factories[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// mapping finds a class mapping referenced by name in file, following
// imports to its defining module.
func (f *Facts) mapping(file, name string) (crossmod.FactoryMapping, bool) {
	if m, ok := f.mappings[memberKey(f.Ctx.ModuleOf(file), name)]; ok {
		return m, true
	}
	b, ok := f.Ctx.Binding(file, name)
	if !ok || b.IsModule() {
		return crossmod.FactoryMapping{}, false
	}
	module, member := f.Ctx.FollowBinding(b.Module, b.Name)
	m, ok := f.mappings[memberKey(module, member)]
	return m, ok
}

// builder merges instances that share a key.
type builder struct {
	byKey map[string]*models.PatternInstance
}

func newBuilder() *builder {
	return &builder{byKey: make(map[string]*models.PatternInstance)}
}

func (b *builder) add(kind models.PatternKind, defining models.TypeID, method, extra string, impls, sites []models.FunctionID) {
	if len(impls) == 0 || len(sites) == 0 {
		return
	}
	k := strings.Join([]string{string(kind), defining.Module, defining.Name, method, extra}, "\x00")
	p := b.byKey[k]
	if p == nil {
		p = &models.PatternInstance{
			Kind:         kind,
			DefiningType: defining,
			Method:       method,
			Provenance:   string(kind),
		}
		b.byKey[k] = p
	}
	p.Implementations = append(p.Implementations, impls...)
	p.DispatchSites = append(p.DispatchSites, sites...)
}

func (b *builder) instances() []models.PatternInstance {
	keys := make([]string, 0, len(b.byKey))
	for k := range b.byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]models.PatternInstance, 0, len(keys))
	for _, k := range keys {
		p := b.byKey[k]
		p.Normalize()
		out = append(out, *p)
	}
	return out
}

// single returns the merged instance of a builder expected to hold at most
// one key group, or nil.
func (b *builder) single() *models.PatternInstance {
	all := b.instances()
	if len(all) == 0 {
		return nil
	}
	p := all[0]
	for _, o := range all[1:] {
		p.Implementations = append(p.Implementations, o.Implementations...)
		p.DispatchSites = append(p.DispatchSites, o.DispatchSites...)
	}
	p.Normalize()
	return &p
}
