package patterns

import (
	"slices"

	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
)

// Factory links a method called on a factory product to that method on
// every class the factory may produce. A factory is a construction-vocabulary
// function returning more than one concrete type, or a module-level mapping
// whose values are all classes.
type Factory struct{}

func (Factory) Kind() models.PatternKind { return models.PatternFactory }

func (fa Factory) Detect(f *Facts) []models.PatternInstance {
	b := newBuilder()
	for _, u := range f.Evidence.FactoryUses {
		fa.use(f, b, u)
	}
	return b.instances()
}

func (fa Factory) ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance {
	if call.Receiver.Factory == "" {
		return nil
	}
	b := newBuilder()
	fa.use(f, b, crossmod.FactoryUse{
		Caller:  call.Caller,
		File:    call.File,
		Factory: call.Receiver.Factory,
		Mapping: call.Receiver.FactoryMapping,
		Method:  call.Callee,
	})
	return b.single()
}

func (fa Factory) use(f *Facts, b *builder, u crossmod.FactoryUse) {
	sites := []models.FunctionID{u.Caller}
	if u.Mapping {
		m, ok := f.mapping(u.File, u.Factory)
		if !ok {
			return
		}
		defining := models.TypeID{Name: m.Name, Module: f.Ctx.ModuleOf(m.File)}
		b.add(models.PatternFactory, defining, u.Method, "", f.dispatchTargets(m.Values, u.Method), sites)
		return
	}
	for _, id := range f.resolveName(u.File, u.Factory) {
		types, ok := fa.products(f, id)
		if !ok {
			continue
		}
		defining := models.TypeID{Name: id.QualifiedName, Module: f.Ctx.ModuleOf(id.File)}
		b.add(models.PatternFactory, defining, u.Method, "", f.dispatchTargets(types, u.Method), sites)
	}
}

// products returns the types factory id may return. A function qualifies
// when it returns more than one type or instantiates through a mapping.
func (Factory) products(f *Facts, id models.FunctionID) ([]models.TypeID, bool) {
	ff, ok := f.factories[id]
	if !ok {
		return nil, false
	}
	types := slices.Clone(ff.Returns)
	for _, name := range ff.Mappings {
		if m, ok := f.mapping(id.File, name); ok {
			types = append(types, m.Values...)
		}
	}
	slices.SortFunc(types, models.TypeID.Compare)
	types = slices.Compact(types)
	if len(types) < 2 && len(ff.Mappings) == 0 {
		return nil, false
	}
	return types, true
}
