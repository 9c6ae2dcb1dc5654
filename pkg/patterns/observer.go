package patterns

import (
	"slices"

	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
)

// Observer links a loop that invokes an interface method on every element of
// a collection to the implementations the collection may hold. The interface,
// the implementers and the loop must all be present.
type Observer struct{}

func (Observer) Kind() models.PatternKind { return models.PatternObserver }

func (o Observer) Detect(f *Facts) []models.PatternInstance {
	b := newBuilder()
	for _, d := range f.Evidence.DispatchLoops {
		o.loop(f, d, b)
	}
	return b.instances()
}

func (o Observer) ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance {
	b := newBuilder()
	for _, d := range f.loops[call.Caller] {
		if d.Method == call.Callee {
			o.loop(f, d, b)
		}
	}
	return b.single()
}

func (o Observer) loop(f *Facts, d crossmod.DispatchLoop, b *builder) {
	types := f.slotTypes(d.Iterated)
	if d.Field != "" {
		types = append(types, f.Ctx.AttributeTypes(d.Class, d.Field)...)
	}
	for iface, impls := range o.match(f, types, d.Method) {
		b.add(models.PatternObserver, iface, d.Method, "", impls, []models.FunctionID{d.Caller})
	}
}

// match returns, per interface declaring method abstractly, the
// implementations the element types select. Only concrete element types
// select; when the facts name interfaces only, or there is a single
// implementation, every implementation matches.
func (Observer) match(f *Facts, types []models.TypeID, method string) map[models.TypeID][]models.FunctionID {
	declares := func(t models.TypeID) bool {
		return f.Ctx.IsInterface(t) && slices.Contains(f.Ctx.AbstractMethods(t), method)
	}
	var concrete, ifaces []models.TypeID
	for _, t := range types {
		ct, ok := f.Ctx.Canonical(t)
		if !ok {
			continue
		}
		if declares(ct) {
			ifaces = append(ifaces, ct)
		} else {
			concrete = append(concrete, ct)
		}
		for _, a := range f.Ctx.Ancestors(ct) {
			if declares(a) {
				ifaces = append(ifaces, a)
			}
		}
	}
	slices.SortFunc(ifaces, models.TypeID.Compare)
	ifaces = slices.Compact(ifaces)

	out := make(map[models.TypeID][]models.FunctionID)
	for _, iface := range ifaces {
		all := f.Ctx.Implementations(iface, method)
		if len(all) == 0 {
			continue
		}
		if len(concrete) == 0 || len(all) == 1 {
			out[iface] = all
			continue
		}
		var impls []models.FunctionID
		for _, c := range concrete {
			if f.Ctx.IsSubtype(c, iface) {
				impls = append(impls, f.concreteMethod(c, method)...)
			}
		}
		if len(impls) > 0 {
			out[iface] = models.SortedUnique(impls)
		}
	}
	return out
}
