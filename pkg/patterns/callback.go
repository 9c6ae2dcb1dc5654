package patterns

import (
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
)

// Callback links a function that registers callbacks (emitter.on("x", fn))
// to the callbacks it registers.
type Callback struct{}

func (Callback) Kind() models.PatternKind { return models.PatternCallback }

func (c Callback) Detect(f *Facts) []models.PatternInstance {
	b := newBuilder()
	for _, r := range f.Evidence.Callbacks {
		c.add(f, b, r)
	}
	return b.instances()
}

func (c Callback) ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance {
	if !crossmod.IsRegistrar(call.Callee) {
		return nil
	}
	r := crossmod.CallbackRegistration{Caller: call.Caller, Registrar: call.Callee}
	for _, a := range call.Args {
		if a.Func != nil {
			r.Callbacks = append(r.Callbacks, *a.Func)
		}
	}
	b := newBuilder()
	c.add(f, b, r)
	return b.single()
}

func (Callback) add(f *Facts, b *builder, r crossmod.CallbackRegistration) {
	var impls []models.FunctionID
	for _, ref := range r.Callbacks {
		impls = append(impls, resolveRef(f, ref)...)
	}
	b.add(models.PatternCallback, models.TypeID{Name: r.Registrar}, r.Registrar, "",
		impls, []models.FunctionID{r.Caller})
}

// resolveRef returns the definitions a function reference names.
func resolveRef(f *Facts, ref crossmod.FunctionRef) []models.FunctionID {
	switch {
	case !ref.ID.IsZero():
		return []models.FunctionID{ref.ID}
	case ref.Class.Name != "":
		return f.concreteMethod(ref.Class, ref.Name)
	case ref.Name != "":
		return f.resolveName(ref.File, ref.Name)
	}
	return nil
}
