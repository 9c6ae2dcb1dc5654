package patterns

import (
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// Strategy links a method invoked through an injected collaborator
// (self.strategy.run()) to the implementations that may have been injected.
type Strategy struct{}

func (Strategy) Kind() models.PatternKind { return models.PatternStrategy }

func (s Strategy) Detect(f *Facts) []models.PatternInstance {
	b := newBuilder()
	for _, d := range f.Evidence.AttributeDispatches {
		s.add(f, b, d)
	}
	return b.instances()
}

func (s Strategy) ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance {
	if call.Receiver.Kind != extract.ReceiverAttribute || call.Receiver.Class.Name == "" {
		return nil
	}
	b := newBuilder()
	s.add(f, b, crossmod.AttributeDispatch{
		Caller: call.Caller,
		Class:  call.Receiver.Class,
		Field:  call.Receiver.Field,
		Method: call.Callee,
	})
	return b.single()
}

func (s Strategy) add(f *Facts, b *builder, d crossmod.AttributeDispatch) {
	injected := s.injections(f, d.Class, d.Field)
	if len(injected) == 0 {
		return
	}
	types := f.Ctx.AttributeTypes(d.Class, d.Field)
	for _, inj := range injected {
		types = append(types, f.slotTypes(typeflow.ParameterSlot(inj.Function, inj.Param))...)
	}
	b.add(models.PatternStrategy, d.Class, d.Method, d.Field,
		f.dispatchTargets(types, d.Method), []models.FunctionID{d.Caller})
}

// injections returns the injections of field on class or on a class related
// to it by inheritance.
func (Strategy) injections(f *Facts, class models.TypeID, field string) []crossmod.Injection {
	var out []crossmod.Injection
	for _, inj := range f.injections[field] {
		if inj.Class == class || f.Ctx.IsSubtype(class, inj.Class) || f.Ctx.IsSubtype(inj.Class, class) {
			out = append(out, inj)
		}
	}
	return out
}
