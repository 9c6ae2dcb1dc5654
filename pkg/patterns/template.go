package patterns

import (
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
)

// TemplateMethod links a base-class method calling self.step() to the
// overrides of step in subclasses.
type TemplateMethod struct{}

func (TemplateMethod) Kind() models.PatternKind { return models.PatternTemplateMethod }

func (t TemplateMethod) Detect(f *Facts) []models.PatternInstance {
	b := newBuilder()
	for _, sc := range f.Evidence.SelfCalls {
		t.add(f, b, sc)
	}
	return b.instances()
}

func (t TemplateMethod) ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance {
	if call.Receiver.Kind != extract.ReceiverSelf || call.Receiver.Super || call.Receiver.Class.Name == "" {
		return nil
	}
	b := newBuilder()
	t.add(f, b, crossmod.SelfCall{Caller: call.Caller, Class: call.Receiver.Class, Method: call.Callee})
	return b.single()
}

func (TemplateMethod) add(f *Facts, b *builder, sc crossmod.SelfCall) {
	base, ok := f.Ctx.Canonical(sc.Class)
	if !ok {
		return
	}
	var overrides []models.FunctionID
	for _, d := range f.Ctx.Descendants(base) {
		for _, id := range f.Ctx.OwnMethods(d, sc.Method) {
			if info, ok := f.Ctx.Function(id); ok && !info.Abstract {
				overrides = append(overrides, id)
			}
		}
	}
	b.add(models.PatternTemplateMethod, base, sc.Method, "", overrides, []models.FunctionID{sc.Caller})
}
