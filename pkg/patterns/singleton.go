package patterns

import (
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
)

// Singleton links a method called on an imported module-level instance to
// the method of the instantiated class.
type Singleton struct{}

func (Singleton) Kind() models.PatternKind { return models.PatternSingleton }

func (s Singleton) Detect(f *Facts) []models.PatternInstance {
	b := newBuilder()
	for _, bc := range f.Evidence.BindingCalls {
		s.add(f, b, bc)
	}
	return b.instances()
}

func (s Singleton) ExplainsEdge(call extract.UnresolvedCall, f *Facts) *models.PatternInstance {
	bc := crossmod.BindingCall{Caller: call.Caller, File: call.File, Method: call.Callee}
	switch {
	case call.Receiver.Kind == extract.ReceiverImported:
		bc.Local = call.Receiver.Name
	case call.Receiver.Kind == extract.ReceiverModule && call.Receiver.Field != "":
		bc.Local, bc.Member = call.Receiver.Name, call.Receiver.Field
	default:
		return nil
	}
	b := newBuilder()
	s.add(f, b, bc)
	return b.single()
}

func (Singleton) add(f *Facts, b *builder, bc crossmod.BindingCall) {
	for _, inst := range instancesFor(f, bc.File, bc.Local, bc.Member) {
		b.add(models.PatternSingleton, inst.Type, bc.Method, "",
			f.concreteMethod(inst.Type, bc.Method), []models.FunctionID{bc.Caller})
	}
}

// instancesFor returns the module-level instances an imported name refers
// to: local bound by a from-import, or member of the module bound to local.
func instancesFor(f *Facts, file, local, member string) []crossmod.ModuleInstance {
	b, ok := f.Ctx.Binding(file, local)
	if !ok {
		return nil
	}
	module, name := b.Module, b.Name
	switch {
	case member != "" && b.IsModule():
		name = member
	case member != "" || b.IsModule():
		return nil
	}
	module, name = f.Ctx.FollowBinding(module, name)
	return f.instances[memberKey(module, name)]
}
