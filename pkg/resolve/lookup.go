package resolve

import (
	"slices"

	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/patterns"
)

// Edge provenances produced by the resolver itself. Pattern edges carry the
// recognizer name.
const (
	ProvenanceImport   = "import"
	ProvenanceSelf     = "self"
	ProvenanceTypeFlow = "typeflow"
	ProvenanceBasename = "basename"
)

// containerMethods are method names too generic to bind by basename alone.
var containerMethods = map[string]bool{
	"get": true, "set": true, "add": true, "append": true, "extend": true,
	"insert": true, "remove": true, "push": true, "pop": true, "shift": true,
	"keys": true, "values": true, "items": true, "update": true, "clear": true,
	"copy": true, "join": true, "split": true, "strip": true, "format": true,
	"replace": true, "read": true, "write": true, "close": true, "open": true,
	"map": true, "filter": true, "reduce": true, "forEach": true, "then": true,
	"catch": true, "toString": true, "equals": true, "hashCode": true,
	"size": true, "length": true, "put": true, "contains": true, "has": true,
	"delete": true, "String": true, "Error": true, "Close": true, "Len": true,
}

// viaInstance reports whether the callee runs bound to an instance, so the
// first declared parameter of a method is the receiver.
func viaInstance(call extract.UnresolvedCall) bool {
	switch call.Receiver.Kind {
	case extract.ReceiverNone, extract.ReceiverModule, extract.ReceiverImported, extract.ReceiverClass:
		return call.Constructor
	}
	return true
}

func direct(ids []models.FunctionID, provenance string) []Target {
	out := make([]Target, 0, len(ids))
	for _, id := range ids {
		out = append(out, Target{Callee: id, Kind: models.CallDirect, Provenance: provenance})
	}
	return out
}

// concrete returns the non-abstract definitions of name reachable from t.
// A placeholder body is skipped when a subtype of t overrides it.
func (r *Resolver) concrete(t models.TypeID, name string) []models.FunctionID {
	ids, owner := r.implemented(t, name)
	if len(ids) > 0 && r.overridden(t, owner, ids, name) {
		return nil
	}
	return ids
}

// implemented returns the non-abstract definitions of name on t or the
// nearest base declaring it, and that base.
func (r *Resolver) implemented(t models.TypeID, name string) ([]models.FunctionID, models.TypeID) {
	l, ok := r.ctx.LookupMethod(t, name)
	if !ok || l.Abstract {
		return nil, models.TypeID{}
	}
	var out []models.FunctionID
	for _, id := range l.IDs {
		if info, ok := r.ctx.Function(id); ok && !info.Abstract {
			out = append(out, id)
		}
	}
	return out, l.Owner
}

// overridden reports whether ids are interface-like stubs on owner that a
// subtype of t implements with a real body.
func (r *Resolver) overridden(t, owner models.TypeID, ids []models.FunctionID, name string) bool {
	for _, id := range ids {
		if info, ok := r.ctx.Function(id); !ok || !info.Stub {
			return false
		}
	}
	if !slices.Contains(r.ctx.AbstractMethods(owner), name) {
		return false
	}
	for _, d := range r.ctx.Descendants(t) {
		for _, id := range r.ctx.OwnMethods(d, name) {
			if info, ok := r.ctx.Function(id); ok && !info.Abstract && !info.Stub {
				return true
			}
		}
	}
	return false
}

// exact binds a call through import tables, self and receiver types. It
// returns nil when the call needs a fallback.
func (r *Resolver) exact(call extract.UnresolvedCall) []Target {
	rc := call.Receiver
	switch rc.Kind {
	case extract.ReceiverNone:
		if b, ok := r.ctx.Binding(call.File, call.Callee); ok && b.External {
			return nil
		}
		return direct(r.ctx.ResolveFunction(call.File, call.Callee), ProvenanceImport)

	case extract.ReceiverSelf:
		if rc.Super {
			return direct(r.superTargets(call), ProvenanceSelf)
		}
		return direct(r.concrete(rc.Class, call.Callee), ProvenanceSelf)

	case extract.ReceiverModule:
		b, ok := r.ctx.Binding(call.File, rc.Name)
		if !ok || b.External || !b.IsModule() {
			return nil
		}
		if rc.Field == "" {
			return direct(r.ctx.ModuleMember(b.Module, call.Callee), ProvenanceImport)
		}
		return direct(r.concrete(models.TypeID{Name: rc.Field, Module: b.Module}, call.Callee), ProvenanceImport)

	case extract.ReceiverImported:
		b, ok := r.ctx.Binding(call.File, rc.Name)
		if !ok || b.External || b.IsModule() {
			return nil
		}
		return direct(r.concrete(models.TypeID{Name: b.Name, Module: b.Module}, call.Callee), ProvenanceImport)

	case extract.ReceiverClass:
		if call.Constructor {
			return direct(r.ctx.Constructors(rc.Class), ProvenanceImport)
		}
		return direct(r.concrete(rc.Class, call.Callee), ProvenanceImport)
	}

	var out []Target
	for _, t := range r.receiverTypes(call) {
		for _, id := range r.concrete(t, call.Callee) {
			out = append(out, Target{Callee: id, Kind: models.CallDynamic, Provenance: ProvenanceTypeFlow})
		}
	}
	return out
}

// superTargets looks the callee up on the bases of the enclosing class. A
// constructor call through super binds the base constructor, and a
// placeholder body is bound even though the caller overrides it.
func (r *Resolver) superTargets(call extract.UnresolvedCall) []models.FunctionID {
	ci, ok := r.ctx.Class(call.Receiver.Class)
	if !ok {
		return nil
	}
	ctor := crossmod.ConstructorName(ci.Language, ci.Type.Name)
	for _, base := range ci.Bases {
		if ctor != "" && call.Callee == ctor {
			if ids := r.ctx.Constructors(base); len(ids) > 0 {
				return ids
			}
			continue
		}
		if ids, _ := r.implemented(base, call.Callee); len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// receiverTypes collects what the receiver of an instance call may hold.
func (r *Resolver) receiverTypes(call extract.UnresolvedCall) []models.TypeID {
	rc := call.Receiver
	ts := slices.Clone(rc.Types)
	if !rc.Slot.IsZero() {
		ts = append(ts, r.ctx.Types(rc.Slot)...)
	}
	if rc.Kind == extract.ReceiverAttribute {
		ts = append(ts, r.ctx.AttributeTypes(rc.Class, rc.Field)...)
	}
	return r.ctx.ConcreteTypes(ts)
}

// basenameCandidate returns the single definition named like the callee, of
// the right shape for the receiver, or false.
func (r *Resolver) basenameCandidate(call extract.UnresolvedCall) (models.FunctionID, bool) {
	rc := call.Receiver
	switch rc.Kind {
	case extract.ReceiverModule:
		return models.FunctionID{}, false
	case extract.ReceiverSelf:
		if rc.Class.Name != "" {
			return models.FunctionID{}, false
		}
	case extract.ReceiverNone:
		if b, ok := r.ctx.Binding(call.File, call.Callee); ok && b.External {
			return models.FunctionID{}, false
		}
	case extract.ReceiverImported:
		if b, ok := r.ctx.Binding(call.File, rc.Name); ok && b.External {
			return models.FunctionID{}, false
		}
	}
	if containerMethods[call.Callee] {
		return models.FunctionID{}, false
	}

	wantMethod := rc.Kind != extract.ReceiverNone
	var found []models.FunctionID
	for _, id := range r.ctx.FunctionsNamed(call.Callee) {
		info, ok := r.ctx.Function(id)
		if !ok || info.IsMethod() != wantMethod {
			continue
		}
		found = append(found, id)
		if len(found) > 1 {
			return models.FunctionID{}, false
		}
	}
	if len(found) != 1 {
		return models.FunctionID{}, false
	}
	return found[0], true
}

// explain asks every recognizer about the call and unions the answers.
func (r *Resolver) explain(call extract.UnresolvedCall, facts *patterns.Facts) []Target {
	type key struct {
		callee     models.FunctionID
		provenance string
	}
	seen := make(map[key]bool)
	var out []Target
	for _, rec := range r.recognizers {
		inst := rec.ExplainsEdge(call, facts)
		if inst == nil {
			continue
		}
		for _, impl := range inst.Implementations {
			k := key{impl, inst.Provenance}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, Target{Callee: impl, Kind: models.CallPatternDispatch, Provenance: inst.Provenance})
		}
	}
	return out
}

// resolve runs the lookup ladder for one call. It reads the context only.
func (r *Resolver) resolve(call extract.UnresolvedCall, facts *patterns.Facts) Resolution {
	if ts := r.exact(call); len(ts) > 0 {
		return Resolution{Call: call, Step: StepExact, Targets: ts}
	}
	if r.basename {
		if id, ok := r.basenameCandidate(call); ok {
			return Resolution{Call: call, Step: StepBasename, Targets: []Target{
				{Callee: id, Kind: models.CallDynamic, Provenance: ProvenanceBasename},
			}}
		}
	}
	if ts := r.explain(call, facts); len(ts) > 0 {
		return Resolution{Call: call, Step: StepPattern, Targets: ts}
	}
	return Resolution{Call: call, Step: StepDropped}
}
