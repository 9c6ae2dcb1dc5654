package extract

import (
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// call visits a call expression: receiver and arguments first, then the
// call site itself.
func (w *walker) call(e *ast.Expr, fr *frame) {
	if callee := e.Object; callee != nil {
		switch callee.Kind {
		case ast.ExprName, ast.ExprSelf:
		case ast.ExprAttribute:
			w.expr(callee.Object, fr)
		default:
			w.expr(callee, fr)
		}
	}
	w.prepareIterator(e, fr)
	for _, a := range e.Args {
		w.expr(a, fr)
	}
	if e.Class != nil {
		w.class(e.Class, fr)
	}
	w.site(e, fr)
}

// prepareIterator binds the first parameter of a closure passed to
// xs.forEach and friends as a loop variable over xs.
func (w *walker) prepareIterator(e *ast.Expr, fr *frame) {
	callee := e.Object
	if callee == nil || callee.Kind != ast.ExprAttribute || !iterators[callee.Name] || len(e.Args) == 0 {
		return
	}
	fn := e.Args[0]
	if fn == nil || fn.Kind != ast.ExprFunction || fn.Function == nil || len(fn.Function.Params) == 0 {
		return
	}
	id, ok := w.defs.ids[fn.Function]
	if !ok {
		return
	}
	slot := typeflow.VariableSlot(typeflow.VariableKey(w.file, id.QualifiedName, fn.Function.Params[0].Name))
	w.flowInto(slot, w.valueOf(callee.Object, fr))
	lv := loopVar{slot: slot}
	if field, ok := w.selfField(callee.Object, fr); ok {
		lv.class = fr.class.Type
		lv.field = field
	}
	w.iterParams[fn.Function] = lv
}

func (w *walker) site(e *ast.Expr, fr *frame) {
	callee := e.Object
	if callee == nil {
		return
	}
	args := w.args(e, fr)
	w.closureArgs(e, fr)

	switch callee.Kind {
	case ast.ExprName:
		if crossmod.IsRegistrar(callee.Name) {
			w.registration(callee.Name, args, fr)
		}
		w.nameCall(e, callee.Name, args, fr)
	case ast.ExprAttribute:
		if crossmod.IsRegistrar(callee.Name) {
			w.registration(callee.Name, args, fr)
		}
		w.methodCall(e, callee, args, fr)
	case ast.ExprSelf:
		// super(...) in a JavaScript constructor.
		if callee.Name == "super" && fr.class != nil {
			ctor := crossmod.ConstructorName(w.lang, fr.class.Type.Name)
			w.pending(e, ctor, Receiver{Kind: ReceiverSelf, Class: fr.class.Type, Super: true}, args, fr, false)
		}
	}
}

func (w *walker) args(e *ast.Expr, fr *frame) []ArgFlow {
	if len(e.Args) == 0 {
		return nil
	}
	out := make([]ArgFlow, 0, len(e.Args))
	for _, a := range e.Args {
		if a == nil {
			continue
		}
		v := w.valueOf(a, fr)
		out = append(out, ArgFlow{Keyword: a.Keyword, Types: v.types, Slots: v.slots, Func: w.funcRef(a, fr)})
	}
	return out
}

// funcRef returns the function an argument refers to, if it is a closure,
// a function name, or a bound method of self.
func (w *walker) funcRef(a *ast.Expr, fr *frame) *crossmod.FunctionRef {
	switch a.Kind {
	case ast.ExprFunction:
		if a.Function == nil {
			return nil
		}
		return &crossmod.FunctionRef{ID: w.defs.ids[a.Function], Name: a.Function.Name, File: w.file}
	case ast.ExprName:
		if ids := w.lookupLocal(a.Name, fr); len(ids) == 1 {
			return &crossmod.FunctionRef{ID: ids[0], Name: a.Name, File: w.file}
		}
		if found, _ := w.variable(a.Name, fr); found || w.lookupClass(a.Name, fr) != nil {
			return nil
		}
		if w.moduleAliases[a.Name] || lookupSet(builtinFuncs, w.lang, a.Name) {
			return nil
		}
		return &crossmod.FunctionRef{Name: a.Name, File: w.file}
	case ast.ExprAttribute:
		if a.Object == nil || a.Object.Kind != ast.ExprSelf || fr.class == nil {
			return nil
		}
		ref := &crossmod.FunctionRef{Name: a.Name, File: w.file, Class: fr.class.Type}
		if ids := fr.class.methods[a.Name]; len(ids) == 1 {
			ref.ID = ids[0]
		}
		return ref
	}
	return nil
}

// closureArgs links the caller to every closure it passes as an argument.
func (w *walker) closureArgs(e *ast.Expr, fr *frame) {
	for _, a := range e.Args {
		if a != nil && a.Kind == ast.ExprFunction && a.Function != nil {
			if id, ok := w.defs.ids[a.Function]; ok {
				w.graph.AddEdge(fr.caller, id, models.CallDynamic, ProvenanceClosure)
			}
		}
	}
}

func (w *walker) registration(registrar string, args []ArgFlow, fr *frame) {
	var refs []crossmod.FunctionRef
	for _, a := range args {
		if a.Func != nil {
			refs = append(refs, *a.Func)
		}
	}
	if len(refs) == 0 {
		return
	}
	w.evidence.Callbacks = append(w.evidence.Callbacks, crossmod.CallbackRegistration{
		Caller: fr.caller, Registrar: registrar, Callbacks: refs,
	})
}

func (w *walker) nameCall(e *ast.Expr, name string, args []ArgFlow, fr *frame) {
	if w.lang == parser.LangGo && e.New {
		w.goComposite(e, fr)
		return
	}
	if ids := w.lookupLocal(name, fr); len(ids) > 0 {
		for _, id := range ids {
			w.edge(fr, id, models.CallDirect, ProvenanceLocal)
			w.bindArgs(id, args, false)
		}
		return
	}
	if entry := w.lookupClass(name, fr); entry != nil {
		w.construct(e, entry, args, fr)
		return
	}
	if w.lang == parser.LangJava && fr.class != nil {
		if ids := fr.class.methods[name]; len(ids) > 0 {
			for _, id := range ids {
				w.edge(fr, id, models.CallDirect, ProvenanceSelf)
				w.bindArgs(id, args, true)
			}
			return
		}
		if !w.imported[name] {
			w.pending(e, name, Receiver{Kind: ReceiverSelf, Class: fr.class.Type}, args, fr, false)
			return
		}
	}
	if w.mappingOf(e, fr) != "" {
		return
	}
	if lookupSet(builtinFuncs, w.lang, name) && !w.imported[name] {
		return
	}
	w.pending(e, name, Receiver{}, args, fr, e.New || (isUpper(name) && w.lang != parser.LangGo))
}

// construct links an instantiation of a class declared in the file to its
// constructor. Inherited constructors are left to cross-module resolution.
func (w *walker) construct(e *ast.Expr, entry *classEntry, args []ArgFlow, fr *frame) {
	ctor := crossmod.ConstructorName(w.lang, entry.Type.Name)
	if ctor == "" {
		return
	}
	if ids := entry.methods[ctor]; len(ids) > 0 {
		for _, id := range ids {
			w.edge(fr, id, models.CallDirect, ProvenanceLocal)
			w.bindArgs(id, args, true)
		}
		return
	}
	w.pending(e, entry.Type.Name, Receiver{Kind: ReceiverClass, Class: entry.Type}, args, fr, true)
}

// goComposite stores keyed fields of a struct literal into the attribute
// slots of its type.
func (w *walker) goComposite(e *ast.Expr, fr *frame) {
	t, ok := w.constructorType(e, fr)
	if !ok {
		return
	}
	for _, a := range e.Args {
		if a == nil || a.Keyword == "" {
			continue
		}
		w.flowInto(crossmod.AttributeSlot(t, a.Keyword), w.valueOf(a, fr))
		if a.Kind != ast.ExprName || fr.owner == nil {
			continue
		}
		if idx, ok := w.defs.params[fr.owner][a.Name]; ok {
			w.evidence.Injections = append(w.evidence.Injections, crossmod.Injection{
				Class: t, Field: a.Keyword, Function: fr.caller, Param: idx,
			})
		}
	}
}

func (w *walker) methodCall(e *ast.Expr, callee *ast.Expr, args []ArgFlow, fr *frame) {
	m := callee.Name
	obj := callee.Object
	if obj == nil {
		return
	}
	switch obj.Kind {
	case ast.ExprSelf:
		w.selfCall(e, obj.Name == "super", m, args, fr)
	case ast.ExprAttribute:
		if obj.Object != nil && obj.Object.Kind == ast.ExprSelf && obj.Object.Name != "super" {
			w.attributeCall(e, obj.Name, m, args, fr)
			return
		}
		w.dottedCall(e, obj, m, args, fr)
	case ast.ExprName:
		w.receiverCall(e, obj.Name, m, args, fr)
	case ast.ExprCall:
		w.chainedCall(e, obj, m, args, fr)
	case ast.ExprLiteral:
	default:
		v := w.valueOf(obj, fr)
		rcv := Receiver{Kind: ReceiverExpr, Types: v.types}
		if len(v.slots) > 0 {
			rcv.Slot = v.slots[0]
		}
		w.pending(e, m, rcv, args, fr, false)
	}
}

func (w *walker) selfCall(e *ast.Expr, super bool, m string, args []ArgFlow, fr *frame) {
	cls := fr.class
	if cls == nil {
		w.pending(e, m, Receiver{Kind: ReceiverExpr}, args, fr, false)
		return
	}
	if super {
		w.pending(e, m, Receiver{Kind: ReceiverSelf, Class: cls.Type, Super: true}, args, fr, false)
		return
	}
	w.evidence.SelfCalls = append(w.evidence.SelfCalls, crossmod.SelfCall{Caller: fr.caller, Class: cls.Type, Method: m})
	if ids := cls.methods[m]; len(ids) > 0 {
		for _, id := range ids {
			w.edge(fr, id, models.CallDirect, ProvenanceSelf)
			w.bindArgs(id, args, true)
		}
		return
	}
	w.pending(e, m, Receiver{Kind: ReceiverSelf, Class: cls.Type}, args, fr, false)
}

func (w *walker) attributeCall(e *ast.Expr, field, m string, args []ArgFlow, fr *frame) {
	rcv := Receiver{Kind: ReceiverAttribute, Field: field}
	if fr.class != nil {
		rcv.Class = fr.class.Type
		rcv.Slot = crossmod.AttributeSlot(fr.class.Type, field)
	}
	if w.mutate(rcv.Slot, m, e, fr) {
		return
	}
	if fr.class != nil {
		w.evidence.AttributeDispatches = append(w.evidence.AttributeDispatches, crossmod.AttributeDispatch{
			Caller: fr.caller, Class: fr.class.Type, Field: field, Method: m,
		})
	}
	w.pending(e, m, rcv, args, fr, false)
}

// mutate records the arguments of a container mutation as flowing into
// slot. It reports whether the call is a pure container operation that
// needs no resolution.
func (w *walker) mutate(slot typeflow.Slot, m string, e *ast.Expr, fr *frame) bool {
	if slot.IsZero() || len(e.Args) == 0 {
		return false
	}
	switch {
	case listMutators[m]:
		for _, a := range e.Args {
			w.flowInto(slot, w.valueOf(a, fr))
		}
		return true
	case keyedMutators[m]:
		w.flowInto(slot, w.valueOf(e.Args[len(e.Args)-1], fr))
	}
	return false
}

// dottedCall handles calls on attribute chains not rooted at self:
// mod.f(), mod.member.f(), a.b.c().
func (w *walker) dottedCall(e *ast.Expr, obj *ast.Expr, m string, args []ArgFlow, fr *frame) {
	if d := obj.DottedName(); d != "" {
		if alias, rest := w.splitAlias(d); alias != "" {
			switch {
			case rest == "":
				w.pending(e, m, Receiver{Kind: ReceiverModule, Name: alias}, args, fr, false)
				return
			case !strings.Contains(rest, "."):
				w.evidence.BindingCalls = append(w.evidence.BindingCalls, crossmod.BindingCall{
					Caller: fr.caller, File: w.file, Local: alias, Member: rest, Method: m,
				})
				w.pending(e, m, Receiver{Kind: ReceiverModule, Name: alias, Field: rest}, args, fr, false)
				return
			}
		}
		if root := obj.Root(); root.Kind == ast.ExprName && w.isGlobalObject(root.Name, fr) {
			return
		}
	}
	v := w.valueOf(obj, fr)
	rcv := Receiver{Kind: ReceiverExpr, Types: v.types}
	if len(v.slots) > 0 {
		rcv.Slot = v.slots[0]
	}
	w.pending(e, m, rcv, args, fr, false)
}

// splitAlias finds the longest prefix of a dotted path bound as a module
// alias and returns it with the remainder.
func (w *walker) splitAlias(d string) (alias, rest string) {
	for p := d; p != ""; {
		if w.moduleAliases[p] {
			return p, strings.TrimPrefix(strings.TrimPrefix(d, p), ".")
		}
		i := strings.LastIndexByte(p, '.')
		if i < 0 {
			break
		}
		p = p[:i]
	}
	return "", ""
}

func (w *walker) isGlobalObject(name string, fr *frame) bool {
	if !lookupSet(globalObjects, w.lang, name) || w.imported[name] || w.moduleAliases[name] {
		return false
	}
	found, _ := w.variable(name, fr)
	return !found
}

// receiverCall handles name.m() where name is a variable, module alias,
// imported name or class.
func (w *walker) receiverCall(e *ast.Expr, name, m string, args []ArgFlow, fr *frame) {
	if w.javaField(name, fr) {
		w.attributeCall(e, name, m, args, fr)
		return
	}
	found, moduleLevel := w.variable(name, fr)
	switch {
	case found && !moduleLevel:
		w.variableCall(e, name, m, args, fr)
	case w.moduleAliases[name]:
		w.pending(e, m, Receiver{Kind: ReceiverModule, Name: name}, args, fr, false)
	case w.imported[name]:
		w.evidence.BindingCalls = append(w.evidence.BindingCalls, crossmod.BindingCall{
			Caller: fr.caller, File: w.file, Local: name, Method: m,
		})
		w.pending(e, m, Receiver{Kind: ReceiverImported, Name: name}, args, fr, false)
	case w.lookupClass(name, fr) != nil:
		entry := w.lookupClass(name, fr)
		if ids := entry.methods[m]; len(ids) > 0 {
			for _, id := range ids {
				w.edge(fr, id, models.CallDirect, ProvenanceLocal)
				w.bindArgs(id, args, false)
			}
			return
		}
		w.pending(e, m, Receiver{Kind: ReceiverClass, Class: entry.Type}, args, fr, false)
	case found:
		w.variableCall(e, name, m, args, fr)
	case w.isGlobalObject(name, fr):
	case isUpper(name) && (w.lang == parser.LangJava || w.lang.IsJSFamily()):
		t := w.ctx.ResolveImportedType(name, w.file)
		w.pending(e, m, Receiver{Kind: ReceiverClass, Class: t}, args, fr, false)
	default:
		w.variableCall(e, name, m, args, fr)
	}
}

func (w *walker) variableCall(e *ast.Expr, name, m string, args []ArgFlow, fr *frame) {
	rcv := Receiver{Kind: ReceiverVariable, Name: name, Slot: w.varSlot(name, fr)}
	if w.mutate(rcv.Slot, m, e, fr) {
		return
	}
	if lv, ok := w.loopVarOf(name, fr); ok {
		w.evidence.DispatchLoops = append(w.evidence.DispatchLoops, crossmod.DispatchLoop{
			Caller: fr.caller, Iterated: lv.slot, Class: lv.class, Field: lv.field, Method: m,
		})
	}
	if p, ok := w.productVar(name, fr); ok {
		rcv.Factory, rcv.FactoryMapping = p.factory, p.mapping
		w.evidence.FactoryUses = append(w.evidence.FactoryUses, crossmod.FactoryUse{
			Caller: fr.caller, File: w.file, Factory: p.factory, Mapping: p.mapping, Method: m,
		})
	}
	w.pending(e, m, rcv, args, fr, false)
}

// chainedCall handles f().m(), including super().m() and factory().m().
func (w *walker) chainedCall(e *ast.Expr, inner *ast.Expr, m string, args []ArgFlow, fr *frame) {
	if ic := inner.Object; ic != nil && ic.Kind == ast.ExprName && ic.Name == "super" && w.lang == parser.LangPython {
		if fr.class != nil {
			w.pending(e, m, Receiver{Kind: ReceiverSelf, Class: fr.class.Type, Super: true}, args, fr, false)
		}
		return
	}
	rcv := Receiver{Kind: ReceiverCall}
	if inner.Object != nil {
		rcv.Name = inner.Object.DottedName()
	}
	if t, ok := w.constructorType(inner, fr); ok {
		rcv.Types = []models.TypeID{t}
		if inner.Object.Kind == ast.ExprName {
			if entry := w.lookupClass(inner.Object.Name, fr); entry != nil && len(entry.methods[m]) > 0 {
				for _, id := range entry.methods[m] {
					w.edge(fr, id, models.CallDirect, ProvenanceLocal)
					w.bindArgs(id, args, true)
				}
				return
			}
		}
	}
	if p, ok := w.productOf(inner, fr); ok {
		rcv.Factory, rcv.FactoryMapping = p.factory, p.mapping
		w.evidence.FactoryUses = append(w.evidence.FactoryUses, crossmod.FactoryUse{
			Caller: fr.caller, File: w.file, Factory: p.factory, Mapping: p.mapping, Method: m,
		})
	}
	w.pending(e, m, rcv, args, fr, false)
}

func (w *walker) edge(fr *frame, callee models.FunctionID, kind models.CallKind, provenance string) {
	w.graph.AddEdge(fr.caller, callee, kind, provenance)
}

// bindArgs records argument flow into the parameters of a callee defined in
// the file. viaInstance skips the explicit self parameter.
func (w *walker) bindArgs(id models.FunctionID, args []ArgFlow, viaInstance bool) {
	info := w.defs.infos[id]
	if info == nil {
		return
	}
	BindArgs(w.flow, info, args, viaInstance)
}

// BindArgs records the flow of call arguments into the parameter slots of
// callee. Positional arguments skip an explicit self parameter when the call
// goes through an instance; keyword arguments bind by name.
func BindArgs(tr *typeflow.Tracker, callee *crossmod.FunctionInfo, args []ArgFlow, viaInstance bool) bool {
	offset := 0
	if viaInstance && callee.SelfParam {
		offset = 1
	}
	changed := false
	pos := 0
	for _, a := range args {
		idx := -1
		if a.Keyword != "" {
			idx = callee.ParamIndex(a.Keyword)
		} else {
			idx = pos + offset
			pos++
		}
		if idx < 0 || idx >= len(callee.Params) {
			continue
		}
		ps := typeflow.ParameterSlot(callee.ID, idx)
		for _, t := range a.Types {
			changed = tr.Record(ps, t) || changed
		}
		for _, s := range a.Slots {
			changed = tr.RecordFlow(s, ps) || changed
		}
	}
	return changed
}

func (w *walker) pending(e *ast.Expr, callee string, rcv Receiver, args []ArgFlow, fr *frame, ctor bool) {
	if callee == "" {
		return
	}
	w.unresolved = append(w.unresolved, UnresolvedCall{
		Caller:      fr.caller,
		File:        w.file,
		Line:        e.Line,
		Callee:      callee,
		Receiver:    rcv,
		Args:        args,
		Constructor: ctor,
	})
}
