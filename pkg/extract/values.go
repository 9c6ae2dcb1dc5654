package extract

import (
	"unicode"
	"unicode/utf8"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// value is what an expression may evaluate to: known types, plus slots whose
// facts flow into it.
type value struct {
	types []models.TypeID
	slots []typeflow.Slot
}

func (v *value) add(o value) {
	v.types = append(v.types, o.types...)
	v.slots = append(v.slots, o.slots...)
}

func isUpper(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func (w *walker) valueOf(e *ast.Expr, fr *frame) value {
	var v value
	if e == nil {
		return v
	}
	switch e.Kind {
	case ast.ExprCall:
		if w.isGoAppend(e, fr) {
			for _, a := range e.Args {
				v.add(w.valueOf(a, fr))
			}
			return v
		}
		if t, ok := w.constructorType(e, fr); ok {
			v.types = append(v.types, t)
		}
	case ast.ExprName:
		if w.javaField(e.Name, fr) {
			v.slots = append(v.slots, crossmod.AttributeSlot(fr.class.Type, e.Name))
			return v
		}
		if w.lookupClass(e.Name, fr) == nil && len(w.lookupLocal(e.Name, fr)) == 0 {
			v.slots = append(v.slots, w.varSlot(e.Name, fr))
		}
	case ast.ExprAttribute:
		if e.Object != nil && e.Object.Kind == ast.ExprSelf && fr.class != nil {
			v.slots = append(v.slots, crossmod.AttributeSlot(fr.class.Type, e.Name))
		}
	case ast.ExprCollection, ast.ExprMapping, ast.ExprConditional:
		for _, a := range e.Args {
			v.add(w.valueOf(a, fr))
		}
	case ast.ExprSubscript:
		return w.valueOf(e.Object, fr)
	}
	return v
}

func (w *walker) isGoAppend(e *ast.Expr, fr *frame) bool {
	return w.lang == parser.LangGo && e.Object != nil && e.Object.Kind == ast.ExprName &&
		e.Object.Name == "append" && len(w.lookupLocal("append", fr)) == 0
}

// slotOf returns the slot an assignment target stores into, or the zero slot.
func (w *walker) slotOf(target *ast.Expr, fr *frame) typeflow.Slot {
	switch target.Kind {
	case ast.ExprName:
		if fr.inClass {
			if fr.body != nil {
				return crossmod.AttributeSlot(fr.body.Type, target.Name)
			}
			return typeflow.Slot{}
		}
		if w.javaField(target.Name, fr) {
			return crossmod.AttributeSlot(fr.class.Type, target.Name)
		}
		return w.varSlot(target.Name, fr)
	case ast.ExprAttribute:
		if target.Object != nil && target.Object.Kind == ast.ExprSelf && fr.class != nil {
			return crossmod.AttributeSlot(fr.class.Type, target.Name)
		}
	case ast.ExprSubscript:
		if target.Object != nil {
			return w.slotOf(target.Object, fr)
		}
	}
	return typeflow.Slot{}
}

// varSlot addresses name in the innermost function that binds it, falling
// back to the module.
func (w *walker) varSlot(name string, fr *frame) typeflow.Slot {
	for f := fr; f != nil; f = f.parent {
		if f.owner != nil && w.defs.assigned[f.owner][name] {
			return typeflow.VariableSlot(typeflow.VariableKey(w.file, f.scope, name))
		}
	}
	return typeflow.VariableSlot(typeflow.VariableKey(w.defs.module, crossmod.ModuleFunction, name))
}

// variable reports whether name is bound as a variable, and whether the
// binding is at module level.
func (w *walker) variable(name string, fr *frame) (found, moduleLevel bool) {
	for f := fr; f != nil; f = f.parent {
		if f.owner != nil && w.defs.assigned[f.owner][name] {
			return true, false
		}
	}
	return w.defs.assigned[nil][name], true
}

// javaField reports whether a bare name inside a Java method refers to a
// field of the enclosing class.
func (w *walker) javaField(name string, fr *frame) bool {
	if w.lang != parser.LangJava || fr.class == nil || fr.inClass || fr.owner == nil {
		return false
	}
	if found, moduleLevel := w.variable(name, fr); found && !moduleLevel {
		return false
	}
	return fr.class.fields[name]
}

// selfField returns the field name when e is an attribute of self.
func (w *walker) selfField(e *ast.Expr, fr *frame) (string, bool) {
	if e == nil || fr.class == nil {
		return "", false
	}
	switch e.Kind {
	case ast.ExprAttribute:
		if e.Object != nil && e.Object.Kind == ast.ExprSelf && e.Object.Name != "super" {
			return e.Name, true
		}
	case ast.ExprName:
		if w.javaField(e.Name, fr) {
			return e.Name, true
		}
	}
	return "", false
}

func (w *walker) flowInto(slot typeflow.Slot, v value) {
	for _, t := range v.types {
		w.flow.Record(slot, t)
	}
	for _, s := range v.slots {
		w.flow.RecordFlow(s, slot)
	}
}

// lookupLocal finds the functions name refers to in the lexical scope.
func (w *walker) lookupLocal(name string, fr *frame) []models.FunctionID {
	for f := fr; f != nil; f = f.parent {
		if f.owner == nil {
			continue
		}
		if ids := w.defs.locals[f.owner][name]; len(ids) > 0 {
			return ids
		}
	}
	return w.defs.locals[nil][name]
}

// lookupClass finds a class declared in the file that name refers to.
func (w *walker) lookupClass(name string, fr *frame) *classEntry {
	for f := fr; f != nil; f = f.parent {
		if f.owner == nil {
			continue
		}
		if e := w.defs.localClasses[f.owner][name]; e != nil {
			return e
		}
	}
	return w.defs.top[name]
}

// constructorType returns the type a call instantiates, if it is
// instantiation syntax or a call to something class-like.
func (w *walker) constructorType(call *ast.Expr, fr *frame) (models.TypeID, bool) {
	obj := call.Object
	if obj == nil {
		return models.TypeID{}, false
	}
	goLang := w.lang == parser.LangGo
	switch obj.Kind {
	case ast.ExprName:
		if e := w.lookupClass(obj.Name, fr); e != nil && (call.New || !goLang) {
			return e.Type, true
		}
		if goLang && !call.New {
			return models.TypeID{}, false
		}
		if lookupSet(builtinFuncs, w.lang, obj.Name) {
			return models.TypeID{}, false
		}
		if found, _ := w.variable(obj.Name, fr); found && !call.New {
			return models.TypeID{}, false
		}
		if call.New || isUpper(obj.Name) {
			return w.ctx.ResolveImportedType(obj.Name, w.file), true
		}
	case ast.ExprAttribute:
		if goLang && !call.New {
			return models.TypeID{}, false
		}
		d := obj.DottedName()
		if d == "" || obj.Root().Kind == ast.ExprSelf {
			return models.TypeID{}, false
		}
		if call.New || isUpper(obj.Name) {
			return w.ctx.ResolveImportedType(d, w.file), true
		}
	}
	return models.TypeID{}, false
}

// classMapping returns the classes a mapping literal maps to when every
// value is a class reference.
func (w *walker) classMapping(m *ast.Expr, fr *frame) ([]models.TypeID, bool) {
	if len(m.Args) == 0 {
		return nil, false
	}
	out := make([]models.TypeID, 0, len(m.Args))
	for _, a := range m.Args {
		if a == nil {
			return nil, false
		}
		switch a.Kind {
		case ast.ExprName:
			if e := w.lookupClass(a.Name, fr); e != nil {
				out = append(out, e.Type)
				continue
			}
			if !isUpper(a.Name) {
				return nil, false
			}
			out = append(out, w.ctx.ResolveImportedType(a.Name, w.file))
		case ast.ExprAttribute:
			d := a.DottedName()
			if d == "" || !isUpper(a.Name) {
				return nil, false
			}
			out = append(out, w.ctx.ResolveImportedType(d, w.file))
		default:
			return nil, false
		}
	}
	return out, true
}

// productOf reports whether call produces a factory product: a call to a
// construction-vocabulary function or an instantiation through a class
// mapping.
func (w *walker) productOf(call *ast.Expr, fr *frame) (product, bool) {
	if m := w.mappingOf(call, fr); m != "" {
		return product{factory: m, mapping: true}, true
	}
	if call.Object == nil {
		return product{}, false
	}
	if d := call.Object.DottedName(); d != "" && crossmod.IsFactoryName(d) {
		if call.Object.Kind == ast.ExprName && lookupSet(builtinFuncs, w.lang, d) &&
			!w.imported[d] && len(w.lookupLocal(d, fr)) == 0 {
			return product{}, false
		}
		return product{factory: d}, true
	}
	return product{}, false
}

// mappingOf returns the mapping a call instantiates from: MAPPING[key](),
// MAPPING.get(key)(), or cls() after cls = MAPPING[key].
func (w *walker) mappingOf(call *ast.Expr, fr *frame) string {
	obj := call.Object
	if obj == nil {
		return ""
	}
	switch obj.Kind {
	case ast.ExprSubscript:
		if obj.Object != nil && obj.Object.Kind == ast.ExprName {
			return obj.Object.Name
		}
	case ast.ExprName:
		for f := fr; f != nil; f = f.parent {
			if m, ok := f.classRefs[obj.Name]; ok {
				return m
			}
		}
	case ast.ExprCall:
		get := obj.Object
		if get != nil && get.Kind == ast.ExprAttribute && get.Name == "get" &&
			get.Object != nil && get.Object.Kind == ast.ExprName {
			return get.Object.Name
		}
	}
	return ""
}

func (w *walker) loopVarOf(name string, fr *frame) (loopVar, bool) {
	for f := fr; f != nil; f = f.parent {
		if lv, ok := f.loops[name]; ok {
			return lv, true
		}
	}
	return loopVar{}, false
}

func (w *walker) productVar(name string, fr *frame) (product, bool) {
	for f := fr; f != nil; f = f.parent {
		if p, ok := f.products[name]; ok {
			return p, true
		}
	}
	return product{}, false
}
