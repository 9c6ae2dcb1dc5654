package extract

import (
	"slices"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// Edge provenance of calls bound inside one file.
const (
	ProvenanceLocal   = "local"
	ProvenanceSelf    = "self"
	ProvenanceClosure = "closure"
)

type loopVar struct {
	slot  typeflow.Slot
	class models.TypeID
	field string
}

type product struct {
	factory string
	mapping bool
}

// frame is the lexical position of the call pass.
type frame struct {
	owner  *ast.FunctionDef
	caller models.FunctionID
	// scope qualifies the variable keys of owner.
	scope string
	// class is the type of self; body is the class whose body is being
	// visited directly.
	class   *classEntry
	body    *classEntry
	inClass bool
	parent  *frame

	loops     map[string]loopVar
	products  map[string]product
	classRefs map[string]string

	returns        []models.TypeID
	returnSlots    []typeflow.Slot
	returnMappings []string
}

func newFrame(parent *frame) *frame {
	return &frame{
		parent:    parent,
		loops:     make(map[string]loopVar),
		products:  make(map[string]product),
		classRefs: make(map[string]string),
	}
}

// walker is the call pass over one file.
type walker struct {
	ctx  *crossmod.Context
	defs *definitions
	file string
	lang parser.Language

	graph      *callgraph.Graph
	flow       *typeflow.Tracker
	evidence   *crossmod.Evidence
	unresolved []UnresolvedCall

	moduleAliases map[string]bool
	imported      map[string]bool
	iterParams    map[*ast.FunctionDef]loopVar
	factories     []*frame
}

func newWalker(ctx *crossmod.Context, defs *definitions, file *ast.File) *walker {
	w := &walker{
		ctx:           ctx,
		defs:          defs,
		file:          defs.path,
		lang:          defs.lang,
		graph:         callgraph.New(),
		flow:          typeflow.New(),
		evidence:      &crossmod.Evidence{},
		moduleAliases: make(map[string]bool),
		imported:      make(map[string]bool),
		iterParams:    make(map[*ast.FunctionDef]loopVar),
	}
	for _, imp := range file.Imports {
		switch {
		case imp.Wildcard:
		case len(imp.Names) == 0:
			local := imp.Alias
			if local == "" {
				local = imp.Module
			}
			w.moduleAliases[local] = true
		default:
			for _, n := range imp.Names {
				if b, ok := ctx.Binding(defs.path, n.Local()); ok && b.IsModule() {
					w.moduleAliases[n.Local()] = true
					continue
				}
				w.imported[n.Local()] = true
			}
		}
	}
	return w
}

func (w *walker) run(body []*ast.Stmt) {
	for _, id := range w.defs.order {
		w.graph.InsertNode(id)
	}
	mod := newFrame(nil)
	mod.caller = moduleFunction(w.file)
	mod.scope = crossmod.ModuleFunction
	w.stmts(body, mod)

	w.flow.Propagate()
	w.finishFactories()
}

func (w *walker) stmts(list []*ast.Stmt, fr *frame) {
	for _, s := range list {
		w.stmt(s, fr)
	}
}

func (w *walker) stmt(s *ast.Stmt, fr *frame) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.StmtFunction:
		w.function(s.Function, fr)
	case ast.StmtClass:
		w.class(s.Class, fr)
	case ast.StmtExpr:
		w.expr(s.Value, fr)
	case ast.StmtAssign, ast.StmtAugAssign:
		w.assign(s, fr)
	case ast.StmtReturn:
		w.expr(s.Value, fr)
		w.recordReturn(s.Value, fr)
	case ast.StmtFor:
		w.forLoop(s, fr)
	case ast.StmtBranch:
		for _, c := range s.Conditions {
			w.expr(c, fr)
		}
		for _, b := range s.Blocks {
			w.stmts(b, fr)
		}
	}
}

func (w *walker) function(fn *ast.FunctionDef, fr *frame) {
	if fn == nil {
		return
	}
	// Decorators and defaults are evaluated in the enclosing scope.
	for _, dec := range fn.Decorators {
		w.decorator(dec, fr)
	}
	for _, p := range fn.Params {
		w.expr(p.Default, fr)
	}

	id := w.defs.ids[fn]
	nf := newFrame(fr)
	nf.owner = fn
	nf.caller = id
	nf.scope = id.QualifiedName
	switch {
	case w.defs.methodOf[fn] != nil:
		nf.class = w.defs.methodOf[fn]
	case fr.inClass:
		nf.class = fr.body
	default:
		nf.class = fr.class
	}

	selfParam := false
	if info := w.defs.infos[id]; info != nil {
		selfParam = info.SelfParam
	}
	for i, p := range fn.Params {
		if p.Name == "" {
			continue
		}
		slot := w.varSlot(p.Name, nf)
		w.flow.RecordFlow(typeflow.ParameterSlot(id, i), slot)
		if p.Type != "" && (i > 0 || !selfParam) {
			w.flow.Record(slot, w.ctx.ResolveImportedType(p.Type, w.file))
		}
	}
	if lv, ok := w.iterParams[fn]; ok {
		nf.loops[fn.Params[0].Name] = lv
	}

	w.stmts(fn.Body, nf)
	if !fn.Anonymous && crossmod.IsFactoryName(fn.Name) {
		w.factories = append(w.factories, nf)
	}
}

func (w *walker) class(cd *ast.ClassDef, fr *frame) {
	if cd == nil {
		return
	}
	for _, dec := range cd.Decorators {
		w.decorator(dec, fr)
	}
	entry := w.defs.classOf[cd]
	nf := newFrame(fr)
	nf.owner = fr.owner
	nf.caller = fr.caller
	nf.scope = fr.scope
	nf.class = entry
	nf.body = entry
	nf.inClass = true
	w.stmts(cd.Body, nf)
}

// decorator treats a decorator application as a call made by the enclosing
// scope. Java annotations are metadata and are skipped.
func (w *walker) decorator(dec ast.Decorator, fr *frame) {
	if w.lang == parser.LangJava || dec.Name == "" {
		return
	}
	callee := dottedExpr(dec.Name, dec.Line)
	if callee == nil || passiveDecorators[callee.Name] {
		return
	}
	w.expr(&ast.Expr{Kind: ast.ExprCall, Object: callee, Args: dec.Args, Line: dec.Line}, fr)
}

// dottedExpr builds a name/attribute chain from a dotted path.
func dottedExpr(path string, line int) *ast.Expr {
	var e *ast.Expr
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		seg := path[start:i]
		start = i + 1
		if seg == "" {
			return nil
		}
		if e == nil {
			e = &ast.Expr{Kind: ast.ExprName, Name: seg, Line: line}
			continue
		}
		e = &ast.Expr{Kind: ast.ExprAttribute, Name: seg, Object: e, Line: line}
	}
	return e
}

// expr visits the calls, closures and class expressions inside e.
func (w *walker) expr(e *ast.Expr, fr *frame) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprCall:
		w.call(e, fr)
		return
	case ast.ExprFunction:
		w.function(e.Function, fr)
		return
	case ast.ExprClass:
		w.class(e.Class, fr)
		return
	}
	w.expr(e.Object, fr)
	for _, a := range e.Args {
		w.expr(a, fr)
	}
}

func (w *walker) assign(s *ast.Stmt, fr *frame) {
	w.expr(s.Value, fr)
	for _, t := range s.Targets {
		if t == nil || t.Kind == ast.ExprName {
			continue
		}
		w.expr(t.Object, fr)
		for _, a := range t.Args {
			w.expr(a, fr)
		}
	}

	v := w.valueOf(s.Value, fr)
	if s.Annotation != "" {
		v.types = append(v.types, w.ctx.ResolveImportedType(s.Annotation, w.file))
	}
	for _, t := range s.Targets {
		if t == nil {
			continue
		}
		if slot := w.slotOf(t, fr); !slot.IsZero() {
			w.flowInto(slot, v)
		}
		w.assignEvidence(t, s, fr)
	}
}

func (w *walker) assignEvidence(target *ast.Expr, s *ast.Stmt, fr *frame) {
	value := s.Value
	if value == nil {
		return
	}
	switch target.Kind {
	case ast.ExprName:
		name := target.Name
		if fr.owner == nil && !fr.inClass {
			if value.Kind == ast.ExprCall {
				if t, ok := w.constructorType(value, fr); ok {
					w.evidence.ModuleInstances = append(w.evidence.ModuleInstances, crossmod.ModuleInstance{
						File: w.file, Name: name, Type: t, Line: s.Line,
					})
				}
			}
			if value.Kind == ast.ExprMapping {
				if values, ok := w.classMapping(value, fr); ok {
					w.evidence.FactoryMappings = append(w.evidence.FactoryMappings, crossmod.FactoryMapping{
						File: w.file, Name: name, Values: values,
					})
				}
			}
		}
		switch value.Kind {
		case ast.ExprCall:
			if p, ok := w.productOf(value, fr); ok {
				fr.products[name] = p
			}
		case ast.ExprSubscript:
			if value.Object != nil && value.Object.Kind == ast.ExprName {
				fr.classRefs[name] = value.Object.Name
			}
		case ast.ExprName:
			if w.javaField(name, fr) && fr.owner != nil {
				w.injection(name, value.Name, fr)
			}
		}
	case ast.ExprAttribute:
		if target.Object == nil || target.Object.Kind != ast.ExprSelf || fr.class == nil || fr.owner == nil {
			return
		}
		if value.Kind == ast.ExprName {
			w.injection(target.Name, value.Name, fr)
		}
	}
}

// injection records field = param inside a method as an injected collaborator.
func (w *walker) injection(field, param string, fr *frame) {
	if idx, ok := w.defs.params[fr.owner][param]; ok {
		w.evidence.Injections = append(w.evidence.Injections, crossmod.Injection{
			Class: fr.class.Type, Field: field, Function: fr.caller, Param: idx,
		})
	}
}

func (w *walker) forLoop(s *ast.Stmt, fr *frame) {
	w.expr(s.Value, fr)
	if len(s.Targets) != 1 || s.Targets[0] == nil || s.Targets[0].Kind != ast.ExprName {
		w.stmts(s.Body, fr)
		return
	}
	name := s.Targets[0].Name
	slot := w.varSlot(name, fr)
	v := w.valueOf(s.Value, fr)
	if s.Annotation != "" {
		v.types = append(v.types, w.ctx.ResolveImportedType(s.Annotation, w.file))
	}
	w.flowInto(slot, v)

	lv := loopVar{slot: slot}
	if field, ok := w.selfField(s.Value, fr); ok {
		lv.class = fr.class.Type
		lv.field = field
	}
	prev, had := fr.loops[name]
	fr.loops[name] = lv
	w.stmts(s.Body, fr)
	if had {
		fr.loops[name] = prev
	} else {
		delete(fr.loops, name)
	}
}

func (w *walker) recordReturn(value *ast.Expr, fr *frame) {
	if value == nil || fr.owner == nil {
		return
	}
	v := w.valueOf(value, fr)
	fr.returns = append(fr.returns, v.types...)
	fr.returnSlots = append(fr.returnSlots, v.slots...)

	candidates := []*ast.Expr{value}
	if value.Kind == ast.ExprConditional {
		candidates = value.Args
	}
	for _, c := range candidates {
		if c != nil && c.Kind == ast.ExprCall {
			if m := w.mappingOf(c, fr); m != "" {
				fr.returnMappings = append(fr.returnMappings, m)
			}
		}
	}
}

// finishFactories records what each construction-vocabulary function
// returns, once local type flow has settled.
func (w *walker) finishFactories() {
	for _, f := range w.factories {
		types := slices.Clone(f.returns)
		for _, s := range f.returnSlots {
			types = append(types, w.flow.Types(s)...)
		}
		slices.SortFunc(types, models.TypeID.Compare)
		types = slices.Compact(types)
		mappings := slices.Clone(f.returnMappings)
		slices.Sort(mappings)
		mappings = slices.Compact(mappings)
		if len(types) == 0 && len(mappings) == 0 {
			continue
		}
		w.evidence.FactoryFunctions = append(w.evidence.FactoryFunctions, crossmod.FactoryFunction{
			ID: f.caller, Returns: types, Mappings: mappings,
		})
	}
}
