package extract

import (
	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
)

// classEntry is a class-like declaration of the file, or a Go receiver type
// whose declaration may live in another file of the package.
type classEntry struct {
	Type    models.TypeID
	Def     *ast.ClassDef
	methods map[string][]models.FunctionID
	// fields are names assigned directly in the class body.
	fields map[string]bool
}

// defScope is the lexical position of the definition pass.
type defScope struct {
	prefix string
	// owner is the nearest enclosing function; nil at module level.
	owner *ast.FunctionDef
	// class is the named class whose body is being visited directly.
	class   *classEntry
	inClass bool
}

// definitions is everything the definition pass learns about one file. The
// call pass reads it; nothing in it changes afterwards.
type definitions struct {
	path   string
	lang   parser.Language
	module string

	ids     map[*ast.FunctionDef]models.FunctionID
	infos   map[models.FunctionID]*crossmod.FunctionInfo
	order   []models.FunctionID
	classes []*classEntry
	classOf map[*ast.ClassDef]*classEntry
	// top holds module-level classes and Go receiver types by name.
	top          map[string]*classEntry
	localClasses map[*ast.FunctionDef]map[string]*classEntry
	// locals holds functions callable by bare name, per enclosing function;
	// the nil key is module level.
	locals   map[*ast.FunctionDef]map[string][]models.FunctionID
	assigned map[*ast.FunctionDef]map[string]bool
	params   map[*ast.FunctionDef]map[string]int
	methodOf map[*ast.FunctionDef]*classEntry
}

func define(file *ast.File, path, module string) *definitions {
	d := &definitions{
		path:         path,
		lang:         file.Language,
		module:       module,
		ids:          make(map[*ast.FunctionDef]models.FunctionID),
		infos:        make(map[models.FunctionID]*crossmod.FunctionInfo),
		classOf:      make(map[*ast.ClassDef]*classEntry),
		top:          make(map[string]*classEntry),
		localClasses: make(map[*ast.FunctionDef]map[string]*classEntry),
		locals:       make(map[*ast.FunctionDef]map[string][]models.FunctionID),
		assigned:     make(map[*ast.FunctionDef]map[string]bool),
		params:       make(map[*ast.FunctionDef]map[string]int),
		methodOf:     make(map[*ast.FunctionDef]*classEntry),
	}
	d.stmts(file.Body, defScope{})
	return d
}

func join(prefix, seg string) string {
	switch {
	case seg == "":
		return prefix
	case prefix == "":
		return seg
	}
	return prefix + "." + seg
}

func (d *definitions) stmts(list []*ast.Stmt, sc defScope) {
	for _, s := range list {
		d.stmt(s, sc)
	}
}

func (d *definitions) stmt(s *ast.Stmt, sc defScope) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.StmtFunction:
		d.function(s.Function, sc)
		return
	case ast.StmtClass:
		d.class(s.Class, sc)
		return
	case ast.StmtAssign, ast.StmtAugAssign, ast.StmtFor:
		for _, t := range s.Targets {
			switch {
			case !sc.inClass:
				d.noteAssigned(sc.owner, t)
			case sc.class != nil && t != nil:
				if t.Kind == ast.ExprName || (t.Kind == ast.ExprAttribute && t.Object != nil && t.Object.Kind == ast.ExprSelf) {
					sc.class.fields[t.Name] = true
				}
			}
		}
	}
	for _, t := range s.Targets {
		d.expr(t, sc)
	}
	d.expr(s.Value, sc)
	for _, c := range s.Conditions {
		d.expr(c, sc)
	}
	d.stmts(s.Body, sc)
	for _, b := range s.Blocks {
		d.stmts(b, sc)
	}
}

func (d *definitions) noteAssigned(owner *ast.FunctionDef, target *ast.Expr) {
	if target == nil {
		return
	}
	switch target.Kind {
	case ast.ExprName:
		set := d.assigned[owner]
		if set == nil {
			set = make(map[string]bool)
			d.assigned[owner] = set
		}
		set[target.Name] = true
	case ast.ExprCollection:
		for _, a := range target.Args {
			d.noteAssigned(owner, a)
		}
	}
}

// expr defines the closures and class expressions nested in e.
func (d *definitions) expr(e *ast.Expr, sc defScope) {
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch {
		case x.Kind == ast.ExprFunction && x.Function != nil:
			d.function(x.Function, sc)
		case x.Kind == ast.ExprClass && x.Class != nil:
			d.class(x.Class, sc)
		case x.Kind == ast.ExprCall && x.Class != nil:
			d.class(x.Class, sc)
		}
		return true
	})
}

func (d *definitions) function(fn *ast.FunctionDef, sc defScope) {
	for _, dec := range fn.Decorators {
		for _, a := range dec.Args {
			d.expr(a, sc)
		}
	}

	seg := fn.Name
	var owner *classEntry
	if sc.inClass {
		owner = sc.class
	}
	if d.lang == parser.LangGo && fn.Receiver != "" {
		seg = fn.Receiver + "." + fn.Name
		owner = d.receiver(fn.Receiver)
	}
	id := models.FunctionID{QualifiedName: join(sc.prefix, seg), File: d.path, Line: fn.Line}
	d.ids[fn] = id

	info := &crossmod.FunctionInfo{
		ID:        id,
		Module:    d.module,
		Abstract:  fn.Abstract,
		Stub:      fn.Stub,
		Static:    fn.Static,
		Anonymous: fn.Anonymous,
	}
	params := make(map[string]int, len(fn.Params))
	for i, p := range fn.Params {
		info.Params = append(info.Params, p.Name)
		if p.Name != "" {
			params[p.Name] = i
			d.noteAssigned(fn, &ast.Expr{Kind: ast.ExprName, Name: p.Name})
		}
	}
	d.params[fn] = params

	switch {
	case owner != nil && !fn.Anonymous:
		info.Class = owner.Type
		info.Member = fn.Name
		info.SelfParam = d.lang == parser.LangPython && !fn.Static && len(fn.Params) > 0
		owner.methods[fn.Name] = append(owner.methods[fn.Name], id)
		d.methodOf[fn] = owner
	case !fn.Anonymous && !sc.inClass:
		byName := d.locals[sc.owner]
		if byName == nil {
			byName = make(map[string][]models.FunctionID)
			d.locals[sc.owner] = byName
		}
		byName[fn.Name] = append(byName[fn.Name], id)
	}
	d.infos[id] = info
	d.order = append(d.order, id)

	inner := defScope{prefix: id.QualifiedName, owner: fn}
	for _, p := range fn.Params {
		d.expr(p.Default, inner)
	}
	d.stmts(fn.Body, inner)
}

func (d *definitions) class(cd *ast.ClassDef, sc defScope) {
	for _, dec := range cd.Decorators {
		for _, a := range dec.Args {
			d.expr(a, sc)
		}
	}
	seg := cd.Name
	if d.lang == parser.LangGo && cd.Kind != ast.ClassInterface {
		seg = ""
	}
	var entry *classEntry
	if cd.Name != "" {
		entry = d.declare(cd, sc)
	}
	d.stmts(cd.Body, defScope{prefix: join(sc.prefix, seg), owner: sc.owner, class: entry, inClass: true})
}

func (d *definitions) declare(cd *ast.ClassDef, sc defScope) *classEntry {
	var entry *classEntry
	topLevel := sc.owner == nil && !sc.inClass
	if topLevel {
		entry = d.top[cd.Name]
	}
	if entry == nil || entry.Def != nil {
		entry = d.newEntry(cd.Name)
	}
	entry.Def = cd
	d.classOf[cd] = entry
	switch {
	case topLevel:
		d.top[cd.Name] = entry
	case !sc.inClass:
		byName := d.localClasses[sc.owner]
		if byName == nil {
			byName = make(map[string]*classEntry)
			d.localClasses[sc.owner] = byName
		}
		byName[cd.Name] = entry
	}
	return entry
}

func (d *definitions) newEntry(name string) *classEntry {
	e := &classEntry{
		Type:    models.TypeID{Name: name, Module: d.module},
		methods: make(map[string][]models.FunctionID),
		fields:  make(map[string]bool),
	}
	d.classes = append(d.classes, e)
	return e
}

// receiver returns the entry of a Go receiver type, which the file may not
// declare.
func (d *definitions) receiver(name string) *classEntry {
	if e, ok := d.top[name]; ok {
		return e
	}
	e := d.newEntry(name)
	d.top[name] = e
	return e
}

// register publishes the classes and functions of the file to ctx.
func (d *definitions) register(ctx *crossmod.Context) {
	for _, e := range d.classes {
		if e.Def == nil {
			continue
		}
		info := crossmod.ClassInfo{
			Type:     e.Type,
			File:     d.path,
			Line:     e.Def.Line,
			Language: d.lang,
			Kind:     e.Def.Kind,
			Abstract: e.Def.Abstract,
		}
		for _, b := range append(append([]string(nil), e.Def.Bases...), e.Def.Interfaces...) {
			if t := ctx.ResolveImportedType(b, d.path); t.Name != "" {
				info.Bases = append(info.Bases, t)
			}
		}
		ctx.RegisterClass(info)
		if e.Def.Kind == ast.ClassInterface {
			ctx.RegisterInterface(e.Type)
		}
		for _, base := range info.Bases {
			for _, ids := range e.methods {
				for _, id := range ids {
					if !d.infos[id].Abstract {
						ctx.RegisterImplementation(base, id)
					}
				}
			}
		}
	}
	ctx.RegisterFunction(crossmod.FunctionInfo{
		ID:     moduleFunction(d.path),
		Module: d.module,
	})
	for _, id := range d.order {
		ctx.RegisterFunction(*d.infos[id])
	}
}

func moduleFunction(path string) models.FunctionID {
	return models.FunctionID{QualifiedName: crossmod.ModuleFunction, File: path}
}
