package crossmod

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
)

// ModuleFunction is the pseudo-function that owns calls made at module,
// package or class-body level. It sits at line 0 so it never collides with a
// real definition.
const ModuleFunction = "<module>"

// ClassInfo describes a registered class, interface or struct.
type ClassInfo struct {
	Type     models.TypeID   `json:"type"`
	File     string          `json:"file"`
	Line     int             `json:"line"`
	Language parser.Language `json:"language"`
	Kind     ast.ClassKind   `json:"kind"`
	// Bases holds extended classes, implemented interfaces and, for Go,
	// embedded types, resolved through the import table of File.
	Bases    []models.TypeID `json:"bases,omitempty"`
	Abstract bool            `json:"abstract,omitempty"`
}

// FunctionInfo describes a registered definition.
type FunctionInfo struct {
	ID     models.FunctionID `json:"id"`
	Module string            `json:"module"`
	// Class is the enclosing class or Go receiver type; zero for free functions.
	Class models.TypeID `json:"class"`
	// Member is the name the definition is looked up by: the method name for
	// methods, the qualified name otherwise.
	Member    string   `json:"member"`
	Params    []string `json:"params,omitempty"`
	SelfParam bool     `json:"self_param,omitempty"`
	Abstract  bool     `json:"abstract,omitempty"`
	Stub      bool     `json:"stub,omitempty"`
	Static    bool     `json:"static,omitempty"`
	Anonymous bool     `json:"anonymous,omitempty"`
}

// IsMethod reports whether the definition belongs to a class.
func (f *FunctionInfo) IsMethod() bool {
	return f.Class.Name != ""
}

// ParamIndex returns the position of the named parameter, or -1.
func (f *FunctionInfo) ParamIndex(name string) int {
	return slices.Index(f.Params, name)
}

// RegisterClass records a class. Re-registering the same type replaces it.
func (c *Context) RegisterClass(info ClassInfo) {
	info.File = filepath.Clean(info.File)
	info.Bases = slices.Clone(info.Bases)

	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.classes[info.Type] = &info
	c.noteFileLocked(info.File)
	c.version++
}

// RegisterFunction records a definition and indexes it by class member name,
// by module member name and by basename.
func (c *Context) RegisterFunction(info FunctionInfo) {
	info.ID.File = filepath.Clean(info.ID.File)
	info.Params = slices.Clone(info.Params)
	if info.Module == "" {
		info.Module = moduleOf(info.ID.File)
	}
	if info.Member == "" {
		info.Member = info.ID.QualifiedName
		if info.IsMethod() {
			info.Member = info.ID.Name()
		}
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()
	if _, ok := c.functions[info.ID]; ok {
		c.functions[info.ID] = &info
		return
	}
	c.functions[info.ID] = &info
	if info.IsMethod() {
		byName := c.methods[info.Class]
		if byName == nil {
			byName = make(map[string][]models.FunctionID)
			c.methods[info.Class] = byName
		}
		byName[info.Member] = insertSorted(byName[info.Member], info.ID)
	} else {
		byName := c.members[info.Module]
		if byName == nil {
			byName = make(map[string][]models.FunctionID)
			c.members[info.Module] = byName
		}
		byName[info.Member] = insertSorted(byName[info.Member], info.ID)
	}
	if !info.Anonymous && info.ID.QualifiedName != ModuleFunction {
		name := info.ID.Name()
		c.basenames[name] = insertSorted(c.basenames[name], info.ID)
	}
	c.noteFileLocked(info.ID.File)
	c.version++
}

func insertSorted(ids []models.FunctionID, id models.FunctionID) []models.FunctionID {
	i, found := slices.BinarySearchFunc(ids, id, models.FunctionID.Compare)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

// Class returns the registered class t canonically refers to.
func (c *Context) Class(t models.TypeID) (ClassInfo, bool) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	ct, ok := c.canonicalLocked(t, nil)
	if !ok {
		return ClassInfo{}, false
	}
	return *c.classes[ct], true
}

// Classes returns every registered class, sorted by type.
func (c *Context) Classes() []ClassInfo {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	out := make([]ClassInfo, 0, len(c.classes))
	for _, ci := range c.classes {
		out = append(out, *ci)
	}
	slices.SortFunc(out, func(a, b ClassInfo) int { return a.Type.Compare(b.Type) })
	return out
}

// Function returns the registered definition with the given id.
func (c *Context) Function(id models.FunctionID) (FunctionInfo, bool) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	f, ok := c.functions[id]
	if !ok {
		return FunctionInfo{}, false
	}
	return *f, true
}

// Functions returns every registered definition id, sorted.
func (c *Context) Functions() []models.FunctionID {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	out := make([]models.FunctionID, 0, len(c.functions))
	for id := range c.functions {
		out = append(out, id)
	}
	slices.SortFunc(out, models.FunctionID.Compare)
	return out
}

// MethodLookup is the result of a method lookup along the base-class chain.
type MethodLookup struct {
	Owner models.TypeID
	IDs   []models.FunctionID
	// Abstract is set when every definition found is abstract.
	Abstract bool
}

// OwnMethods returns the definitions of name declared directly on t.
func (c *Context) OwnMethods(t models.TypeID, name string) []models.FunctionID {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	ct, _ := c.canonicalLocked(t, nil)
	return slices.Clone(c.methods[ct][name])
}

// MethodNames returns the names of the methods declared directly on t, sorted.
func (c *Context) MethodNames(t models.TypeID) []string {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	ct, _ := c.canonicalLocked(t, nil)
	return c.methodNamesLocked(ct)
}

func (c *Context) methodNamesLocked(t models.TypeID) []string {
	names := make([]string, 0, len(c.methods[t]))
	for n := range c.methods[t] {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// LookupMethod finds name on t or the nearest base that declares it, in
// breadth-first base order.
func (c *Context) LookupMethod(t models.TypeID, name string) (MethodLookup, bool) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.lookupMethodLocked(t, name)
}

func (c *Context) lookupMethodLocked(t models.TypeID, name string) (MethodLookup, bool) {
	start, ok := c.canonicalLocked(t, nil)
	if !ok {
		return MethodLookup{}, false
	}
	seen := map[models.TypeID]bool{start: true}
	queue := []models.TypeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if ids := c.methods[cur][name]; len(ids) > 0 {
			res := MethodLookup{Owner: cur, IDs: slices.Clone(ids), Abstract: true}
			for _, id := range ids {
				if f := c.functions[id]; f != nil && !f.Abstract {
					res.Abstract = false
				}
			}
			return res, true
		}
		for _, b := range c.classes[cur].Bases {
			bt, ok := c.canonicalLocked(b, nil)
			if ok && !seen[bt] {
				seen[bt] = true
				queue = append(queue, bt)
			}
		}
	}
	return MethodLookup{}, false
}

// ConstructorName returns the name of the constructor method of a class
// declared in lang, or "" for languages without constructors.
func ConstructorName(lang parser.Language, className string) string {
	switch {
	case lang == parser.LangPython:
		return "__init__"
	case lang.IsJSFamily():
		return "constructor"
	case lang == parser.LangJava:
		if i := strings.LastIndexByte(className, '.'); i >= 0 {
			return className[i+1:]
		}
		return className
	}
	return ""
}

// Constructors returns the constructor definitions that run when t is
// instantiated: its own or the nearest inherited one.
func (c *Context) Constructors(t models.TypeID) []models.FunctionID {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.constructorsLocked(t)
}

func (c *Context) constructorsLocked(t models.TypeID) []models.FunctionID {
	ct, ok := c.canonicalLocked(t, nil)
	if !ok {
		return nil
	}
	ci := c.classes[ct]
	name := ConstructorName(ci.Language, ct.Name)
	if name == "" {
		return nil
	}
	if ci.Language == parser.LangJava {
		return slices.Clone(c.methods[ct][name])
	}
	if res, ok := c.lookupMethodLocked(ct, name); ok {
		return res.IDs
	}
	return nil
}

// ModuleMember resolves name as a top-level member of module: a function,
// or a class whose constructors are returned. Re-exports and star imports of
// the module are followed.
func (c *Context) ModuleMember(module, name string) []models.FunctionID {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.memberLocked(module, name, nil)
}

func (c *Context) memberLocked(module, name string, seen map[string]bool) []models.FunctionID {
	if ids := c.members[module][name]; len(ids) > 0 {
		return slices.Clone(ids)
	}
	if ids := c.constructorsLocked(models.TypeID{Name: name, Module: module}); len(ids) > 0 {
		return ids
	}
	key := module + "\x00" + name
	if seen[key] {
		return nil
	}
	if seen == nil {
		seen = make(map[string]bool)
	}
	seen[key] = true
	for _, f := range c.filesOf[module] {
		if b, ok := c.bindings[f][name]; ok && !b.IsModule() {
			if ids := c.memberLocked(b.Module, b.Name, seen); len(ids) > 0 {
				return ids
			}
		}
		for _, star := range c.stars[f] {
			if ids := c.memberLocked(star, name, seen); len(ids) > 0 {
				return ids
			}
		}
	}
	return nil
}

// ResolveFunction resolves a bare name called in file: through the import
// table, then the file's own module (the whole package for Go and Java), then
// star imports.
func (c *Context) ResolveFunction(file, name string) []models.FunctionID {
	file = filepath.Clean(file)
	c.regMu.RLock()
	defer c.regMu.RUnlock()

	if b, ok := c.bindings[file][name]; ok {
		if b.IsModule() {
			return nil
		}
		return c.memberLocked(b.Module, b.Name, nil)
	}
	if ids := c.memberLocked(moduleOf(file), name, nil); len(ids) > 0 {
		return ids
	}
	for _, star := range c.stars[file] {
		if ids := c.memberLocked(star, name, nil); len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// FunctionsNamed returns every named definition whose unqualified name is
// name, sorted. Module pseudo-functions and closures are excluded.
func (c *Context) FunctionsNamed(name string) []models.FunctionID {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return slices.Clone(c.basenames[name])
}
