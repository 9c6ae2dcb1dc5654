package crossmod

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/models"
)

// Binding is one entry of the import table: the name a file binds locally and
// what it refers to.
type Binding struct {
	// Module is the resolved module id, or the import source as written when
	// the import points outside the analyzed tree.
	Module string `json:"module"`
	// Name is the original name in Module; empty when the module itself is bound.
	Name     string `json:"name,omitempty"`
	External bool   `json:"external,omitempty"`
}

// IsModule reports whether the binding refers to a whole module.
func (b Binding) IsModule() bool {
	return b.Name == ""
}

// RegisterImports records the import bindings and star imports of file.
// Registration is idempotent; a later binding of the same local name wins,
// matching the last-import-wins rule of the source languages.
func (c *Context) RegisterImports(file string, imports []ast.Import) {
	file = filepath.Clean(file)
	table := make(map[string]Binding)
	var stars []string

	for _, imp := range imports {
		module, ok := c.ResolveModule(file, imp.Module)
		if !ok {
			module = imp.Module
		}
		external := !ok

		if imp.Wildcard {
			stars = append(stars, module)
			continue
		}
		if len(imp.Names) == 0 {
			local := imp.Alias
			if local == "" {
				local = imp.Module
			}
			if local != "" {
				table[local] = Binding{Module: module, External: external}
			}
			continue
		}
		for _, n := range imp.Names {
			// from pkg import submodule binds a module, not a member.
			if sub, ok := c.ResolveModule(file, submoduleSource(imp.Module, n.Name)); ok && c.pythonFile(file) {
				table[n.Local()] = Binding{Module: sub}
				continue
			}
			table[n.Local()] = Binding{Module: module, Name: n.Name, External: external}
		}
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()
	existing := c.bindings[file]
	if existing == nil {
		existing = make(map[string]Binding, len(table))
		c.bindings[file] = existing
	}
	for k, v := range table {
		existing[k] = v
	}
	for _, s := range stars {
		if !slices.Contains(c.stars[file], s) {
			c.stars[file] = append(c.stars[file], s)
		}
	}
	slices.Sort(c.stars[file])
	c.noteFileLocked(file)
	c.version++
}

func submoduleSource(module, name string) string {
	if strings.HasSuffix(module, ".") {
		return module + name
	}
	return module + "." + name
}

func (c *Context) pythonFile(file string) bool {
	return strings.HasSuffix(file, ".py") || strings.HasSuffix(file, ".pyi")
}

// noteFileLocked indexes file under its module id. Caller holds regMu.
func (c *Context) noteFileLocked(file string) {
	m := moduleOf(file)
	files := c.filesOf[m]
	i, found := slices.BinarySearch(files, file)
	if !found {
		c.filesOf[m] = slices.Insert(files, i, file)
	}
}

// Binding looks up the local name bound by an import in file.
func (c *Context) Binding(file, local string) (Binding, bool) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	b, ok := c.bindings[filepath.Clean(file)][local]
	return b, ok
}

// ResolveImportedType resolves a type name as written in file. An imported
// name resolves to its defining module; alias.Name resolves through a module
// alias; anything else is assumed to be defined in the module of file.
// Generic wrappers are unwrapped first.
func (c *Context) ResolveImportedType(name, file string) models.TypeID {
	name = models.UnwrapTypeName(name)
	file = filepath.Clean(file)
	if name == "" {
		return models.TypeID{}
	}

	c.regMu.RLock()
	defer c.regMu.RUnlock()
	table := c.bindings[file]

	if b, ok := table[name]; ok && !b.IsModule() {
		return models.TypeID{Name: b.Name, Module: b.Module}
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		if b, ok := table[name[:i]]; ok && b.IsModule() {
			return models.TypeID{Name: name[i+1:], Module: b.Module}
		}
	}
	return models.TypeID{Name: name, Module: moduleOf(file)}
}

// Canonical follows re-exports and star imports until t names a registered
// class. It reports false when no registered class was reached, in which case
// the unwrapped input is returned.
func (c *Context) Canonical(t models.TypeID) (models.TypeID, bool) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.canonicalLocked(t, nil)
}

func (c *Context) canonicalLocked(t models.TypeID, seen map[models.TypeID]bool) (models.TypeID, bool) {
	t = t.Unwrapped()
	if _, ok := c.classes[t]; ok {
		return t, true
	}
	if seen[t] {
		return t, false
	}
	if seen == nil {
		seen = make(map[models.TypeID]bool)
	}
	seen[t] = true

	for _, f := range c.filesOf[t.Module] {
		if b, ok := c.bindings[f][t.Name]; ok && !b.IsModule() {
			if r, ok := c.canonicalLocked(models.TypeID{Name: b.Name, Module: b.Module}, seen); ok {
				return r, true
			}
		}
		for _, star := range c.stars[f] {
			if r, ok := c.canonicalLocked(models.TypeID{Name: t.Name, Module: star}, seen); ok {
				return r, true
			}
		}
	}

	// Nested classes referenced by their simple name, and default exports.
	var match models.TypeID
	n := 0
	for ct := range c.classes {
		if ct.Module != t.Module {
			continue
		}
		if strings.HasSuffix(ct.Name, "."+t.Name) || (t.Name == "default" && !strings.Contains(ct.Name, ".")) {
			if n == 0 || ct.Compare(match) < 0 {
				match = ct
			}
			n++
		}
	}
	if n == 1 {
		return match, true
	}
	return t, false
}
