package crossmod

import (
	"slices"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
)

// hierarchy is the inheritance graph over canonical types, rebuilt lazily
// whenever the registry changed.
type hierarchy struct {
	parents  map[models.TypeID][]models.TypeID
	children map[models.TypeID][]models.TypeID
}

func (h *hierarchy) link(child, parent models.TypeID) {
	if child == parent || slices.Contains(h.parents[child], parent) {
		return
	}
	h.parents[child] = append(h.parents[child], parent)
	h.children[parent] = append(h.children[parent], child)
}

// hier returns the current hierarchy. Lock order: hierMu, then regMu.
func (c *Context) hier() *hierarchy {
	c.hierMu.Lock()
	defer c.hierMu.Unlock()
	c.regMu.RLock()
	defer c.regMu.RUnlock()

	if c.hierarchy != nil && c.hierVer == c.version {
		return c.hierarchy
	}
	h := &hierarchy{
		parents:  make(map[models.TypeID][]models.TypeID),
		children: make(map[models.TypeID][]models.TypeID),
	}
	types := make([]models.TypeID, 0, len(c.classes))
	for t := range c.classes {
		types = append(types, t)
	}
	slices.SortFunc(types, models.TypeID.Compare)

	for _, t := range types {
		for _, b := range c.classes[t].Bases {
			if bt, ok := c.canonicalLocked(b, nil); ok {
				h.link(t, bt)
			}
		}
	}
	c.linkStructural(h, types)

	for _, list := range h.children {
		slices.SortFunc(list, models.TypeID.Compare)
	}
	c.hierarchy = h
	c.hierVer = c.version
	return h
}

// linkStructural links every Go type to the Go interfaces whose method set
// its own method set covers. Caller holds regMu.
func (c *Context) linkStructural(h *hierarchy, types []models.TypeID) {
	var ifaces, concrete []models.TypeID
	for _, t := range types {
		ci := c.classes[t]
		if ci.Language != parser.LangGo {
			continue
		}
		if ci.Kind == ast.ClassInterface {
			ifaces = append(ifaces, t)
		} else {
			concrete = append(concrete, t)
		}
	}
	if len(ifaces) == 0 {
		return
	}
	sets := make(map[models.TypeID]map[string]bool, len(types))
	for _, t := range append(slices.Clone(ifaces), concrete...) {
		sets[t] = c.methodSetLocked(t, make(map[models.TypeID]bool))
	}
	for _, it := range ifaces {
		want := sets[it]
		if len(want) == 0 {
			continue
		}
		for _, ct := range concrete {
			have := sets[ct]
			covered := true
			for m := range want {
				if !have[m] {
					covered = false
					break
				}
			}
			if covered {
				h.link(ct, it)
			}
		}
	}
}

// methodSetLocked collects the method names of t including those promoted
// from embedded types.
func (c *Context) methodSetLocked(t models.TypeID, seen map[models.TypeID]bool) map[string]bool {
	set := make(map[string]bool)
	if seen[t] {
		return set
	}
	seen[t] = true
	for name := range c.methods[t] {
		set[name] = true
	}
	if ci := c.classes[t]; ci != nil {
		for _, b := range ci.Bases {
			if bt, ok := c.canonicalLocked(b, nil); ok {
				for name := range c.methodSetLocked(bt, seen) {
					set[name] = true
				}
			}
		}
	}
	return set
}

func walk(start models.TypeID, next map[models.TypeID][]models.TypeID) []models.TypeID {
	seen := map[models.TypeID]bool{start: true}
	var out []models.TypeID
	queue := []models.TypeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next[cur] {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
				queue = append(queue, n)
			}
		}
	}
	return out
}

// Ancestors returns every transitive base of t in breadth-first order.
// Go types include the interfaces they satisfy.
func (c *Context) Ancestors(t models.TypeID) []models.TypeID {
	ct, ok := c.Canonical(t)
	if !ok {
		return nil
	}
	return walk(ct, c.hier().parents)
}

// Descendants returns every transitive subtype of t in breadth-first order.
func (c *Context) Descendants(t models.TypeID) []models.TypeID {
	ct, ok := c.Canonical(t)
	if !ok {
		return nil
	}
	return walk(ct, c.hier().children)
}

// IsSubtype reports whether sub is super or one of its descendants.
func (c *Context) IsSubtype(sub, super models.TypeID) bool {
	cs, ok := c.Canonical(sub)
	if !ok {
		return false
	}
	cp, ok := c.Canonical(super)
	if !ok {
		return false
	}
	return cs == cp || slices.Contains(c.Ancestors(cs), cp)
}

// AbstractMethods returns the interface-like methods declared on t: methods
// that are abstract, and placeholder methods (pass, ellipsis, raise
// NotImplementedError) that no ancestor declares.
func (c *Context) AbstractMethods(t models.TypeID) []string {
	ct, ok := c.Canonical(t)
	if !ok {
		return nil
	}
	ancestors := c.Ancestors(ct)

	c.regMu.RLock()
	defer c.regMu.RUnlock()
	var out []string
	for _, name := range c.methodNamesLocked(ct) {
		ids := c.methods[ct][name]
		abstract, stub := true, true
		for _, id := range ids {
			f := c.functions[id]
			abstract = abstract && f.Abstract
			stub = stub && f.Stub
		}
		if abstract {
			out = append(out, name)
			continue
		}
		if !stub {
			continue
		}
		inherited := false
		for _, a := range ancestors {
			if len(c.methods[a][name]) > 0 {
				inherited = true
				break
			}
		}
		if !inherited {
			out = append(out, name)
		}
	}
	return out
}

// IsInterface reports whether t is interface-like: declared as an interface,
// registered as one, or declaring at least one abstract method.
func (c *Context) IsInterface(t models.TypeID) bool {
	ct, ok := c.Canonical(t)
	if !ok {
		return false
	}
	if ci, _ := c.Class(ct); ci.Kind == ast.ClassInterface {
		return true
	}
	c.obsMu.RLock()
	_, registered := c.interfaces[ct]
	c.obsMu.RUnlock()
	return registered || len(c.AbstractMethods(ct)) > 0
}

// RegisterInterface marks t as interface-like.
func (c *Context) RegisterInterface(t models.TypeID) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.interfaces[t.Unwrapped()] = struct{}{}
}

// RegisterImplementation records impl as an implementation of iface.
func (c *Context) RegisterImplementation(iface models.TypeID, impl models.FunctionID) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	addTo(c.implementations, iface.Unwrapped(), impl)
}

// RegisterDispatchSite records site as a function dispatching through iface.
func (c *Context) RegisterDispatchSite(iface models.TypeID, site models.FunctionID) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	addTo(c.dispatchSites, iface.Unwrapped(), site)
}

func addTo(m map[models.TypeID]map[models.FunctionID]struct{}, t models.TypeID, id models.FunctionID) {
	set := m[t]
	if set == nil {
		set = make(map[models.FunctionID]struct{})
		m[t] = set
	}
	set[id] = struct{}{}
}

// registeredFor collects the ids registered under any key canonically equal
// to t.
func (c *Context) registeredFor(m map[models.TypeID]map[models.FunctionID]struct{}, t models.TypeID) []models.FunctionID {
	c.obsMu.RLock()
	keys := make([]models.TypeID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	c.obsMu.RUnlock()

	var out []models.FunctionID
	for _, k := range keys {
		if ck, _ := c.Canonical(k); ck != t {
			continue
		}
		c.obsMu.RLock()
		for id := range m[k] {
			out = append(out, id)
		}
		c.obsMu.RUnlock()
	}
	return models.SortedUnique(out)
}

// Implementations returns the concrete definitions of method on types
// derived from iface, together with explicitly registered implementations
// of that name. The result is sorted.
func (c *Context) Implementations(iface models.TypeID, method string) []models.FunctionID {
	ct, ok := c.Canonical(iface)
	if !ok {
		return nil
	}
	var out []models.FunctionID
	for _, id := range c.registeredFor(c.implementations, ct) {
		if id.Name() == method {
			out = append(out, id)
		}
	}
	descendants := c.Descendants(ct)

	c.regMu.RLock()
	for _, d := range descendants {
		for _, id := range c.methods[d][method] {
			if f := c.functions[id]; f != nil && !f.Abstract {
				out = append(out, id)
			}
		}
	}
	c.regMu.RUnlock()
	return models.SortedUnique(out)
}

// DispatchSites returns the functions registered as dispatching through iface.
func (c *Context) DispatchSites(iface models.TypeID) []models.FunctionID {
	ct, _ := c.Canonical(iface)
	return c.registeredFor(c.dispatchSites, ct)
}

// Interfaces returns every interface-like registered class, sorted.
func (c *Context) Interfaces() []models.TypeID {
	var out []models.TypeID
	for _, ci := range c.Classes() {
		if c.IsInterface(ci.Type) {
			out = append(out, ci.Type)
		}
	}
	return out
}
