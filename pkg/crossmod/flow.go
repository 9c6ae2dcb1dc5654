package crossmod

import (
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// AttributeSlot addresses the facts of field on instances of class.
// Scalars and collections stored on an instance share one slot.
func AttributeSlot(class models.TypeID, field string) typeflow.Slot {
	return typeflow.CollectionSlot(typeflow.CollectionKey(class.Module, class.Name, field))
}

// MergeTypeFlow unions a per-file tracker into the shared store.
func (c *Context) MergeTypeFlow(tr *typeflow.Tracker) {
	c.flowMu.Lock()
	defer c.flowMu.Unlock()
	c.flow.Merge(tr)
}

// UpdateTypeFlow runs fn with exclusive access to the shared tracker.
func (c *Context) UpdateTypeFlow(fn func(tr *typeflow.Tracker)) {
	c.flowMu.Lock()
	defer c.flowMu.Unlock()
	fn(c.flow)
}

// Propagate closes the shared facts over their flow links and reports
// whether anything was added.
func (c *Context) Propagate() bool {
	c.flowMu.Lock()
	defer c.flowMu.Unlock()
	return c.flow.Propagate()
}

// Types returns the shared facts of slot s, sorted.
func (c *Context) Types(s typeflow.Slot) []models.TypeID {
	c.flowMu.RLock()
	defer c.flowMu.RUnlock()
	return c.flow.Types(s)
}

// AttributeTypes returns the types that may be stored in field of class,
// unioned over the whole class hierarchy since a field written in a base
// class is read through subclasses and the other way round.
func (c *Context) AttributeTypes(class models.TypeID, field string) []models.TypeID {
	owners := []models.TypeID{class}
	if ct, ok := c.Canonical(class); ok {
		owners = append([]models.TypeID{ct}, c.Ancestors(ct)...)
		owners = append(owners, c.Descendants(ct)...)
	}

	c.flowMu.RLock()
	defer c.flowMu.RUnlock()
	seen := make(map[models.TypeID]bool)
	var out []models.TypeID
	for _, o := range owners {
		for _, t := range c.flow.Types(AttributeSlot(o, field)) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sortTypes(out)
	return out
}

// ConcreteTypes canonicalizes ts and keeps the registered classes, sorted
// and deduplicated.
func (c *Context) ConcreteTypes(ts []models.TypeID) []models.TypeID {
	seen := make(map[models.TypeID]bool)
	var out []models.TypeID
	for _, t := range ts {
		ct, ok := c.Canonical(t)
		if ok && !seen[ct] {
			seen[ct] = true
			out = append(out, ct)
		}
	}
	sortTypes(out)
	return out
}
