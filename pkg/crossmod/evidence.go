package crossmod

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// FunctionRef is a function passed by reference, as written at the use site.
type FunctionRef struct {
	// ID is set when the reference was resolved during extraction.
	ID   models.FunctionID `json:"id,omitzero"`
	Name string            `json:"name,omitempty"`
	File string            `json:"file"`
	// Class is the enclosing class for self.method references.
	Class models.TypeID `json:"class,omitzero"`
}

// DispatchLoop is a method invoked on the element variable of a loop.
type DispatchLoop struct {
	Caller   models.FunctionID `json:"caller"`
	Iterated typeflow.Slot     `json:"iterated"`
	// Class and Field are set when the iterated collection is an attribute
	// of self.
	Class  models.TypeID `json:"class,omitzero"`
	Field  string        `json:"field,omitempty"`
	Method string        `json:"method"`
}

// ModuleInstance is a module-level instantiation bound to a name.
type ModuleInstance struct {
	File string        `json:"file"`
	Name string        `json:"name"`
	Type models.TypeID `json:"type"`
	Line int           `json:"line"`
}

// BindingCall is a method invoked on an imported name, directly or through a
// module alias.
type BindingCall struct {
	Caller models.FunctionID `json:"caller"`
	File   string            `json:"file"`
	// Local is the imported name, or the module alias when Member is set.
	Local  string `json:"local"`
	Member string `json:"member,omitempty"`
	Method string `json:"method"`
}

// FactoryFunction records the types a construction-vocabulary function returns.
type FactoryFunction struct {
	ID      models.FunctionID `json:"id"`
	Returns []models.TypeID   `json:"returns,omitempty"`
	// Mappings are class mappings whose values are instantiated and returned.
	Mappings []string `json:"mappings,omitempty"`
}

// FactoryMapping is a module-level mapping whose values are all class
// references.
type FactoryMapping struct {
	File   string          `json:"file"`
	Name   string          `json:"name"`
	Values []models.TypeID `json:"values"`
}

// FactoryUse is a method invoked on the product of a factory: directly on a
// call result, or on a variable bound to one.
type FactoryUse struct {
	Caller models.FunctionID `json:"caller"`
	File   string            `json:"file"`
	// Factory is the factory function name as written, or the mapping name
	// when Mapping is set.
	Factory string `json:"factory"`
	Mapping bool   `json:"mapping,omitempty"`
	Method  string `json:"method"`
}

// Injection is a collaborator stored on self from a parameter.
type Injection struct {
	Class    models.TypeID     `json:"class"`
	Field    string            `json:"field"`
	Function models.FunctionID `json:"function"`
	Param    int               `json:"param"`
}

// AttributeDispatch is a method invoked through an attribute of self.
type AttributeDispatch struct {
	Caller models.FunctionID `json:"caller"`
	Class  models.TypeID     `json:"class"`
	Field  string            `json:"field"`
	Method string            `json:"method"`
}

// CallbackRegistration is a registration call with function references.
type CallbackRegistration struct {
	Caller    models.FunctionID `json:"caller"`
	Registrar string            `json:"registrar"`
	Callbacks []FunctionRef     `json:"callbacks"`
}

// SelfCall is a method invoked on self inside a method of Class.
type SelfCall struct {
	Caller models.FunctionID `json:"caller"`
	Class  models.TypeID     `json:"class"`
	Method string            `json:"method"`
}

// Evidence is the pattern evidence gathered during extraction.
type Evidence struct {
	DispatchLoops       []DispatchLoop         `json:"dispatch_loops,omitempty"`
	ModuleInstances     []ModuleInstance       `json:"module_instances,omitempty"`
	BindingCalls        []BindingCall          `json:"binding_calls,omitempty"`
	FactoryFunctions    []FactoryFunction      `json:"factory_functions,omitempty"`
	FactoryMappings     []FactoryMapping       `json:"factory_mappings,omitempty"`
	FactoryUses         []FactoryUse           `json:"factory_uses,omitempty"`
	Injections          []Injection            `json:"injections,omitempty"`
	AttributeDispatches []AttributeDispatch    `json:"attribute_dispatches,omitempty"`
	Callbacks           []CallbackRegistration `json:"callbacks,omitempty"`
	SelfCalls           []SelfCall             `json:"self_calls,omitempty"`
}

// Merge appends every record of other.
func (e *Evidence) Merge(other *Evidence) {
	if other == nil {
		return
	}
	e.DispatchLoops = append(e.DispatchLoops, other.DispatchLoops...)
	e.ModuleInstances = append(e.ModuleInstances, other.ModuleInstances...)
	e.BindingCalls = append(e.BindingCalls, other.BindingCalls...)
	e.FactoryFunctions = append(e.FactoryFunctions, other.FactoryFunctions...)
	e.FactoryMappings = append(e.FactoryMappings, other.FactoryMappings...)
	e.FactoryUses = append(e.FactoryUses, other.FactoryUses...)
	e.Injections = append(e.Injections, other.Injections...)
	e.AttributeDispatches = append(e.AttributeDispatches, other.AttributeDispatches...)
	e.Callbacks = append(e.Callbacks, other.Callbacks...)
	e.SelfCalls = append(e.SelfCalls, other.SelfCalls...)
}

// Normalize sorts every record list and removes duplicates, so evidence
// gathered by any number of workers in any order compares equal.
func (e *Evidence) Normalize() {
	e.DispatchLoops = normalize(e.DispatchLoops)
	e.ModuleInstances = normalize(e.ModuleInstances)
	e.BindingCalls = normalize(e.BindingCalls)
	e.FactoryFunctions = normalize(e.FactoryFunctions)
	e.FactoryMappings = normalize(e.FactoryMappings)
	e.FactoryUses = normalize(e.FactoryUses)
	e.Injections = normalize(e.Injections)
	e.AttributeDispatches = normalize(e.AttributeDispatches)
	e.Callbacks = normalize(e.Callbacks)
	e.SelfCalls = normalize(e.SelfCalls)
}

// Len returns the total number of records.
func (e *Evidence) Len() int {
	return len(e.DispatchLoops) + len(e.ModuleInstances) + len(e.BindingCalls) +
		len(e.FactoryFunctions) + len(e.FactoryMappings) + len(e.FactoryUses) +
		len(e.Injections) + len(e.AttributeDispatches) + len(e.Callbacks) + len(e.SelfCalls)
}

// normalize orders records by their printed form, which is total over these
// plain value types.
func normalize[T any](items []T) []T {
	if len(items) == 0 {
		return items
	}
	type keyed struct {
		key  string
		item T
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		ks[i] = keyed{key: fmt.Sprintf("%+v", it), item: it}
	}
	slices.SortFunc(ks, func(a, b keyed) int { return cmp.Compare(a.key, b.key) })
	ks = slices.CompactFunc(ks, func(a, b keyed) bool { return a.key == b.key })
	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

// RecordEvidence merges the evidence of one file into the shared store.
func (c *Context) RecordEvidence(e *Evidence) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	c.evidence.Merge(e)
}

// Evidence returns a normalized copy of all recorded evidence.
func (c *Context) Evidence() *Evidence {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	out := &Evidence{}
	out.Merge(c.evidence)
	out.Normalize()
	return out
}

func sortTypes(ts []models.TypeID) {
	slices.SortFunc(ts, models.TypeID.Compare)
}
