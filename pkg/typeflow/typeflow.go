// Package typeflow tracks which types may flow into variables, collections
// and function parameters.
//
// All writes are set unions and every read is pure, so the facts recorded for
// a slot only ever grow. Branches are merged by union rather than tracked
// separately. There is no return-value flow, aliasing or destructuring.
//
// Besides direct facts a tracker holds flow links between slots: "every type
// that reaches from also reaches to". Propagate closes the facts over the
// links; because closure is a union fixpoint the result does not depend on the
// order in which facts and links were recorded.
package typeflow

import (
	"cmp"
	"slices"

	"github.com/panbanda/callscope/pkg/models"
)

// ParamKey identifies a positional parameter. Index 0 is the first declared
// parameter, self or this included.
type ParamKey struct {
	Function models.FunctionID
	Index    int
}

func compareParamKeys(a, b ParamKey) int {
	if c := a.Function.Compare(b.Function); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// SlotKind distinguishes the three fact maps.
type SlotKind uint8

const (
	SlotVariable SlotKind = iota
	SlotCollection
	SlotParameter
)

// Slot addresses one set of facts.
type Slot struct {
	Kind  SlotKind
	Key   string
	Param ParamKey
}

// VariableSlot addresses the facts of a variable key.
func VariableSlot(key string) Slot { return Slot{Kind: SlotVariable, Key: key} }

// CollectionSlot addresses the facts of a collection key.
func CollectionSlot(key string) Slot { return Slot{Kind: SlotCollection, Key: key} }

// ParameterSlot addresses the facts of a function parameter.
func ParameterSlot(fn models.FunctionID, index int) Slot {
	return Slot{Kind: SlotParameter, Param: ParamKey{Function: fn, Index: index}}
}

// IsZero reports whether s addresses nothing.
func (s Slot) IsZero() bool {
	return s == Slot{}
}

func compareSlots(a, b Slot) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return compareParamKeys(a.Param, b.Param)
}

type typeSet map[models.TypeID]struct{}

func (s typeSet) add(t models.TypeID) bool {
	if _, ok := s[t]; ok {
		return false
	}
	s[t] = struct{}{}
	return true
}

func (s typeSet) sorted() []models.TypeID {
	out := make([]models.TypeID, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.SortFunc(out, models.TypeID.Compare)
	return out
}

// Tracker holds type-flow facts. A Tracker is not synchronized: the extractor
// owns one per file, and the shared store guards its tracker with a lock.
type Tracker struct {
	variables   map[string]typeSet
	collections map[string]typeSet
	params      map[ParamKey]typeSet
	links       map[Slot]map[Slot]struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		variables:   make(map[string]typeSet),
		collections: make(map[string]typeSet),
		params:      make(map[ParamKey]typeSet),
		links:       make(map[Slot]map[Slot]struct{}),
	}
}

func record[K comparable](m map[K]typeSet, key K, t models.TypeID) bool {
	if t.Name == "" {
		return false
	}
	t = t.Unwrapped()
	if t.Name == "" {
		return false
	}
	s, ok := m[key]
	if !ok {
		s = make(typeSet)
		m[key] = s
	}
	return s.add(t)
}

// RecordAssignment records that a value of type t may be bound to target.
// It reports whether the fact was new.
func (tr *Tracker) RecordAssignment(target string, t models.TypeID) bool {
	return record(tr.variables, target, t)
}

// RecordCollectionAdd records that a value of type t may be stored in the
// collection identified by key.
func (tr *Tracker) RecordCollectionAdd(key string, t models.TypeID) bool {
	return record(tr.collections, key, t)
}

// RecordParameterFlow records that an argument of type t may be passed as the
// index-th parameter of function.
func (tr *Tracker) RecordParameterFlow(function models.FunctionID, index int, t models.TypeID) bool {
	return record(tr.params, ParamKey{Function: function, Index: index}, t)
}

// Record adds t to the facts of slot s.
func (tr *Tracker) Record(s Slot, t models.TypeID) bool {
	switch s.Kind {
	case SlotVariable:
		return tr.RecordAssignment(s.Key, t)
	case SlotCollection:
		return tr.RecordCollectionAdd(s.Key, t)
	default:
		return tr.RecordParameterFlow(s.Param.Function, s.Param.Index, t)
	}
}

// RecordFlow links from to to: after Propagate, every type of from is also a
// type of to. Self links are ignored.
func (tr *Tracker) RecordFlow(from, to Slot) bool {
	if from == to || from.IsZero() || to.IsZero() {
		return false
	}
	targets, ok := tr.links[from]
	if !ok {
		targets = make(map[Slot]struct{})
		tr.links[from] = targets
	}
	if _, ok := targets[to]; ok {
		return false
	}
	targets[to] = struct{}{}
	return true
}

// VariableTypes returns the types that may be bound to target, sorted.
func (tr *Tracker) VariableTypes(target string) []models.TypeID {
	return tr.variables[target].sorted()
}

// CollectionTypes returns the types that may be stored in the collection, sorted.
func (tr *Tracker) CollectionTypes(key string) []models.TypeID {
	return tr.collections[key].sorted()
}

// ParameterTypes returns the types that may flow into a parameter, sorted.
func (tr *Tracker) ParameterTypes(function models.FunctionID, index int) []models.TypeID {
	return tr.params[ParamKey{Function: function, Index: index}].sorted()
}

// Types returns the facts of slot s, sorted.
func (tr *Tracker) Types(s Slot) []models.TypeID {
	return tr.set(s).sorted()
}

func (tr *Tracker) set(s Slot) typeSet {
	switch s.Kind {
	case SlotVariable:
		return tr.variables[s.Key]
	case SlotCollection:
		return tr.collections[s.Key]
	default:
		return tr.params[s.Param]
	}
}

// Propagate closes the facts over the flow links and reports whether any fact
// was added.
func (tr *Tracker) Propagate() bool {
	changed := false
	for {
		round := false
		for from, targets := range tr.links {
			src := tr.set(from)
			if len(src) == 0 {
				continue
			}
			for to := range targets {
				for t := range src {
					if tr.Record(to, t) {
						round = true
					}
				}
			}
		}
		if !round {
			return changed
		}
		changed = true
	}
}

// Merge unions every fact and link of other into tr.
func (tr *Tracker) Merge(other *Tracker) {
	if other == nil {
		return
	}
	for k, s := range other.variables {
		for t := range s {
			record(tr.variables, k, t)
		}
	}
	for k, s := range other.collections {
		for t := range s {
			record(tr.collections, k, t)
		}
	}
	for k, s := range other.params {
		for t := range s {
			record(tr.params, k, t)
		}
	}
	for from, targets := range other.links {
		for to := range targets {
			tr.RecordFlow(from, to)
		}
	}
}

// Clone returns an independent copy of tr.
func (tr *Tracker) Clone() *Tracker {
	c := New()
	c.Merge(tr)
	return c
}

// Size returns the total number of recorded facts, links excluded.
func (tr *Tracker) Size() int {
	n := 0
	for _, s := range tr.variables {
		n += len(s)
	}
	for _, s := range tr.collections {
		n += len(s)
	}
	for _, s := range tr.params {
		n += len(s)
	}
	return n
}

// Links returns the number of flow links.
func (tr *Tracker) Links() int {
	n := 0
	for _, targets := range tr.links {
		n += len(targets)
	}
	return n
}

// Parameters returns every parameter key with recorded facts, sorted.
func (tr *Tracker) Parameters() []ParamKey {
	out := make([]ParamKey, 0, len(tr.params))
	for k := range tr.params {
		out = append(out, k)
	}
	slices.SortFunc(out, compareParamKeys)
	return out
}

// FlowsFrom returns the slots linked from s, sorted.
func (tr *Tracker) FlowsFrom(s Slot) []Slot {
	out := make([]Slot, 0, len(tr.links[s]))
	for to := range tr.links[s] {
		out = append(out, to)
	}
	slices.SortFunc(out, compareSlots)
	return out
}

// VariableKey builds the key of a variable name within a scope of a file.
func VariableKey(file, scope, name string) string {
	return file + ":" + scope + ":" + name
}

// CollectionKey builds the key of an owner's field. Owner is a class or
// function qualified name within module.
func CollectionKey(module, owner, field string) string {
	return module + ":" + owner + "." + field
}
