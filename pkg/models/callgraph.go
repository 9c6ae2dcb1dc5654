package models

import (
	"fmt"
	"slices"
)

// CallKind tags how a call edge was established.
type CallKind string

const (
	// CallDirect is a literal call resolved by name (same file, import, or self method).
	CallDirect CallKind = "direct"
	// CallDynamic is a receiver-typed call resolved through type-flow facts or name fallback.
	CallDynamic CallKind = "dynamic"
	// CallPatternDispatch is an indirect call inferred by a pattern recognizer.
	CallPatternDispatch CallKind = "pattern_dispatch"
)

// ParseCallKind converts a string into a CallKind.
func ParseCallKind(s string) (CallKind, error) {
	switch CallKind(s) {
	case CallDirect, CallDynamic, CallPatternDispatch:
		return CallKind(s), nil
	}
	return "", fmt.Errorf("unknown call kind %q", s)
}

// Confidence is the weight downstream consumers should give an edge of this kind.
func (k CallKind) Confidence() float64 {
	switch k {
	case CallDirect:
		return 1.0
	case CallDynamic:
		return 0.8
	case CallPatternDispatch:
		return 0.6
	default:
		return 0
	}
}

// PatternKind names a recognized design pattern.
type PatternKind string

const (
	PatternObserver       PatternKind = "observer"
	PatternSingleton      PatternKind = "singleton"
	PatternFactory        PatternKind = "factory"
	PatternStrategy       PatternKind = "strategy"
	PatternCallback       PatternKind = "callback"
	PatternTemplateMethod PatternKind = "template_method"
)

// AllPatternKinds lists every recognizer kind in a stable order.
func AllPatternKinds() []PatternKind {
	return []PatternKind{
		PatternObserver,
		PatternSingleton,
		PatternFactory,
		PatternStrategy,
		PatternCallback,
		PatternTemplateMethod,
	}
}

// PatternInstance is one detected pattern occurrence. Every dispatch site is
// linked to every implementation with a pattern-dispatch edge.
type PatternInstance struct {
	Kind            PatternKind  `json:"kind"`
	DefiningType    TypeID       `json:"defining_type"`
	Method          string       `json:"method,omitempty"`
	Implementations []FunctionID `json:"implementations"`
	DispatchSites   []FunctionID `json:"dispatch_sites"`
	Provenance      string       `json:"provenance"`
}

// Normalize sorts and deduplicates implementations and dispatch sites.
func (p *PatternInstance) Normalize() {
	p.Implementations = SortedUnique(p.Implementations)
	p.DispatchSites = SortedUnique(p.DispatchSites)
}

// EdgeCount is the number of edges the instance contributes.
func (p *PatternInstance) EdgeCount() int {
	return len(p.Implementations) * len(p.DispatchSites)
}

// SortedUnique returns ids sorted by Compare with duplicates removed.
func SortedUnique(ids []FunctionID) []FunctionID {
	if len(ids) == 0 {
		return ids
	}
	out := slices.Clone(ids)
	slices.SortFunc(out, FunctionID.Compare)
	return slices.Compact(out)
}
