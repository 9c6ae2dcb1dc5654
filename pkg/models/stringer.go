package models

// toon serialization renders custom string types through fmt.Stringer.

func (k CallKind) String() string { return string(k) }

func (k PatternKind) String() string { return string(k) }
