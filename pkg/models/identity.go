package models

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// FunctionID identifies a function, method or closure definition.
// Equality uses all three fields, so two passes over the same source must agree
// on the qualified name and on the declaration line (the def/func keyword line).
type FunctionID struct {
	QualifiedName string `json:"qualified_name"`
	File          string `json:"file"`
	Line          int    `json:"line"`
}

// String renders the id as file:line:qualified_name.
func (id FunctionID) String() string {
	return id.File + ":" + strconv.Itoa(id.Line) + ":" + id.QualifiedName
}

// IsZero reports whether the id is unset.
func (id FunctionID) IsZero() bool {
	return id == FunctionID{}
}

// Name returns the unqualified name (the last path segment).
func (id FunctionID) Name() string {
	if i := strings.LastIndexByte(id.QualifiedName, '.'); i >= 0 {
		return id.QualifiedName[i+1:]
	}
	return id.QualifiedName
}

// Qualifier returns the enclosing class or function path, empty for top-level definitions.
func (id FunctionID) Qualifier() string {
	if i := strings.LastIndexByte(id.QualifiedName, '.'); i >= 0 {
		return id.QualifiedName[:i]
	}
	return ""
}

// Key returns a short stable hash of the id for use as an external node key.
func (id FunctionID) Key() string {
	sum := blake3.Sum256([]byte(id.String()))
	return hex.EncodeToString(sum[:8])
}

// Compare orders ids by file, line, then qualified name.
func (id FunctionID) Compare(other FunctionID) int {
	if c := strings.Compare(id.File, other.File); c != 0 {
		return c
	}
	if id.Line != other.Line {
		if id.Line < other.Line {
			return -1
		}
		return 1
	}
	return strings.Compare(id.QualifiedName, other.QualifiedName)
}

// TypeID identifies a class, interface or struct type.
// An empty Module denotes a built-in or otherwise unscoped type.
type TypeID struct {
	Name   string `json:"name"`
	Module string `json:"module,omitempty"`
}

// IsBuiltin reports whether the type has no defining module.
func (t TypeID) IsBuiltin() bool {
	return t.Module == ""
}

func (t TypeID) String() string {
	if t.Module == "" {
		return t.Name
	}
	return t.Module + "::" + t.Name
}

// Unwrapped returns the type with generic wrappers removed from its name.
func (t TypeID) Unwrapped() TypeID {
	return TypeID{Name: UnwrapTypeName(t.Name), Module: t.Module}
}

// Compare orders types by module then name.
func (t TypeID) Compare(other TypeID) int {
	if c := strings.Compare(t.Module, other.Module); c != 0 {
		return c
	}
	return strings.Compare(t.Name, other.Name)
}

// Equivalent reports whether two types name the same thing once generic
// wrappers are unwrapped. Used by type-flow matching only.
func Equivalent(a, b TypeID) bool {
	return UnwrapTypeName(a.Name) == UnwrapTypeName(b.Name)
}

// containerWrappers collapse to their element type when unwrapped.
var containerWrappers = map[string]bool{
	"list": true, "set": true, "frozenset": true, "tuple": true, "sequence": true,
	"mutablesequence": true, "iterable": true, "iterator": true, "collection": true,
	"optional": true, "deque": true, "array": true, "readonlyarray": true,
	"arraylist": true, "linkedlist": true, "hashset": true, "treeset": true,
	"vector": true, "slice": true, "promise": true, "type": true, "final": true,
	"classvar": true, "annotated": true, "weakset": true, "abstractset": true,
}

// mappingWrappers collapse to their value type (last type argument).
var mappingWrappers = map[string]bool{
	"dict": true, "map": true, "mapping": true, "mutablemapping": true,
	"defaultdict": true, "ordereddict": true, "hashmap": true, "treemap": true,
	"record": true, "weakvaluedictionary": true,
}

// UnwrapTypeName strips pointers, slices, optional markers and container
// wrappers, so List[Observer], Observer[], []*Observer and Optional["Observer"]
// all collapse to Observer. Non-container generics lose their type arguments.
func UnwrapTypeName(name string) string {
	for {
		prev := name
		name = strings.TrimSpace(name)
		name = strings.Trim(name, `"'`)
		name = strings.TrimPrefix(name, "*")
		name = strings.TrimPrefix(name, "&")
		name = strings.TrimPrefix(name, "...")
		name = strings.TrimPrefix(name, "[]")
		name = strings.TrimPrefix(name, "? extends ")
		name = strings.TrimPrefix(name, "? super ")
		name = strings.TrimSuffix(name, "[]")
		name = strings.TrimSuffix(name, "?")
		name = strings.TrimSuffix(name, "...")

		if strings.HasPrefix(name, "map[") {
			if end := matchingClose(name, 3); end > 0 {
				name = name[end+1:]
			}
		}

		if base, args, ok := splitGeneric(name); ok {
			short := strings.ToLower(base)
			if i := strings.LastIndexByte(short, '.'); i >= 0 {
				short = short[i+1:]
			}
			switch {
			case containerWrappers[short] && len(args) > 0:
				name = args[0]
			case mappingWrappers[short] && len(args) > 0:
				name = args[len(args)-1]
			default:
				name = base
			}
		}

		if name == prev {
			return name
		}
	}
}

// splitGeneric splits Base[A, B] or Base<A, B> into its base and top-level arguments.
func splitGeneric(name string) (string, []string, bool) {
	open := strings.IndexAny(name, "[<")
	if open <= 0 {
		return name, nil, false
	}
	end := matchingClose(name, open)
	if end != len(name)-1 {
		return name, nil, false
	}

	var args []string
	depth, start := 0, open+1
	for i := open + 1; i < end; i++ {
		switch name[i] {
		case '[', '<', '(':
			depth++
		case ']', '>', ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(name[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(name[start:end]); last != "" {
		args = append(args, last)
	}
	return strings.TrimSpace(name[:open]), args, true
}

// matchingClose returns the index of the bracket closing the one at open, or -1.
func matchingClose(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[', '<', '(':
			depth++
		case ']', '>', ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
