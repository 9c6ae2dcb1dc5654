package ast

import "strings"

// File is one lowered source file.
type File struct {
	Path     string
	Language Language
	Imports  []Import
	Body     []*Stmt
}

// Import is one import or use declaration.
type Import struct {
	// Module is the import source as written: "observer", ".observer",
	// "./observer", "github.com/acme/app/store", "com.acme.Observer".
	Module string
	// Names holds the bound names of a from-import or named import.
	// Empty when the module itself is bound.
	Names []ImportName
	// Alias is the local binding of the module itself, if any.
	Alias    string
	Wildcard bool
	Line     int
}

// ImportName is a single imported name with an optional alias.
type ImportName struct {
	Name  string
	Alias string
}

// Local returns the name the import is bound to in the importing file.
func (n ImportName) Local() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// StmtKind identifies the shape of a statement.
type StmtKind int

const (
	// StmtExpr is an expression statement; Value holds the expression.
	StmtExpr StmtKind = iota
	// StmtAssign binds Value (possibly nil for bare declarations) to Targets.
	StmtAssign
	// StmtAugAssign is an in-place update such as x += y.
	StmtAugAssign
	// StmtFunction declares Function.
	StmtFunction
	// StmtClass declares Class.
	StmtClass
	// StmtReturn returns Value, which may be nil.
	StmtReturn
	// StmtFor iterates Value, binding Targets, running Body.
	StmtFor
	// StmtBranch is any compound statement with conditional bodies
	// (if, while, try, with, switch); Conditions are evaluated, one of Blocks runs.
	StmtBranch
)

func (k StmtKind) String() string {
	switch k {
	case StmtExpr:
		return "expr"
	case StmtAssign:
		return "assign"
	case StmtAugAssign:
		return "aug_assign"
	case StmtFunction:
		return "function"
	case StmtClass:
		return "class"
	case StmtReturn:
		return "return"
	case StmtFor:
		return "for"
	case StmtBranch:
		return "branch"
	default:
		return "unknown"
	}
}

// Stmt is a lowered statement.
type Stmt struct {
	Kind       StmtKind
	Line       int
	Targets    []*Expr
	Value      *Expr
	Annotation string
	Operator   string
	Function   *FunctionDef
	Class      *ClassDef
	Conditions []*Expr
	Body       []*Stmt
	Blocks     [][]*Stmt
}

// FunctionDef is a function, method, or closure definition.
type FunctionDef struct {
	Name string
	// Line is the line of the def/func keyword, never a decorator line.
	Line       int
	EndLine    int
	Receiver   string
	Decorators []Decorator
	Params     []Param
	Body       []*Stmt
	// Abstract is set for declarations without a body and for methods
	// carrying a language-level abstract modifier.
	Abstract bool
	// Stub is set when the body only passes, raises NotImplementedError or
	// holds an ellipsis.
	Stub      bool
	Anonymous bool
	Static    bool
}

// HasDecorator reports whether the definition carries a decorator whose
// final dotted segment is name.
func (f *FunctionDef) HasDecorator(name string) bool {
	for _, d := range f.Decorators {
		if d.Name == name || strings.HasSuffix(d.Name, "."+name) {
			return true
		}
	}
	return false
}

// Decorator is a decorator or annotation attached to a definition.
type Decorator struct {
	Name string
	Line int
	Args []*Expr
}

// Param is a formal parameter.
type Param struct {
	Name     string
	Type     string
	Default  *Expr
	Variadic bool
}

// ClassKind distinguishes class-like declarations.
type ClassKind string

const (
	ClassPlain     ClassKind = "class"
	ClassInterface ClassKind = "interface"
	ClassStruct    ClassKind = "struct"
)

// ClassDef is a class, interface, or struct declaration.
type ClassDef struct {
	Name       string
	Line       int
	EndLine    int
	Kind       ClassKind
	Bases      []string
	Interfaces []string
	Decorators []Decorator
	Body       []*Stmt
	Abstract   bool
}

// Methods returns the function definitions declared directly in the class body.
func (c *ClassDef) Methods() []*FunctionDef {
	var out []*FunctionDef
	for _, s := range c.Body {
		if s.Kind == StmtFunction {
			out = append(out, s.Function)
		}
	}
	return out
}

// ExprKind identifies the shape of an expression.
type ExprKind int

const (
	ExprName ExprKind = iota
	ExprAttribute
	ExprCall
	ExprCollection
	ExprMapping
	ExprSubscript
	ExprConditional
	ExprFunction
	ExprLiteral
	ExprSelf
	ExprClass
	ExprOther
)

// Expr is a lowered expression.
//
//	ExprName        Name
//	ExprAttribute   Object.Name
//	ExprCall        Object(Args...); New marks constructor syntax
//	ExprCollection  [Args...]
//	ExprMapping     {Keys[i]: Args[i]}
//	ExprSubscript   Object[Args[0]]
//	ExprConditional one of Args
//	ExprFunction    Function
//	ExprLiteral     Name holds the literal text
//	ExprSelf        self / this; Name is "super" for super references
//	ExprClass       Class; an anonymous class body carries an empty name
//	ExprOther       Args holds sub-expressions
type Expr struct {
	Kind     ExprKind
	Name     string
	Object   *Expr
	Args     []*Expr
	Keys     []string
	Keyword  string
	New      bool
	Function *FunctionDef
	Class    *ClassDef
	Line     int
}

// DottedName renders a Name/Attribute/Self chain as a dotted path, or "" if
// the expression is not a plain reference.
func (e *Expr) DottedName() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case ExprName:
		return e.Name
	case ExprSelf:
		return "self"
	case ExprAttribute:
		base := e.Object.DottedName()
		if base == "" {
			return ""
		}
		return base + "." + e.Name
	}
	return ""
}

// Root returns the innermost object of an attribute chain.
func (e *Expr) Root() *Expr {
	for e != nil && e.Kind == ExprAttribute && e.Object != nil {
		e = e.Object
	}
	return e
}

// Inspect walks stmts depth-first, calling fn for each statement. Nested
// function and class bodies are visited when fn returns true.
func Inspect(stmts []*Stmt, fn func(*Stmt) bool) {
	for _, s := range stmts {
		if s == nil || !fn(s) {
			continue
		}
		switch s.Kind {
		case StmtFunction:
			Inspect(s.Function.Body, fn)
		case StmtClass:
			Inspect(s.Class.Body, fn)
		case StmtFor:
			Inspect(s.Body, fn)
		case StmtBranch:
			for _, b := range s.Blocks {
				Inspect(b, fn)
			}
		}
	}
}

// InspectExpr walks e and its sub-expressions depth-first. Bodies of nested
// function expressions are not entered.
func InspectExpr(e *Expr, fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	InspectExpr(e.Object, fn)
	for _, a := range e.Args {
		InspectExpr(a, fn)
	}
}
