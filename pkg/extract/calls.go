package extract

import (
	"cmp"
	"strings"

	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// ReceiverKind classifies what a call was made on.
type ReceiverKind int

const (
	// ReceiverNone is a bare call: f().
	ReceiverNone ReceiverKind = iota
	// ReceiverSelf is a call on self/this, or an unqualified Java call inside
	// a class.
	ReceiverSelf
	// ReceiverModule is a call through a module alias: mod.f() or, with
	// Field set, mod.member.f().
	ReceiverModule
	// ReceiverImported is a call on a name bound by a from-import or named
	// import.
	ReceiverImported
	// ReceiverVariable is a call on a local, parameter or module variable.
	ReceiverVariable
	// ReceiverAttribute is a call through an attribute of self: self.f.m().
	ReceiverAttribute
	// ReceiverClass is a static call on a class: Cls.m().
	ReceiverClass
	// ReceiverCall is a call on the result of another call: f().m().
	ReceiverCall
	// ReceiverExpr is a call on any other expression.
	ReceiverExpr
)

var receiverNames = [...]string{"none", "self", "module", "imported", "variable", "attribute", "class", "call", "expr"}

func (k ReceiverKind) String() string {
	if int(k) < len(receiverNames) {
		return receiverNames[k]
	}
	return "unknown"
}

// Receiver describes the object of a method call.
type Receiver struct {
	Kind ReceiverKind
	// Name is the variable, imported name, module alias, or the dotted
	// callee of the inner call for ReceiverCall.
	Name string
	// Field is the attribute of self for ReceiverAttribute, or the member of
	// a module alias for ReceiverModule.
	Field string
	// Class is the enclosing class for ReceiverSelf and ReceiverAttribute,
	// or the called class for ReceiverClass.
	Class models.TypeID
	// Super marks super().m() and super.m() calls.
	Super bool
	// Slot holds the type-flow facts of the receiver, when it has one.
	Slot typeflow.Slot
	// Types are receiver types known at the call site, e.g. Foo().m().
	Types []models.TypeID
	// Factory names the factory function or class mapping the receiver was
	// produced by; FactoryMapping is set for mappings.
	Factory        string
	FactoryMapping bool
}

// ArgFlow is what one call argument may carry.
type ArgFlow struct {
	Keyword string
	Types   []models.TypeID
	Slots   []typeflow.Slot
	// Func is set when the argument is a function reference.
	Func *crossmod.FunctionRef
}

// UnresolvedCall is a call site that could not be bound inside its file.
type UnresolvedCall struct {
	Caller   models.FunctionID
	File     string
	Line     int
	Callee   string
	Receiver Receiver
	Args     []ArgFlow
	// Constructor marks instantiation syntax or a call to a class.
	Constructor bool
}

// ArgCount returns the number of arguments at the call site.
func (c *UnresolvedCall) ArgCount() int {
	return len(c.Args)
}

// Compare orders calls by file, line, caller, then callee, for
// deterministic processing.
func (c *UnresolvedCall) Compare(other *UnresolvedCall) int {
	return cmp.Or(
		strings.Compare(c.File, other.File),
		cmp.Compare(c.Line, other.Line),
		c.Caller.Compare(other.Caller),
		strings.Compare(c.Callee, other.Callee),
		cmp.Compare(c.Receiver.Kind, other.Receiver.Kind),
		strings.Compare(c.Receiver.Name, other.Receiver.Name),
		strings.Compare(c.Receiver.Field, other.Receiver.Field),
	)
}

// DottedCallee renders the call as written, e.g. "self.render" or "mod.run".
func (c *UnresolvedCall) DottedCallee() string {
	switch c.Receiver.Kind {
	case ReceiverNone:
		return c.Callee
	case ReceiverSelf:
		return "self." + c.Callee
	case ReceiverAttribute:
		return "self." + c.Receiver.Field + "." + c.Callee
	case ReceiverModule:
		if c.Receiver.Field != "" {
			return c.Receiver.Name + "." + c.Receiver.Field + "." + c.Callee
		}
		return c.Receiver.Name + "." + c.Callee
	case ReceiverClass:
		return c.Receiver.Class.Name + "." + c.Callee
	case ReceiverCall:
		return c.Receiver.Name + "()." + c.Callee
	case ReceiverImported, ReceiverVariable:
		return c.Receiver.Name + "." + c.Callee
	}
	return "<expr>." + c.Callee
}
