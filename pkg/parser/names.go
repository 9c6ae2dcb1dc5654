package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Anonymous closures have no name of their own; they are qualified by their
// enclosing scope and distinguished by declaration line.
const (
	PythonAnonymousName = "<lambda>"
	AnonymousName       = "<anonymous>"
)

// AnonymousFunctionName returns the placeholder name for closures in lang.
func AnonymousFunctionName(lang Language) string {
	if lang == LangPython {
		return PythonAnonymousName
	}
	return AnonymousName
}

// DeclarationLine returns the line of the def/function keyword of a function
// node. Decorators, annotations and comments attached to the node are skipped.
func DeclarationLine(node *sitter.Node, lang Language) int {
	switch {
	case lang.IsJSFamily():
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			switch child.Type() {
			case "decorator", "comment":
				continue
			}
			return Line(child)
		}
	case lang == LangJava:
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			switch child.Type() {
			case "modifiers":
				if line, ok := firstKeywordLine(child); ok {
					return line
				}
				continue
			case "line_comment", "block_comment", "marker_annotation", "annotation":
				continue
			}
			return Line(child)
		}
	}
	return Line(node)
}

// firstKeywordLine finds the first non-annotation modifier of a Java declaration.
func firstKeywordLine(modifiers *sitter.Node) (int, bool) {
	for i := range int(modifiers.ChildCount()) {
		child := modifiers.Child(i)
		switch child.Type() {
		case "marker_annotation", "annotation", "line_comment", "block_comment":
			continue
		}
		return Line(child), true
	}
	return 0, false
}

// FunctionName returns the declared name of a function node, the name of the
// variable or field it is bound to for function expressions, or the anonymous
// placeholder.
func FunctionName(node *sitter.Node, source []byte, lang Language) string {
	switch node.Type() {
	case "lambda", "func_literal", "lambda_expression":
		return AnonymousFunctionName(lang)
	case "arrow_function", "function", "function_expression", "generator_function":
		if name := boundName(node, source); name != "" {
			return name
		}
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return GetNodeText(nameNode, source)
		}
		return AnonymousFunctionName(lang)
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return GetNodeText(nameNode, source)
	}
	return AnonymousFunctionName(lang)
}

// boundName returns the name a JS function expression is bound to, if any.
func boundName(node *sitter.Node, source []byte) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "variable_declarator":
		if value := parent.ChildByFieldName("value"); value != nil && value.Equal(node) {
			if name := parent.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				return GetNodeText(name, source)
			}
		}
	case "public_field_definition":
		if value := parent.ChildByFieldName("value"); value != nil && value.Equal(node) {
			return GetNodeText(parent.ChildByFieldName("name"), source)
		}
	case "field_definition":
		if value := parent.ChildByFieldName("value"); value != nil && value.Equal(node) {
			return GetNodeText(parent.ChildByFieldName("property"), source)
		}
	case "pair":
		if value := parent.ChildByFieldName("value"); value != nil && value.Equal(node) {
			key := parent.ChildByFieldName("key")
			if key != nil && (key.Type() == "property_identifier" || key.Type() == "identifier") {
				return GetNodeText(key, source)
			}
		}
	}
	return ""
}

// GoReceiverType returns the receiver type name of a Go method declaration,
// without pointer or type parameters.
func GoReceiverType(node *sitter.Node, source []byte) string {
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	for i := range int(receiver.NamedChildCount()) {
		param := receiver.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		return CleanGoTypeName(GetNodeText(param.ChildByFieldName("type"), source))
	}
	return ""
}

// CleanGoTypeName strips pointers, package qualifiers' surrounding noise and
// type parameters from a Go type expression.
func CleanGoTypeName(text string) string {
	text = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(text), "*&"))
	if i := strings.IndexByte(text, '['); i > 0 {
		text = text[:i]
	}
	return text
}
