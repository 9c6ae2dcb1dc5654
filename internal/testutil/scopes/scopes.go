// Package scopes qualifies function definitions from their ancestor chain in
// the concrete syntax tree, independently of the extractor's scope stack.
package scopes

import (
	"strings"

	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// Function is a definition found by walking the syntax tree.
type Function struct {
	QualifiedName string
	Line          int
}

var functionTypes = map[parser.Language][]string{
	parser.LangPython: {"function_definition", "lambda"},
	parser.LangJavaScript: {
		"function_declaration", "generator_function_declaration",
		"function", "function_expression", "generator_function",
		"arrow_function", "method_definition",
		"method_signature", "abstract_method_signature",
	},
	parser.LangGo:   {"function_declaration", "method_declaration", "func_literal", "method_spec", "method_elem"},
	parser.LangJava: {"method_declaration", "constructor_declaration", "lambda_expression"},
}

var classTypes = map[parser.Language][]string{
	parser.LangPython:     {"class_definition"},
	parser.LangJavaScript: {"class_declaration", "class", "abstract_class_declaration", "interface_declaration"},
	parser.LangGo:         {"type_spec"},
	parser.LangJava:       {"class_declaration", "interface_declaration", "enum_declaration", "record_declaration"},
}

func family(lang parser.Language) parser.Language {
	if lang.IsJSFamily() {
		return parser.LangJavaScript
	}
	return lang
}

// matches reports whether n is a named node of one of types. Keyword tokens
// such as Python's lambda or JavaScript's function share their type name with
// the construct they open and are skipped.
func matches(n *sitter.Node, types []string) bool {
	if !n.IsNamed() {
		return false
	}
	t := n.Type()
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// IsFunction reports whether n defines a function in lang.
func IsFunction(n *sitter.Node, lang parser.Language) bool {
	return matches(n, functionTypes[family(lang)])
}

// IsClass reports whether n introduces a class-like scope in lang.
func IsClass(n *sitter.Node, lang parser.Language) bool {
	return matches(n, classTypes[family(lang)])
}

// ClassName returns the name a class-like node contributes to nested
// definitions. Go structs contribute nothing; their methods are qualified by
// receiver instead.
func ClassName(n *sitter.Node, source []byte, lang parser.Language) string {
	if lang == parser.LangGo {
		if t := n.ChildByFieldName("type"); t == nil || t.Type() != "interface_type" {
			return ""
		}
	}
	return parser.GetNodeText(n.ChildByFieldName("name"), source)
}

func segment(n *sitter.Node, source []byte, lang parser.Language) string {
	switch {
	case IsFunction(n, lang):
		name := parser.FunctionName(n, source, lang)
		if lang == parser.LangGo && n.Type() == "method_declaration" {
			if recv := parser.GoReceiverType(n, source); recv != "" {
				return recv + "." + name
			}
		}
		return name
	case IsClass(n, lang):
		return ClassName(n, source, lang)
	}
	return ""
}

// Functions returns every function definition of result in source order,
// qualified by the names of its enclosing functions and classes.
func Functions(result *parser.ParseResult) []Function {
	lang := result.Language
	var out []Function
	parser.WalkTyped(result.Root(), result.Source, func(n *sitter.Node, _ string, source []byte) bool {
		if !IsFunction(n, lang) {
			return true
		}
		segments := []string{segment(n, source, lang)}
		for p := n.Parent(); p != nil; p = p.Parent() {
			if seg := segment(p, source, lang); seg != "" {
				segments = append([]string{seg}, segments...)
			}
		}
		out = append(out, Function{
			QualifiedName: strings.Join(segments, "."),
			Line:          parser.DeclarationLine(n, lang),
		})
		return true
	})
	return out
}
