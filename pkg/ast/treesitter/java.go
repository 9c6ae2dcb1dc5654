package treesitter

import (
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

func javaIsBlock(t string) bool {
	return t == "block" || t == "constructor_body" || t == "switch_block"
}

func javaIsStmt(t string) bool {
	return strings.HasSuffix(t, "_statement") || strings.HasSuffix(t, "_declaration") ||
		strings.HasSuffix(t, "_clause") || t == "switch_block_statement_group" || t == "switch_rule"
}

func (l *lowerer) javaBlock(n *sitter.Node) []*ast.Stmt {
	var out []*ast.Stmt
	for _, c := range namedChildren(n) {
		out = append(out, l.javaStmt(c)...)
	}
	return out
}

func (l *lowerer) javaBody(n *sitter.Node) []*ast.Stmt {
	if n == nil {
		return nil
	}
	if javaIsBlock(n.Type()) {
		return l.javaBlock(n)
	}
	return l.javaStmt(n)
}

func (l *lowerer) javaStmt(n *sitter.Node) []*ast.Stmt {
	line := parser.Line(n)
	switch n.Type() {
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		return []*ast.Stmt{{Kind: ast.StmtClass, Line: line, Class: l.javaClass(n)}}

	case "method_declaration", "constructor_declaration":
		return []*ast.Stmt{{Kind: ast.StmtFunction, Line: line, Function: l.javaFunction(n)}}

	case "local_variable_declaration":
		return l.javaDeclarators(n, false)

	case "expression_statement":
		var out []*ast.Stmt
		for _, c := range namedChildren(n) {
			if c.Type() == "assignment_expression" {
				op := l.text(l.field(c, "operator"))
				kind := ast.StmtAssign
				if op != "=" {
					kind = ast.StmtAugAssign
				}
				out = append(out, &ast.Stmt{
					Kind:     kind,
					Line:     parser.Line(c),
					Targets:  []*ast.Expr{l.javaExpr(l.field(c, "left"))},
					Operator: op,
					Value:    l.javaExpr(l.field(c, "right")),
				})
				continue
			}
			out = append(out, &ast.Stmt{Kind: ast.StmtExpr, Line: parser.Line(c), Value: l.javaExpr(c)})
		}
		return out

	case "return_statement":
		s := &ast.Stmt{Kind: ast.StmtReturn, Line: line}
		if kids := namedChildren(n); len(kids) > 0 {
			s.Value = l.javaExpr(kids[0])
		}
		return []*ast.Stmt{s}

	case "enhanced_for_statement":
		return []*ast.Stmt{{
			Kind:       ast.StmtFor,
			Line:       line,
			Targets:    []*ast.Expr{l.name(l.field(n, "name"))},
			Annotation: l.typeText(l.field(n, "type")),
			Value:      l.javaExpr(l.field(n, "value")),
			Body:       l.javaBody(l.field(n, "body")),
		}}

	case "if_statement":
		s := &ast.Stmt{Kind: ast.StmtBranch, Line: line}
		s.Conditions = append(s.Conditions, l.javaExpr(l.field(n, "condition")))
		s.Blocks = append(s.Blocks, l.javaBody(l.field(n, "consequence")))
		if alt := l.field(n, "alternative"); alt != nil {
			s.Blocks = append(s.Blocks, l.javaBody(alt))
		}
		return []*ast.Stmt{s}

	case "block", "constructor_body":
		return []*ast.Stmt{{Kind: ast.StmtBranch, Line: line, Blocks: [][]*ast.Stmt{l.javaBlock(n)}}}

	case "explicit_constructor_invocation":
		call := &ast.Expr{
			Kind:   ast.ExprCall,
			Object: l.javaExpr(l.field(n, "constructor")),
			Args:   l.javaArgs(l.field(n, "arguments")),
			Line:   line,
		}
		return []*ast.Stmt{{Kind: ast.StmtExpr, Line: line, Value: call}}

	case "package_declaration", "import_declaration", "break_statement", "continue_statement",
		"line_comment", "block_comment", ";", "empty_statement":
		return nil
	}
	return []*ast.Stmt{l.genericStmt(n, javaIsBlock, javaIsStmt, l.javaBlock, l.javaStmt, l.javaExpr)}
}

// javaDeclarators lowers local and field declarations. Fields bind to self.
func (l *lowerer) javaDeclarators(n *sitter.Node, field bool) []*ast.Stmt {
	typ := l.typeText(l.field(n, "type"))
	var out []*ast.Stmt
	for _, d := range namedChildren(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		line := parser.Line(d)
		target := l.name(l.field(d, "name"))
		if field {
			target = &ast.Expr{Kind: ast.ExprAttribute, Name: target.Name, Object: self(d), Line: line}
		}
		out = append(out, &ast.Stmt{
			Kind:       ast.StmtAssign,
			Line:       line,
			Targets:    []*ast.Expr{target},
			Value:      l.javaExpr(l.field(d, "value")),
			Annotation: typ,
		})
	}
	return out
}

// javaModifiers returns the annotations of a declaration and whether the
// given keyword modifiers are present.
func (l *lowerer) javaModifiers(n *sitter.Node) (decorators []ast.Decorator, abstract, static bool) {
	for _, c := range namedChildren(n) {
		if c.Type() != "modifiers" {
			continue
		}
		for i := range int(c.ChildCount()) {
			m := c.Child(i)
			switch m.Type() {
			case "marker_annotation", "annotation":
				d := ast.Decorator{Name: l.text(l.field(m, "name")), Line: parser.Line(m)}
				if args := l.field(m, "arguments"); args != nil {
					for _, a := range namedChildren(args) {
						if a.Type() == "element_value_pair" {
							arg := l.javaExpr(l.field(a, "value"))
							if arg != nil {
								arg.Keyword = l.text(l.field(a, "key"))
								d.Args = append(d.Args, arg)
							}
							continue
						}
						if arg := l.javaExpr(a); arg != nil {
							d.Args = append(d.Args, arg)
						}
					}
				}
				decorators = append(decorators, d)
			case "abstract":
				abstract = true
			case "static":
				static = true
			}
		}
	}
	return decorators, abstract, static
}

func (l *lowerer) javaFunction(n *sitter.Node) *ast.FunctionDef {
	fn := l.newFunction(n)
	fn.Decorators, fn.Abstract, fn.Static = l.javaModifiers(n)
	fn.Params = l.javaParams(l.field(n, "parameters"))
	body := l.field(n, "body")
	switch {
	case body == nil:
		fn.Abstract = true
	case javaIsBlock(body.Type()):
		fn.Body = l.javaBlock(body)
	default:
		fn.Body = returnOf(l.javaExpr(body))
	}
	return fn
}

func (l *lowerer) javaParams(n *sitter.Node) []ast.Param {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return []ast.Param{{Name: l.text(n)}}
	case "inferred_parameters":
		var params []ast.Param
		for _, c := range namedChildren(n) {
			params = append(params, ast.Param{Name: l.text(c)})
		}
		return params
	}
	var params []ast.Param
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "formal_parameter":
			params = append(params, ast.Param{
				Name: l.text(l.field(c, "name")),
				Type: l.typeText(l.field(c, "type")),
			})
		case "spread_parameter":
			p := ast.Param{Variadic: true}
			for _, k := range namedChildren(c) {
				switch k.Type() {
				case "variable_declarator":
					p.Name = l.text(l.field(k, "name"))
				case "modifiers":
				default:
					if p.Type == "" {
						p.Type = l.text(k)
					}
				}
			}
			params = append(params, p)
		case "identifier":
			params = append(params, ast.Param{Name: l.text(c)})
		}
	}
	return params
}

func (l *lowerer) javaClass(n *sitter.Node) *ast.ClassDef {
	c := &ast.ClassDef{
		Name:    l.text(l.field(n, "name")),
		Line:    parser.Line(n),
		EndLine: parser.EndLine(n),
		Kind:    ast.ClassPlain,
	}
	c.Decorators, c.Abstract, _ = l.javaModifiers(n)
	if n.Type() == "interface_declaration" {
		c.Kind = ast.ClassInterface
	}

	if super := l.field(n, "superclass"); super != nil {
		for _, t := range namedChildren(super) {
			c.Bases = append(c.Bases, l.text(t))
		}
	}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "super_interfaces", "extends_interfaces":
			for _, list := range namedChildren(k) {
				for _, t := range namedChildren(list) {
					if c.Kind == ast.ClassInterface {
						c.Bases = append(c.Bases, l.text(t))
					} else {
						c.Interfaces = append(c.Interfaces, l.text(t))
					}
				}
			}
		}
	}
	if params := l.field(n, "parameters"); params != nil && n.Type() == "record_declaration" {
		for _, p := range l.javaParams(params) {
			line := parser.Line(params)
			c.Body = append(c.Body, &ast.Stmt{
				Kind:       ast.StmtAssign,
				Line:       line,
				Targets:    []*ast.Expr{{Kind: ast.ExprAttribute, Name: p.Name, Object: self(params), Line: line}},
				Annotation: p.Type,
			})
		}
	}
	c.Body = append(c.Body, l.javaClassBody(l.field(n, "body"), c.Kind == ast.ClassInterface)...)
	return c
}

func (l *lowerer) javaClassBody(body *sitter.Node, inInterface bool) []*ast.Stmt {
	var out []*ast.Stmt
	for _, m := range namedChildren(body) {
		line := parser.Line(m)
		switch m.Type() {
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			fn := l.javaFunction(m)
			if inInterface && l.field(m, "body") != nil {
				// Default methods carry an implementation.
				fn.Abstract = false
			}
			out = append(out, &ast.Stmt{Kind: ast.StmtFunction, Line: line, Function: fn})
		case "field_declaration", "constant_declaration":
			out = append(out, l.javaDeclarators(m, true)...)
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			out = append(out, &ast.Stmt{Kind: ast.StmtClass, Line: line, Class: l.javaClass(m)})
		case "static_initializer", "block":
			out = append(out, &ast.Stmt{Kind: ast.StmtBranch, Line: line, Blocks: [][]*ast.Stmt{l.javaBody(lastNamed(m))}})
		case "enum_body_declarations":
			out = append(out, l.javaClassBody(m, inInterface)...)
		case "enum_constant":
			if cb := l.field(m, "body"); cb != nil {
				anon := &ast.ClassDef{Line: line, EndLine: parser.EndLine(m), Kind: ast.ClassPlain, Body: l.javaClassBody(cb, false)}
				out = append(out, &ast.Stmt{Kind: ast.StmtExpr, Line: line, Value: &ast.Expr{Kind: ast.ExprClass, Class: anon, Line: line}})
			}
		}
	}
	return out
}

func lastNamed(n *sitter.Node) *sitter.Node {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return n
	}
	if n.Type() == "block" {
		return n
	}
	return kids[len(kids)-1]
}

func (l *lowerer) javaArgs(n *sitter.Node) []*ast.Expr {
	var args []*ast.Expr
	for _, c := range namedChildren(n) {
		if e := l.javaExpr(c); e != nil {
			args = append(args, e)
		}
	}
	return args
}

func (l *lowerer) javaExpr(n *sitter.Node) *ast.Expr {
	if n == nil {
		return nil
	}
	line := parser.Line(n)
	switch n.Type() {
	case "identifier", "type_identifier":
		return l.name(n)
	case "this":
		return self(n)
	case "super":
		e := self(n)
		e.Name = "super"
		return e
	case "scoped_identifier", "scoped_type_identifier":
		kids := namedChildren(n)
		if len(kids) < 2 {
			return l.name(n)
		}
		return &ast.Expr{Kind: ast.ExprAttribute, Name: l.text(kids[len(kids)-1]), Object: l.javaExpr(kids[0]), Line: line}
	case "generic_type":
		if kids := namedChildren(n); len(kids) > 0 {
			return l.javaExpr(kids[0])
		}
		return l.name(n)
	case "field_access":
		return &ast.Expr{
			Kind:   ast.ExprAttribute,
			Name:   l.text(l.field(n, "field")),
			Object: l.javaExpr(l.field(n, "object")),
			Line:   line,
		}
	case "method_invocation":
		callee := l.name(l.field(n, "name"))
		if obj := l.field(n, "object"); obj != nil {
			callee = &ast.Expr{Kind: ast.ExprAttribute, Name: callee.Name, Object: l.javaExpr(obj), Line: line}
		}
		return &ast.Expr{Kind: ast.ExprCall, Object: callee, Args: l.javaArgs(l.field(n, "arguments")), Line: line}
	case "object_creation_expression":
		call := &ast.Expr{
			Kind:   ast.ExprCall,
			New:    true,
			Object: l.javaExpr(l.field(n, "type")),
			Args:   l.javaArgs(l.field(n, "arguments")),
			Line:   line,
		}
		for _, c := range namedChildren(n) {
			if c.Type() == "class_body" {
				call.Class = &ast.ClassDef{
					Line:    parser.Line(c),
					EndLine: parser.EndLine(c),
					Kind:    ast.ClassPlain,
					Bases:   []string{l.text(l.field(n, "type"))},
					Body:    l.javaClassBody(c, false),
				}
			}
		}
		return call
	case "array_creation_expression":
		if v := l.field(n, "value"); v != nil {
			return l.javaExpr(v)
		}
		return &ast.Expr{Kind: ast.ExprCollection, Line: line}
	case "array_initializer":
		return &ast.Expr{Kind: ast.ExprCollection, Args: l.javaArgs(n), Line: line}
	case "array_access":
		return &ast.Expr{
			Kind:   ast.ExprSubscript,
			Object: l.javaExpr(l.field(n, "array")),
			Args:   []*ast.Expr{l.javaExpr(l.field(n, "index"))},
			Line:   line,
		}
	case "ternary_expression":
		return &ast.Expr{
			Kind:   ast.ExprConditional,
			Object: l.javaExpr(l.field(n, "condition")),
			Args:   []*ast.Expr{l.javaExpr(l.field(n, "consequence")), l.javaExpr(l.field(n, "alternative"))},
			Line:   line,
		}
	case "lambda_expression":
		fn := l.javaFunction(n)
		fn.Abstract = false
		return &ast.Expr{Kind: ast.ExprFunction, Function: fn, Name: fn.Name, Line: line}
	case "method_reference":
		kids := namedChildren(n)
		if len(kids) < 2 {
			return l.other(n, l.javaExpr)
		}
		return &ast.Expr{Kind: ast.ExprAttribute, Name: l.text(kids[len(kids)-1]), Object: l.javaExpr(kids[0]), Line: line}
	case "cast_expression":
		return l.javaExpr(l.field(n, "value"))
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) > 0 {
			return l.javaExpr(kids[0])
		}
		return nil
	case "assignment_expression":
		return l.javaExpr(l.field(n, "right"))
	case "string_literal", "character_literal", "decimal_integer_literal", "hex_integer_literal",
		"decimal_floating_point_literal", "true", "false", "null_literal", "text_block", "class_literal":
		return l.literal(n)
	}
	return l.other(n, l.javaExpr)
}

// javaImports splits each import into its package and imported class.
func (l *lowerer) javaImports(root *sitter.Node) []ast.Import {
	var imports []ast.Import
	for _, n := range namedChildren(root) {
		if n.Type() != "import_declaration" {
			continue
		}
		var path string
		wildcard := false
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "scoped_identifier", "identifier":
				path = l.text(c)
			case "asterisk":
				wildcard = true
			}
		}
		if path == "" {
			continue
		}
		imp := ast.Import{Module: path, Wildcard: wildcard, Line: parser.Line(n)}
		if !wildcard {
			if i := strings.LastIndexByte(path, '.'); i > 0 {
				imp.Module = path[:i]
				imp.Names = []ast.ImportName{{Name: path[i+1:]}}
			}
		}
		imports = append(imports, imp)
	}
	return imports
}
