package treesitter

import (
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

func goIsBlock(t string) bool {
	return t == "block"
}

func goIsStmt(t string) bool {
	return strings.HasSuffix(t, "_statement") || strings.HasSuffix(t, "_declaration") ||
		strings.HasSuffix(t, "_case") || t == "default_case" || t == "communication_case"
}

func (l *lowerer) goBlock(n *sitter.Node) []*ast.Stmt {
	var out []*ast.Stmt
	for _, c := range namedChildren(n) {
		out = append(out, l.goStmt(c)...)
	}
	return out
}

func (l *lowerer) goStmt(n *sitter.Node) []*ast.Stmt {
	line := parser.Line(n)
	switch n.Type() {
	case "function_declaration", "method_declaration":
		return []*ast.Stmt{{Kind: ast.StmtFunction, Line: line, Function: l.goFunction(n)}}

	case "type_declaration":
		var out []*ast.Stmt
		for _, spec := range namedChildren(n) {
			if spec.Type() != "type_spec" {
				continue
			}
			if c := l.goTypeSpec(spec); c != nil {
				out = append(out, &ast.Stmt{Kind: ast.StmtClass, Line: parser.Line(spec), Class: c})
			}
		}
		return out

	case "short_var_declaration", "assignment_statement":
		targets := l.goExprList(l.field(n, "left"))
		values := l.goExprList(l.field(n, "right"))
		op := l.text(l.field(n, "operator"))
		kind := ast.StmtAssign
		if op != "" && op != "=" && op != ":=" {
			kind = ast.StmtAugAssign
		}
		return l.goPairAssign(kind, line, targets, values, "", op)

	case "var_declaration", "const_declaration":
		var out []*ast.Stmt
		for _, spec := range namedChildren(n) {
			if spec.Type() != "var_spec" && spec.Type() != "const_spec" {
				continue
			}
			var targets []*ast.Expr
			for _, c := range namedChildren(spec) {
				if c.Type() == "identifier" {
					targets = append(targets, l.name(c))
				}
			}
			values := l.goExprList(l.field(spec, "value"))
			annotation := l.typeText(l.field(spec, "type"))
			out = append(out, l.goPairAssign(ast.StmtAssign, parser.Line(spec), targets, values, annotation, "")...)
		}
		return out

	case "expression_statement":
		var out []*ast.Stmt
		for _, c := range namedChildren(n) {
			out = append(out, &ast.Stmt{Kind: ast.StmtExpr, Line: parser.Line(c), Value: l.goExpr(c)})
		}
		return out

	case "go_statement", "defer_statement":
		var out []*ast.Stmt
		for _, c := range namedChildren(n) {
			out = append(out, &ast.Stmt{Kind: ast.StmtExpr, Line: line, Value: l.goExpr(c)})
		}
		return out

	case "return_statement":
		s := &ast.Stmt{Kind: ast.StmtReturn, Line: line}
		if kids := namedChildren(n); len(kids) > 0 {
			values := l.goExprList(kids[0])
			if len(values) == 1 {
				s.Value = values[0]
			} else if len(values) > 1 {
				s.Value = &ast.Expr{Kind: ast.ExprOther, Args: values, Line: line}
			}
		}
		return []*ast.Stmt{s}

	case "for_statement":
		var rc *sitter.Node
		for _, c := range namedChildren(n) {
			if c.Type() == "range_clause" {
				rc = c
			}
		}
		body := l.goBlock(l.field(n, "body"))
		if rc == nil {
			s := l.genericStmt(n, goIsBlock, goIsStmt, l.goBlock, l.goStmt, l.goExpr)
			return []*ast.Stmt{s}
		}
		s := &ast.Stmt{Kind: ast.StmtFor, Line: line, Value: l.goExpr(l.field(rc, "right")), Body: body}
		// The element is the last of the range variables.
		if targets := l.goExprList(l.field(rc, "left")); len(targets) > 0 {
			s.Targets = []*ast.Expr{targets[len(targets)-1]}
		}
		return []*ast.Stmt{s}

	case "if_statement":
		s := &ast.Stmt{Kind: ast.StmtBranch, Line: line}
		if init := l.field(n, "initializer"); init != nil {
			s.Blocks = append(s.Blocks, l.goStmt(init))
		}
		s.Conditions = append(s.Conditions, l.goExpr(l.field(n, "condition")))
		s.Blocks = append(s.Blocks, l.goBlock(l.field(n, "consequence")))
		if alt := l.field(n, "alternative"); alt != nil {
			if alt.Type() == "block" {
				s.Blocks = append(s.Blocks, l.goBlock(alt))
			} else {
				s.Blocks = append(s.Blocks, l.goStmt(alt))
			}
		}
		return []*ast.Stmt{s}

	case "block":
		return []*ast.Stmt{{Kind: ast.StmtBranch, Line: line, Blocks: [][]*ast.Stmt{l.goBlock(n)}}}

	case "package_clause", "import_declaration", "break_statement", "continue_statement",
		"empty_statement", "goto_statement", "fallthrough_statement", "comment":
		return nil
	}

	return []*ast.Stmt{l.genericStmt(n, goIsBlock, goIsStmt, l.goBlock, l.goStmt, l.goExpr)}
}

// goPairAssign pairs targets with values positionally. A single multi-valued
// call on the right binds to every target.
func (l *lowerer) goPairAssign(kind ast.StmtKind, line int, targets, values []*ast.Expr, annotation, op string) []*ast.Stmt {
	if len(targets) == 0 {
		return nil
	}
	if len(values) == len(targets) || len(values) == 0 {
		out := make([]*ast.Stmt, 0, len(targets))
		for i, t := range targets {
			s := &ast.Stmt{Kind: kind, Line: line, Targets: []*ast.Expr{t}, Annotation: annotation, Operator: op}
			if i < len(values) {
				s.Value = values[i]
			}
			out = append(out, s)
		}
		return out
	}
	return []*ast.Stmt{{
		Kind:       kind,
		Line:       line,
		Targets:    targets[:1],
		Value:      values[0],
		Annotation: annotation,
		Operator:   op,
	}}
}

func (l *lowerer) goExprList(n *sitter.Node) []*ast.Expr {
	if n == nil {
		return nil
	}
	if n.Type() != "expression_list" {
		return []*ast.Expr{l.goExpr(n)}
	}
	var out []*ast.Expr
	for _, c := range namedChildren(n) {
		out = append(out, l.goExpr(c))
	}
	return out
}

func (l *lowerer) goFunction(n *sitter.Node) *ast.FunctionDef {
	fn := l.newFunction(n)
	fn.Params = l.goParams(l.field(n, "parameters"))

	saved := l.selfName
	if n.Type() == "method_declaration" {
		fn.Receiver = parser.GoReceiverType(n, l.src)
		l.selfName = ""
		for _, p := range namedChildren(l.field(n, "receiver")) {
			if name := l.field(p, "name"); name != nil {
				l.selfName = l.text(name)
			}
		}
	}
	if body := l.field(n, "body"); body != nil {
		fn.Body = l.goBlock(body)
	} else {
		fn.Abstract = true
	}
	l.selfName = saved
	return fn
}

func (l *lowerer) goParams(n *sitter.Node) []ast.Param {
	var params []ast.Param
	for _, c := range namedChildren(n) {
		typ := l.typeText(l.field(c, "type"))
		variadic := c.Type() == "variadic_parameter_declaration"
		names := 0
		for _, k := range namedChildren(c) {
			if k.Type() == "identifier" {
				params = append(params, ast.Param{Name: l.text(k), Type: typ, Variadic: variadic})
				names++
			}
		}
		if names == 0 {
			params = append(params, ast.Param{Type: typ, Variadic: variadic})
		}
	}
	return params
}

// goTypeSpec lowers struct and interface declarations. Other named types are
// not class-like and are dropped.
func (l *lowerer) goTypeSpec(spec *sitter.Node) *ast.ClassDef {
	typ := l.field(spec, "type")
	if typ == nil {
		return nil
	}
	c := &ast.ClassDef{
		Name:    l.text(l.field(spec, "name")),
		Line:    parser.Line(spec),
		EndLine: parser.EndLine(spec),
	}
	switch typ.Type() {
	case "struct_type":
		c.Kind = ast.ClassStruct
		for _, list := range namedChildren(typ) {
			for _, f := range namedChildren(list) {
				if f.Type() != "field_declaration" {
					continue
				}
				ftype := l.typeText(l.field(f, "type"))
				named := false
				for _, k := range namedChildren(f) {
					if k.Type() != "field_identifier" {
						continue
					}
					named = true
					line := parser.Line(k)
					c.Body = append(c.Body, &ast.Stmt{
						Kind:       ast.StmtAssign,
						Line:       line,
						Targets:    []*ast.Expr{{Kind: ast.ExprAttribute, Name: l.text(k), Object: self(k), Line: line}},
						Annotation: ftype,
					})
				}
				if !named && ftype != "" {
					c.Bases = append(c.Bases, parser.CleanGoTypeName(ftype))
				}
			}
		}
	case "interface_type":
		c.Kind = ast.ClassInterface
		for _, m := range namedChildren(typ) {
			switch m.Type() {
			case "method_spec", "method_elem":
				fn := l.newFunction(m)
				fn.Params = l.goParams(l.field(m, "parameters"))
				fn.Abstract = true
				c.Body = append(c.Body, &ast.Stmt{Kind: ast.StmtFunction, Line: parser.Line(m), Function: fn})
			case "type_elem", "constraint_elem", "interface_type_name", "type_identifier", "qualified_type":
				c.Bases = append(c.Bases, parser.CleanGoTypeName(l.text(m)))
			}
		}
	default:
		return nil
	}
	return c
}

func (l *lowerer) goArgs(n *sitter.Node) []*ast.Expr {
	var args []*ast.Expr
	for _, c := range namedChildren(n) {
		if e := l.goExpr(c); e != nil {
			args = append(args, e)
		}
	}
	return args
}

func (l *lowerer) goExpr(n *sitter.Node) *ast.Expr {
	if n == nil {
		return nil
	}
	line := parser.Line(n)
	switch n.Type() {
	case "identifier", "field_identifier", "package_identifier", "type_identifier":
		if l.selfName != "" && l.text(n) == l.selfName {
			return self(n)
		}
		return l.name(n)
	case "selector_expression":
		return &ast.Expr{
			Kind:   ast.ExprAttribute,
			Name:   l.text(l.field(n, "field")),
			Object: l.goExpr(l.field(n, "operand")),
			Line:   line,
		}
	case "qualified_type":
		return &ast.Expr{
			Kind:   ast.ExprAttribute,
			Name:   l.text(l.field(n, "name")),
			Object: l.name(l.field(n, "package")),
			Line:   line,
		}
	case "call_expression":
		return &ast.Expr{
			Kind:   ast.ExprCall,
			Object: l.goExpr(l.field(n, "function")),
			Args:   l.goArgs(l.field(n, "arguments")),
			Line:   line,
		}
	case "composite_literal":
		return l.goComposite(n)
	case "unary_expression":
		operand := l.field(n, "operand")
		if l.text(l.field(n, "operator")) == "&" {
			return l.goExpr(operand)
		}
		return l.other(n, l.goExpr)
	case "func_literal":
		fn := l.goFunction(n)
		return &ast.Expr{Kind: ast.ExprFunction, Function: fn, Name: fn.Name, Line: line}
	case "index_expression":
		return &ast.Expr{
			Kind:   ast.ExprSubscript,
			Object: l.goExpr(l.field(n, "operand")),
			Args:   []*ast.Expr{l.goExpr(l.field(n, "index"))},
			Line:   line,
		}
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) > 0 {
			return l.goExpr(kids[0])
		}
		return nil
	case "type_assertion_expression":
		return l.goExpr(l.field(n, "operand"))
	case "interpreted_string_literal", "raw_string_literal", "int_literal", "float_literal",
		"imaginary_literal", "rune_literal", "true", "false", "nil", "iota":
		return l.literal(n)
	}
	return l.other(n, l.goExpr)
}

// goComposite lowers T{...}. Slices and arrays become collections, maps
// become mappings, and anything else is a constructor call with keyed fields
// as keyword arguments.
func (l *lowerer) goComposite(n *sitter.Node) *ast.Expr {
	line := parser.Line(n)
	typ := l.field(n, "type")
	body := l.field(n, "body")
	if typ == nil {
		return l.other(n, l.goExpr)
	}

	var keys []string
	var values []*ast.Expr
	for _, el := range namedChildren(body) {
		switch el.Type() {
		case "keyed_element":
			kids := namedChildren(el)
			if len(kids) < 2 {
				continue
			}
			keys = append(keys, trimQuotes(l.text(kids[0])))
			values = append(values, l.goElement(kids[1]))
		case "literal_element":
			keys = append(keys, "")
			values = append(values, l.goElement(el))
		default:
			keys = append(keys, "")
			values = append(values, l.goExpr(el))
		}
	}

	switch typ.Type() {
	case "slice_type", "array_type", "implicit_length_array_type":
		return &ast.Expr{Kind: ast.ExprCollection, Args: values, Line: line}
	case "map_type":
		return &ast.Expr{Kind: ast.ExprMapping, Keys: keys, Args: values, Line: line}
	}

	call := &ast.Expr{Kind: ast.ExprCall, New: true, Object: l.goExpr(typ), Line: line}
	if typ.Type() == "generic_type" {
		call.Object = l.goExpr(l.field(typ, "type"))
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		arg := *v
		arg.Keyword = keys[i]
		call.Args = append(call.Args, &arg)
	}
	return call
}

func (l *lowerer) goElement(n *sitter.Node) *ast.Expr {
	if n.Type() == "literal_element" {
		if kids := namedChildren(n); len(kids) > 0 {
			return l.goExpr(kids[0])
		}
		return nil
	}
	return l.goExpr(n)
}

func (l *lowerer) goImports(root *sitter.Node) []ast.Import {
	var imports []ast.Import
	parser.WalkTyped(root, l.src, func(n *sitter.Node, t string, _ []byte) bool {
		if t != "import_spec" {
			return t == "source_file" || t == "import_declaration" || t == "import_spec_list"
		}
		imp := ast.Import{Module: trimQuotes(l.text(l.field(n, "path"))), Line: parser.Line(n)}
		if name := l.field(n, "name"); name != nil {
			switch name.Type() {
			case "dot":
				imp.Wildcard = true
			case "blank_identifier":
				return false
			default:
				imp.Alias = l.text(name)
			}
		}
		if imp.Alias == "" && !imp.Wildcard {
			imp.Alias = imp.Module[strings.LastIndex(imp.Module, "/")+1:]
		}
		imports = append(imports, imp)
		return false
	})
	return imports
}
