package treesitter

import (
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

func jsIsBlock(t string) bool {
	return t == "statement_block" || t == "switch_body" || t == "class_body"
}

func jsIsStmt(t string) bool {
	return strings.HasSuffix(t, "_statement") || strings.HasSuffix(t, "_declaration") ||
		strings.HasSuffix(t, "_clause") || t == "switch_case" || t == "switch_default"
}

func (l *lowerer) jsBlock(n *sitter.Node) []*ast.Stmt {
	var out []*ast.Stmt
	for _, c := range namedChildren(n) {
		out = append(out, l.jsStmt(c)...)
	}
	return out
}

// jsBody lowers a statement that may be a block or a single statement.
func (l *lowerer) jsBody(n *sitter.Node) []*ast.Stmt {
	if n == nil {
		return nil
	}
	if n.Type() == "statement_block" {
		return l.jsBlock(n)
	}
	return l.jsStmt(n)
}

func (l *lowerer) jsStmt(n *sitter.Node) []*ast.Stmt {
	line := parser.Line(n)
	switch n.Type() {
	case "expression_statement":
		var out []*ast.Stmt
		for _, c := range namedChildren(n) {
			out = append(out, l.jsExprStmt(c))
		}
		return out

	case "lexical_declaration", "variable_declaration":
		var out []*ast.Stmt
		for _, d := range namedChildren(n) {
			if d.Type() != "variable_declarator" {
				continue
			}
			out = append(out, &ast.Stmt{
				Kind:       ast.StmtAssign,
				Line:       parser.Line(d),
				Targets:    []*ast.Expr{l.jsExpr(l.field(d, "name"))},
				Value:      l.jsExpr(l.field(d, "value")),
				Annotation: l.typeText(l.field(d, "type")),
			})
		}
		return out

	case "function_declaration", "generator_function_declaration":
		return []*ast.Stmt{{Kind: ast.StmtFunction, Line: line, Function: l.jsFunction(n)}}

	case "class_declaration", "abstract_class_declaration", "class":
		return []*ast.Stmt{{Kind: ast.StmtClass, Line: line, Class: l.jsClass(n)}}

	case "interface_declaration":
		return []*ast.Stmt{{Kind: ast.StmtClass, Line: line, Class: l.jsInterface(n)}}

	case "export_statement":
		if decl := l.field(n, "declaration"); decl != nil {
			return l.jsStmt(decl)
		}
		if value := l.field(n, "value"); value != nil {
			return []*ast.Stmt{{Kind: ast.StmtExpr, Line: line, Value: l.jsExpr(value)}}
		}
		return nil

	case "return_statement":
		s := &ast.Stmt{Kind: ast.StmtReturn, Line: line}
		if kids := namedChildren(n); len(kids) > 0 {
			s.Value = l.jsExpr(kids[0])
		}
		return []*ast.Stmt{s}

	case "if_statement":
		s := &ast.Stmt{Kind: ast.StmtBranch, Line: line}
		s.Conditions = append(s.Conditions, l.jsExpr(l.field(n, "condition")))
		s.Blocks = append(s.Blocks, l.jsBody(l.field(n, "consequence")))
		if alt := l.field(n, "alternative"); alt != nil {
			for _, c := range namedChildren(alt) {
				s.Blocks = append(s.Blocks, l.jsBody(c))
			}
		}
		return []*ast.Stmt{s}

	case "for_in_statement":
		s := &ast.Stmt{
			Kind:  ast.StmtFor,
			Line:  line,
			Value: l.jsExpr(l.field(n, "right")),
			Body:  l.jsBody(l.field(n, "body")),
		}
		if left := l.field(n, "left"); left != nil {
			s.Targets = []*ast.Expr{l.jsExpr(left)}
		}
		return []*ast.Stmt{s}

	case "statement_block":
		return []*ast.Stmt{{Kind: ast.StmtBranch, Line: line, Blocks: [][]*ast.Stmt{l.jsBlock(n)}}}

	case "import_statement", "empty_statement", "break_statement", "continue_statement",
		"comment", "type_alias_declaration", "debugger_statement", "hash_bang_line":
		return nil
	}

	return []*ast.Stmt{l.genericStmt(n, jsIsBlock, jsIsStmt, l.jsBlock, l.jsStmt, l.jsExpr)}
}

func (l *lowerer) jsExprStmt(n *sitter.Node) *ast.Stmt {
	line := parser.Line(n)
	switch n.Type() {
	case "assignment_expression":
		return &ast.Stmt{
			Kind:    ast.StmtAssign,
			Line:    line,
			Targets: []*ast.Expr{l.jsExpr(l.field(n, "left"))},
			Value:   l.jsExpr(l.field(n, "right")),
		}
	case "augmented_assignment_expression":
		return &ast.Stmt{
			Kind:     ast.StmtAugAssign,
			Line:     line,
			Targets:  []*ast.Expr{l.jsExpr(l.field(n, "left"))},
			Operator: l.text(l.field(n, "operator")),
			Value:    l.jsExpr(l.field(n, "right")),
		}
	}
	return &ast.Stmt{Kind: ast.StmtExpr, Line: line, Value: l.jsExpr(n)}
}

func (l *lowerer) jsDecorators(n *sitter.Node) []ast.Decorator {
	var out []ast.Decorator
	for _, c := range namedChildren(n) {
		if c.Type() == "decorator" {
			out = append(out, l.jsDecorator(c))
		}
	}
	return out
}

func (l *lowerer) jsDecorator(c *sitter.Node) ast.Decorator {
	d := ast.Decorator{Line: parser.Line(c)}
	if kids := namedChildren(c); len(kids) > 0 {
		expr := kids[0]
		if expr.Type() == "call_expression" {
			d.Name = l.text(l.field(expr, "function"))
			d.Args = l.jsArgs(l.field(expr, "arguments"))
		} else {
			d.Name = l.text(expr)
		}
	}
	return d
}

func (l *lowerer) jsFunction(n *sitter.Node) *ast.FunctionDef {
	fn := l.newFunction(n)
	fn.Decorators = l.jsDecorators(n)
	fn.Params = l.jsParams(l.field(n, "parameters"))
	if p := l.field(n, "parameter"); p != nil {
		fn.Params = append(fn.Params, ast.Param{Name: l.text(p)})
	}
	fn.Static = l.hasToken(n, "static")

	body := l.field(n, "body")
	switch {
	case body == nil:
		fn.Abstract = true
	case body.Type() == "statement_block":
		fn.Body = l.jsBlock(body)
	default:
		fn.Body = returnOf(l.jsExpr(body))
	}

	// Constructor parameter properties assign themselves to this.
	if fn.Name == "constructor" {
		fn.Body = append(l.jsParameterProperties(l.field(n, "parameters")), fn.Body...)
	}
	return fn
}

func (l *lowerer) jsParameterProperties(params *sitter.Node) []*ast.Stmt {
	var out []*ast.Stmt
	for _, c := range namedChildren(params) {
		if c.Type() != "required_parameter" && c.Type() != "optional_parameter" {
			continue
		}
		hasModifier := false
		for _, k := range namedChildren(c) {
			if k.Type() == "accessibility_modifier" || k.Type() == "readonly" || k.Type() == "override_modifier" {
				hasModifier = true
			}
		}
		if !hasModifier {
			continue
		}
		pattern := l.field(c, "pattern")
		if pattern == nil || pattern.Type() != "identifier" {
			continue
		}
		name := l.text(pattern)
		line := parser.Line(c)
		out = append(out, &ast.Stmt{
			Kind:       ast.StmtAssign,
			Line:       line,
			Targets:    []*ast.Expr{{Kind: ast.ExprAttribute, Name: name, Object: self(c), Line: line}},
			Value:      &ast.Expr{Kind: ast.ExprName, Name: name, Line: line},
			Annotation: l.typeText(l.field(c, "type")),
		})
	}
	return out
}

func (l *lowerer) jsParams(n *sitter.Node) []ast.Param {
	var params []ast.Param
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "identifier":
			params = append(params, ast.Param{Name: l.text(c)})
		case "required_parameter", "optional_parameter":
			p := ast.Param{Type: l.typeText(l.field(c, "type"))}
			if pattern := l.field(c, "pattern"); pattern != nil {
				p.Name = l.text(pattern)
				if pattern.Type() == "rest_pattern" {
					p.Name = strings.TrimPrefix(p.Name, "...")
					p.Variadic = true
				}
			}
			p.Default = l.jsExpr(l.field(c, "value"))
			params = append(params, p)
		case "assignment_pattern":
			params = append(params, ast.Param{
				Name:    l.text(l.field(c, "left")),
				Default: l.jsExpr(l.field(c, "right")),
			})
		case "rest_pattern":
			params = append(params, ast.Param{Name: strings.TrimPrefix(l.text(c), "..."), Variadic: true})
		case "object_pattern", "array_pattern":
			params = append(params, ast.Param{Name: l.text(c)})
		}
	}
	return params
}

func (l *lowerer) jsClass(n *sitter.Node) *ast.ClassDef {
	c := &ast.ClassDef{
		Name:       l.text(l.field(n, "name")),
		Line:       parser.Line(n),
		EndLine:    parser.EndLine(n),
		Kind:       ast.ClassPlain,
		Decorators: l.jsDecorators(n),
		Abstract:   n.Type() == "abstract_class_declaration",
	}
	for _, h := range namedChildren(n) {
		if h.Type() != "class_heritage" {
			continue
		}
		for _, clause := range namedChildren(h) {
			switch clause.Type() {
			case "extends_clause":
				for _, v := range namedChildren(clause) {
					if v.Type() != "type_arguments" {
						c.Bases = append(c.Bases, l.text(v))
					}
				}
			case "implements_clause":
				for _, v := range namedChildren(clause) {
					c.Interfaces = append(c.Interfaces, l.text(v))
				}
			default:
				c.Bases = append(c.Bases, l.text(clause))
			}
		}
	}
	c.Body = l.jsClassBody(l.field(n, "body"))
	return c
}

func (l *lowerer) jsClassBody(body *sitter.Node) []*ast.Stmt {
	var out []*ast.Stmt
	var pending []ast.Decorator
	for _, m := range namedChildren(body) {
		line := parser.Line(m)
		switch m.Type() {
		case "decorator":
			// TypeScript places member decorators in the class body ahead of
			// the member they annotate.
			pending = append(pending, l.jsDecorator(m))
			continue
		case "method_definition", "method_signature", "abstract_method_signature":
			fn := l.jsFunction(m)
			fn.Decorators = append(pending, fn.Decorators...)
			if m.Type() == "abstract_method_signature" {
				fn.Abstract = true
			}
			out = append(out, &ast.Stmt{Kind: ast.StmtFunction, Line: line, Function: fn})
		case "public_field_definition", "field_definition":
			nameNode := l.field(m, "name")
			if nameNode == nil {
				nameNode = l.field(m, "property")
			}
			target := &ast.Expr{Kind: ast.ExprAttribute, Name: l.text(nameNode), Object: self(m), Line: line}
			out = append(out, &ast.Stmt{
				Kind:       ast.StmtAssign,
				Line:       line,
				Targets:    []*ast.Expr{target},
				Value:      l.jsExpr(l.field(m, "value")),
				Annotation: l.typeText(l.field(m, "type")),
			})
		case "class_static_block":
			out = append(out, &ast.Stmt{Kind: ast.StmtBranch, Line: line, Blocks: [][]*ast.Stmt{l.jsBlock(l.field(m, "body"))}})
		}
		pending = nil
	}
	return out
}

func (l *lowerer) jsInterface(n *sitter.Node) *ast.ClassDef {
	c := &ast.ClassDef{
		Name:    l.text(l.field(n, "name")),
		Line:    parser.Line(n),
		EndLine: parser.EndLine(n),
		Kind:    ast.ClassInterface,
	}
	for _, k := range namedChildren(n) {
		if k.Type() == "extends_type_clause" {
			for _, v := range namedChildren(k) {
				c.Bases = append(c.Bases, l.text(v))
			}
		}
	}
	for _, m := range namedChildren(l.field(n, "body")) {
		if m.Type() == "method_signature" {
			fn := l.jsFunction(m)
			fn.Abstract = true
			c.Body = append(c.Body, &ast.Stmt{Kind: ast.StmtFunction, Line: parser.Line(m), Function: fn})
		}
	}
	return c
}

func (l *lowerer) jsArgs(n *sitter.Node) []*ast.Expr {
	var args []*ast.Expr
	for _, c := range namedChildren(n) {
		if e := l.jsExpr(c); e != nil {
			args = append(args, e)
		}
	}
	return args
}

func (l *lowerer) jsExpr(n *sitter.Node) *ast.Expr {
	if n == nil {
		return nil
	}
	line := parser.Line(n)
	switch n.Type() {
	case "identifier", "shorthand_property_identifier", "property_identifier":
		return l.name(n)
	case "this":
		return self(n)
	case "super":
		e := self(n)
		e.Name = "super"
		return e
	case "member_expression":
		return &ast.Expr{
			Kind:   ast.ExprAttribute,
			Name:   l.text(l.field(n, "property")),
			Object: l.jsExpr(l.field(n, "object")),
			Line:   line,
		}
	case "call_expression":
		return &ast.Expr{
			Kind:   ast.ExprCall,
			Object: l.jsExpr(l.field(n, "function")),
			Args:   l.jsArgs(l.field(n, "arguments")),
			Line:   line,
		}
	case "new_expression":
		return &ast.Expr{
			Kind:   ast.ExprCall,
			New:    true,
			Object: l.jsExpr(l.field(n, "constructor")),
			Args:   l.jsArgs(l.field(n, "arguments")),
			Line:   line,
		}
	case "array":
		return &ast.Expr{Kind: ast.ExprCollection, Args: l.jsArgs(n), Line: line}
	case "object":
		e := &ast.Expr{Kind: ast.ExprMapping, Line: line}
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "pair":
				e.Keys = append(e.Keys, trimQuotes(l.text(l.field(c, "key"))))
				e.Args = append(e.Args, l.jsExpr(l.field(c, "value")))
			case "shorthand_property_identifier":
				e.Keys = append(e.Keys, l.text(c))
				e.Args = append(e.Args, l.name(c))
			case "method_definition":
				fn := l.jsFunction(c)
				e.Keys = append(e.Keys, fn.Name)
				e.Args = append(e.Args, &ast.Expr{Kind: ast.ExprFunction, Function: fn, Name: fn.Name, Line: parser.Line(c)})
			case "spread_element":
				e.Keys = append(e.Keys, "")
				e.Args = append(e.Args, l.other(c, l.jsExpr))
			}
		}
		return e
	case "subscript_expression":
		return &ast.Expr{
			Kind:   ast.ExprSubscript,
			Object: l.jsExpr(l.field(n, "object")),
			Args:   []*ast.Expr{l.jsExpr(l.field(n, "index"))},
			Line:   line,
		}
	case "ternary_expression":
		return &ast.Expr{
			Kind:   ast.ExprConditional,
			Object: l.jsExpr(l.field(n, "condition")),
			Args:   []*ast.Expr{l.jsExpr(l.field(n, "consequence")), l.jsExpr(l.field(n, "alternative"))},
			Line:   line,
		}
	case "arrow_function", "function", "function_expression", "generator_function":
		fn := l.jsFunction(n)
		return &ast.Expr{Kind: ast.ExprFunction, Function: fn, Name: fn.Name, Line: line}
	case "class":
		return &ast.Expr{Kind: ast.ExprClass, Class: l.jsClass(n), Line: line}
	case "string", "template_string", "number", "true", "false", "null", "undefined", "regex":
		return l.literal(n)
	case "parenthesized_expression", "await_expression", "non_null_expression",
		"as_expression", "satisfies_expression", "type_assertion", "spread_element":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		if n.Type() == "type_assertion" {
			return l.jsExpr(kids[len(kids)-1])
		}
		return l.jsExpr(kids[0])
	case "assignment_expression":
		return l.jsExpr(l.field(n, "right"))
	}
	return l.other(n, l.jsExpr)
}

// jsImports collects ES imports and CommonJS requires.
func (l *lowerer) jsImports(root *sitter.Node) []ast.Import {
	var imports []ast.Import
	parser.WalkTyped(root, l.src, func(n *sitter.Node, t string, _ []byte) bool {
		switch t {
		case "import_statement":
			imp := ast.Import{Module: trimQuotes(l.text(l.field(n, "source"))), Line: parser.Line(n)}
			for _, c := range namedChildren(n) {
				if c.Type() != "import_clause" {
					continue
				}
				for _, k := range namedChildren(c) {
					switch k.Type() {
					case "identifier":
						imp.Names = append(imp.Names, ast.ImportName{Name: "default", Alias: l.text(k)})
					case "namespace_import":
						if ids := namedChildren(k); len(ids) > 0 {
							imp.Alias = l.text(ids[0])
						}
					case "named_imports":
						for _, spec := range namedChildren(k) {
							if spec.Type() != "import_specifier" {
								continue
							}
							imp.Names = append(imp.Names, ast.ImportName{
								Name:  l.text(l.field(spec, "name")),
								Alias: l.text(l.field(spec, "alias")),
							})
						}
					}
				}
			}
			imports = append(imports, imp)
			return false
		case "variable_declarator":
			value := l.field(n, "value")
			if value == nil || value.Type() != "call_expression" || l.text(l.field(value, "function")) != "require" {
				return true
			}
			args := namedChildren(l.field(value, "arguments"))
			if len(args) != 1 || args[0].Type() != "string" {
				return true
			}
			imp := ast.Import{Module: trimQuotes(l.text(args[0])), Line: parser.Line(n)}
			name := l.field(n, "name")
			switch name.Type() {
			case "identifier":
				imp.Alias = l.text(name)
			case "object_pattern":
				for _, p := range namedChildren(name) {
					switch p.Type() {
					case "shorthand_property_identifier_pattern", "shorthand_property_identifier":
						imp.Names = append(imp.Names, ast.ImportName{Name: l.text(p)})
					case "pair_pattern":
						imp.Names = append(imp.Names, ast.ImportName{
							Name:  l.text(l.field(p, "key")),
							Alias: l.text(l.field(p, "value")),
						})
					}
				}
			}
			imports = append(imports, imp)
			return false
		}
		return true
	})
	return imports
}
