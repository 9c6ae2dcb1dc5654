package treesitter

import (
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

func pyIsBlock(t string) bool {
	return t == "block"
}

func pyIsStmt(t string) bool {
	return strings.HasSuffix(t, "_statement") || strings.HasSuffix(t, "_clause") ||
		t == "function_definition" || t == "class_definition" || t == "decorated_definition" ||
		t == "case_clause"
}

func (l *lowerer) pyBlock(n *sitter.Node) []*ast.Stmt {
	var out []*ast.Stmt
	for _, c := range namedChildren(n) {
		out = append(out, l.pyStmt(c)...)
	}
	return out
}

func (l *lowerer) pyStmt(n *sitter.Node) []*ast.Stmt {
	line := parser.Line(n)
	switch n.Type() {
	case "expression_statement":
		var out []*ast.Stmt
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "assignment":
				out = append(out, l.pyAssignment(c))
			case "augmented_assignment":
				out = append(out, &ast.Stmt{
					Kind:     ast.StmtAugAssign,
					Line:     parser.Line(c),
					Targets:  []*ast.Expr{l.pyExpr(l.field(c, "left"))},
					Operator: l.text(l.field(c, "operator")),
					Value:    l.pyExpr(l.field(c, "right")),
				})
			default:
				out = append(out, &ast.Stmt{Kind: ast.StmtExpr, Line: parser.Line(c), Value: l.pyExpr(c)})
			}
		}
		return out

	case "function_definition":
		return []*ast.Stmt{{Kind: ast.StmtFunction, Line: line, Function: l.pyFunction(n, nil)}}

	case "class_definition":
		return []*ast.Stmt{{Kind: ast.StmtClass, Line: line, Class: l.pyClass(n, nil)}}

	case "decorated_definition":
		var decorators []ast.Decorator
		for _, c := range namedChildren(n) {
			if c.Type() == "decorator" {
				decorators = append(decorators, l.pyDecorator(c))
			}
		}
		def := l.field(n, "definition")
		if def == nil {
			return nil
		}
		switch def.Type() {
		case "function_definition":
			return []*ast.Stmt{{Kind: ast.StmtFunction, Line: parser.Line(def), Function: l.pyFunction(def, decorators)}}
		case "class_definition":
			return []*ast.Stmt{{Kind: ast.StmtClass, Line: parser.Line(def), Class: l.pyClass(def, decorators)}}
		}
		return nil

	case "return_statement":
		s := &ast.Stmt{Kind: ast.StmtReturn, Line: line}
		if kids := namedChildren(n); len(kids) > 0 {
			s.Value = l.pyExpr(kids[0])
		}
		return []*ast.Stmt{s}

	case "for_statement":
		s := &ast.Stmt{
			Kind:  ast.StmtFor,
			Line:  line,
			Value: l.pyExpr(l.field(n, "right")),
			Body:  l.pyBlock(l.field(n, "body")),
		}
		if left := l.field(n, "left"); left != nil {
			s.Targets = []*ast.Expr{l.pyExpr(left)}
		}
		if alt := l.field(n, "alternative"); alt != nil {
			s.Body = append(s.Body, l.pyBlock(l.field(alt, "body"))...)
		}
		return []*ast.Stmt{s}

	case "if_statement":
		s := &ast.Stmt{Kind: ast.StmtBranch, Line: line}
		s.Conditions = append(s.Conditions, l.pyExpr(l.field(n, "condition")))
		s.Blocks = append(s.Blocks, l.pyBlock(l.field(n, "consequence")))
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "elif_clause":
				s.Conditions = append(s.Conditions, l.pyExpr(l.field(c, "condition")))
				s.Blocks = append(s.Blocks, l.pyBlock(l.field(c, "consequence")))
			case "else_clause":
				s.Blocks = append(s.Blocks, l.pyBlock(l.field(c, "body")))
			}
		}
		return []*ast.Stmt{s}

	case "import_statement", "import_from_statement", "future_import_statement",
		"pass_statement", "break_statement", "continue_statement",
		"global_statement", "nonlocal_statement", "comment":
		return nil
	}

	return []*ast.Stmt{l.genericStmt(n, pyIsBlock, pyIsStmt, l.pyBlock, l.pyStmt, l.pyExpr)}
}

// pyAssignment lowers a (possibly chained or annotated) assignment.
func (l *lowerer) pyAssignment(n *sitter.Node) *ast.Stmt {
	s := &ast.Stmt{Kind: ast.StmtAssign, Line: parser.Line(n)}
	for cur := n; cur != nil; {
		s.Targets = append(s.Targets, l.pyExpr(l.field(cur, "left")))
		if t := l.field(cur, "type"); t != nil && s.Annotation == "" {
			s.Annotation = l.typeText(t)
		}
		right := l.field(cur, "right")
		if right != nil && right.Type() == "assignment" {
			cur = right
			continue
		}
		s.Value = l.pyExpr(right)
		break
	}
	return s
}

func (l *lowerer) pyDecorator(n *sitter.Node) ast.Decorator {
	d := ast.Decorator{Line: parser.Line(n)}
	kids := namedChildren(n)
	if len(kids) == 0 {
		return d
	}
	expr := kids[0]
	if expr.Type() == "call" {
		d.Name = l.text(l.field(expr, "function"))
		d.Args = l.pyArgs(l.field(expr, "arguments"))
		return d
	}
	d.Name = l.text(expr)
	return d
}

func (l *lowerer) pyFunction(n *sitter.Node, decorators []ast.Decorator) *ast.FunctionDef {
	fn := l.newFunction(n)
	fn.Decorators = decorators
	fn.Params = l.pyParams(l.field(n, "parameters"))
	body := l.field(n, "body")
	fn.Body = l.pyBlock(body)
	fn.Abstract = fn.HasDecorator("abstractmethod") || fn.HasDecorator("abstractproperty")
	fn.Static = fn.HasDecorator("staticmethod")
	fn.Stub = l.pyIsStub(body)
	return fn
}

// pyIsStub reports bodies consisting only of pass, a docstring, an ellipsis,
// or raise NotImplementedError.
func (l *lowerer) pyIsStub(body *sitter.Node) bool {
	kids := namedChildren(body)
	if len(kids) == 0 {
		return false
	}
	sawMarker := false
	for _, c := range kids {
		switch c.Type() {
		case "pass_statement":
			sawMarker = true
		case "expression_statement":
			inner := namedChildren(c)
			if len(inner) != 1 {
				return false
			}
			switch inner[0].Type() {
			case "string":
			case "ellipsis":
				sawMarker = true
			default:
				return false
			}
		case "raise_statement":
			if !strings.Contains(l.text(c), "NotImplementedError") {
				return false
			}
			sawMarker = true
		default:
			return false
		}
	}
	return sawMarker
}

func (l *lowerer) pyParams(n *sitter.Node) []ast.Param {
	var params []ast.Param
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "identifier":
			params = append(params, ast.Param{Name: l.text(c)})
		case "typed_parameter":
			p := ast.Param{Type: l.typeText(l.field(c, "type"))}
			for _, k := range namedChildren(c) {
				switch k.Type() {
				case "identifier":
					p.Name = l.text(k)
				case "list_splat_pattern", "dictionary_splat_pattern":
					p.Name = strings.TrimLeft(l.text(k), "*")
					p.Variadic = true
				}
				if p.Name != "" {
					break
				}
			}
			params = append(params, p)
		case "default_parameter", "typed_default_parameter":
			params = append(params, ast.Param{
				Name:    l.text(l.field(c, "name")),
				Type:    l.typeText(l.field(c, "type")),
				Default: l.pyExpr(l.field(c, "value")),
			})
		case "list_splat_pattern", "dictionary_splat_pattern":
			params = append(params, ast.Param{Name: strings.TrimLeft(l.text(c), "*"), Variadic: true})
		}
	}
	return params
}

func (l *lowerer) pyClass(n *sitter.Node, decorators []ast.Decorator) *ast.ClassDef {
	c := &ast.ClassDef{
		Name:       l.text(l.field(n, "name")),
		Line:       parser.Line(n),
		EndLine:    parser.EndLine(n),
		Kind:       ast.ClassPlain,
		Decorators: decorators,
	}
	for _, base := range namedChildren(l.field(n, "superclasses")) {
		switch base.Type() {
		case "keyword_argument":
			if l.text(l.field(base, "name")) == "metaclass" {
				c.Bases = append(c.Bases, l.text(l.field(base, "value")))
			}
		case "list_splat", "dictionary_splat":
		default:
			c.Bases = append(c.Bases, l.text(base))
		}
	}
	c.Body = l.pyBlock(l.field(n, "body"))
	return c
}

func (l *lowerer) pyArgs(n *sitter.Node) []*ast.Expr {
	var args []*ast.Expr
	if n == nil {
		return nil
	}
	if n.Type() == "generator_expression" {
		return []*ast.Expr{l.pyExpr(n)}
	}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "keyword_argument":
			e := l.pyExpr(l.field(c, "value"))
			if e != nil {
				e.Keyword = l.text(l.field(c, "name"))
				args = append(args, e)
			}
		case "list_splat", "dictionary_splat":
			if kids := namedChildren(c); len(kids) > 0 {
				args = append(args, &ast.Expr{Kind: ast.ExprOther, Line: parser.Line(c), Args: []*ast.Expr{l.pyExpr(kids[0])}})
			}
		default:
			if e := l.pyExpr(c); e != nil {
				args = append(args, e)
			}
		}
	}
	return args
}

func (l *lowerer) pyExpr(n *sitter.Node) *ast.Expr {
	if n == nil {
		return nil
	}
	line := parser.Line(n)
	switch n.Type() {
	case "identifier":
		if l.text(n) == "self" {
			return self(n)
		}
		return l.name(n)
	case "attribute":
		return &ast.Expr{
			Kind:   ast.ExprAttribute,
			Name:   l.text(l.field(n, "attribute")),
			Object: l.pyExpr(l.field(n, "object")),
			Line:   line,
		}
	case "call":
		return &ast.Expr{
			Kind:   ast.ExprCall,
			Object: l.pyExpr(l.field(n, "function")),
			Args:   l.pyArgs(l.field(n, "arguments")),
			Line:   line,
		}
	case "list", "set", "tuple", "expression_list", "pattern_list", "tuple_pattern", "list_pattern":
		e := &ast.Expr{Kind: ast.ExprCollection, Line: line}
		for _, c := range namedChildren(n) {
			if sub := l.pyExpr(c); sub != nil {
				e.Args = append(e.Args, sub)
			}
		}
		return e
	case "list_comprehension", "set_comprehension", "generator_expression":
		e := &ast.Expr{Kind: ast.ExprCollection, Line: line}
		e.Args = append(e.Args, l.pyExpr(l.field(n, "body")))
		for _, c := range namedChildren(n) {
			if c.Type() == "for_in_clause" || c.Type() == "if_clause" {
				e.Args = append(e.Args, l.other(c, l.pyExpr))
			}
		}
		return e
	case "dictionary":
		e := &ast.Expr{Kind: ast.ExprMapping, Line: line}
		for _, c := range namedChildren(n) {
			if c.Type() != "pair" {
				continue
			}
			e.Keys = append(e.Keys, trimQuotes(l.text(l.field(c, "key"))))
			e.Args = append(e.Args, l.pyExpr(l.field(c, "value")))
		}
		return e
	case "dictionary_comprehension":
		e := &ast.Expr{Kind: ast.ExprMapping, Line: line}
		if body := l.field(n, "body"); body != nil {
			e.Keys = append(e.Keys, "")
			e.Args = append(e.Args, l.pyExpr(l.field(body, "value")))
		}
		return e
	case "subscript":
		e := &ast.Expr{Kind: ast.ExprSubscript, Object: l.pyExpr(l.field(n, "value")), Line: line}
		if idx := l.field(n, "subscript"); idx != nil {
			e.Args = []*ast.Expr{l.pyExpr(idx)}
		}
		return e
	case "conditional_expression":
		kids := namedChildren(n)
		if len(kids) != 3 {
			return l.other(n, l.pyExpr)
		}
		return &ast.Expr{
			Kind:   ast.ExprConditional,
			Object: l.pyExpr(kids[1]),
			Args:   []*ast.Expr{l.pyExpr(kids[0]), l.pyExpr(kids[2])},
			Line:   line,
		}
	case "lambda":
		fn := l.newFunction(n)
		fn.Params = l.pyParams(l.field(n, "parameters"))
		fn.Body = returnOf(l.pyExpr(l.field(n, "body")))
		return &ast.Expr{Kind: ast.ExprFunction, Function: fn, Name: fn.Name, Line: line}
	case "string", "concatenated_string", "integer", "float", "true", "false", "none", "ellipsis":
		return l.literal(n)
	case "parenthesized_expression", "await", "named_expression":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		if n.Type() == "named_expression" {
			return l.pyExpr(l.field(n, "value"))
		}
		return l.pyExpr(kids[0])
	case "keyword_argument":
		return l.pyExpr(l.field(n, "value"))
	}
	return l.other(n, l.pyExpr)
}

// pyImports collects import statements anywhere in the module.
func (l *lowerer) pyImports(root *sitter.Node) []ast.Import {
	var imports []ast.Import
	parser.WalkTyped(root, l.src, func(n *sitter.Node, t string, _ []byte) bool {
		switch t {
		case "import_statement":
			for _, c := range namedChildren(n) {
				imp := ast.Import{Line: parser.Line(n)}
				switch c.Type() {
				case "dotted_name":
					imp.Module = l.text(c)
				case "aliased_import":
					imp.Module = l.text(l.field(c, "name"))
					imp.Alias = l.text(l.field(c, "alias"))
				default:
					continue
				}
				imports = append(imports, imp)
			}
			return false
		case "import_from_statement":
			imp := ast.Import{Line: parser.Line(n)}
			module := l.field(n, "module_name")
			imp.Module = l.text(module)
			for _, c := range namedChildren(n) {
				if module != nil && c.Equal(module) {
					continue
				}
				switch c.Type() {
				case "wildcard_import":
					imp.Wildcard = true
				case "dotted_name":
					imp.Names = append(imp.Names, ast.ImportName{Name: l.text(c)})
				case "aliased_import":
					imp.Names = append(imp.Names, ast.ImportName{
						Name:  l.text(l.field(c, "name")),
						Alias: l.text(l.field(c, "alias")),
					})
				}
			}
			imports = append(imports, imp)
			return false
		}
		return true
	})
	return imports
}
