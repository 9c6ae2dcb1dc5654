package treesitter

import (
	"fmt"
	"strings"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// Lower converts a tree-sitter parse result into the neutral syntax tree.
func Lower(result *parser.ParseResult) (*ast.File, error) {
	l := &lowerer{src: result.Source, lang: result.Language}
	file := &ast.File{Path: result.Path, Language: result.Language}
	root := result.Root()

	switch result.Language {
	case parser.LangPython:
		file.Body = l.pyBlock(root)
		file.Imports = l.pyImports(root)
	case parser.LangJavaScript, parser.LangTypeScript, parser.LangTSX:
		file.Body = l.jsBlock(root)
		file.Imports = l.jsImports(root)
	case parser.LangGo:
		file.Body = l.goBlock(root)
		file.Imports = l.goImports(root)
	case parser.LangJava:
		file.Body = l.javaBlock(root)
		file.Imports = l.javaImports(root)
	default:
		return nil, fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, result.Language)
	}
	return file, nil
}

// lowerer carries per-file state while lowering.
type lowerer struct {
	src  []byte
	lang parser.Language
	// selfName is the identifier bound to the receiver inside a Go method.
	selfName string
}

func (l *lowerer) text(n *sitter.Node) string {
	return parser.GetNodeText(n, l.src)
}

func (l *lowerer) field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment", "line_comment", "block_comment":
			continue
		}
		out = append(out, c)
	}
	return out
}

// hasToken reports whether n has a direct anonymous child with the given text.
func (l *lowerer) hasToken(n *sitter.Node, token string) bool {
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == token {
			return true
		}
	}
	return false
}

// newFunction creates a definition named and positioned by the naming rules
// of package parser.
func (l *lowerer) newFunction(n *sitter.Node) *ast.FunctionDef {
	name := parser.FunctionName(n, l.src, l.lang)
	return &ast.FunctionDef{
		Name:      name,
		Line:      parser.DeclarationLine(n, l.lang),
		EndLine:   parser.EndLine(n),
		Anonymous: name == parser.AnonymousFunctionName(l.lang),
	}
}

func (l *lowerer) literal(n *sitter.Node) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLiteral, Name: l.text(n), Line: parser.Line(n)}
}

func (l *lowerer) name(n *sitter.Node) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprName, Name: l.text(n), Line: parser.Line(n)}
}

func self(n *sitter.Node) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprSelf, Line: parser.Line(n)}
}

// other lowers every named child of n with lowerExpr into an ExprOther.
func (l *lowerer) other(n *sitter.Node, lowerExpr func(*sitter.Node) *ast.Expr) *ast.Expr {
	e := &ast.Expr{Kind: ast.ExprOther, Line: parser.Line(n)}
	for _, c := range namedChildren(n) {
		if sub := lowerExpr(c); sub != nil {
			e.Args = append(e.Args, sub)
		}
	}
	return e
}

// genericStmt lowers an unrecognized compound statement into a branch.
// Block-like children become bodies, statement-like children become one-element
// bodies, and everything else is treated as an evaluated condition.
func (l *lowerer) genericStmt(
	n *sitter.Node,
	isBlock func(string) bool,
	isStmt func(string) bool,
	lowerBlock func(*sitter.Node) []*ast.Stmt,
	lowerStmt func(*sitter.Node) []*ast.Stmt,
	lowerExpr func(*sitter.Node) *ast.Expr,
) *ast.Stmt {
	s := &ast.Stmt{Kind: ast.StmtBranch, Line: parser.Line(n)}
	for _, c := range namedChildren(n) {
		t := c.Type()
		switch {
		case isBlock(t):
			s.Blocks = append(s.Blocks, lowerBlock(c))
		case isStmt(t):
			s.Blocks = append(s.Blocks, lowerStmt(c))
		default:
			if e := lowerExpr(c); e != nil {
				s.Conditions = append(s.Conditions, e)
			}
		}
	}
	return s
}

// returnOf wraps an expression-bodied closure into a return statement.
func returnOf(e *ast.Expr) []*ast.Stmt {
	if e == nil {
		return nil
	}
	return []*ast.Stmt{{Kind: ast.StmtReturn, Line: e.Line, Value: e}}
}

// trimQuotes removes surrounding quotes from a string literal.
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') ||
			(s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// typeText normalizes an annotation node into a type expression string.
func (l *lowerer) typeText(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	t := strings.TrimSpace(l.text(n))
	t = strings.TrimPrefix(t, ":")
	return strings.TrimSpace(t)
}
