// Package parser wraps the tree-sitter grammars for the supported languages.
package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned for files whose language has no grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language represents a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangTSX        Language = "tsx"
	LangJava       Language = "java"
	LangUnknown    Language = "unknown"
)

type grammar struct {
	lang       Language
	load       func() *sitter.Language
	extensions []string
	aliases    []string
}

// grammars is ordered; SupportedLanguages reports this order.
// JSX parses with the TSX grammar.
var grammars = []grammar{
	{LangPython, python.GetLanguage, []string{".py", ".pyw", ".pyi"}, []string{"py"}},
	{LangJavaScript, javascript.GetLanguage, []string{".js", ".mjs", ".cjs"}, []string{"js"}},
	{LangTypeScript, typescript.GetLanguage, []string{".ts", ".mts", ".cts"}, []string{"ts"}},
	{LangTSX, tsx.GetLanguage, []string{".tsx", ".jsx"}, nil},
	{LangGo, golang.GetLanguage, []string{".go"}, []string{"golang"}},
	{LangJava, java.GetLanguage, []string{".java"}, nil},
}

var (
	byExtension = map[string]Language{}
	byName      = map[string]Language{}
	byLanguage  = map[Language]*grammar{}
)

func init() {
	for i := range grammars {
		g := &grammars[i]
		byLanguage[g.lang] = g
		byName[string(g.lang)] = g.lang
		for _, a := range g.aliases {
			byName[a] = g.lang
		}
		for _, ext := range g.extensions {
			byExtension[ext] = g.lang
		}
	}
}

// SupportedLanguages lists the languages with grammars, in a stable order.
func SupportedLanguages() []Language {
	out := make([]Language, len(grammars))
	for i, g := range grammars {
		out[i] = g.lang
	}
	return out
}

// IsJSFamily reports whether lang is parsed with a JavaScript-derived grammar.
func (l Language) IsJSFamily() bool {
	return l == LangJavaScript || l == LangTypeScript || l == LangTSX
}

// DetectLanguage determines the language from a file extension, ignoring case.
func DetectLanguage(path string) Language {
	if lang, ok := byExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangUnknown
}

// ParseLanguage converts a configured language name or alias into a Language.
func ParseLanguage(name string) Language {
	if lang, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lang
	}
	return LangUnknown
}

// GetTreeSitterLanguage returns the grammar for lang.
func GetTreeSitterLanguage(lang Language) (*sitter.Language, error) {
	g, ok := byLanguage[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return g.load(), nil
}

// Parser wraps tree-sitter for multi-language parsing.
// A Parser is not safe for concurrent use; create one per worker.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult is a syntax tree together with the source it was built from.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

func New() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// ParseFile reads the file at path and parses it in its detected language.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return nil, fmt.Errorf("%w for file: %s", ErrUnsupportedLanguage, path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.Parse(ctx, source, lang, path)
}

// Parse parses source as lang. Cancelling ctx aborts the parse.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language, path string) (*ParseResult, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("parsing %s: no syntax tree", path)
	}
	return &ParseResult{Tree: tree, Language: lang, Source: source, Path: path}, nil
}

func (p *Parser) Close() {
	p.parser.Close()
}

// Root returns the root node of the parse tree.
func (r *ParseResult) Root() *sitter.Node {
	return r.Tree.RootNode()
}

// Close releases the tree.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
	}
}

// TypedNodeVisitor is called for each node with its type already read, so
// visitors avoid a second cgo call. Returning false skips the node's children.
type TypedNodeVisitor func(node *sitter.Node, nodeType string, source []byte) bool

// WalkTyped traverses the tree depth-first in source order.
func WalkTyped(node *sitter.Node, source []byte, visitor TypedNodeVisitor) {
	if node == nil {
		return
	}
	if !visitor(node, node.Type(), source) {
		return
	}
	for i := range int(node.ChildCount()) {
		WalkTyped(node.Child(i), source, visitor)
	}
}

// GetNodeText returns the source text of node, or "" if node is nil or its
// byte range falls outside source.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// Line returns the 1-based start line of node.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// EndLine returns the 1-based end line of node.
func EndLine(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}
