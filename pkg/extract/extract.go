// Package extract turns one lowered source file into a per-file call graph.
//
// Extraction runs in two passes. The definition pass assigns every function
// its identity and registers classes, functions and imports with the shared
// crossmod.Context. The call pass then links every call site it can bind
// inside the file, records type-flow facts and pattern evidence, and leaves
// everything else as an UnresolvedCall for the resolve package.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/parser"
	"github.com/panbanda/callscope/pkg/typeflow"
)

// ErrNilFile is returned when Extract is given no file.
var ErrNilFile = errors.New("extract: nil file")

// Extractor runs per-file extraction against a shared context. It is safe for
// concurrent use; each call to Extract owns its own state.
type Extractor struct {
	ctx    *crossmod.Context
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(x *Extractor) {
		if l != nil {
			x.logger = l
		}
	}
}

// New creates an extractor publishing to ctx.
func New(ctx *crossmod.Context, opts ...Option) *Extractor {
	x := &Extractor{ctx: ctx, logger: slog.Default()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Result is the outcome of extracting one file.
type Result struct {
	File     string          `json:"file"`
	Language parser.Language `json:"language"`
	// Functions lists every definition of the file in source order.
	Functions []models.FunctionID `json:"functions"`
	Classes   []models.TypeID     `json:"classes,omitempty"`
	// Graph holds every function of the file as a node and every edge bound
	// locally.
	Graph      *callgraph.Graph   `json:"-"`
	Unresolved []UnresolvedCall   `json:"unresolved,omitempty"`
	TypeFlow   *typeflow.Tracker  `json:"-"`
	Evidence   *crossmod.Evidence `json:"evidence,omitempty"`
}

// Extract runs both passes over file. The type-flow facts and evidence of the
// file are merged into the shared context before it returns.
func (x *Extractor) Extract(file *ast.File) (*Result, error) {
	if file == nil {
		return nil, ErrNilFile
	}
	lang := file.Language
	switch lang {
	case parser.LangPython, parser.LangGo, parser.LangJava,
		parser.LangJavaScript, parser.LangTypeScript, parser.LangTSX:
	default:
		return nil, fmt.Errorf("extract %s: %w", file.Path, ast.ErrUnsupportedLanguage)
	}

	path := filepath.Clean(file.Path)
	x.ctx.RegisterImports(path, file.Imports)

	defs := define(file, path, x.ctx.ModuleOf(path))
	defs.register(x.ctx)

	w := newWalker(x.ctx, defs, file)
	w.run(file.Body)

	x.ctx.MergeTypeFlow(w.flow)
	x.ctx.RecordEvidence(w.evidence)

	res := &Result{
		File:       path,
		Language:   lang,
		Functions:  defs.order,
		Graph:      w.graph,
		Unresolved: w.unresolved,
		TypeFlow:   w.flow,
		Evidence:   w.evidence,
	}
	for _, e := range defs.classes {
		if e.Def != nil {
			res.Classes = append(res.Classes, e.Type)
		}
	}
	x.logger.Debug("extracted file",
		"file", path,
		"language", lang,
		"functions", len(res.Functions),
		"edges", w.graph.EdgeCount(),
		"unresolved", len(res.Unresolved),
	)
	return res, nil
}
