// Package graph builds and resolves the call graph of a set of source files.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panbanda/callscope/internal/fileproc"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/patterns"
	"github.com/panbanda/callscope/pkg/resolve"
)

// ErrFileTooLarge is recorded for files above the size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Analyzer builds call graphs from source code.
type Analyzer struct {
	root           string
	workers        int
	resolveWorkers int
	maxFileSize    int64
	recognizers    []patterns.Recognizer
	basename       bool
	newProvider    func() ast.Provider
	logger         *slog.Logger
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithRoot sets the directory imports are resolved against. Defaults to the
// deepest directory containing every analyzed file.
func WithRoot(root string) Option {
	return func(a *Analyzer) {
		a.root = root
	}
}

// WithWorkers sets the number of extraction workers (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithResolveWorkers sets the number of resolution workers (0 = NumCPU).
func WithResolveWorkers(n int) Option {
	return func(a *Analyzer) {
		a.resolveWorkers = n
	}
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// WithRecognizers sets the pattern recognizers. Defaults to all of them.
func WithRecognizers(rs []patterns.Recognizer) Option {
	return func(a *Analyzer) {
		a.recognizers = rs
	}
}

// WithBasenameFallback toggles the unique-basename resolution step.
func WithBasenameFallback(enabled bool) Option {
	return func(a *Analyzer) {
		a.basename = enabled
	}
}

// WithProvider sets the syntax provider factory. Each worker gets its own.
func WithProvider(fn func() ast.Provider) Option {
	return func(a *Analyzer) {
		a.newProvider = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates a new call-graph analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		recognizers: patterns.All(),
		basename:    true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OptionsFromConfig translates the analysis section of cfg into options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	recognizers, err := patterns.ByName(cfg.Analysis.Patterns)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithWorkers(cfg.Analysis.Workers),
		WithResolveWorkers(cfg.Analysis.ResolveWorkers),
		WithMaxFileSize(cfg.Analysis.MaxFileSize),
		WithRecognizers(recognizers),
		WithBasenameFallback(cfg.Analysis.BasenameFallback),
	}, nil
}

// Compile-time check that Analyzer implements FileAnalyzer.
var _ analyzer.FileAnalyzer[*Result] = (*Analyzer)(nil)

// Analyze extracts every file in parallel, merges the per-file graphs in file
// order and resolves the remaining calls across files. Files that cannot be
// read or parsed are skipped and reported in Result.Errors. A cancelled
// context abandons the run and returns no result.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Result, error) {
	start := time.Now()

	files = normalize(files)
	root := a.root
	if root == "" {
		root = commonDir(files)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	cctx := crossmod.New(root, files)
	x := extract.New(cctx, extract.WithLogger(a.logger))

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Begin(analyzer.StageExtract, len(files))
	}
	opts := fileproc.Options{
		Workers:     a.workers,
		NewProvider: a.newProvider,
		OnProgress: func(path string) {
			if tracker != nil {
				tracker.Tick(path)
			}
		},
	}

	a.logger.Debug("extracting", slog.Int("files", len(files)), slog.String("root", root))
	extracted, errs := fileproc.MapFilesWithContext(ctx, files, opts, func(p ast.Provider, path string) (*extract.Result, error) {
		if a.maxFileSize > 0 {
			info, err := os.Stat(path)
			if err != nil {
				return nil, err
			}
			if info.Size() > a.maxFileSize {
				return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
			}
		}
		file, err := p.Parse(ctx, path)
		if err != nil {
			return nil, err
		}
		return x.Extract(file)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		for _, pe := range errs.Errors {
			a.logger.Warn("skipped file", slog.String("file", pe.Path), slog.String("error", pe.Err.Error()))
		}
	}

	g := callgraph.New()
	var unresolved int
	for _, res := range extracted {
		g.Merge(res.Graph)
		unresolved += len(res.Unresolved)
	}
	a.logger.Debug("extracted",
		slog.Int("files", len(extracted)),
		slog.Int("skipped", errs.Len()),
		slog.Int("functions", g.NodeCount()),
		slog.Int("local_edges", g.EdgeCount()),
		slog.Int("unresolved", unresolved),
		slog.Duration("elapsed", time.Since(start)),
	)

	r := resolve.New(cctx, g,
		resolve.WithWorkers(a.resolveWorkers),
		resolve.WithRecognizers(a.recognizers),
		resolve.WithBasenameFallback(a.basename),
		resolve.WithLogger(a.logger),
	)
	for _, res := range extracted {
		if err := r.Collect(res.Unresolved...); err != nil {
			return nil, err
		}
	}
	if tracker != nil {
		tracker.Begin(analyzer.StageResolve, unresolved)
	}
	if err := r.Run(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("resolving calls: %w", err)
	}

	if tracker != nil {
		tracker.Finish()
	}

	analyzed := make([]string, 0, len(extracted))
	for _, res := range extracted {
		analyzed = append(analyzed, res.File)
	}
	result := &Result{
		RunID:      uuid.New(),
		Root:       root,
		Files:      analyzed,
		Graph:      g,
		Context:    cctx,
		Patterns:   r.Instances(),
		Resolution: r.Stats(),
		Errors:     errs,
		Duration:   time.Since(start),
	}
	a.logger.Debug("analysis complete",
		slog.String("run_id", result.RunID.String()),
		slog.Int("functions", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("patterns", len(result.Patterns)),
		slog.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// Close releases any resources held by the analyzer. Providers are owned by
// the workers of each run, so there is nothing left to release.
func (a *Analyzer) Close() {}

func normalize(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		out = append(out, filepath.Clean(f))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// commonDir returns the deepest directory containing every file.
func commonDir(files []string) string {
	if len(files) == 0 {
		return "."
	}
	dir := filepath.Dir(files[0])
	for _, f := range files[1:] {
		for !isWithin(f, dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func isWithin(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
