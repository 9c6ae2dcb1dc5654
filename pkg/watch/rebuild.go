package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/panbanda/callscope/internal/scanner"
	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/config"
)

// Update is the outcome of one rebuild.
type Update struct {
	Changed  []string
	Result   *graph.Result
	Err      error
	Duration time.Duration
}

// Rebuilder rescans a project and rebuilds its call graph.
type Rebuilder struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	opts   []graph.Option
}

// NewRebuilder creates a rebuilder for root. Extra options are applied after the config-derived ones.
func NewRebuilder(root string, cfg *config.Config, logger *slog.Logger, opts ...graph.Option) (*Rebuilder, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := graph.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	base = append(base, graph.WithRoot(root), graph.WithLogger(logger))
	return &Rebuilder{root: root, cfg: cfg, logger: logger, opts: append(base, opts...)}, nil
}

// Build scans the project and analyzes every source file.
func (r *Rebuilder) Build(ctx context.Context) (*graph.Result, error) {
	files, err := scanner.NewScanner(r.cfg).ScanDir(r.root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no source files found")
	}
	a := graph.New(r.opts...)
	defer a.Close()
	return a.Analyze(ctx, files)
}

// Rebuild builds the graph after each settled batch of changes and reports the outcome.
func (r *Rebuilder) Rebuild(w *Watcher, report func(Update)) {
	w.SetCallback(func(ctx context.Context, changed []string) {
		start := time.Now()
		res, err := r.Build(ctx)
		u := Update{Changed: changed, Result: res, Err: err, Duration: time.Since(start)}
		if err != nil {
			r.logger.Warn("rebuild failed", slog.Int("changed", len(changed)), slog.Any("error", err))
		} else {
			r.logger.Debug("graph rebuilt",
				slog.Int("changed", len(changed)),
				slog.Int("functions", res.Graph.NodeCount()),
				slog.Int("edges", res.Graph.EdgeCount()),
				slog.Duration("duration", u.Duration))
		}
		if report != nil {
			report(u)
		}
	})
}
