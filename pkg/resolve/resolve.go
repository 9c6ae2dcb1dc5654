// Package resolve binds the calls extraction left unresolved, using the
// cross-module context every file has published to.
//
// A Resolver moves through four states. While Collecting it only gathers
// calls. ResolveParallel looks every call up concurrently against a snapshot
// that no longer changes, and ApplySequential writes the results into the
// graph one at a time in a fixed order before freezing it. The graph is
// identical for any worker count.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/patterns"
	"github.com/panbanda/callscope/pkg/typeflow"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// resolver's current state.
var ErrInvalidTransition = errors.New("resolve: invalid state transition")

// State is a resolver lifecycle state.
type State int

const (
	StateCollecting State = iota
	StateResolvingParallel
	StateApplyingSequential
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateResolvingParallel:
		return "resolving_parallel"
	case StateApplyingSequential:
		return "applying_sequential"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Step is the lookup stage that settled a call.
type Step int

const (
	StepDropped Step = iota
	StepExact
	StepBasename
	StepPattern
)

// Target is one edge a resolution contributes.
type Target struct {
	Callee     models.FunctionID
	Kind       models.CallKind
	Provenance string
}

// Resolution is the outcome of looking up one call.
type Resolution struct {
	Call    extract.UnresolvedCall
	Step    Step
	Targets []Target
}

// Stats counts resolution outcomes.
type Stats struct {
	Collected        int           `json:"collected"`
	Exact            int           `json:"exact"`
	Basename         int           `json:"basename"`
	Pattern          int           `json:"pattern"`
	Dropped          int           `json:"dropped"`
	PatternInstances int           `json:"pattern_instances"`
	PatternEdges     int           `json:"pattern_edges"`
	SettleRounds     int           `json:"settle_rounds"`
	Duration         time.Duration `json:"duration_ns"`
}

// maxSettleRounds bounds argument-to-parameter propagation across files.
const maxSettleRounds = 8

// Resolver is the cross-file resolution state machine. It is not safe for
// concurrent use; the parallelism is internal to ResolveParallel.
type Resolver struct {
	ctx         *crossmod.Context
	graph       *callgraph.Graph
	recognizers []patterns.Recognizer
	workers     int
	basename    bool
	logger      *slog.Logger

	state     State
	resolved  bool
	calls     []extract.UnresolvedCall
	results   []Resolution
	instances []models.PatternInstance
	stats     Stats
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWorkers sets the number of lookup workers (default: NumCPU).
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRecognizers sets the pattern recognizers consulted (default: all).
func WithRecognizers(rs []patterns.Recognizer) Option {
	return func(r *Resolver) {
		r.recognizers = rs
	}
}

// WithBasenameFallback enables or disables the unique-basename fallback.
func WithBasenameFallback(enabled bool) Option {
	return func(r *Resolver) {
		r.basename = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a resolver that writes into graph.
func New(ctx *crossmod.Context, graph *callgraph.Graph, opts ...Option) *Resolver {
	r := &Resolver{
		ctx:         ctx,
		graph:       graph,
		recognizers: patterns.All(),
		workers:     runtime.NumCPU(),
		basename:    true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Resolver) State() State {
	return r.state
}

// Stats returns the resolution counters.
func (r *Resolver) Stats() Stats {
	return r.stats
}

// Instances returns the pattern instances detected during resolution.
func (r *Resolver) Instances() []models.PatternInstance {
	return r.instances
}

// Results returns the per-call resolutions in application order.
func (r *Resolver) Results() []Resolution {
	return r.results
}

// Collect adds unresolved calls. The graph is not touched.
func (r *Resolver) Collect(calls ...extract.UnresolvedCall) error {
	if r.state != StateCollecting {
		return fmt.Errorf("%w: collect in state %s", ErrInvalidTransition, r.state)
	}
	r.calls = append(r.calls, calls...)
	return nil
}

// ResolveParallel looks up every collected call. Argument flow into
// parameters is settled first so receiver facts are complete; the context
// is not written after that.
func (r *Resolver) ResolveParallel(ctx context.Context) error {
	if r.state != StateCollecting {
		return fmt.Errorf("%w: resolve in state %s", ErrInvalidTransition, r.state)
	}
	r.state = StateResolvingParallel
	start := time.Now()

	slices.SortStableFunc(r.calls, func(a, b extract.UnresolvedCall) int { return a.Compare(&b) })
	r.stats.Collected = len(r.calls)

	if err := r.settle(ctx); err != nil {
		return err
	}

	facts := patterns.NewFacts(r.ctx)
	instances, err := r.detect(ctx, facts)
	if err != nil {
		return err
	}

	results := make([]Resolution, len(r.calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range r.calls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.resolve(r.calls[i], facts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.results = results
	r.instances = instances
	r.resolved = true
	r.stats.Duration = time.Since(start)
	r.logger.Debug("resolved calls",
		slog.Int("calls", len(results)),
		slog.Int("instances", len(instances)),
		slog.Int("settle_rounds", r.stats.SettleRounds),
		slog.Duration("elapsed", r.stats.Duration),
	)
	return nil
}

// settle binds call arguments to the parameters of their exact targets and
// propagates, until no fact changes or the round limit is reached.
func (r *Resolver) settle(ctx context.Context) error {
	type binding struct {
		info crossmod.FunctionInfo
		args []extract.ArgFlow
		via  bool
	}
	r.ctx.Propagate()
	for round := 0; round < maxSettleRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.stats.SettleRounds = round + 1

		perCall := make([][]binding, len(r.calls))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for i, call := range r.calls {
			if len(call.Args) == 0 {
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				for _, t := range r.exact(call) {
					if info, ok := r.ctx.Function(t.Callee); ok {
						perCall[i] = append(perCall[i], binding{info: info, args: call.Args, via: viaInstance(call)})
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		changed := false
		r.ctx.UpdateTypeFlow(func(tr *typeflow.Tracker) {
			for _, bs := range perCall {
				for _, b := range bs {
					if extract.BindArgs(tr, &b.info, b.args, b.via) {
						changed = true
					}
				}
			}
		})
		if r.ctx.Propagate() {
			changed = true
		}
		if !changed {
			break
		}
	}
	return nil
}

func (r *Resolver) detect(ctx context.Context, facts *patterns.Facts) ([]models.PatternInstance, error) {
	found := make([][]models.PatternInstance, len(r.recognizers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, rec := range r.recognizers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[i] = rec.Detect(facts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []models.PatternInstance
	for _, f := range found {
		out = append(out, f...)
	}
	return out, nil
}

// ApplySequential writes every resolution and pattern instance into the
// graph in sorted order, checks its indices and freezes it.
func (r *Resolver) ApplySequential() error {
	if r.state != StateResolvingParallel || !r.resolved {
		return fmt.Errorf("%w: apply in state %s", ErrInvalidTransition, r.state)
	}
	r.state = StateApplyingSequential

	type patternEdge struct {
		caller, callee models.FunctionID
		provenance     string
	}
	seen := make(map[patternEdge]bool)
	addPattern := func(caller, callee models.FunctionID, provenance string) {
		k := patternEdge{caller, callee, provenance}
		if seen[k] {
			return
		}
		seen[k] = true
		r.graph.AddEdge(caller, callee, models.CallPatternDispatch, provenance)
		r.stats.PatternEdges++
	}

	for _, res := range r.results {
		switch res.Step {
		case StepExact:
			r.stats.Exact++
		case StepBasename:
			r.stats.Basename++
		case StepPattern:
			r.stats.Pattern++
		default:
			r.stats.Dropped++
		}
		for _, t := range res.Targets {
			if t.Kind == models.CallPatternDispatch {
				addPattern(res.Call.Caller, t.Callee, t.Provenance)
				continue
			}
			r.graph.AddEdge(res.Call.Caller, t.Callee, t.Kind, t.Provenance)
		}
	}

	for _, inst := range r.instances {
		for _, site := range inst.DispatchSites {
			for _, impl := range inst.Implementations {
				addPattern(site, impl, inst.Provenance)
			}
			if inst.Kind == models.PatternObserver {
				r.ctx.RegisterDispatchSite(inst.DefiningType, site)
			}
		}
	}
	r.stats.PatternInstances = len(r.instances)

	if err := r.graph.CheckConsistency(); err != nil {
		return fmt.Errorf("applying resolutions: %w", err)
	}
	r.graph.Freeze()
	r.state = StateDone
	r.logger.Debug("applied resolutions",
		slog.Int("exact", r.stats.Exact),
		slog.Int("basename", r.stats.Basename),
		slog.Int("pattern", r.stats.Pattern),
		slog.Int("dropped", r.stats.Dropped),
		slog.Int("pattern_edges", r.stats.PatternEdges),
	)
	return nil
}

// Run resolves and applies in one step.
func (r *Resolver) Run(ctx context.Context) error {
	if err := r.ResolveParallel(ctx); err != nil {
		return err
	}
	return r.ApplySequential()
}
