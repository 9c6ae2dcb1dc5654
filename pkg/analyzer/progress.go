package analyzer

import (
	"context"
	"sync"
)

// Stage names a phase of a call-graph build.
type Stage string

const (
	// StageExtract parses files and records local edges. Items are file paths.
	StageExtract Stage = "extract"
	// StageResolve binds unresolved call sites and runs pattern recognizers.
	StageResolve Stage = "resolve"
)

// Progress is one report from a Tracker.
type Progress struct {
	Stage   Stage
	Current int
	Total   int
	// Item is the file or site just completed; empty for a stage-level report.
	Item string
}

// ProgressFunc receives progress reports. It may be called from several
// goroutines at once.
type ProgressFunc func(Progress)

// Tracker counts completed items within the current stage.
// It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	stage    Stage
	current  int
	total    int
	callback ProgressFunc
}

// NewTracker creates a tracker that reports to callback, which may be nil.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Begin starts a stage of total items and resets the count.
func (t *Tracker) Begin(stage Stage, total int) {
	t.mu.Lock()
	t.stage, t.current, t.total = stage, 0, total
	p := t.snapshot("")
	t.mu.Unlock()
	t.report(p)
}

// Tick marks one item of the current stage as completed.
func (t *Tracker) Tick(item string) {
	t.mu.Lock()
	t.current++
	p := t.snapshot(item)
	t.mu.Unlock()
	t.report(p)
}

// Finish marks the current stage complete. Stages whose items are not
// individually observable use Begin and Finish only.
func (t *Tracker) Finish() {
	t.mu.Lock()
	t.current = t.total
	p := t.snapshot("")
	t.mu.Unlock()
	t.report(p)
}

func (t *Tracker) snapshot(item string) Progress {
	return Progress{Stage: t.stage, Current: t.current, Total: t.total, Item: item}
}

func (t *Tracker) report(p Progress) {
	if t.callback != nil {
		t.callback(p)
	}
}

// Stage returns the stage in progress.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Current returns the completed count for the current stage.
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Total returns the item count for the current stage.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext extracts the progress tracker from the context.
// Returns nil if no tracker was set.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
