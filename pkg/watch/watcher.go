// Package watch rebuilds the call graph when source files change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/parser"
)

// DefaultDebounce is how long a file must be quiet before a rebuild.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a directory tree and reports settled batches of changed source files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	logger    *slog.Logger
	callback  func(ctx context.Context, changed []string)

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period; non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher rooted at path.
func NewWatcher(path string, cfg *config.Config, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  DefaultDebounce,
		path:      path,
		logger:    slog.Default(),
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SetCallback sets the function called with each settled batch of changes.
// Calls are serialized.
func (w *Watcher) SetCallback(cb func(ctx context.Context, changed []string)) {
	w.callback = cb
}

// Start watches until ctx is cancelled or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}
	w.logger.Info("watching for changes", slog.String("path", w.path), slog.Duration("debounce", w.debounce))

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) excludedDir(name string) bool {
	return slices.Contains(w.config.Exclude.Dirs, name)
}

// handleEvent records a change to a source file. New directories are watched too.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := event.Name

	if event.Op&fsnotify.Create != 0 && isDir(path) {
		if !w.excludedDir(filepath.Base(path)) {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("watching new directory", slog.String("path", path), slog.Any("error", err))
			}
		}
		return
	}

	rel, err := filepath.Rel(w.path, path)
	if err != nil {
		rel = path
	}
	if w.config.ShouldExclude(rel) || w.config.ShouldExclude(path) {
		return
	}
	if parser.DetectLanguage(path) == parser.LangUnknown {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(max(w.debounce/5, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if changed := w.takeReady(time.Now()); len(changed) > 0 && w.callback != nil {
				w.callback(ctx, changed)
			}
		}
	}
}

// takeReady removes and returns the files that have been quiet for the debounce period.
// A batch is only released once every pending file has settled.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	for _, last := range w.pending {
		if now.Sub(last) < w.debounce {
			return nil
		}
	}
	ready := make([]string, 0, len(w.pending))
	for path := range w.pending {
		ready = append(ready, path)
	}
	clear(w.pending)
	slices.Sort(ready)
	return ready
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
