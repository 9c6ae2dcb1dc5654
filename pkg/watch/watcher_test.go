package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/config"
)

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, DefaultDebounce},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, DefaultDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWatcher(tmpDir, cfg, WithDebounce(tt.debounce))
			if err != nil {
				t.Fatalf("NewWatcher() error = %v", err)
			}
			defer w.Stop()

			if w.config != cfg {
				t.Error("config should match")
			}
			if w.pending == nil {
				t.Error("pending map should be initialized")
			}
			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
		})
	}
}

func TestNewWatcherNilConfig(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()
	if w.config == nil {
		t.Error("nil config should fall back to defaults")
	}
}

func TestHandleEvent(t *testing.T) {
	tmpDir := t.TempDir()
	w, err := NewWatcher(tmpDir, config.DefaultConfig())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	tests := []struct {
		name    string
		event   fsnotify.Event
		pending bool
	}{
		{"write python", fsnotify.Event{Name: filepath.Join(tmpDir, "a.py"), Op: fsnotify.Write}, true},
		{"create go", fsnotify.Event{Name: filepath.Join(tmpDir, "b.go"), Op: fsnotify.Create}, true},
		{"remove java", fsnotify.Event{Name: filepath.Join(tmpDir, "C.java"), Op: fsnotify.Remove}, true},
		{"rename ts", fsnotify.Event{Name: filepath.Join(tmpDir, "d.ts"), Op: fsnotify.Rename}, true},
		{"chmod ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "e.py"), Op: fsnotify.Chmod}, false},
		{"unsupported language", fsnotify.Event{Name: filepath.Join(tmpDir, "README.md"), Op: fsnotify.Write}, false},
		{"excluded dir", fsnotify.Event{Name: filepath.Join(tmpDir, "node_modules", "x.js"), Op: fsnotify.Write}, false},
		{"excluded pattern", fsnotify.Event{Name: filepath.Join(tmpDir, "types.d.ts"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.handleEvent(tt.event)
			w.mu.Lock()
			_, ok := w.pending[tt.event.Name]
			w.mu.Unlock()
			if ok != tt.pending {
				t.Errorf("pending = %v, want %v", ok, tt.pending)
			}
		})
	}
}

func TestTakeReady(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), config.DefaultConfig(), WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	now := time.Now()
	if got := w.takeReady(now); got != nil {
		t.Errorf("takeReady() on empty = %v, want nil", got)
	}

	w.pending["/p/b.py"] = now.Add(-time.Second)
	w.pending["/p/a.py"] = now.Add(-time.Second)
	w.pending["/p/c.py"] = now
	if got := w.takeReady(now); got != nil {
		t.Errorf("takeReady() with an unsettled file = %v, want nil", got)
	}
	if len(w.pending) != 3 {
		t.Errorf("pending = %d, want 3", len(w.pending))
	}

	got := w.takeReady(now.Add(time.Second))
	want := []string{"/p/a.py", "/p/b.py", "/p/c.py"}
	if len(got) != len(want) {
		t.Fatalf("takeReady() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("takeReady()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if len(w.pending) != 0 {
		t.Error("pending should be empty after a batch is taken")
	}
}

func TestStartContext(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), config.DefaultConfig(), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Start() did not return after context cancellation")
	}
}

func TestStartSkipsExcludedDirs(t *testing.T) {
	tmpDir := t.TempDir()
	for _, dir := range []string{"src", "vendor", "node_modules"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := NewWatcher(tmpDir, config.DefaultConfig(), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	watched := make(map[string]bool)
	for _, d := range w.WatchedDirs() {
		watched[d] = true
	}
	if !watched[filepath.Join(tmpDir, "src")] {
		t.Error("src should be watched")
	}
	if watched[filepath.Join(tmpDir, "vendor")] || watched[filepath.Join(tmpDir, "node_modules")] {
		t.Error("excluded directories should not be watched")
	}
}

func TestRebuildOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"lib.py": "def helper():\n    return 1\n",
	})

	cfg := config.DefaultConfig()
	w, err := NewWatcher(tmpDir, cfg, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	r, err := NewRebuilder(tmpDir, cfg, nil)
	if err != nil {
		t.Fatalf("NewRebuilder() error = %v", err)
	}
	updates := make(chan Update, 4)
	r.Rebuild(w, func(u Update) { updates <- u })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	mainFile := filepath.Join(tmpDir, "main.py")
	testutil.WriteFile(t, mainFile, "from lib import helper\n\ndef run():\n    helper()\n")

	select {
	case u := <-updates:
		if u.Err != nil {
			t.Fatalf("rebuild error: %v", u.Err)
		}
		found := false
		for _, c := range u.Changed {
			if c == mainFile {
				found = true
			}
		}
		if !found {
			t.Errorf("Changed = %v, want it to include %s", u.Changed, mainFile)
		}
		run := u.Result.Find("run")
		if len(run) != 1 {
			t.Fatalf("Find(run) = %v", run)
		}
		callees := u.Result.Graph.CalleesOf(run[0])
		if len(callees) != 1 || callees[0].QualifiedName != "helper" {
			t.Errorf("callees of run = %v, want [helper]", callees)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after a file change")
	}
}

func TestRebuilderBuildEmpty(t *testing.T) {
	r, err := NewRebuilder(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewRebuilder() error = %v", err)
	}
	if _, err := r.Build(context.Background()); err == nil {
		t.Error("Build() on an empty directory should fail")
	}
}

func TestCallbacksSerialized(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), config.DefaultConfig(), WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	var mu sync.Mutex
	active, maxActive, calls := 0, 0, 0
	done := make(chan struct{})
	w.SetCallback(func(ctx context.Context, changed []string) {
		mu.Lock()
		active++
		calls++
		maxActive = max(maxActive, active)
		n := calls
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		if n == 2 {
			close(done)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.processDebounced(ctx)

	w.mu.Lock()
	w.pending["/p/a.py"] = time.Now().Add(-time.Second)
	w.mu.Unlock()
	time.Sleep(15 * time.Millisecond)
	w.mu.Lock()
	w.pending["/p/b.py"] = time.Now().Add(-time.Second)
	w.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second batch never processed")
	}
	mu.Lock()
	defer mu.Unlock()
	if maxActive != 1 {
		t.Errorf("max concurrent callbacks = %d, want 1", maxActive)
	}
}
