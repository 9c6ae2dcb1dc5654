package testutil

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/panbanda/callscope/pkg/ast/treesitter"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/extract"
)

// Names returns the file names of sources, sorted.
func Names(sources map[string]string) []string {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func newContext(t *testing.T, root string, sources map[string]string) *crossmod.Context {
	t.Helper()
	return crossmod.New(root, CreateFileTree(t, root, sources))
}

func extractFile(t *testing.T, p *treesitter.Provider, x *extract.Extractor, path, src string) *extract.Result {
	t.Helper()
	file, err := p.ParseSource(context.Background(), []byte(src), p.Language(path), path)
	if err != nil {
		t.Fatalf("ParseSource(%s) error: %v", path, err)
	}
	res, err := x.Extract(file)
	if err != nil {
		t.Fatalf("Extract(%s) error: %v", path, err)
	}
	return res
}

// Extract writes sources under root and extracts them into a fresh context
// in the given order; a nil order extracts them sorted by name. Results are
// keyed by file name.
func Extract(t *testing.T, root string, sources map[string]string, order []string) (*crossmod.Context, map[string]*extract.Result) {
	t.Helper()
	if order == nil {
		order = Names(sources)
	}
	ctx := newContext(t, root, sources)
	x := extract.New(ctx)
	p := treesitter.New()
	defer p.Close()

	out := make(map[string]*extract.Result, len(order))
	for _, n := range order {
		out[n] = extractFile(t, p, x, filepath.Join(root, n), sources[n])
	}
	return ctx, out
}

// ExtractConcurrently extracts every source on its own goroutine against one
// shared context.
func ExtractConcurrently(t *testing.T, root string, sources map[string]string) (*crossmod.Context, map[string]*extract.Result) {
	t.Helper()
	ctx := newContext(t, root, sources)
	x := extract.New(ctx)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]*extract.Result, len(sources))
	)
	for _, n := range Names(sources) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := treesitter.New()
			defer p.Close()
			path := filepath.Join(root, n)
			file, err := p.ParseSource(context.Background(), []byte(sources[n]), p.Language(path), path)
			if err != nil {
				t.Errorf("ParseSource(%s) error: %v", path, err)
				return
			}
			res, err := x.Extract(file)
			if err != nil {
				t.Errorf("Extract(%s) error: %v", path, err)
				return
			}
			mu.Lock()
			out[n] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return ctx, out
}
