// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panbanda/callscope/pkg/ast"
	"github.com/panbanda/callscope/pkg/ast/treesitter"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap returns the per-file errors so errors.Is sees through the
// collection.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		out[i] = pe
	}
	return out
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed with its path.
type ProgressFunc func(path string)

// Options tunes a parallel run. The zero value is usable.
type Options struct {
	// Workers bounds concurrency; <= 0 means 2x NumCPU.
	Workers int
	// NewProvider creates the syntax provider each worker owns. Defaults to
	// a tree-sitter provider.
	NewProvider func() ast.Provider
	// OnProgress is called once per file, failed or not.
	OnProgress ProgressFunc
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

func (o Options) newProvider() ast.Provider {
	if o.NewProvider != nil {
		return o.NewProvider()
	}
	return treesitter.New()
}

// MapFilesWithContext processes files in parallel. Each worker owns one
// provider for its lifetime. Results keep the order of files, minus the
// files that failed; failures are collected rather than stopping the run.
// On cancellation the remaining files are recorded with ctx.Err().
func MapFilesWithContext[T any](ctx context.Context, files []string, opts Options, fn func(ast.Provider, string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	maxWorkers := min(opts.workers(), len(files))
	type slot struct {
		value T
		ok    bool
	}
	slots := make([]slot, len(files))
	errs := &ProcessingErrors{}

	providers := make(chan ast.Provider, maxWorkers)
	for range maxWorkers {
		providers <- opts.newProvider()
	}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			if opts.OnProgress != nil {
				defer opts.OnProgress(path)
			}
			select {
			case <-ctx.Done():
				errs.Add(path, ctx.Err())
				return ctx.Err()
			default:
			}

			prov := <-providers
			defer func() { providers <- prov }()

			result, err := fn(prov, path)
			if err != nil {
				errs.Add(path, err)
				return nil // Don't stop pool on individual file errors
			}
			slots[i] = slot{value: result, ok: true}
			return nil
		})
	}
	_ = p.Wait() // Context errors are already captured in errs

	close(providers)
	for prov := range providers {
		prov.Close()
	}

	results := make([]T, 0, len(files))
	for _, s := range slots {
		if s.ok {
			results = append(results, s.value)
		}
	}
	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
