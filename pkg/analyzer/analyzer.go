// Package analyzer holds the contract shared by whole-project analyses and the
// progress plumbing they report through.
package analyzer

import "context"

// FileAnalyzer analyzes a set of files as one unit of work.
type FileAnalyzer[T any] interface {
	// Analyze processes files and returns the combined result. Cancelling
	// ctx stops the run; a Tracker on ctx receives per-file progress.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases parsers and pools held by the analyzer.
	Close()
}
