package graph

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panbanda/callscope/internal/fileproc"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/crossmod"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/panbanda/callscope/pkg/resolve"
)

// Result is the outcome of one analysis run. The graph is frozen.
type Result struct {
	RunID      uuid.UUID
	Root       string
	Files      []string
	Graph      *callgraph.Graph
	Context    *crossmod.Context
	Patterns   []models.PatternInstance
	Resolution resolve.Stats
	// Errors lists the skipped files; nil when every file was analyzed.
	Errors   *fileproc.ProcessingErrors
	Duration time.Duration
}

// Summary aggregates the run into counts.
func (r *Result) Summary() models.GraphSummary {
	s := models.GraphSummary{
		TotalNodes:      r.Graph.NodeCount(),
		TotalEdges:      r.Graph.EdgeCount(),
		EdgesByKind:     make(map[models.CallKind]int),
		Unresolved:      r.Resolution.Collected,
		Dropped:         r.Resolution.Dropped,
		Patterns:        len(r.Patterns),
		RecursionGroups: len(r.Graph.StronglyConnected()),
		FilesAnalyzed:   len(r.Files),
		FilesSkipped:    r.Errors.Len(),
	}
	for _, e := range r.Graph.Edges() {
		s.EdgesByKind[e.Kind]++
	}
	return s
}

// Document serializes the graph together with the detected patterns.
func (r *Result) Document() *models.CallGraphDocument {
	doc := r.Graph.Document()
	doc.Patterns = r.Patterns
	doc.Summary = r.Summary()
	return doc
}

// Stats is the statistics view of a run.
type Stats struct {
	RunID           string                     `json:"run_id"`
	Fingerprint     string                     `json:"fingerprint"`
	Summary         models.GraphSummary        `json:"summary"`
	Resolution      resolve.Stats              `json:"resolution"`
	Hubs            []callgraph.RankedFunction `json:"hubs,omitempty"`
	RecursionGroups [][]models.FunctionID      `json:"recursion_groups,omitempty"`
	Duration        time.Duration              `json:"duration_ns"`
}

// Stats computes run statistics with the top n ranked hubs.
func (r *Result) Stats(n int) Stats {
	return Stats{
		RunID:           r.RunID.String(),
		Fingerprint:     fmt.Sprintf("%016x", r.Graph.Fingerprint()),
		Summary:         r.Summary(),
		Resolution:      r.Resolution,
		Hubs:            r.Graph.Rank(n),
		RecursionGroups: r.Graph.StronglyConnected(),
		Duration:        r.Duration,
	}
}

// Find returns the functions matching query, sorted. A query matches a
// qualified name exactly, a bare function name, or file:qualified_name where
// file is a suffix of the function's path relative to the root.
func (r *Result) Find(query string) []models.FunctionID {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	file, name := "", query
	if i := strings.LastIndexByte(query, ':'); i >= 0 {
		file, name = filepath.ToSlash(query[:i]), query[i+1:]
	}
	var out []models.FunctionID
	for _, id := range r.Graph.AllFunctions() {
		if id.QualifiedName != name && id.Name() != name {
			continue
		}
		if file != "" && !strings.HasSuffix(filepath.ToSlash(r.Rel(id.File)), file) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Rel returns path relative to the root, or path itself when it lies outside.
func (r *Result) Rel(path string) string {
	rel, err := filepath.Rel(r.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
