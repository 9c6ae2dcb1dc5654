package export

import (
	"encoding/hex"

	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/models"
	"github.com/zeebo/blake3"
)

// FunctionRows converts every function node into UNWIND parameters.
func FunctionRows(res *graph.Result) []map[string]any {
	ids := res.Graph.AllFunctions()
	rows := make([]map[string]any, 0, len(ids))
	runID := res.RunID.String()
	for _, id := range ids {
		rows = append(rows, map[string]any{
			"key":            id.Key(),
			"qualified_name": id.QualifiedName,
			"name":           id.Name(),
			"file":           res.Rel(id.File),
			"line":           int64(id.Line),
			"run_id":         runID,
		})
	}
	return rows
}

// EdgeRows converts every call edge into UNWIND parameters.
func EdgeRows(res *graph.Result) []map[string]any {
	edges := res.Graph.Edges()
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		provenance := e.Provenance
		if provenance == nil {
			provenance = []string{}
		}
		rows = append(rows, map[string]any{
			"caller":     e.Caller.Key(),
			"callee":     e.Callee.Key(),
			"kind":       string(e.Kind),
			"count":      int64(e.Count),
			"provenance": provenance,
		})
	}
	return rows
}

// PatternRows converts pattern instances into UNWIND parameters.
func PatternRows(res *graph.Result) []map[string]any {
	rows := make([]map[string]any, 0, len(res.Patterns))
	for _, p := range res.Patterns {
		impls := make([]string, len(p.Implementations))
		for i, id := range p.Implementations {
			impls[i] = id.Key()
		}
		rows = append(rows, map[string]any{
			"key":             PatternKey(p),
			"kind":            string(p.Kind),
			"defining_type":   p.DefiningType.String(),
			"method":          p.Method,
			"implementations": impls,
		})
	}
	return rows
}

// PatternKey is a stable node key for a pattern instance.
func PatternKey(p models.PatternInstance) string {
	sum := blake3.Sum256([]byte(string(p.Kind) + "|" + p.DefiningType.String() + "|" + p.Method))
	return hex.EncodeToString(sum[:8])
}

// Batches splits rows into chunks of at most size.
func Batches[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
