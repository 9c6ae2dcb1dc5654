package output

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/panbanda/callscope/pkg/analyzer/graph"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/models"
)

// EdgeRow is one neighbour of a queried function.
type EdgeRow struct {
	Function   models.FunctionID `json:"function"`
	Kind       models.CallKind   `json:"kind"`
	Count      int               `json:"count"`
	Provenance []string          `json:"provenance,omitempty"`
}

// NeighbourData is the serialized form of a callers/callees query.
type NeighbourData struct {
	Function  models.FunctionID `json:"function"`
	Direction string            `json:"direction"`
	Edges     []EdgeRow         `json:"edges"`
}

// Callers lists the edges into id.
func Callers(res *graph.Result, id models.FunctionID) *Table {
	return neighbours(res, id, "callers", res.Graph.EdgesTo(id), func(e callgraph.Edge) models.FunctionID { return e.Caller })
}

// Callees lists the edges out of id.
func Callees(res *graph.Result, id models.FunctionID) *Table {
	return neighbours(res, id, "callees", res.Graph.EdgesFrom(id), func(e callgraph.Edge) models.FunctionID { return e.Callee })
}

func neighbours(res *graph.Result, id models.FunctionID, direction string, edges []callgraph.Edge, other func(callgraph.Edge) models.FunctionID) *Table {
	data := NeighbourData{Function: id, Direction: direction, Edges: make([]EdgeRow, 0, len(edges))}
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		fn := other(e)
		data.Edges = append(data.Edges, EdgeRow{Function: fn, Kind: e.Kind, Count: e.Count, Provenance: e.Provenance})
		rows = append(rows, []string{
			fn.QualifiedName,
			location(res, fn),
			string(e.Kind),
			strconv.Itoa(e.Count),
			strings.Join(e.Provenance, ","),
		})
	}
	title := fmt.Sprintf("%s of %s (%s)", titleCase(direction), id.QualifiedName, location(res, id))
	footer := []string{fmt.Sprintf("%d %s", len(rows), direction), "", "", "", ""}
	return NewTable(title, []string{"Function", "Location", "Kind", "Count", "Provenance"}, rows, footer, data)
}

// Functions lists every function of the graph.
func Functions(res *graph.Result, ids []models.FunctionID) *Table {
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []string{
			id.QualifiedName,
			location(res, id),
			strconv.Itoa(len(res.Graph.CallersOf(id))),
			strconv.Itoa(len(res.Graph.CalleesOf(id))),
		})
	}
	return NewTable("Functions", []string{"Function", "Location", "Callers", "Callees"}, rows,
		[]string{fmt.Sprintf("%d functions", len(rows)), "", "", ""}, ids)
}

// Patterns lists detected pattern instances.
func Patterns(res *graph.Result, instances []models.PatternInstance) *Table {
	rows := make([][]string, 0, len(instances))
	for _, p := range instances {
		rows = append(rows, []string{
			string(p.Kind),
			p.DefiningType.String(),
			p.Method,
			strconv.Itoa(len(p.Implementations)),
			strconv.Itoa(len(p.DispatchSites)),
			strconv.Itoa(p.EdgeCount()),
		})
	}
	if instances == nil {
		instances = []models.PatternInstance{}
	}
	return NewTable("Design Patterns", []string{"Kind", "Type", "Method", "Implementations", "Dispatch Sites", "Edges"}, rows, nil, instances)
}

// FilterPatterns keeps the instances of the given kinds; no kinds keeps all.
func FilterPatterns(instances []models.PatternInstance, kinds ...models.PatternKind) []models.PatternInstance {
	if len(kinds) == 0 {
		return instances
	}
	var out []models.PatternInstance
	for _, p := range instances {
		if slices.Contains(kinds, p.Kind) {
			out = append(out, p)
		}
	}
	return out
}

// Edges lists every edge of the graph.
func Edges(res *graph.Result) *Table {
	edges := res.Graph.Edges()
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{
			e.Caller.QualifiedName,
			e.Callee.QualifiedName,
			location(res, e.Callee),
			string(e.Kind),
			strconv.Itoa(e.Count),
			strings.Join(e.Provenance, ","),
		})
	}
	return NewTable("Call Edges", []string{"Caller", "Callee", "Callee Location", "Kind", "Count", "Provenance"}, rows, nil, nil)
}

// Summary renders the counts of a run.
func Summary(res *graph.Result) *Table {
	s := res.Summary()
	rows := [][]string{
		{"Files analyzed", strconv.Itoa(s.FilesAnalyzed)},
		{"Files skipped", strconv.Itoa(s.FilesSkipped)},
		{"Functions", strconv.Itoa(s.TotalNodes)},
		{"Edges", strconv.Itoa(s.TotalEdges)},
	}
	for _, k := range []models.CallKind{models.CallDirect, models.CallDynamic, models.CallPatternDispatch} {
		rows = append(rows, []string{"  " + string(k), strconv.Itoa(s.EdgesByKind[k])})
	}
	rows = append(rows,
		[]string{"Cross-file calls", strconv.Itoa(s.Unresolved)},
		[]string{"Dropped calls", strconv.Itoa(s.Dropped)},
		[]string{"Patterns", strconv.Itoa(s.Patterns)},
		[]string{"Recursion groups", strconv.Itoa(s.RecursionGroups)},
	)
	return NewTable("Call Graph Summary", []string{"Metric", "Value"}, rows, nil, s)
}

// Analysis is the full report of an analyze run.
func Analysis(res *graph.Result) *Report {
	return &Report{
		Title:    "Call Graph",
		Sections: []Renderable{Summary(res), Edges(res), Patterns(res, res.Patterns)},
		Data:     res.Document(),
	}
}

// Stats renders run statistics.
func Stats(res *graph.Result, st graph.Stats) *Report {
	r := st.Resolution
	resolution := NewTable("Resolution", []string{"Step", "Calls"}, [][]string{
		{"exact", strconv.Itoa(r.Exact)},
		{"basename", strconv.Itoa(r.Basename)},
		{"pattern", strconv.Itoa(r.Pattern)},
		{"dropped", strconv.Itoa(r.Dropped)},
	}, []string{fmt.Sprintf("%d collected", r.Collected), ""}, nil)

	hubRows := make([][]string, 0, len(st.Hubs))
	for _, h := range st.Hubs {
		hubRows = append(hubRows, []string{h.ID.QualifiedName, location(res, h.ID), strconv.FormatFloat(h.Score, 'f', 4, 64)})
	}
	hubs := NewTable("Top Functions by PageRank", []string{"Function", "Location", "Score"}, hubRows, nil, nil)

	groupRows := make([][]string, 0, len(st.RecursionGroups))
	for i, g := range st.RecursionGroups {
		names := make([]string, len(g))
		for j, id := range g {
			names[j] = id.QualifiedName
		}
		groupRows = append(groupRows, []string{strconv.Itoa(i + 1), strings.Join(names, " -> ")})
	}
	groups := NewTable("Recursion Groups", []string{"#", "Functions"}, groupRows, nil, nil)

	return &Report{
		Title: "Call Graph Statistics",
		Sections: []Renderable{
			&Section{Content: fmt.Sprintf("Run %s, fingerprint %s, %s", st.RunID, st.Fingerprint, st.Duration.Round(time.Millisecond))},
			Summary(res),
			resolution,
			hubs,
			groups,
		},
		Data: st,
	}
}

func location(res *graph.Result, id models.FunctionID) string {
	return res.Rel(id.File) + ":" + strconv.Itoa(id.Line)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
