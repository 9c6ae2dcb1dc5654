package callgraph

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/callscope/pkg/models"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// RankedFunction pairs a node with its PageRank score.
type RankedFunction struct {
	ID    models.FunctionID `json:"id"`
	Score float64           `json:"score"`
}

// Fingerprint hashes the sorted edge set, counts and provenance included.
// Two graphs built from the same input have the same fingerprint regardless
// of insertion order.
func (g *Graph) Fingerprint() uint64 {
	h := xxhash.New()
	for _, id := range g.AllFunctions() {
		_, _ = h.WriteString(id.String())
		_, _ = h.WriteString("\n")
	}
	for _, e := range g.Edges() {
		_, _ = h.WriteString(e.Caller.String())
		_, _ = h.WriteString("->")
		_, _ = h.WriteString(e.Callee.String())
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(string(e.Kind))
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(strconv.Itoa(e.Count))
		for _, p := range e.Provenance {
			_, _ = h.WriteString("|")
			_, _ = h.WriteString(p)
		}
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}

// gonumView is a gonum projection of the graph over dense indices.
// Self-loops are kept separately since simple graphs reject them.
type gonumView struct {
	directed  *simple.DirectedGraph
	nodes     []models.FunctionID
	selfLoops map[int64]bool
}

func (g *Graph) gonum() *gonumView {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v := &gonumView{
		directed:  simple.NewDirectedGraph(),
		nodes:     slices.Clone(g.nodes),
		selfLoops: make(map[int64]bool),
	}
	for i := range g.nodes {
		v.directed.AddNode(simple.Node(int64(i)))
	}
	for k := range g.edges {
		if k.from == k.to {
			v.selfLoops[int64(k.from)] = true
			continue
		}
		v.directed.SetEdge(simple.Edge{F: simple.Node(int64(k.from)), T: simple.Node(int64(k.to))})
	}
	return v
}

// StronglyConnected returns the recursion groups of the graph: strongly
// connected components with more than one member, plus directly recursive
// functions. Members and groups are sorted.
func (g *Graph) StronglyConnected() [][]models.FunctionID {
	v := g.gonum()
	var groups [][]models.FunctionID
	for _, scc := range topo.TarjanSCC(v.directed) {
		if len(scc) == 1 && !v.selfLoops[scc[0].ID()] {
			continue
		}
		group := make([]models.FunctionID, 0, len(scc))
		for _, n := range scc {
			group = append(group, v.nodes[n.ID()])
		}
		slices.SortFunc(group, models.FunctionID.Compare)
		groups = append(groups, group)
	}
	slices.SortFunc(groups, func(a, b []models.FunctionID) int {
		return a[0].Compare(b[0])
	})
	return groups
}

// Rank returns the n highest PageRank nodes, highest first. Ties are broken
// by node order. A non-positive n returns every node.
func (g *Graph) Rank(n int) []RankedFunction {
	v := g.gonum()
	if len(v.nodes) == 0 {
		return nil
	}
	scores := network.PageRank(v.directed, 0.85, 1e-6)

	ranked := make([]RankedFunction, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, RankedFunction{ID: v.nodes[id], Score: score})
	}
	slices.SortFunc(ranked, func(a, b RankedFunction) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Document serializes the graph. Summary fields other than the node and edge
// counts are left for the caller to fill.
func (g *Graph) Document() *models.CallGraphDocument {
	doc := models.NewCallGraphDocument()
	edges := g.Edges()

	inDeg := make(map[models.FunctionID]int)
	outDeg := make(map[models.FunctionID]int)
	for _, e := range edges {
		outDeg[e.Caller]++
		inDeg[e.Callee]++
		doc.Edges = append(doc.Edges, models.GraphEdge{
			From:       e.Caller.Key(),
			To:         e.Callee.Key(),
			Kind:       e.Kind,
			Count:      e.Count,
			Provenance: e.Provenance,
		})
		doc.Summary.EdgesByKind[e.Kind]++
	}
	for _, id := range g.AllFunctions() {
		doc.Nodes = append(doc.Nodes, models.GraphNode{
			ID:            id.Key(),
			QualifiedName: id.QualifiedName,
			File:          id.File,
			Line:          id.Line,
			InDegree:      inDeg[id],
			OutDegree:     outDeg[id],
		})
	}
	doc.Summary.TotalNodes = len(doc.Nodes)
	doc.Summary.TotalEdges = len(doc.Edges)
	doc.Summary.RecursionGroups = len(g.StronglyConnected())
	return doc
}
