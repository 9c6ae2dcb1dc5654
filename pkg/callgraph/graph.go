// Package callgraph provides the node and edge store shared by extraction and
// resolution. Edges are indexed by caller and by callee; neighbor sets are
// roaring bitmaps over dense node indices.
package callgraph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/callscope/pkg/models"
)

var (
	// ErrFrozen is the panic value for mutations after Freeze.
	ErrFrozen = errors.New("call graph is frozen")

	// ErrInconsistentGraph reports divergence between the edge set and its indices.
	ErrInconsistentGraph = errors.New("call graph indices are inconsistent")
)

// Edge is a call relationship. Duplicate insertions of the same
// (caller, callee, kind) collapse into one edge with a higher Count.
type Edge struct {
	Caller     models.FunctionID
	Callee     models.FunctionID
	Kind       models.CallKind
	Count      int
	Provenance []string
}

func compareEdges(a, b *Edge) int {
	if c := a.Caller.Compare(b.Caller); c != 0 {
		return c
	}
	if c := a.Callee.Compare(b.Callee); c != 0 {
		return c
	}
	return cmp.Compare(a.Kind, b.Kind)
}

type edgeKey struct {
	from, to uint32
	kind     models.CallKind
}

// Graph is a call graph. It is safe for concurrent use, though extraction
// buffers edges per worker and merges them sequentially.
type Graph struct {
	mu sync.RWMutex

	ids   map[models.FunctionID]uint32
	nodes []models.FunctionID

	edges   map[edgeKey]*Edge
	outKeys map[uint32][]edgeKey
	inKeys  map[uint32][]edgeKey
	out     map[uint32]*roaring.Bitmap
	in      map[uint32]*roaring.Bitmap

	frozen bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		ids:     make(map[models.FunctionID]uint32),
		edges:   make(map[edgeKey]*Edge),
		outKeys: make(map[uint32][]edgeKey),
		inKeys:  make(map[uint32][]edgeKey),
		out:     make(map[uint32]*roaring.Bitmap),
		in:      make(map[uint32]*roaring.Bitmap),
	}
}

func (g *Graph) checkMutable() {
	if g.frozen {
		panic(ErrFrozen)
	}
}

// intern returns the dense index of id, inserting it if needed.
// Caller must hold the write lock.
func (g *Graph) intern(id models.FunctionID) uint32 {
	if idx, ok := g.ids[id]; ok {
		return idx
	}
	idx := uint32(len(g.nodes))
	g.ids[id] = idx
	g.nodes = append(g.nodes, id)
	return idx
}

// InsertNode adds id to the node set. Inserting an existing node is a no-op.
func (g *Graph) InsertNode(id models.FunctionID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkMutable()
	g.intern(id)
}

// AddEdge records a call from caller to callee. Unknown endpoints are
// inserted. A repeated (caller, callee, kind) increments the edge's count and
// merges provenance.
func (g *Graph) AddEdge(caller, callee models.FunctionID, kind models.CallKind, provenance string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkMutable()
	g.addEdge(caller, callee, kind, 1, provenance)
}

// addEdge inserts or bumps an edge. Caller must hold the write lock.
func (g *Graph) addEdge(caller, callee models.FunctionID, kind models.CallKind, count int, provenance ...string) {
	from := g.intern(caller)
	to := g.intern(callee)
	key := edgeKey{from: from, to: to, kind: kind}

	e, ok := g.edges[key]
	if !ok {
		e = &Edge{Caller: caller, Callee: callee, Kind: kind}
		g.edges[key] = e
		g.outKeys[from] = append(g.outKeys[from], key)
		g.inKeys[to] = append(g.inKeys[to], key)
		bitmapFor(g.out, from).Add(to)
		bitmapFor(g.in, to).Add(from)
	}
	e.Count += count
	for _, p := range provenance {
		e.Provenance = mergeProvenance(e.Provenance, p)
	}
}

// Merge adds every node and edge of other into g. Counts add up and
// provenance sets are unioned.
func (g *Graph) Merge(other *Graph) {
	other.mu.RLock()
	nodes := slices.Clone(other.nodes)
	ptrs := make([]*Edge, 0, len(other.edges))
	for _, e := range other.edges {
		ptrs = append(ptrs, e)
	}
	edges := copySorted(ptrs)
	other.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkMutable()
	for _, n := range nodes {
		g.intern(n)
	}
	for _, e := range edges {
		g.addEdge(e.Caller, e.Callee, e.Kind, e.Count, e.Provenance...)
	}
}

func bitmapFor(m map[uint32]*roaring.Bitmap, idx uint32) *roaring.Bitmap {
	b, ok := m[idx]
	if !ok {
		b = roaring.New()
		m[idx] = b
	}
	return b
}

func mergeProvenance(existing []string, p string) []string {
	if p == "" {
		return existing
	}
	i, found := slices.BinarySearch(existing, p)
	if found {
		return existing
	}
	return slices.Insert(existing, i, p)
}

// HasNode reports whether id is in the node set.
func (g *Graph) HasNode(id models.FunctionID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.ids[id]
	return ok
}

// CallersOf returns the distinct callers of id, sorted. Unknown nodes have
// no callers.
func (g *Graph) CallersOf(id models.FunctionID) []models.FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.ids[id]
	if !ok {
		return []models.FunctionID{}
	}
	return g.resolveSorted(g.in[idx])
}

// CalleesOf returns the distinct callees of id, sorted. Unknown nodes have
// no callees.
func (g *Graph) CalleesOf(id models.FunctionID) []models.FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.ids[id]
	if !ok {
		return []models.FunctionID{}
	}
	return g.resolveSorted(g.out[idx])
}

// resolveSorted maps bitmap members to IDs. Caller must hold a read lock.
func (g *Graph) resolveSorted(b *roaring.Bitmap) []models.FunctionID {
	if b == nil {
		return []models.FunctionID{}
	}
	out := make([]models.FunctionID, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, g.nodes[it.Next()])
	}
	slices.SortFunc(out, models.FunctionID.Compare)
	return out
}

// AllFunctions returns every node, sorted.
func (g *Graph) AllFunctions() []models.FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := slices.Clone(g.nodes)
	slices.SortFunc(out, models.FunctionID.Compare)
	if out == nil {
		out = []models.FunctionID{}
	}
	return out
}

// Edges returns copies of every edge, sorted by caller, callee and kind.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ptrs := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		ptrs = append(ptrs, e)
	}
	return copySorted(ptrs)
}

// EdgesFrom returns the outgoing edges of id, sorted.
func (g *Graph) EdgesFrom(id models.FunctionID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.ids[id]
	if !ok {
		return []Edge{}
	}
	return copySorted(g.lookup(g.outKeys[idx]))
}

// EdgesTo returns the incoming edges of id, sorted.
func (g *Graph) EdgesTo(id models.FunctionID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.ids[id]
	if !ok {
		return []Edge{}
	}
	return copySorted(g.lookup(g.inKeys[idx]))
}

func (g *Graph) lookup(keys []edgeKey) []*Edge {
	out := make([]*Edge, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.edges[k])
	}
	return out
}

func copySorted(ptrs []*Edge) []Edge {
	slices.SortFunc(ptrs, compareEdges)
	out := make([]Edge, len(ptrs))
	for i, e := range ptrs {
		out[i] = *e
		out[i].Provenance = slices.Clone(e.Provenance)
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Freeze makes the graph read-only. Later mutations panic with ErrFrozen.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Frozen reports whether Freeze has been called.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// CheckConsistency verifies that both indices describe exactly the edge set.
func (g *Graph) CheckConsistency() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.ids) != len(g.nodes) {
		return fmt.Errorf("%w: %d ids for %d nodes", ErrInconsistentGraph, len(g.ids), len(g.nodes))
	}

	seenOut := make(map[edgeKey]int, len(g.edges))
	for from, keys := range g.outKeys {
		for _, k := range keys {
			if k.from != from {
				return fmt.Errorf("%w: edge %v filed under caller %d", ErrInconsistentGraph, k, from)
			}
			if _, ok := g.edges[k]; !ok {
				return fmt.Errorf("%w: caller index references missing edge %v", ErrInconsistentGraph, k)
			}
			if b := g.out[from]; b == nil || !b.Contains(k.to) {
				return fmt.Errorf("%w: callee bitmap of %d misses %d", ErrInconsistentGraph, from, k.to)
			}
			seenOut[k]++
		}
	}
	seenIn := make(map[edgeKey]int, len(g.edges))
	for to, keys := range g.inKeys {
		for _, k := range keys {
			if k.to != to {
				return fmt.Errorf("%w: edge %v filed under callee %d", ErrInconsistentGraph, k, to)
			}
			if b := g.in[to]; b == nil || !b.Contains(k.from) {
				return fmt.Errorf("%w: caller bitmap of %d misses %d", ErrInconsistentGraph, to, k.from)
			}
			seenIn[k]++
		}
	}
	for k := range g.edges {
		if seenOut[k] != 1 || seenIn[k] != 1 {
			return fmt.Errorf("%w: edge %v indexed %d/%d times", ErrInconsistentGraph, k, seenOut[k], seenIn[k])
		}
	}
	if len(seenOut) != len(g.edges) || len(seenIn) != len(g.edges) {
		return fmt.Errorf("%w: index sizes %d/%d for %d edges", ErrInconsistentGraph, len(seenOut), len(seenIn), len(g.edges))
	}
	return nil
}

// Reachable returns every node reachable from entries, entries included,
// sorted. Unknown entries are ignored.
func (g *Graph) Reachable(entries []models.FunctionID) []models.FunctionID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := roaring.New()
	queue := make([]uint32, 0, len(entries))
	for _, e := range entries {
		if idx, ok := g.ids[e]; ok && visited.CheckedAdd(idx) {
			queue = append(queue, idx)
		}
	}

	for head := 0; head < len(queue); head++ {
		next := g.out[queue[head]]
		if next == nil {
			continue
		}
		fresh := roaring.AndNot(next, visited)
		visited.Or(fresh)
		queue = append(queue, fresh.ToArray()...)
	}
	return g.resolveSorted(visited)
}
