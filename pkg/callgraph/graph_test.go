package callgraph

import (
	"sync"
	"testing"

	"github.com/panbanda/callscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fn(name string, line int) models.FunctionID {
	return models.FunctionID{QualifiedName: name, File: "app.py", Line: line}
}

func TestAddEdgeIdempotence(t *testing.T) {
	g := New()
	a, b := fn("a", 1), fn("b", 5)

	g.AddEdge(a, b, models.CallDirect, "local")
	g.AddEdge(a, b, models.CallDirect, "local")
	g.AddEdge(a, b, models.CallDirect, "import")

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, 3, edges[0].Count)
	assert.Equal(t, []string{"import", "local"}, edges[0].Provenance)
	assert.Equal(t, []models.FunctionID{b}, g.CalleesOf(a))
	assert.Equal(t, []models.FunctionID{a}, g.CallersOf(b))
	assert.NoError(t, g.CheckConsistency())
}

func TestAddEdgeDistinctKinds(t *testing.T) {
	g := New()
	a, b := fn("a", 1), fn("b", 5)

	g.AddEdge(a, b, models.CallDirect, "")
	g.AddEdge(a, b, models.CallPatternDispatch, "observer")

	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []models.FunctionID{b}, g.CalleesOf(a), "distinct callees are reported once")
	assert.NoError(t, g.CheckConsistency())
}

func TestAddEdgeInsertsEndpoints(t *testing.T) {
	g := New()
	g.AddEdge(fn("a", 1), fn("b", 2), models.CallDirect, "")
	assert.True(t, g.HasNode(fn("a", 1)))
	assert.True(t, g.HasNode(fn("b", 2)))
	assert.Equal(t, 2, g.NodeCount())
}

func TestInsertNodeIdempotent(t *testing.T) {
	g := New()
	g.InsertNode(fn("a", 1))
	g.InsertNode(fn("a", 1))
	assert.Equal(t, 1, g.NodeCount())
}

func TestQueriesUnknownNode(t *testing.T) {
	g := New()
	assert.NotNil(t, g.CallersOf(fn("missing", 1)))
	assert.Empty(t, g.CallersOf(fn("missing", 1)))
	assert.Empty(t, g.CalleesOf(fn("missing", 1)))
	assert.Empty(t, g.EdgesFrom(fn("missing", 1)))
	assert.NotNil(t, g.AllFunctions())
}

func TestQueriesSorted(t *testing.T) {
	g := New()
	root := fn("root", 1)
	g.AddEdge(root, fn("z", 30), models.CallDirect, "")
	g.AddEdge(root, fn("a", 10), models.CallDirect, "")
	g.AddEdge(root, fn("m", 20), models.CallDirect, "")

	assert.Equal(t, []models.FunctionID{fn("a", 10), fn("m", 20), fn("z", 30)}, g.CalleesOf(root))
	assert.Equal(t, []models.FunctionID{fn("root", 1), fn("a", 10), fn("m", 20), fn("z", 30)}, g.AllFunctions())
}

func TestFreezePanics(t *testing.T) {
	g := New()
	g.AddEdge(fn("a", 1), fn("b", 2), models.CallDirect, "")
	g.Freeze()
	assert.True(t, g.Frozen())

	assert.PanicsWithValue(t, ErrFrozen, func() {
		g.AddEdge(fn("a", 1), fn("c", 3), models.CallDirect, "")
	})
	assert.PanicsWithValue(t, ErrFrozen, func() {
		g.InsertNode(fn("c", 3))
	})
	assert.Equal(t, []models.FunctionID{fn("b", 2)}, g.CalleesOf(fn("a", 1)))
}

func TestCheckConsistencyDetectsDivergence(t *testing.T) {
	g := New()
	g.AddEdge(fn("a", 1), fn("b", 2), models.CallDirect, "")
	require.NoError(t, g.CheckConsistency())

	// Drop the callee index entry behind the graph's back.
	for k := range g.inKeys {
		delete(g.inKeys, k)
	}
	assert.ErrorIs(t, g.CheckConsistency(), ErrInconsistentGraph)
}

func TestMergePreservesCounts(t *testing.T) {
	a, b := fn("a", 1), fn("b", 2)

	buf := New()
	buf.AddEdge(a, b, models.CallDirect, "local")
	buf.AddEdge(a, b, models.CallDirect, "local")
	buf.InsertNode(fn("lonely", 9))

	g := New()
	g.AddEdge(a, b, models.CallDirect, "import")
	g.Merge(buf)

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, 3, edges[0].Count)
	assert.Equal(t, []string{"import", "local"}, edges[0].Provenance)
	assert.True(t, g.HasNode(fn("lonely", 9)))
	assert.NoError(t, g.CheckConsistency())
}

func TestConcurrentAddEdge(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				g.AddEdge(fn("caller", w), fn("callee", i), models.CallDirect, "")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, g.EdgeCount())
	assert.NoError(t, g.CheckConsistency())
}

func TestReachable(t *testing.T) {
	g := New()
	main, a, b, c, orphan := fn("main", 1), fn("a", 2), fn("b", 3), fn("c", 4), fn("orphan", 5)
	g.AddEdge(main, a, models.CallDirect, "")
	g.AddEdge(a, b, models.CallDynamic, "")
	g.AddEdge(b, a, models.CallDirect, "")
	g.AddEdge(orphan, c, models.CallDirect, "")

	assert.Equal(t, []models.FunctionID{main, a, b}, g.Reachable([]models.FunctionID{main}))
	assert.Equal(t, []models.FunctionID{c, orphan}, g.Reachable([]models.FunctionID{orphan, fn("nope", 99)}))
	assert.Empty(t, g.Reachable(nil))
}

func TestFingerprintOrderIndependent(t *testing.T) {
	edges := [][2]models.FunctionID{
		{fn("a", 1), fn("b", 2)},
		{fn("b", 2), fn("c", 3)},
		{fn("a", 1), fn("c", 3)},
	}

	g1 := New()
	for _, e := range edges {
		g1.AddEdge(e[0], e[1], models.CallDirect, "local")
	}
	g2 := New()
	for i := len(edges) - 1; i >= 0; i-- {
		g2.AddEdge(edges[i][0], edges[i][1], models.CallDirect, "local")
	}
	assert.Equal(t, g1.Fingerprint(), g2.Fingerprint())

	g2.AddEdge(fn("a", 1), fn("b", 2), models.CallDirect, "local")
	assert.NotEqual(t, g1.Fingerprint(), g2.Fingerprint(), "multiplicity is part of the fingerprint")
}

func TestStronglyConnected(t *testing.T) {
	g := New()
	a, b, c, r := fn("a", 1), fn("b", 2), fn("c", 3), fn("rec", 4)
	g.AddEdge(a, b, models.CallDirect, "")
	g.AddEdge(b, a, models.CallDirect, "")
	g.AddEdge(b, c, models.CallDirect, "")
	g.AddEdge(r, r, models.CallDirect, "")

	groups := g.StronglyConnected()
	require.Len(t, groups, 2)
	assert.Equal(t, []models.FunctionID{a, b}, groups[0])
	assert.Equal(t, []models.FunctionID{r}, groups[1])
}

func TestRank(t *testing.T) {
	g := New()
	hub := fn("hub", 1)
	for i := range 5 {
		g.AddEdge(fn("caller", 10+i), hub, models.CallDirect, "")
	}
	ranked := g.Rank(1)
	require.Len(t, ranked, 1)
	assert.Equal(t, hub, ranked[0].ID)
	assert.Len(t, g.Rank(0), 6)
	assert.Nil(t, New().Rank(3))
}

func TestDocument(t *testing.T) {
	g := New()
	a, b := fn("a", 1), fn("b", 2)
	g.AddEdge(a, b, models.CallDirect, "local")
	g.AddEdge(b, a, models.CallPatternDispatch, "observer")

	doc := g.Document()
	assert.Equal(t, 2, doc.Summary.TotalNodes)
	assert.Equal(t, 2, doc.Summary.TotalEdges)
	assert.Equal(t, 1, doc.Summary.EdgesByKind[models.CallDirect])
	assert.Equal(t, 1, doc.Summary.RecursionGroups)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, a.Key(), doc.Nodes[0].ID)
	assert.Equal(t, 1, doc.Nodes[0].InDegree)
	assert.Equal(t, 1, doc.Nodes[0].OutDegree)
}
