package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/querygraph/connector"
)

func readNode(table string) Node {
	return Read(&connector.Find{Table: table})
}

func TestCreateEdgeRejectsSelfLoop(t *testing.T) {
	t.Parallel()
	g := New()
	n := g.CreateNode(readNode("a"))
	_, err := g.CreateEdge(n, n, Order())
	require.Error(t, err)
}

func TestCreateEdgeRejectsCycle(t *testing.T) {
	t.Parallel()
	g := New()
	a := g.CreateNode(readNode("a"))
	b := g.CreateNode(readNode("b"))
	c := g.CreateNode(readNode("c"))
	_, err := g.CreateEdge(a, b, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(b, c, Order())
	require.NoError(t, err)

	_, err = g.CreateEdge(c, a, Order())
	require.Error(t, err, "closing a -> b -> c -> a must fail")
	assert.Equal(t, 2, g.EdgeCount())

	// The graph stays usable after the rejected edge.
	_, err = g.CreateEdge(a, c, Order())
	require.NoError(t, err)
}

func TestRemoveEdgeLeavesTombstone(t *testing.T) {
	t.Parallel()
	g := New()
	a := g.CreateNode(readNode("a"))
	b := g.CreateNode(readNode("b"))
	c := g.CreateNode(readNode("c"))
	e1, err := g.CreateEdge(a, b, Data("first", nil, nil))
	require.NoError(t, err)
	e2, err := g.CreateEdge(a, c, Data("second", nil, nil))
	require.NoError(t, err)

	dep := g.RemoveEdge(e1)
	assert.Equal(t, "first", dep.Name)
	assert.Equal(t, 1, g.EdgeCount())
	require.Len(t, g.OutgoingEdges(a), 1)
	assert.Equal(t, "second", g.Dependency(g.OutgoingEdges(a)[0]).Name)
	assert.Empty(t, g.IncomingEdges(b))

	// Handles created before the removal stay valid.
	assert.Equal(t, c, g.EdgeTarget(e2))
}

func TestTopoOrderPrefersInsertionOrder(t *testing.T) {
	t.Parallel()
	g := New()
	a := g.CreateNode(readNode("a"))
	b := g.CreateNode(readNode("b"))
	c := g.CreateNode(readNode("c"))
	d := g.CreateNode(readNode("d"))
	// b and c are both ready after a; b was inserted first.
	_, err := g.CreateEdge(a, c, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(a, b, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(b, d, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(c, d, Order())
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeRef{a, b, c, d}, order)
}

func TestTopoOrderHonorsEdges(t *testing.T) {
	t.Parallel()
	g := New()
	a := g.CreateNode(readNode("a"))
	b := g.CreateNode(readNode("b"))
	c := g.CreateNode(readNode("c"))
	// a depends on b, so b comes first; a then beats c on insertion
	// order.
	_, err := g.CreateEdge(b, a, Order())
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeRef{b, a, c}, order)
}

func TestFinalizeFlipsMarkedPair(t *testing.T) {
	t.Parallel()
	g := New()
	grand := g.CreateNode(readNode("grand"))
	parent := g.CreateNode(readNode("parent"))
	child := g.CreateNode(readNode("child"))
	_, err := g.CreateEdge(grand, parent, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(parent, child, Data("link", nil, nil))
	require.NoError(t, err)

	g.MarkNodePair(parent, child)
	require.NoError(t, g.Finalize())
	assert.True(t, g.Finalized())

	// The child now executes before the parent, still after the
	// parent's own parents.
	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeRef{grand, child, parent}, order)

	// The flipped edge kept its content.
	var flipped bool
	for _, e := range g.OutgoingEdges(child) {
		if g.EdgeTarget(e) == parent {
			flipped = true
			assert.Equal(t, "link", g.Dependency(e).Name)
		}
	}
	assert.True(t, flipped, "child -> parent edge missing after flip")
}

func TestFinalizeProcessesPairsInReverseOrder(t *testing.T) {
	t.Parallel()
	g := New()
	top := g.CreateNode(readNode("top"))
	mid := g.CreateNode(readNode("mid"))
	leaf := g.CreateNode(readNode("leaf"))
	_, err := g.CreateEdge(top, mid, Data("top-mid", nil, nil))
	require.NoError(t, err)
	_, err = g.CreateEdge(mid, leaf, Data("mid-leaf", nil, nil))
	require.NoError(t, err)

	// Marked outer first, inner second; reverse processing flips the
	// inner pair before the outer one.
	g.MarkNodePair(top, mid)
	g.MarkNodePair(mid, leaf)
	require.NoError(t, g.Finalize())

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeRef{leaf, mid, top}, order)
}

func TestFinalizePropagatesConditionalGating(t *testing.T) {
	t.Parallel()
	g := New()
	lookup := g.CreateNode(readNode("lookup"))
	parent := g.CreateNode(readNode("parent"))
	child := g.CreateNode(readNode("child"))
	_, err := g.CreateEdge(lookup, parent, Else())
	require.NoError(t, err)
	_, err = g.CreateEdge(parent, child, Data("link", nil, nil))
	require.NoError(t, err)

	g.MarkNodePair(parent, child)
	require.NoError(t, g.Finalize())

	// The child inherited the parent's else gate from the lookup.
	var gated bool
	for _, e := range g.IncomingEdges(child) {
		if g.EdgeSource(e) == lookup {
			gated = true
			assert.Equal(t, EdgeElse, g.Dependency(e).Kind)
		}
	}
	assert.True(t, gated, "lookup -> child gate missing after flip")
}

func TestFinalizeIsIdempotent(t *testing.T) {
	t.Parallel()
	g := New()
	parent := g.CreateNode(readNode("parent"))
	child := g.CreateNode(readNode("child"))
	_, err := g.CreateEdge(parent, child, Data("link", nil, nil))
	require.NoError(t, err)
	g.MarkNodePair(parent, child)

	require.NoError(t, g.Finalize())
	edges := g.EdgeCount()
	require.NoError(t, g.Finalize())
	assert.Equal(t, edges, g.EdgeCount())
}

func TestResultNode(t *testing.T) {
	t.Parallel()
	g := New()
	_, ok := g.ResultNode()
	assert.False(t, ok)

	a := g.CreateNode(readNode("a"))
	b := g.CreateNode(readNode("b"))
	g.MarkResultNode(a)
	g.MarkResultNode(b)
	res, ok := g.ResultNode()
	require.True(t, ok)
	assert.Equal(t, b, res)
	assert.True(t, g.IsResultNode(b))
	assert.False(t, g.IsResultNode(a))
}

func TestIsAncestor(t *testing.T) {
	t.Parallel()
	g := New()
	a := g.CreateNode(readNode("a"))
	b := g.CreateNode(readNode("b"))
	c := g.CreateNode(readNode("c"))
	_, err := g.CreateEdge(a, b, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(b, c, Order())
	require.NoError(t, err)

	assert.True(t, g.IsAncestor(a, c))
	assert.False(t, g.IsAncestor(c, a))
}
