// Package graph provides the query graph: a directed acyclic graph of
// primitive read/write/compute nodes joined by data-dependency edges. A
// graph is built once per incoming operation by the compiler, finalized
// (applying pending node flips), handed to the interpreter, executed
// exactly once and discarded.
//
// Nodes and edges live in arenas and are addressed by opaque integer
// handles, so the structure has no ownership cycles and traversal is O(1)
// per hop.
package graph

import (
	"strconv"

	"github.com/syssam/querygraph"
)

// NodeRef is an opaque handle to a node. The zero value is invalid.
type NodeRef struct {
	ix int // 1-based arena index
}

// ID returns the stable identifier of the node within its graph.
func (n NodeRef) ID() string { return strconv.Itoa(n.ix) }

// IsZero reports whether the handle is the invalid zero value.
func (n NodeRef) IsZero() bool { return n.ix == 0 }

// EdgeRef is an opaque handle to an edge. The zero value is invalid.
type EdgeRef struct {
	ix int // 1-based arena index
}

// ID returns the stable identifier of the edge within its graph.
func (e EdgeRef) ID() string { return strconv.Itoa(e.ix) }

type edgeSlot struct {
	from, to int // 0-based node indices
	dep      Dependency
	removed  bool
}

// QueryGraph owns all nodes and edges of one compiled operation.
//
// Invariants:
//   - the graph is acyclic at all times
//   - node and edge handles are stable; removed edges leave tombstones
//   - edges are ordered by insertion; evaluation follows that order
//   - at most one node is marked as the result node
type QueryGraph struct {
	nodes []Node
	edges []edgeSlot
	// adjacency: edge indices per node, in insertion order.
	out, in [][]int

	result    int // 0-based result node index, -1 when unset
	marked    [][2]int
	finalized bool
}

// New returns an empty query graph.
func New() *QueryGraph {
	return &QueryGraph{result: -1}
}

// CreateNode adds a node and returns its handle.
func (g *QueryGraph) CreateNode(n Node) NodeRef {
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return NodeRef{ix: len(g.nodes)}
}

// CreateEdge adds a directed edge from one node to another. Creating a
// self-loop or an edge that would close a cycle is an internal fault.
func (g *QueryGraph) CreateEdge(from, to NodeRef, dep Dependency) (EdgeRef, error) {
	if !g.valid(from) || !g.valid(to) {
		return EdgeRef{}, querygraph.Internalf("graph: edge endpoint out of range")
	}
	if from == to {
		return EdgeRef{}, querygraph.Internalf("graph: self-loop on node %s", from.ID())
	}
	// to ~> from reachable means from -> to closes a cycle.
	if g.reachable(to.ix-1, from.ix-1) {
		return EdgeRef{}, querygraph.Internalf("graph: edge %s -> %s would create a cycle", from.ID(), to.ID())
	}
	g.edges = append(g.edges, edgeSlot{from: from.ix - 1, to: to.ix - 1, dep: dep})
	eix := len(g.edges) - 1
	g.out[from.ix-1] = append(g.out[from.ix-1], eix)
	g.in[to.ix-1] = append(g.in[to.ix-1], eix)
	return EdgeRef{ix: eix + 1}, nil
}

// RemoveEdge detaches an edge from the graph, leaving a tombstone so other
// edge handles stay valid. It returns the removed content.
func (g *QueryGraph) RemoveEdge(e EdgeRef) Dependency {
	slot := &g.edges[e.ix-1]
	slot.removed = true
	return slot.dep
}

// Node returns the content of a node. The pointer stays valid for the
// graph's lifetime; edge transforms mutate node content through it.
func (g *QueryGraph) Node(n NodeRef) *Node {
	return &g.nodes[n.ix-1]
}

// Dependency returns the content of an edge.
func (g *QueryGraph) Dependency(e EdgeRef) *Dependency {
	return &g.edges[e.ix-1].dep
}

// EdgeSource returns the node the edge originates from.
func (g *QueryGraph) EdgeSource(e EdgeRef) NodeRef {
	return NodeRef{ix: g.edges[e.ix-1].from + 1}
}

// EdgeTarget returns the node the edge points to.
func (g *QueryGraph) EdgeTarget(e EdgeRef) NodeRef {
	return NodeRef{ix: g.edges[e.ix-1].to + 1}
}

// OutgoingEdges returns the live edges originating from the node, in
// insertion order.
func (g *QueryGraph) OutgoingEdges(n NodeRef) []EdgeRef {
	return g.liveEdges(g.out[n.ix-1])
}

// IncomingEdges returns the live edges pointing to the node, in insertion
// order.
func (g *QueryGraph) IncomingEdges(n NodeRef) []EdgeRef {
	return g.liveEdges(g.in[n.ix-1])
}

func (g *QueryGraph) liveEdges(ixs []int) []EdgeRef {
	refs := make([]EdgeRef, 0, len(ixs))
	for _, ix := range ixs {
		if !g.edges[ix].removed {
			refs = append(refs, EdgeRef{ix: ix + 1})
		}
	}
	return refs
}

// MarkResultNode designates the node whose result becomes the operation's
// return value. A later call replaces an earlier mark.
func (g *QueryGraph) MarkResultNode(n NodeRef) {
	g.result = n.ix - 1
}

// ResultNode returns the designated result node, if any.
func (g *QueryGraph) ResultNode() (NodeRef, bool) {
	if g.result < 0 {
		return NodeRef{}, false
	}
	return NodeRef{ix: g.result + 1}, true
}

// IsResultNode reports whether the node is the designated result node.
func (g *QueryGraph) IsResultNode(n NodeRef) bool {
	return g.result == n.ix-1
}

// NodeCount returns the number of nodes.
func (g *QueryGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of live edges.
func (g *QueryGraph) EdgeCount() int {
	n := 0
	for i := range g.edges {
		if !g.edges[i].removed {
			n++
		}
	}
	return n
}

// Nodes returns handles to all nodes in insertion order.
func (g *QueryGraph) Nodes() []NodeRef {
	out := make([]NodeRef, len(g.nodes))
	for i := range g.nodes {
		out[i] = NodeRef{ix: i + 1}
	}
	return out
}

// IsAncestor reports whether ancestor can reach node through live edges.
func (g *QueryGraph) IsAncestor(ancestor, node NodeRef) bool {
	return g.reachable(ancestor.ix-1, node.ix-1)
}

// MarkNodePair marks a (parent, child) pair for flipping during Finalize:
// after finalization the child executes before the parent. The builder must
// write the content of the existing parent->child edge from the post-flip
// perspective, since Finalize moves edge content without rewriting it.
func (g *QueryGraph) MarkNodePair(parent, child NodeRef) {
	g.marked = append(g.marked, [2]int{parent.ix - 1, child.ix - 1})
}

// Finalize applies all pending node flips. For each marked (parent, child)
// pair, every parent of the parent gains an execution-order edge to the
// child (a conditional edge when the parent is itself conditionally
// gated), and the existing parent->child edge is reversed in place.
// Finalize is idempotent; it must be called before interpretation.
//
// Pairs are processed in reverse marking order so that flips nested deeper
// in the operation are applied before the flips of their ancestors.
func (g *QueryGraph) Finalize() error {
	if g.finalized {
		return nil
	}
	for i := len(g.marked) - 1; i >= 0; i-- {
		parent, child := g.marked[i][0], g.marked[i][1]
		if err := g.swap(parent, child); err != nil {
			return err
		}
	}
	g.finalized = true
	return nil
}

// Finalized reports whether Finalize has run.
func (g *QueryGraph) Finalized() bool { return g.finalized }

func (g *QueryGraph) swap(parent, child int) error {
	parentRef := NodeRef{ix: parent + 1}
	childRef := NodeRef{ix: child + 1}

	// All parents of `parent` become parents of `child` as well. A plain
	// execution-order edge suffices, except that conditional membership
	// carries over: a child pulled above a then/else-gated parent stays
	// gated on the same condition.
	for _, e := range g.IncomingEdges(parentRef) {
		src := g.EdgeSource(e)
		if src == childRef {
			continue
		}
		dep := Order()
		switch g.Dependency(e).Kind {
		case EdgeThen:
			dep = Then()
		case EdgeElse:
			dep = Else()
		}
		if _, err := g.CreateEdge(src, childRef, dep); err != nil {
			return err
		}
	}

	// Reverse the existing parent -> child edge, keeping its content.
	var existing EdgeRef
	for _, e := range g.OutgoingEdges(parentRef) {
		if g.EdgeTarget(e) == childRef {
			existing = e
			break
		}
	}
	if existing == (EdgeRef{}) {
		return querygraph.Internalf("graph: flip: no edge between %s and %s", parentRef.ID(), childRef.ID())
	}
	dep := g.RemoveEdge(existing)
	if _, err := g.CreateEdge(childRef, parentRef, dep); err != nil {
		return err
	}
	return nil
}

// TopoOrder returns all nodes in a topological order honoring edge
// direction. When several nodes are ready at once, the one inserted first
// comes first; this tie-break is stable and tests may rely on it. A cycle
// is an internal fault.
func (g *QueryGraph) TopoOrder() ([]NodeRef, error) {
	n := len(g.nodes)
	indeg := make([]int, n)
	for i := range g.edges {
		if !g.edges[i].removed {
			indeg[g.edges[i].to]++
		}
	}
	order := make([]NodeRef, 0, n)
	emitted := make([]bool, n)
	for len(order) < n {
		picked := -1
		for i := 0; i < n; i++ {
			if !emitted[i] && indeg[i] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			return nil, querygraph.Internalf("graph: cycle detected, no topological order exists")
		}
		emitted[picked] = true
		order = append(order, NodeRef{ix: picked + 1})
		for _, eix := range g.out[picked] {
			if !g.edges[eix].removed {
				indeg[g.edges[eix].to]--
			}
		}
	}
	return order, nil
}

func (g *QueryGraph) valid(n NodeRef) bool {
	return n.ix >= 1 && n.ix <= len(g.nodes)
}

// reachable reports whether `to` can be reached from `from` via live edges
// (0-based indices).
func (g *QueryGraph) reachable(from, to int) bool {
	if from == to {
		return true
	}
	seen := make(map[int]bool)
	stack := []int{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, eix := range g.out[cur] {
			if g.edges[eix].removed {
				continue
			}
			next := g.edges[eix].to
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
