package graph

import "github.com/syssam/querygraph/connector"

// NodeKind tags the content variant of a node.
type NodeKind uint8

// Node kinds.
const (
	// KindRead dispatches a primitive read to the connector.
	KindRead NodeKind = iota + 1
	// KindWrite dispatches a primitive write to the connector.
	KindWrite
	// KindComputation evaluates a local computation over upstream results.
	KindComputation
	// KindFlatten merges the row results of its live incoming edges.
	KindFlatten
	// KindEmpty produces an EmptyResult. Used as a join or no-op target
	// for expectation checks.
	KindEmpty
)

// Node is the content of one graph node: a closed tagged variant over the
// node kinds. Nodes are created through the constructor functions below and
// mutated only by edge transforms before their own execution.
type Node struct {
	kind NodeKind
	op   connector.Op
	comp *Computation
}

// Read returns a read query node executing the given primitive operation.
func Read(op connector.Op) Node {
	return Node{kind: KindRead, op: op}
}

// Write returns a write query node executing the given primitive operation.
func Write(op connector.Op) Node {
	return Node{kind: KindWrite, op: op}
}

// Compute returns a computation node.
func Compute(c *Computation) Node {
	return Node{kind: KindComputation, comp: c}
}

// Flatten returns a flatten node.
func Flatten() Node {
	return Node{kind: KindFlatten}
}

// Empty returns an empty node.
func Empty() Node {
	return Node{kind: KindEmpty}
}

// Kind returns the node's kind tag.
func (n *Node) Kind() NodeKind { return n.kind }

// Op returns the primitive operation of a read or write node, nil
// otherwise. Edge transforms mutate the operation through this accessor.
func (n *Node) Op() connector.Op { return n.op }

// Computation returns the computation of a computation node, nil otherwise.
func (n *Node) Computation() *Computation { return n.comp }

// Computation is the payload of a computation node. The only computation
// currently needed is the diff of two id sets, which turns a declarative
// "set these related records" into explicit connect and disconnect
// operations.
type Computation struct {
	// IDColumn is the column identifying records in both input row sets.
	IDColumn string
	// Before and After are fed by incoming edge transforms prior to
	// execution.
	Before []connector.Row
	After  []connector.Row
}

// Diff computes the result: Left = ids present only in Before,
// Right = ids present only in After. Order follows the input row order.
func (c *Computation) Diff() *DiffResult {
	before := make(map[any]struct{}, len(c.Before))
	after := make(map[any]struct{}, len(c.After))
	for _, r := range c.Before {
		before[r[c.IDColumn]] = struct{}{}
	}
	for _, r := range c.After {
		after[r[c.IDColumn]] = struct{}{}
	}
	res := &DiffResult{}
	for _, r := range c.Before {
		if _, ok := after[r[c.IDColumn]]; !ok {
			res.Left = append(res.Left, r[c.IDColumn])
		}
	}
	for _, r := range c.After {
		if _, ok := before[r[c.IDColumn]]; !ok {
			res.Right = append(res.Right, r[c.IDColumn])
		}
	}
	return res
}
