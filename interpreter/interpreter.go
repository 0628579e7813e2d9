// Package interpreter executes finalized query graphs against a connector.
// Each graph runs in exactly one transaction: nodes execute in topological
// order, edge expectations and transforms apply just before their target
// node runs, and the first failure rolls the whole transaction back.
package interpreter

import (
	"context"
	"fmt"

	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
)

// Interpreter executes query graphs against one connector.
type Interpreter struct {
	conn connector.Connector
}

// New returns an interpreter executing against the given connector.
func New(conn connector.Connector) *Interpreter {
	return &Interpreter{conn: conn}
}

// Outcome holds the results of one executed graph.
type Outcome struct {
	result graph.ExpressionResult
	nodes  map[string]graph.ExpressionResult
}

// Result returns the result of the graph's designated result node, or the
// result of the last executed node when none was designated. A skipped
// result node yields an empty result.
func (o *Outcome) Result() graph.ExpressionResult { return o.result }

// NodeResult returns the result of one node. The second return is false
// when the node was skipped.
func (o *Outcome) NodeResult(n graph.NodeRef) (graph.ExpressionResult, bool) {
	res, ok := o.nodes[n.ID()]
	return res, ok
}

// Execute finalizes the graph if needed and runs it in one transaction.
// On any failure the transaction is rolled back and the causing error
// returned; expectation failures surface their bound domain error.
func (in *Interpreter) Execute(ctx context.Context, g *graph.QueryGraph) (*Outcome, error) {
	if err := g.Finalize(); err != nil {
		return nil, err
	}
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}
	tx, err := in.conn.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("interpreter: starting transaction: %w", err)
	}
	out, err := in.run(ctx, tx, g, order)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("interpreter: committing transaction: %w", err)
	}
	return out, nil
}

func (in *Interpreter) run(ctx context.Context, tx connector.Tx, g *graph.QueryGraph, order []graph.NodeRef) (*Outcome, error) {
	results := make(map[string]graph.ExpressionResult, len(order))
	skipped := make(map[string]bool)
	var last graph.ExpressionResult

	for _, n := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if in.skipNode(g, n, results, skipped) {
			skipped[n.ID()] = true
			continue
		}
		node := g.Node(n)
		for _, e := range g.IncomingEdges(n) {
			if in.deadEdge(g, e, results, skipped) {
				continue
			}
			dep := g.Dependency(e)
			src := results[g.EdgeSource(e).ID()]
			if dep.Expect != nil {
				if err := dep.Expect.Check(src); err != nil {
					return nil, err
				}
			}
			if dep.Transform != nil {
				if err := dep.Transform(node, src); err != nil {
					return nil, err
				}
			}
		}
		res, err := in.execNode(ctx, tx, g, n, node, results, skipped)
		if err != nil {
			return nil, err
		}
		results[n.ID()] = res
		last = res
	}

	out := &Outcome{nodes: results, result: &graph.EmptyResult{}}
	if rn, ok := g.ResultNode(); ok {
		if res, ok := results[rn.ID()]; ok {
			out.result = res
		}
	} else if last != nil {
		out.result = last
	}
	return out, nil
}

// skipNode decides whether a node stays unexecuted: any dead conditional
// edge vetoes it, and a node all of whose incoming edges are dead has no
// reason to run. Nodes without incoming edges always run.
func (in *Interpreter) skipNode(g *graph.QueryGraph, n graph.NodeRef, results map[string]graph.ExpressionResult, skipped map[string]bool) bool {
	edges := g.IncomingEdges(n)
	if len(edges) == 0 {
		return false
	}
	allDead := true
	for _, e := range edges {
		dead := in.deadEdge(g, e, results, skipped)
		if !dead {
			allDead = false
			continue
		}
		kind := g.Dependency(e).Kind
		if kind == graph.EdgeThen || kind == graph.EdgeElse {
			return true
		}
	}
	return allDead
}

// deadEdge reports whether an edge carries no influence: its source was
// skipped, or its condition does not hold.
func (in *Interpreter) deadEdge(g *graph.QueryGraph, e graph.EdgeRef, results map[string]graph.ExpressionResult, skipped map[string]bool) bool {
	src := g.EdgeSource(e)
	if skipped[src.ID()] {
		return true
	}
	switch g.Dependency(e).Kind {
	case graph.EdgeThen:
		return graph.SizeOf(results[src.ID()]) == 0
	case graph.EdgeElse:
		return graph.SizeOf(results[src.ID()]) > 0
	default:
		return false
	}
}

func (in *Interpreter) execNode(ctx context.Context, tx connector.Tx, g *graph.QueryGraph, n graph.NodeRef, node *graph.Node, results map[string]graph.ExpressionResult, skipped map[string]bool) (graph.ExpressionResult, error) {
	switch node.Kind() {
	case graph.KindEmpty:
		return &graph.EmptyResult{}, nil
	case graph.KindComputation:
		return node.Computation().Diff(), nil
	case graph.KindFlatten:
		var rows []connector.Row
		for _, e := range g.IncomingEdges(n) {
			if in.deadEdge(g, e, results, skipped) {
				continue
			}
			if g.Dependency(e).Kind != graph.EdgeData {
				continue
			}
			rows = append(rows, graph.RowsOf(results[g.EdgeSource(e).ID()])...)
		}
		return &graph.RowsResult{Rows: rows}, nil
	case graph.KindRead, graph.KindWrite:
		return in.execOp(ctx, tx, node.Op())
	default:
		return nil, fmt.Errorf("interpreter: unknown node kind %d", node.Kind())
	}
}

func (in *Interpreter) execOp(ctx context.Context, tx connector.Tx, op connector.Op) (graph.ExpressionResult, error) {
	// Join table writes without a complete id pairing have nothing to do;
	// dispatching them would write the cartesian product of an empty set.
	switch op := op.(type) {
	case *connector.Connect:
		if len(op.LeftIDs) == 0 || len(op.RightIDs) == 0 {
			return &graph.EmptyResult{}, nil
		}
	case *connector.Disconnect:
		if len(op.LeftIDs) == 0 || len(op.RightIDs) == 0 {
			return &graph.EmptyResult{}, nil
		}
	}
	res, err := tx.Execute(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("interpreter: executing on %q: %w", op.TableName(), err)
	}
	switch op := op.(type) {
	case *connector.Find:
		return &graph.RowsResult{Rows: res.Rows}, nil
	case *connector.Insert:
		return &graph.RowsResult{Rows: res.Rows}, nil
	case *connector.Update:
		if len(op.Returning) > 0 {
			return &graph.RowsResult{Rows: res.Rows}, nil
		}
		return &graph.ValueResult{Value: res.Affected}, nil
	case *connector.Delete:
		return &graph.ValueResult{Value: res.Affected}, nil
	case *connector.Count:
		return &graph.ValueResult{Value: res.Count}, nil
	case *connector.Connect, *connector.Disconnect:
		return &graph.EmptyResult{}, nil
	default:
		return nil, fmt.Errorf("interpreter: unknown operation %T", op)
	}
}
