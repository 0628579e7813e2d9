package compiler

import (
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// nestedCreate appends the creation of one related record together with
// its link to the records written by parent.
func (c *Compiler) nestedCreate(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, input operation.CreateInput, inCreate bool) error {
	m, child := rel.Model(), rel.RelatedModel()
	switch {
	case rel.ManyToMany():
		node, err := c.createNode(g, child, input)
		if err != nil {
			return err
		}
		// The order edge keeps the child inside the parent's execution
		// scope, conditional gating included.
		if _, err := g.CreateEdge(parent, node, graph.Order()); err != nil {
			return err
		}
		connect := g.CreateNode(graph.Write(&connector.Connect{
			Table:       rel.JoinTable,
			LeftColumn:  rel.JoinColumn,
			RightColumn: rel.JoinInverseColumn,
		}))
		if _, err := g.CreateEdge(parent, connect, graph.Data(rel.Name, nil, injectLeftIDs(m.ID.Column))); err != nil {
			return err
		}
		if _, err := g.CreateEdge(node, connect, graph.Data(rel.Name, nil, injectRightIDs(child.ID.Column))); err != nil {
			return err
		}
		return nil
	case rel.InlinedOnModel():
		// The parent row carries the foreign key, so the child must be
		// written first: build it below the parent and mark the pair for
		// flipping. The edge content is written for the flipped
		// direction, feeding the child's id into the parent's values.
		node, err := c.createNode(g, child, input)
		if err != nil {
			return err
		}
		if _, err := g.CreateEdge(parent, node, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, child.ID.Column))); err != nil {
			return err
		}
		g.MarkNodePair(parent, node)
		return nil
	default: // foreign key on the child
		var guard graph.NodeRef
		if !rel.Many && !inCreate {
			// Replacing the connected record of a to-one relation.
			var err error
			guard, err = c.detachCurrentChild(g, parent, rel, nil)
			if err != nil {
				return err
			}
		}
		node, err := c.createNode(g, child, input)
		if err != nil {
			return err
		}
		if _, err := g.CreateEdge(parent, node, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, m.ID.Column))); err != nil {
			return err
		}
		if !guard.IsZero() {
			if _, err := g.CreateEdge(guard, node, graph.Order()); err != nil {
				return err
			}
		}
		return nil
	}
}
