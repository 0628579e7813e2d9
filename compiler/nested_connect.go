package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// nestedConnect links existing records, identified by unique filters, to
// the records written by parent. Every filter must match a record.
func (c *Compiler) nestedConnect(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, filters []operation.Filter, inCreate bool) error {
	m, child := rel.Model(), rel.RelatedModel()
	where, err := c.orFilters(child, filters)
	if err != nil {
		return err
	}
	notFound := &querygraph.NotFoundError{Model: child.Name, Relation: rel.Name}
	switch {
	case rel.ManyToMany():
		lookup := g.CreateNode(graph.Read(&connector.Find{
			Table:   child.Table,
			Where:   where,
			Columns: []string{child.ID.Column},
		}))
		if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
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
		dep := graph.Data(rel.Name, graph.NonEmpty(notFound), expectCount(len(filters), notFound, injectRightIDs(child.ID.Column)))
		if _, err := g.CreateEdge(lookup, connect, dep); err != nil {
			return err
		}
		return nil
	case rel.InlinedOnModel():
		// The parent row carries the foreign key: look the child up
		// first and feed its id into the parent via a flipped pair.
		lookup := g.CreateNode(graph.Read(&connector.Find{
			Table:   child.Table,
			Where:   where,
			Columns: []string{child.ID.Column},
		}))
		dep := graph.Data(rel.Name, graph.NonEmpty(notFound), expectCount(len(filters), notFound, injectValue(rel.ForeignKey, child.ID.Column)))
		if _, err := g.CreateEdge(parent, lookup, dep); err != nil {
			return err
		}
		g.MarkNodePair(parent, lookup)
		return nil
	default: // foreign key on the child
		var guard graph.NodeRef
		if !rel.Many && !inCreate {
			// The record being connected may already be in place; only
			// other children count against the guard.
			guard, err = c.detachCurrentChild(g, parent, rel, where)
			if err != nil {
				return err
			}
		}
		lookup := g.CreateNode(graph.Read(&connector.Find{
			Table:   child.Table,
			Where:   where,
			Columns: []string{child.ID.Column},
		}))
		if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
			return err
		}
		upd := g.CreateNode(graph.Write(&connector.Update{
			Table:  child.Table,
			Values: connector.Row{},
		}))
		if _, err := g.CreateEdge(parent, upd, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, m.ID.Column))); err != nil {
			return err
		}
		dep := graph.Data(rel.Name, graph.NonEmpty(notFound), expectCount(len(filters), notFound, injectFilter(child.ID.Column, child.ID.Column)))
		if _, err := g.CreateEdge(lookup, upd, dep); err != nil {
			return err
		}
		if !guard.IsZero() {
			if _, err := g.CreateEdge(guard, upd, graph.Order()); err != nil {
				return err
			}
		}
		return nil
	}
}

// nestedDisconnect unlinks related records from the records written by
// parent. Disconnecting a required relation is rejected at compile time.
func (c *Compiler) nestedDisconnect(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, filters []operation.Filter) error {
	m, child := rel.Model(), rel.RelatedModel()
	if rel.Required {
		return &querygraph.RelationViolationError{Relation: rel.Name, Model: m.Name, RelatedModel: child.Name}
	}
	if rel.InlinedOnRelated() && rel.InverseRequired() {
		return &querygraph.RelationViolationError{Relation: rel.Inverse, Model: child.Name, RelatedModel: m.Name}
	}
	where, err := c.orFilters(child, filters)
	if err != nil {
		return err
	}
	switch {
	case rel.ManyToMany():
		lookup := g.CreateNode(graph.Read(&connector.Find{
			Table:   child.Table,
			Where:   where,
			Columns: []string{child.ID.Column},
		}))
		if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
			return err
		}
		disc := g.CreateNode(graph.Write(&connector.Disconnect{
			Table:       rel.JoinTable,
			LeftColumn:  rel.JoinColumn,
			RightColumn: rel.JoinInverseColumn,
		}))
		if _, err := g.CreateEdge(parent, disc, graph.Data(rel.Name, nil, injectLeftIDs(m.ID.Column))); err != nil {
			return err
		}
		if _, err := g.CreateEdge(lookup, disc, graph.Data(rel.Name, nil, injectRightIDs(child.ID.Column))); err != nil {
			return err
		}
		return nil
	case rel.InlinedOnModel():
		// Null the parent's own foreign key, narrowed to parents whose
		// connected record matches the filter when one was given.
		upd := g.CreateNode(graph.Write(&connector.Update{
			Table:  m.Table,
			Values: connector.Row{rel.ForeignKey: nil},
		}))
		if _, err := g.CreateEdge(parent, upd, graph.Data(rel.Name, nil, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
			return err
		}
		if where != nil {
			lookup := g.CreateNode(graph.Read(&connector.Find{
				Table:   child.Table,
				Where:   where,
				Columns: []string{child.ID.Column},
			}))
			if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
				return err
			}
			if _, err := g.CreateEdge(lookup, upd, graph.Data(rel.Name, nil, injectFilter(rel.ForeignKey, child.ID.Column))); err != nil {
				return err
			}
		}
		return nil
	default: // foreign key on the child
		upd := g.CreateNode(graph.Write(&connector.Update{
			Table:  child.Table,
			Where:  where,
			Values: connector.Row{rel.ForeignKey: nil},
		}))
		if _, err := g.CreateEdge(parent, upd, graph.Data(rel.Name, nil, injectFilter(rel.ForeignKey, m.ID.Column))); err != nil {
			return err
		}
		return nil
	}
}
