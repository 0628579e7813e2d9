package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// nestedSet replaces the full related set of a to-many relation with the
// records matched by the given unique filters. For a join table relation
// the current and desired id sets are diffed so that only the actual
// membership changes are written.
func (c *Compiler) nestedSet(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, filters []operation.Filter) error {
	m, child := rel.Model(), rel.RelatedModel()
	if !rel.Many {
		return querygraph.Compilef(m.Name, "set is only supported on to-many relations, %q is to-one", rel.Name)
	}
	where, err := c.orFilters(child, filters)
	if err != nil {
		return err
	}
	notFound := &querygraph.NotFoundError{Model: child.Name, Relation: rel.Name}

	if rel.ManyToMany() {
		current, err := c.childLookup(g, parent, rel, nil, nil)
		if err != nil {
			return err
		}
		comp := g.CreateNode(graph.Compute(&graph.Computation{IDColumn: child.ID.Column}))
		if _, err := g.CreateEdge(current, comp, graph.Data(rel.Name, nil, feedBefore(child.ID.Column))); err != nil {
			return err
		}
		if len(filters) > 0 {
			desired := g.CreateNode(graph.Read(&connector.Find{
				Table:   child.Table,
				Where:   where,
				Columns: []string{child.ID.Column},
			}))
			if _, err := g.CreateEdge(parent, desired, graph.Order()); err != nil {
				return err
			}
			dep := graph.Data(rel.Name, nil, expectCount(len(filters), notFound, feedAfter(child.ID.Column)))
			if _, err := g.CreateEdge(desired, comp, dep); err != nil {
				return err
			}
		}
		disc := g.CreateNode(graph.Write(&connector.Disconnect{
			Table:       rel.JoinTable,
			LeftColumn:  rel.JoinColumn,
			RightColumn: rel.JoinInverseColumn,
		}))
		if _, err := g.CreateEdge(parent, disc, graph.Data(rel.Name, nil, injectLeftIDs(m.ID.Column))); err != nil {
			return err
		}
		if _, err := g.CreateEdge(comp, disc, graph.Data(rel.Name, nil, injectRemovedIDs())); err != nil {
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
		if _, err := g.CreateEdge(comp, connect, graph.Data(rel.Name, nil, injectAddedIDs())); err != nil {
			return err
		}
		return nil
	}

	// Foreign key on the child: clear the key of every current record
	// outside the desired set, then point the desired records here.
	if rel.InverseRequired() {
		return &querygraph.RelationViolationError{Relation: rel.Inverse, Model: child.Name, RelatedModel: m.Name}
	}
	clear := g.CreateNode(graph.Write(&connector.Update{
		Table:  child.Table,
		Values: connector.Row{rel.ForeignKey: nil},
	}))
	if _, err := g.CreateEdge(parent, clear, graph.Data(rel.Name, nil, injectFilter(rel.ForeignKey, m.ID.Column))); err != nil {
		return err
	}
	if len(filters) == 0 {
		return nil
	}
	lookup := g.CreateNode(graph.Read(&connector.Find{
		Table:   child.Table,
		Where:   where,
		Columns: []string{child.ID.Column},
	}))
	if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
		return err
	}
	if _, err := g.CreateEdge(lookup, clear, graph.Data(rel.Name, nil, injectExcludeFilter(child.ID.Column, child.ID.Column))); err != nil {
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
	if _, err := g.CreateEdge(clear, upd, graph.Order()); err != nil {
		return err
	}
	return nil
}
