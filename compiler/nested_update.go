package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// nestedUpdate updates one related record of the records written by
// parent. A nil filter on a to-one relation targets the connected record.
func (c *Compiler) nestedUpdate(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, u operation.NestedUpdate) error {
	child := rel.RelatedModel()
	where, err := c.pred(child, u.Where)
	if err != nil {
		return err
	}
	values, err := writeValues(child, u.Args)
	if err != nil {
		return err
	}
	lookup, err := c.childLookup(g, parent, rel, where, nil)
	if err != nil {
		return err
	}
	upd := g.CreateNode(graph.Write(&connector.Update{
		Table:     child.Table,
		Values:    values,
		Returning: allColumns(child),
	}))
	notFound := graph.NonEmpty(&querygraph.NotFoundError{Model: child.Name, Relation: rel.Name})
	if _, err := g.CreateEdge(lookup, upd, graph.Data(rel.Name, notFound, nil)); err != nil {
		return err
	}
	notUnique := graph.ExactlyOne(&querygraph.NotUniqueError{Model: child.Name, Count: -1})
	if _, err := g.CreateEdge(lookup, upd, graph.Data(rel.Name, notUnique, injectFilter(child.ID.Column, child.ID.Column))); err != nil {
		return err
	}
	for _, nw := range u.Nested {
		if err := c.nestedWrite(g, upd, child, nw, false); err != nil {
			return err
		}
	}
	return nil
}

// nestedUpdateMany bulk-updates the related records matching the filter.
func (c *Compiler) nestedUpdateMany(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, um operation.NestedUpdateMany) error {
	child := rel.RelatedModel()
	where, err := c.pred(child, um.Where)
	if err != nil {
		return err
	}
	values, err := writeValues(child, um.Args)
	if err != nil {
		return err
	}
	upd := g.CreateNode(graph.Write(&connector.Update{
		Table:  child.Table,
		Where:  where,
		Values: values,
	}))
	if _, err := g.CreateEdge(parent, upd, graph.Data(rel.Name, nil, childFilter(rel))); err != nil {
		return err
	}
	return nil
}

// nestedDelete deletes related records identified by unique filters,
// running the same referential guards as a top-level delete. Every filter
// must match a record.
func (c *Compiler) nestedDelete(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, filters []operation.Filter) error {
	m, child := rel.Model(), rel.RelatedModel()
	if rel.Required {
		return &querygraph.RelationViolationError{Relation: rel.Name, Model: m.Name, RelatedModel: child.Name}
	}
	where, err := c.orFilters(child, filters)
	if err != nil {
		return err
	}
	if rel.InlinedOnModel() {
		// The parent row references the doomed record: clear the key as
		// part of the parent's own write, which executes first.
		upd, ok := g.Node(parent).Op().(*connector.Update)
		if !ok {
			return querygraph.Compilef(m.Name, "cannot delete over relation %q here", rel.Name)
		}
		upd.Values[rel.ForeignKey] = nil
	}
	lookup, err := c.childLookup(g, parent, rel, where, nil)
	if err != nil {
		return err
	}
	guards, err := c.restrictAndDetach(g, lookup, child)
	if err != nil {
		return err
	}
	del := g.CreateNode(graph.Write(&connector.Delete{Table: child.Table}))
	notFound := &querygraph.NotFoundError{Model: child.Name, Relation: rel.Name}
	dep := graph.Data(rel.Name, graph.NonEmpty(notFound), expectCount(len(filters), notFound, injectFilter(child.ID.Column, child.ID.Column)))
	if _, err := g.CreateEdge(lookup, del, dep); err != nil {
		return err
	}
	for _, guard := range guards {
		if _, err := g.CreateEdge(guard, del, graph.Order()); err != nil {
			return err
		}
	}
	return nil
}

// nestedDeleteMany bulk-deletes the related records matching the filters,
// with the same referential guards as a top-level delete.
func (c *Compiler) nestedDeleteMany(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, filters []operation.Filter) error {
	m, child := rel.Model(), rel.RelatedModel()
	if !rel.Many {
		return querygraph.Compilef(m.Name, "delete many is only supported on to-many relations, %q is to-one", rel.Name)
	}
	where, err := c.orFilters(child, filters)
	if err != nil {
		return err
	}
	lookup, err := c.childLookup(g, parent, rel, where, nil)
	if err != nil {
		return err
	}
	guards, err := c.restrictAndDetach(g, lookup, child)
	if err != nil {
		return err
	}
	del := g.CreateNode(graph.Write(&connector.Delete{Table: child.Table}))
	if _, err := g.CreateEdge(lookup, del, graph.Data(rel.Name, nil, injectFilter(child.ID.Column, child.ID.Column))); err != nil {
		return err
	}
	for _, guard := range guards {
		if _, err := g.CreateEdge(guard, del, graph.Order()); err != nil {
			return err
		}
	}
	return nil
}
