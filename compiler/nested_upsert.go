package compiler

import (
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// nestedUpsert updates the related record matched by the filter when it
// exists and creates it otherwise, using the same then/else gating as a
// top-level upsert.
func (c *Compiler) nestedUpsert(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, up operation.NestedUpsert) error {
	m, child := rel.Model(), rel.RelatedModel()
	where, err := c.pred(child, up.Where)
	if err != nil {
		return err
	}
	values, err := writeValues(child, up.Update)
	if err != nil {
		return err
	}

	if rel.InlinedOnModel() {
		// The parent row carries the foreign key, so the whole branch
		// pair must resolve before the parent writes. The lookup is by
		// unique filter alone; the flatten merges whichever branch ran
		// and the flipped edge feeds the surviving id into the parent.
		lookup := g.CreateNode(graph.Read(&connector.Find{
			Table:   child.Table,
			Where:   where,
			Columns: []string{child.ID.Column},
		}))
		upd := g.CreateNode(graph.Write(&connector.Update{
			Table:     child.Table,
			Values:    values,
			Returning: []string{child.ID.Column},
		}))
		thenDep := graph.Dependency{
			Kind:      graph.EdgeThen,
			Name:      rel.Name,
			Transform: injectFilter(child.ID.Column, child.ID.Column),
		}
		if _, err := g.CreateEdge(lookup, upd, thenDep); err != nil {
			return err
		}
		created, err := c.createNode(g, child, up.Create)
		if err != nil {
			return err
		}
		if _, err := g.CreateEdge(lookup, created, graph.Else()); err != nil {
			return err
		}
		join := g.CreateNode(graph.Flatten())
		if _, err := g.CreateEdge(upd, join, graph.Data(rel.Name, nil, nil)); err != nil {
			return err
		}
		if _, err := g.CreateEdge(created, join, graph.Data(rel.Name, nil, nil)); err != nil {
			return err
		}
		if _, err := g.CreateEdge(parent, join, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, child.ID.Column))); err != nil {
			return err
		}
		g.MarkNodePair(parent, join)
		return nil
	}

	lookup, err := c.childLookup(g, parent, rel, where, nil)
	if err != nil {
		return err
	}
	upd := g.CreateNode(graph.Write(&connector.Update{
		Table:     child.Table,
		Values:    values,
		Returning: []string{child.ID.Column},
	}))
	thenDep := graph.Dependency{
		Kind:      graph.EdgeThen,
		Name:      rel.Name,
		Transform: injectFilter(child.ID.Column, child.ID.Column),
	}
	if _, err := g.CreateEdge(lookup, upd, thenDep); err != nil {
		return err
	}
	created, err := c.createNode(g, child, up.Create)
	if err != nil {
		return err
	}
	if _, err := g.CreateEdge(lookup, created, graph.Else()); err != nil {
		return err
	}
	if rel.ManyToMany() {
		connect := g.CreateNode(graph.Write(&connector.Connect{
			Table:       rel.JoinTable,
			LeftColumn:  rel.JoinColumn,
			RightColumn: rel.JoinInverseColumn,
		}))
		if _, err := g.CreateEdge(parent, connect, graph.Data(rel.Name, nil, injectLeftIDs(m.ID.Column))); err != nil {
			return err
		}
		if _, err := g.CreateEdge(created, connect, graph.Data(rel.Name, nil, injectRightIDs(child.ID.Column))); err != nil {
			return err
		}
		return nil
	}
	// Foreign key on the child: a created record points back at the
	// parent; a found record is already connected since the lookup is
	// scoped to the parent's records.
	if _, err := g.CreateEdge(parent, created, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, m.ID.Column))); err != nil {
		return err
	}
	return nil
}

// nestedConnectOrCreate links the record matched by a unique filter to the
// records written by parent, creating it first when it does not exist.
func (c *Compiler) nestedConnectOrCreate(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, coc operation.ConnectOrCreate, inCreate bool) error {
	m, child := rel.Model(), rel.RelatedModel()
	where, err := c.pred(child, coc.Where)
	if err != nil {
		return err
	}
	lookup := g.CreateNode(graph.Read(&connector.Find{
		Table:   child.Table,
		Where:   where,
		Columns: []string{child.ID.Column},
	}))
	created, err := c.createNode(g, child, coc.Create)
	if err != nil {
		return err
	}
	if _, err := g.CreateEdge(lookup, created, graph.Else()); err != nil {
		return err
	}

	switch {
	case rel.ManyToMany():
		if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
			return err
		}
		join := g.CreateNode(graph.Flatten())
		if _, err := g.CreateEdge(lookup, join, graph.Data(rel.Name, nil, nil)); err != nil {
			return err
		}
		if _, err := g.CreateEdge(created, join, graph.Data(rel.Name, nil, nil)); err != nil {
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
		if _, err := g.CreateEdge(join, connect, graph.Data(rel.Name, nil, injectRightIDs(child.ID.Column))); err != nil {
			return err
		}
		return nil
	case rel.InlinedOnModel():
		// Feed the found-or-created id into the parent via a flipped
		// pair. The lookup stays unordered relative to the parent, as an
		// order edge would close a cycle once the pair flips.
		join := g.CreateNode(graph.Flatten())
		if _, err := g.CreateEdge(lookup, join, graph.Data(rel.Name, nil, nil)); err != nil {
			return err
		}
		if _, err := g.CreateEdge(created, join, graph.Data(rel.Name, nil, nil)); err != nil {
			return err
		}
		if _, err := g.CreateEdge(parent, join, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, child.ID.Column))); err != nil {
			return err
		}
		g.MarkNodePair(parent, join)
		return nil
	default: // foreign key on the child
		if _, err := g.CreateEdge(parent, lookup, graph.Order()); err != nil {
			return err
		}
		var guard graph.NodeRef
		if !rel.Many && !inCreate {
			// A record matched by the filter may already be the connected
			// one; only other children count against the guard.
			guard, err = c.detachCurrentChild(g, parent, rel, where)
			if err != nil {
				return err
			}
		}
		if _, err := g.CreateEdge(parent, created, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, m.ID.Column))); err != nil {
			return err
		}
		// A found record may be connected to someone else; point it
		// here. The then gate keeps the update out of the created path.
		upd := g.CreateNode(graph.Write(&connector.Update{
			Table:  child.Table,
			Values: connector.Row{},
		}))
		if _, err := g.CreateEdge(parent, upd, graph.Data(rel.Name, nil, injectValue(rel.ForeignKey, m.ID.Column))); err != nil {
			return err
		}
		thenDep := graph.Dependency{
			Kind:      graph.EdgeThen,
			Name:      rel.Name,
			Transform: injectFilter(child.ID.Column, child.ID.Column),
		}
		if _, err := g.CreateEdge(lookup, upd, thenDep); err != nil {
			return err
		}
		if !guard.IsZero() {
			if _, err := g.CreateEdge(guard, created, graph.Order()); err != nil {
				return err
			}
			if _, err := g.CreateEdge(guard, upd, graph.Order()); err != nil {
				return err
			}
		}
		return nil
	}
}
