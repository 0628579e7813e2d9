package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// CompileCreate builds the graph of a create with nested relation writes:
// the insert node, its nested action subgraphs, and a read-back node
// producing the requested payload.
func (c *Compiler) CompileCreate(op *operation.Create) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	created, err := c.createNode(g, m, op.Input)
	if err != nil {
		return nil, err
	}
	return c.readBack(g, m, op.Selection, op.Nested, created)
}

// CompileCreateMany builds one insert node per row plus a flatten node
// merging the created rows into the result.
func (c *Compiler) CompileCreateMany(op *operation.CreateMany) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	flatten := g.CreateNode(graph.Flatten())
	for _, args := range op.ArgsList {
		values, err := writeValues(m, args)
		if err != nil {
			return nil, err
		}
		applyDefaults(m, values)
		ins := g.CreateNode(graph.Write(&connector.Insert{
			Table:     m.Table,
			Values:    values,
			Returning: allColumns(m),
		}))
		if _, err := g.CreateEdge(ins, flatten, graph.Data("", nil, nil)); err != nil {
			return nil, err
		}
	}
	g.MarkResultNode(flatten)
	shape := &ReadShape{Node: flatten, Model: m}
	return &Plan{Graph: g, Shape: shape, Kind: PlanRecords}, nil
}

// CompileUpdate builds the graph of a unique update: a lookup read, the
// update node guarded by presence and uniqueness expectations, nested
// relation writes, and a read-back node.
func (c *Compiler) CompileUpdate(op *operation.Update) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	_, upd, err := c.updateNode(g, m, op.Where, op.Args)
	if err != nil {
		return nil, err
	}
	for _, nw := range op.NestedW {
		if err := c.nestedWrite(g, upd, m, nw, false); err != nil {
			return nil, err
		}
	}
	return c.readBack(g, m, op.Selection, op.Nested, upd)
}

// updateNode appends a lookup read plus the update node for the single
// record matched by where. The lookup's edges raise not-found before
// not-unique, relying on the in-order evaluation of a node's incoming
// edges.
func (c *Compiler) updateNode(g *graph.QueryGraph, m *schema.Model, where operation.Filter, args operation.WriteArgs) (lookup, upd graph.NodeRef, err error) {
	p, err := c.pred(m, where)
	if err != nil {
		return lookup, upd, err
	}
	values, err := writeValues(m, args)
	if err != nil {
		return lookup, upd, err
	}
	lookup = g.CreateNode(graph.Read(&connector.Find{
		Table:   m.Table,
		Where:   p,
		Columns: allColumns(m),
	}))
	upd = g.CreateNode(graph.Write(&connector.Update{
		Table:     m.Table,
		Values:    values,
		Returning: allColumns(m),
	}))
	notFound := graph.NonEmpty(&querygraph.NotFoundError{Model: m.Name})
	if _, err := g.CreateEdge(lookup, upd, graph.Data("", notFound, nil)); err != nil {
		return lookup, upd, err
	}
	notUnique := graph.ExactlyOne(&querygraph.NotUniqueError{Model: m.Name, Count: -1})
	if _, err := g.CreateEdge(lookup, upd, graph.Data("", notUnique, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
		return lookup, upd, err
	}
	return lookup, upd, nil
}

// CompileUpdateMany builds a single filtered update whose affected-rows
// count is the result.
func (c *Compiler) CompileUpdateMany(op *operation.UpdateMany) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	p, err := c.pred(m, op.Where)
	if err != nil {
		return nil, err
	}
	values, err := writeValues(m, op.Args)
	if err != nil {
		return nil, err
	}
	upd := g.CreateNode(graph.Write(&connector.Update{
		Table:  m.Table,
		Where:  p,
		Values: values,
	}))
	g.MarkResultNode(upd)
	return &Plan{Graph: g, Kind: PlanCount}, nil
}

// CompileDelete builds the graph of a unique delete: a lookup read whose
// rows become the payload, the relation guards, and the delete node.
func (c *Compiler) CompileDelete(op *operation.Delete) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	p, err := c.pred(m, op.Where)
	if err != nil {
		return nil, err
	}
	cols, err := selectionColumns(m, op.Selection)
	if err != nil {
		return nil, err
	}
	lookup := g.CreateNode(graph.Read(&connector.Find{
		Table:   m.Table,
		Where:   p,
		Columns: cols,
	}))
	guards, err := c.restrictAndDetach(g, lookup, m)
	if err != nil {
		return nil, err
	}
	del := g.CreateNode(graph.Write(&connector.Delete{Table: m.Table}))
	notFound := graph.NonEmpty(&querygraph.NotFoundError{Model: m.Name})
	if _, err := g.CreateEdge(lookup, del, graph.Data("", notFound, nil)); err != nil {
		return nil, err
	}
	notUnique := graph.ExactlyOne(&querygraph.NotUniqueError{Model: m.Name, Count: -1})
	if _, err := g.CreateEdge(lookup, del, graph.Data("", notUnique, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
		return nil, err
	}
	for _, guard := range guards {
		if _, err := g.CreateEdge(guard, del, graph.Order()); err != nil {
			return nil, err
		}
	}
	g.MarkResultNode(lookup)
	shape := &ReadShape{Node: lookup, Model: m, Selection: op.Selection}
	return &Plan{Graph: g, Shape: shape, Kind: PlanRecord}, nil
}

// CompileDeleteMany builds a filtered delete with the same relation guards
// as a unique delete; the result is the number of deleted records.
func (c *Compiler) CompileDeleteMany(op *operation.DeleteMany) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	p, err := c.pred(m, op.Where)
	if err != nil {
		return nil, err
	}
	lookup := g.CreateNode(graph.Read(&connector.Find{
		Table:   m.Table,
		Where:   p,
		Columns: []string{m.ID.Column},
	}))
	guards, err := c.restrictAndDetach(g, lookup, m)
	if err != nil {
		return nil, err
	}
	del := g.CreateNode(graph.Write(&connector.Delete{Table: m.Table}))
	if _, err := g.CreateEdge(lookup, del, graph.Data("", nil, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
		return nil, err
	}
	for _, guard := range guards {
		if _, err := g.CreateEdge(guard, del, graph.Order()); err != nil {
			return nil, err
		}
	}
	g.MarkResultNode(del)
	return &Plan{Graph: g, Kind: PlanCount}, nil
}

// CompileUpsert builds a lookup with two conditionally gated branches: the
// update branch runs when the lookup finds the record, the create branch
// when it does not. The read-back node takes the written id from whichever
// branch ran.
func (c *Compiler) CompileUpsert(op *operation.Upsert) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	p, err := c.pred(m, op.Where)
	if err != nil {
		return nil, err
	}
	lookup := g.CreateNode(graph.Read(&connector.Find{
		Table:   m.Table,
		Where:   p,
		Columns: allColumns(m),
	}))

	// Update branch.
	values, err := writeValues(m, op.Update)
	if err != nil {
		return nil, err
	}
	upd := g.CreateNode(graph.Write(&connector.Update{
		Table:     m.Table,
		Values:    values,
		Returning: allColumns(m),
	}))
	thenDep := graph.Dependency{
		Kind:      graph.EdgeThen,
		Transform: injectFilter(m.ID.Column, m.ID.Column),
	}
	if _, err := g.CreateEdge(lookup, upd, thenDep); err != nil {
		return nil, err
	}
	for _, nw := range op.UpdateW {
		if err := c.nestedWrite(g, upd, m, nw, false); err != nil {
			return nil, err
		}
	}

	// Create branch.
	created, err := c.createNode(g, m, op.Create)
	if err != nil {
		return nil, err
	}
	if _, err := g.CreateEdge(lookup, created, graph.Else()); err != nil {
		return nil, err
	}

	// Read-back fed by whichever branch ran; the other branch's edge is
	// dead and contributes nothing.
	cols, err := selectionColumns(m, op.Selection, fkColumns(m, op.Nested)...)
	if err != nil {
		return nil, err
	}
	node := g.CreateNode(graph.Read(&connector.Find{Table: m.Table, Columns: cols}))
	if _, err := g.CreateEdge(upd, node, graph.Data("", nil, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
		return nil, err
	}
	if _, err := g.CreateEdge(created, node, graph.Data("", nil, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
		return nil, err
	}
	shape := &ReadShape{Node: node, Model: m, Selection: op.Selection}
	if err := c.readChildren(g, node, m, op.Nested, shape); err != nil {
		return nil, err
	}
	g.MarkResultNode(node)
	return &Plan{Graph: g, Shape: shape, Kind: PlanRecord}, nil
}

// createNode appends the insert node of one create payload together with
// the subgraphs of its nested relation writes.
func (c *Compiler) createNode(g *graph.QueryGraph, m *schema.Model, input operation.CreateInput) (graph.NodeRef, error) {
	values, err := writeValues(m, input.Args)
	if err != nil {
		return graph.NodeRef{}, err
	}
	applyDefaults(m, values)
	node := g.CreateNode(graph.Write(&connector.Insert{
		Table:     m.Table,
		Values:    values,
		Returning: allColumns(m),
	}))
	for _, nw := range input.Nested {
		if err := c.nestedWrite(g, node, m, nw, true); err != nil {
			return graph.NodeRef{}, err
		}
	}
	return node, nil
}

// readBack appends the read node producing the payload of a write rooted
// at source, marks it as the result and assembles the plan.
func (c *Compiler) readBack(g *graph.QueryGraph, m *schema.Model, selection []string, nested []operation.NestedRead, source graph.NodeRef) (*Plan, error) {
	cols, err := selectionColumns(m, selection, fkColumns(m, nested)...)
	if err != nil {
		return nil, err
	}
	node := g.CreateNode(graph.Read(&connector.Find{Table: m.Table, Columns: cols}))
	notFound := graph.NonEmpty(&querygraph.NotFoundError{Model: m.Name})
	if _, err := g.CreateEdge(source, node, graph.Data("", notFound, injectFilter(m.ID.Column, m.ID.Column))); err != nil {
		return nil, err
	}
	shape := &ReadShape{Node: node, Model: m, Selection: selection}
	if err := c.readChildren(g, node, m, nested, shape); err != nil {
		return nil, err
	}
	g.MarkResultNode(node)
	return &Plan{Graph: g, Shape: shape, Kind: PlanRecord}, nil
}

// restrictAndDetach appends the guards protecting referential integrity
// around a delete: reads failing on required dependent records, updates
// nulling the foreign keys of optional dependents, and join table
// cleanups. Every returned node must be ordered before the delete itself.
func (c *Compiler) restrictAndDetach(g *graph.QueryGraph, lookup graph.NodeRef, m *schema.Model) ([]graph.NodeRef, error) {
	var guards []graph.NodeRef
	for _, dep := range m.RelationsTo() {
		holder := dep.Model() // the model whose rows carry the foreign key
		if dep.Required {
			depRead := g.CreateNode(graph.Read(&connector.Find{
				Table:   holder.Table,
				Columns: []string{holder.ID.Column},
			}))
			if _, err := g.CreateEdge(lookup, depRead, graph.Data(dep.Name, nil, injectFilter(dep.ForeignKey, m.ID.Column))); err != nil {
				return nil, err
			}
			empty := g.CreateNode(graph.Empty())
			violation := &querygraph.RelationViolationError{
				Relation:     dep.Name,
				Model:        holder.Name,
				RelatedModel: m.Name,
			}
			if _, err := g.CreateEdge(depRead, empty, graph.Data(dep.Name, graph.EmptyRows(violation), nil)); err != nil {
				return nil, err
			}
			guards = append(guards, empty)
		} else {
			detach := g.CreateNode(graph.Write(&connector.Update{
				Table:  holder.Table,
				Values: connector.Row{dep.ForeignKey: nil},
			}))
			if _, err := g.CreateEdge(lookup, detach, graph.Data(dep.Name, nil, injectFilter(dep.ForeignKey, m.ID.Column))); err != nil {
				return nil, err
			}
			guards = append(guards, detach)
		}
	}
	for _, rel := range m.Relations() {
		if !rel.ManyToMany() {
			continue
		}
		clean := g.CreateNode(graph.Write(&connector.Delete{Table: rel.JoinTable}))
		if _, err := g.CreateEdge(lookup, clean, graph.Data(rel.Name, nil, injectFilter(rel.JoinColumn, m.ID.Column))); err != nil {
			return nil, err
		}
		guards = append(guards, clean)
	}
	return guards, nil
}
