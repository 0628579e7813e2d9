package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// ReadShape describes how the rows of one read level nest under the rows
// of the level above. The serializer walks the shape tree to reassemble
// flat row sets into nested payloads.
type ReadShape struct {
	// Node is the read node producing this level's rows.
	Node graph.NodeRef
	// Model backs the level's rows.
	Model *schema.Model
	// Relation links the level to its parent level. Nil at the root.
	Relation *schema.RelationField
	// JoinNode reads the (parent id, child id) pairs of a many-to-many
	// level. Zero otherwise.
	JoinNode graph.NodeRef
	// Selection lists the requested field names. Empty selects all
	// scalar fields.
	Selection []string
	// Skip and Take paginate the level's records per parent record.
	Skip int
	Take int
	// Children are the nested levels, one per nested relation read.
	Children []*ReadShape
}

// CompileRead builds the graph of a (possibly nested) read. Each nesting
// level becomes one read node fed the ids of the level above; many-to-many
// levels gain an extra node reading the join table pairs.
func (c *Compiler) CompileRead(op *operation.Read) (*Plan, error) {
	m, err := c.model(op.Model)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	where, err := c.pred(m, op.Filter)
	if err != nil {
		return nil, err
	}
	cols, err := selectionColumns(m, op.Selection, fkColumns(m, op.Nested)...)
	if err != nil {
		return nil, err
	}
	orderBy, err := lowerOrder(m, op.OrderBy)
	if err != nil {
		return nil, err
	}
	node := g.CreateNode(graph.Read(&connector.Find{
		Table:   m.Table,
		Where:   where,
		Columns: cols,
		OrderBy: orderBy,
		Skip:    op.Skip,
		Take:    op.Take,
	}))
	shape := &ReadShape{Node: node, Model: m, Selection: op.Selection}
	if err := c.readChildren(g, node, m, op.Nested, shape); err != nil {
		return nil, err
	}
	g.MarkResultNode(node)
	kind := PlanRecords
	if op.Unique {
		kind = PlanRecord
	}
	return &Plan{Graph: g, Shape: shape, Kind: kind}, nil
}

// readChildren appends one read level per nested relation read, feeding
// each level the ids produced by the parent node.
func (c *Compiler) readChildren(g *graph.QueryGraph, parent graph.NodeRef, m *schema.Model, nested []operation.NestedRead, shape *ReadShape) error {
	for _, nr := range nested {
		rel, err := relation(m, nr.Relation)
		if err != nil {
			return err
		}
		child := rel.RelatedModel()
		where, err := c.pred(child, nr.Read.Filter)
		if err != nil {
			return err
		}
		extra := fkColumns(child, nr.Read.Nested)
		if rel.InlinedOnRelated() {
			// The serializer groups child rows under parents by this
			// column.
			extra = append(extra, rel.ForeignKey)
		}
		cols, err := selectionColumns(child, nr.Read.Selection, extra...)
		if err != nil {
			return err
		}
		orderBy, err := lowerOrder(child, nr.Read.OrderBy)
		if err != nil {
			return err
		}
		cs := &ReadShape{
			Model:     child,
			Relation:  rel,
			Selection: nr.Read.Selection,
			Skip:      nr.Read.Skip,
			Take:      nr.Read.Take,
		}
		find := &connector.Find{
			Table:   child.Table,
			Where:   where,
			Columns: cols,
			OrderBy: orderBy,
		}
		if rel.ManyToMany() {
			// Read the join pairs first; the serializer needs them to
			// attribute each child row to its parents.
			join := g.CreateNode(graph.Read(&connector.Find{
				Table:   rel.JoinTable,
				Columns: []string{rel.JoinColumn, rel.JoinInverseColumn},
			}))
			if _, err := g.CreateEdge(parent, join, graph.Data(rel.Name, nil, injectFilter(rel.JoinColumn, m.ID.Column))); err != nil {
				return err
			}
			node := g.CreateNode(graph.Read(find))
			if _, err := g.CreateEdge(join, node, graph.Data(rel.Name, nil, injectFilter(child.ID.Column, rel.JoinInverseColumn))); err != nil {
				return err
			}
			cs.Node, cs.JoinNode = node, join
		} else {
			node := g.CreateNode(graph.Read(find))
			if _, err := g.CreateEdge(parent, node, graph.Data(rel.Name, nil, childFilter(rel))); err != nil {
				return err
			}
			cs.Node = node
		}
		shape.Children = append(shape.Children, cs)
		if err := c.readChildren(g, cs.Node, child, nr.Read.Nested, cs); err != nil {
			return err
		}
	}
	return nil
}

// fkColumns returns the foreign key columns a row set must carry so the
// given nested reads can locate their records: one per nested relation
// whose link lives on this model.
func fkColumns(m *schema.Model, nested []operation.NestedRead) []string {
	var cols []string
	for _, nr := range nested {
		rel := m.Relation(nr.Relation)
		if rel != nil && rel.InlinedOnModel() {
			cols = append(cols, rel.ForeignKey)
		}
	}
	return cols
}

func lowerOrder(m *schema.Model, orders []operation.Order) ([]connector.OrderBy, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	out := make([]connector.OrderBy, 0, len(orders))
	for _, o := range orders {
		f := m.Field(o.Field)
		if f == nil {
			return nil, querygraph.Compilef(m.Name, "unknown field %q in order by", o.Field)
		}
		out = append(out, connector.OrderBy{Column: f.Column, Desc: o.Direction == operation.Desc})
	}
	return out, nil
}
