package compiler

import (
	"github.com/google/uuid"

	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/schema"
)

// applyDefaults fills generated default values for columns absent from a
// create. Auto-increment defaults stay absent and are left to the database.
func applyDefaults(m *schema.Model, values connector.Row) {
	if m.ID.Default == schema.DefaultUUID {
		if _, ok := values[m.ID.Column]; !ok {
			values[m.ID.Column] = uuid.NewString()
		}
	}
	for _, f := range m.Fields {
		if f.Default != schema.DefaultUUID {
			continue
		}
		if _, ok := values[f.Column]; !ok {
			values[f.Column] = uuid.NewString()
		}
	}
}

// injectValue returns a transform copying one column of the source's first
// row into the pending values of the target write.
func injectValue(column, sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		row := graph.FirstRow(source)
		if row == nil {
			return querygraph.Internalf("compiler: no source row to inject into column %q", column)
		}
		v, ok := row[sourceColumn]
		if !ok {
			return querygraph.Internalf("compiler: source row lacks column %q", sourceColumn)
		}
		switch op := target.Op().(type) {
		case *connector.Insert:
			op.Values[column] = v
		case *connector.Update:
			op.Values[column] = v
		default:
			return querygraph.Internalf("compiler: cannot inject a value into %T", target.Op())
		}
		return nil
	}
}

// injectFilter returns a transform narrowing the target's predicate to rows
// whose column value appears in the source rows.
func injectFilter(column, sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		p := &connector.InList{Column: column, Values: graph.IDsOf(source, sourceColumn)}
		return andWhere(target, p)
	}
}

// injectExcludeFilter is injectFilter with the membership negated.
func injectExcludeFilter(column, sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		p := &connector.InList{Column: column, Values: graph.IDsOf(source, sourceColumn), Negate: true}
		return andWhere(target, p)
	}
}

func andWhere(target *graph.Node, p connector.Pred) error {
	switch op := target.Op().(type) {
	case *connector.Find:
		op.Where = connector.AndAll(op.Where, p)
	case *connector.Update:
		op.Where = connector.AndAll(op.Where, p)
	case *connector.Delete:
		op.Where = connector.AndAll(op.Where, p)
	case *connector.Count:
		op.Where = connector.AndAll(op.Where, p)
	default:
		return querygraph.Internalf("compiler: cannot narrow the predicate of %T", target.Op())
	}
	return nil
}

// expectCount wraps a transform with a check that the source stands for
// exactly n records, failing with err otherwise.
func expectCount(n int, err error, inner graph.TransformFunc) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		if graph.SizeOf(source) != n {
			return err
		}
		if inner == nil {
			return nil
		}
		return inner(target, source)
	}
}

// feedBefore returns a transform appending the source rows to the "before"
// id set of the target computation.
func feedBefore(sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		comp := target.Computation()
		if comp == nil {
			return querygraph.Internalf("compiler: cannot feed rows into %T", target.Op())
		}
		for _, r := range graph.RowsOf(source) {
			comp.Before = append(comp.Before, connector.Row{comp.IDColumn: r[sourceColumn]})
		}
		return nil
	}
}

// feedAfter returns a transform appending the source rows to the "after"
// id set of the target computation.
func feedAfter(sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		comp := target.Computation()
		if comp == nil {
			return querygraph.Internalf("compiler: cannot feed rows into %T", target.Op())
		}
		for _, r := range graph.RowsOf(source) {
			comp.After = append(comp.After, connector.Row{comp.IDColumn: r[sourceColumn]})
		}
		return nil
	}
}

// injectLeftIDs feeds the left-side (declaring model) ids of a join table
// write from the source rows.
func injectLeftIDs(sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		ids := graph.IDsOf(source, sourceColumn)
		switch op := target.Op().(type) {
		case *connector.Connect:
			op.LeftIDs = ids
		case *connector.Disconnect:
			op.LeftIDs = ids
		default:
			return querygraph.Internalf("compiler: cannot inject left ids into %T", target.Op())
		}
		return nil
	}
}

// injectRightIDs feeds the right-side (related model) ids of a join table
// write from the source rows.
func injectRightIDs(sourceColumn string) graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		ids := graph.IDsOf(source, sourceColumn)
		switch op := target.Op().(type) {
		case *connector.Connect:
			op.RightIDs = ids
		case *connector.Disconnect:
			op.RightIDs = ids
		default:
			return querygraph.Internalf("compiler: cannot inject right ids into %T", target.Op())
		}
		return nil
	}
}

// injectAddedIDs feeds a connect's right side from the added side of an id
// set diff.
func injectAddedIDs() graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		diff, ok := source.(*graph.DiffResult)
		if !ok {
			return querygraph.Internalf("compiler: expected a diff result, got %T", source)
		}
		op, ok := target.Op().(*connector.Connect)
		if !ok {
			return querygraph.Internalf("compiler: cannot inject added ids into %T", target.Op())
		}
		op.RightIDs = diff.Right
		return nil
	}
}

// injectRemovedIDs feeds a disconnect's right side from the removed side of
// an id set diff.
func injectRemovedIDs() graph.TransformFunc {
	return func(target *graph.Node, source graph.ExpressionResult) error {
		diff, ok := source.(*graph.DiffResult)
		if !ok {
			return querygraph.Internalf("compiler: expected a diff result, got %T", source)
		}
		op, ok := target.Op().(*connector.Disconnect)
		if !ok {
			return querygraph.Internalf("compiler: cannot inject removed ids into %T", target.Op())
		}
		op.RightIDs = diff.Left
		return nil
	}
}

// childFilter returns the transform narrowing a target operating on the
// related model's table down to the related records of the source rows,
// keyed on the relation's storage side.
func childFilter(rel *schema.RelationField) graph.TransformFunc {
	parent := rel.Model()
	child := rel.RelatedModel()
	return func(target *graph.Node, source graph.ExpressionResult) error {
		var p connector.Pred
		switch {
		case rel.ManyToMany():
			p = &connector.Exists{
				Table:         rel.JoinTable,
				LocalColumn:   child.ID.Column,
				ForeignColumn: rel.JoinInverseColumn,
				Where: &connector.InList{
					Column: rel.JoinColumn,
					Values: graph.IDsOf(source, parent.ID.Column),
				},
			}
		case rel.InlinedOnModel():
			p = &connector.InList{
				Column: child.ID.Column,
				Values: nonNull(graph.IDsOf(source, rel.ForeignKey)),
			}
		default:
			p = &connector.InList{
				Column: rel.ForeignKey,
				Values: graph.IDsOf(source, parent.ID.Column),
			}
		}
		return andWhere(target, p)
	}
}

// childLookup appends a read node fetching the related records of the
// source node's rows over the given relation. extra is AND'ed into the
// lookup's own predicate; columns always include the related model's id.
func (c *Compiler) childLookup(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, extra connector.Pred, columns []string) (graph.NodeRef, error) {
	child := rel.RelatedModel()
	if len(columns) == 0 {
		columns = []string{child.ID.Column}
	}
	node := g.CreateNode(graph.Read(&connector.Find{
		Table:   child.Table,
		Where:   extra,
		Columns: columns,
	}))
	if _, err := g.CreateEdge(parent, node, graph.Data(rel.Name, nil, childFilter(rel))); err != nil {
		return graph.NodeRef{}, err
	}
	return node, nil
}

// detachCurrentChild appends an update nulling the foreign key of the
// records currently connected to the source rows over a to-one relation
// whose link lives on the related model. When the related side of the
// relation is required, the graph fails with a relation violation instead.
// Records matching exclude are left alone, so re-linking the child that is
// already in place passes the guard as a no-op. The returned node must be
// ordered before whatever takes the child's place.
func (c *Compiler) detachCurrentChild(g *graph.QueryGraph, parent graph.NodeRef, rel *schema.RelationField, exclude connector.Pred) (graph.NodeRef, error) {
	child := rel.RelatedModel()
	m := rel.Model()
	var keep connector.Pred
	if exclude != nil {
		keep = &connector.NotPred{Operand: exclude}
	}
	if rel.InverseRequired() {
		existing := g.CreateNode(graph.Read(&connector.Find{
			Table:   child.Table,
			Where:   keep,
			Columns: []string{child.ID.Column},
		}))
		if _, err := g.CreateEdge(parent, existing, graph.Data(rel.Name, nil, injectFilter(rel.ForeignKey, m.ID.Column))); err != nil {
			return graph.NodeRef{}, err
		}
		empty := g.CreateNode(graph.Empty())
		violation := &querygraph.RelationViolationError{
			Relation:     rel.Inverse,
			Model:        child.Name,
			RelatedModel: m.Name,
		}
		if _, err := g.CreateEdge(existing, empty, graph.Data(rel.Name, graph.EmptyRows(violation), nil)); err != nil {
			return graph.NodeRef{}, err
		}
		return empty, nil
	}
	detach := g.CreateNode(graph.Write(&connector.Update{
		Table:  child.Table,
		Where:  keep,
		Values: connector.Row{rel.ForeignKey: nil},
	}))
	if _, err := g.CreateEdge(parent, detach, graph.Data(rel.Name, nil, injectFilter(rel.ForeignKey, m.ID.Column))); err != nil {
		return graph.NodeRef{}, err
	}
	return detach, nil
}

// nonNull drops nil values from an id list, e.g. unset optional foreign
// keys.
func nonNull(ids []any) []any {
	out := ids[:0]
	for _, id := range ids {
		if id != nil {
			out = append(out, id)
		}
	}
	return out
}
