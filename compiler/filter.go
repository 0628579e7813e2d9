package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// pred lowers a filter expression tree to a column-level predicate for the
// given model. A nil filter lowers to nil (select all).
func (c *Compiler) pred(m *schema.Model, f operation.Filter) (connector.Pred, error) {
	if f == nil {
		return nil, nil
	}
	switch f := f.(type) {
	case *operation.Field:
		return fieldPred(m, f)
	case *operation.And:
		ps, err := c.preds(m, f.Operands)
		if err != nil {
			return nil, err
		}
		return connector.AndAll(ps...), nil
	case *operation.Or:
		ps, err := c.preds(m, f.Operands)
		if err != nil {
			return nil, err
		}
		if len(ps) == 1 {
			return ps[0], nil
		}
		return &connector.OrPred{Operands: ps}, nil
	case *operation.Not:
		p, err := c.pred(m, f.Operand)
		if err != nil {
			return nil, err
		}
		return &connector.NotPred{Operand: p}, nil
	case *operation.Relation:
		return c.relationPred(m, f)
	default:
		return nil, querygraph.Compilef(m.Name, "unsupported filter %T", f)
	}
}

func (c *Compiler) preds(m *schema.Model, fs []operation.Filter) ([]connector.Pred, error) {
	out := make([]connector.Pred, 0, len(fs))
	for _, f := range fs {
		p, err := c.pred(m, f)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func fieldPred(m *schema.Model, f *operation.Field) (connector.Pred, error) {
	fld := m.Field(f.Name)
	if fld == nil {
		return nil, querygraph.Compilef(m.Name, "unknown field %q in filter", f.Name)
	}
	col := fld.Column
	switch f.Op {
	case operation.OpEQ:
		return &connector.Cmp{Column: col, Op: connector.CmpEQ, Value: f.Value}, nil
	case operation.OpNEQ:
		return &connector.Cmp{Column: col, Op: connector.CmpNEQ, Value: f.Value}, nil
	case operation.OpGT:
		return &connector.Cmp{Column: col, Op: connector.CmpGT, Value: f.Value}, nil
	case operation.OpGTE:
		return &connector.Cmp{Column: col, Op: connector.CmpGTE, Value: f.Value}, nil
	case operation.OpLT:
		return &connector.Cmp{Column: col, Op: connector.CmpLT, Value: f.Value}, nil
	case operation.OpLTE:
		return &connector.Cmp{Column: col, Op: connector.CmpLTE, Value: f.Value}, nil
	case operation.OpContains:
		return &connector.Cmp{Column: col, Op: connector.CmpContains, Value: f.Value}, nil
	case operation.OpHasPrefix:
		return &connector.Cmp{Column: col, Op: connector.CmpHasPrefix, Value: f.Value}, nil
	case operation.OpHasSuffix:
		return &connector.Cmp{Column: col, Op: connector.CmpHasSuffix, Value: f.Value}, nil
	case operation.OpIn:
		return &connector.InList{Column: col, Values: f.Values}, nil
	case operation.OpNotIn:
		return &connector.InList{Column: col, Values: f.Values, Negate: true}, nil
	case operation.OpIsNull:
		return &connector.Null{Column: col}, nil
	case operation.OpNotNull:
		return &connector.Null{Column: col, Negate: true}, nil
	default:
		return nil, querygraph.Compilef(m.Name, "unsupported operator %q on field %q", f.Op, f.Name)
	}
}

// relationPred lowers a relation-quantified filter to (possibly nested)
// correlated EXISTS predicates.
func (c *Compiler) relationPred(m *schema.Model, f *operation.Relation) (connector.Pred, error) {
	rel, err := relation(m, f.Field)
	if err != nil {
		return nil, err
	}
	child := rel.RelatedModel()

	inner := f.Where
	negate := false
	switch f.Quantifier {
	case operation.QuantSome:
	case operation.QuantNone:
		negate = true
	case operation.QuantEvery:
		// every(w) == none(not w). With no condition it holds trivially.
		if inner == nil {
			return nil, nil
		}
		inner = operation.NewNot(inner)
		negate = true
	default:
		return nil, querygraph.Compilef(m.Name, "unknown quantifier %q on relation %q", f.Quantifier, f.Field)
	}
	where, err := c.pred(child, inner)
	if err != nil {
		return nil, err
	}

	switch {
	case rel.ManyToMany():
		return &connector.Exists{
			Table:         rel.JoinTable,
			LocalColumn:   m.ID.Column,
			ForeignColumn: rel.JoinColumn,
			Negate:        negate,
			Where: &connector.Exists{
				Table:         child.Table,
				LocalColumn:   rel.JoinInverseColumn,
				ForeignColumn: child.ID.Column,
				Where:         where,
			},
		}, nil
	case rel.InlinedOnModel():
		return &connector.Exists{
			Table:         child.Table,
			LocalColumn:   rel.ForeignKey,
			ForeignColumn: child.ID.Column,
			Where:         where,
			Negate:        negate,
		}, nil
	default: // FK on the related model
		return &connector.Exists{
			Table:         child.Table,
			LocalColumn:   m.ID.Column,
			ForeignColumn: rel.ForeignKey,
			Where:         where,
			Negate:        negate,
		}, nil
	}
}

// writeValues lowers write args from field names to columns.
func writeValues(m *schema.Model, args operation.WriteArgs) (connector.Row, error) {
	values := make(connector.Row, len(args))
	for name, v := range args {
		f := m.Field(name)
		if f == nil {
			return nil, querygraph.Compilef(m.Name, "unknown field %q in write arguments", name)
		}
		values[f.Column] = v
	}
	return values, nil
}
