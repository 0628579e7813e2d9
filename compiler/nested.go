package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// nestedWrite appends the subgraphs of all actions requested for one
// relation of a write rooted at parent. inCreate restricts the allowed
// actions: a freshly created record has no related records to update,
// disconnect or delete.
func (c *Compiler) nestedWrite(g *graph.QueryGraph, parent graph.NodeRef, m *schema.Model, nw operation.NestedWrite, inCreate bool) error {
	rel, err := relation(m, nw.Relation)
	if err != nil {
		return err
	}
	if inCreate && touchesExisting(nw) {
		return querygraph.Compilef(m.Name, "only create and connect actions are allowed on relation %q within a create", nw.Relation)
	}
	if !rel.Many {
		if n := len(nw.Create) + len(nw.CreateMany) + len(nw.Connect) + len(nw.ConnectOrCreate); n > 1 {
			return querygraph.Compilef(m.Name, "relation %q accepts a single nested record", nw.Relation)
		}
	}
	for _, in := range nw.Create {
		if err := c.nestedCreate(g, parent, rel, in, inCreate); err != nil {
			return err
		}
	}
	for _, args := range nw.CreateMany {
		if err := c.nestedCreate(g, parent, rel, operation.CreateInput{Args: args}, inCreate); err != nil {
			return err
		}
	}
	if len(nw.Connect) > 0 {
		if err := c.nestedConnect(g, parent, rel, nw.Connect, inCreate); err != nil {
			return err
		}
	}
	for _, coc := range nw.ConnectOrCreate {
		if err := c.nestedConnectOrCreate(g, parent, rel, coc, inCreate); err != nil {
			return err
		}
	}
	if len(nw.Disconnect) > 0 {
		if err := c.nestedDisconnect(g, parent, rel, nw.Disconnect); err != nil {
			return err
		}
	}
	if nw.SetProvided {
		if err := c.nestedSet(g, parent, rel, nw.Set); err != nil {
			return err
		}
	}
	for _, u := range nw.Update {
		if err := c.nestedUpdate(g, parent, rel, u); err != nil {
			return err
		}
	}
	for _, um := range nw.UpdateMany {
		if err := c.nestedUpdateMany(g, parent, rel, um); err != nil {
			return err
		}
	}
	if len(nw.Delete) > 0 {
		if err := c.nestedDelete(g, parent, rel, nw.Delete); err != nil {
			return err
		}
	}
	if len(nw.DeleteMany) > 0 {
		if err := c.nestedDeleteMany(g, parent, rel, nw.DeleteMany); err != nil {
			return err
		}
	}
	for _, up := range nw.Upsert {
		if err := c.nestedUpsert(g, parent, rel, up); err != nil {
			return err
		}
	}
	return nil
}

func touchesExisting(nw operation.NestedWrite) bool {
	return len(nw.Disconnect) > 0 || nw.SetProvided ||
		len(nw.Update) > 0 || len(nw.UpdateMany) > 0 ||
		len(nw.Delete) > 0 || len(nw.DeleteMany) > 0 ||
		len(nw.Upsert) > 0
}

// orFilters lowers a list of (typically unique) filters to a disjunction.
// Nil filters, which stand for "the connected record" on to-one relations,
// lower to no constraint.
func (c *Compiler) orFilters(m *schema.Model, fs []operation.Filter) (connector.Pred, error) {
	var ps []connector.Pred
	for _, f := range fs {
		if f == nil {
			continue
		}
		p, err := c.pred(m, f)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps = append(ps, p)
		}
	}
	switch len(ps) {
	case 0:
		return nil, nil
	case 1:
		return ps[0], nil
	default:
		return &connector.OrPred{Operands: ps}, nil
	}
}
