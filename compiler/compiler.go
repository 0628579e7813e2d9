// Package compiler turns validated operations into query graphs. The read
// builder compiles nested reads into chains of fetch-children-by-parent
// nodes; the write builder compiles creates, updates, deletes and upserts,
// including arbitrarily nested relation actions, into graphs of write, read
// and compute nodes joined by data-dependency edges.
//
// All compile functions are pure with respect to the graph: they append
// nodes and edges and return the handle of what they appended, so nested
// subgraphs compose without shared state.
package compiler

import (
	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
)

// PlanKind describes how the terminal result maps to a client payload.
type PlanKind uint8

// Plan kinds.
const (
	// PlanRecords serializes the result node rows as a list.
	PlanRecords PlanKind = iota + 1
	// PlanRecord serializes the first result row as a single object
	// (or null).
	PlanRecord
	// PlanCount serializes the result as an affected/row count.
	PlanCount
)

// Plan is a compiled operation: the query graph plus the shape needed to
// reassemble the terminal result into the requested nested payload.
type Plan struct {
	Graph *graph.QueryGraph
	// Shape is the read shape rooted at the result node. Nil for count
	// plans.
	Shape *ReadShape
	Kind  PlanKind
}

// Compiler builds query graphs against one resolved schema.
type Compiler struct {
	schema *schema.Schema
}

// New returns a compiler for the given schema.
func New(s *schema.Schema) *Compiler {
	return &Compiler{schema: s}
}

// Compile builds the query graph for any operation.
func (c *Compiler) Compile(op operation.Operation) (*Plan, error) {
	switch op := op.(type) {
	case *operation.Read:
		return c.CompileRead(op)
	case *operation.Create:
		return c.CompileCreate(op)
	case *operation.CreateMany:
		return c.CompileCreateMany(op)
	case *operation.Update:
		return c.CompileUpdate(op)
	case *operation.UpdateMany:
		return c.CompileUpdateMany(op)
	case *operation.Delete:
		return c.CompileDelete(op)
	case *operation.DeleteMany:
		return c.CompileDeleteMany(op)
	case *operation.Upsert:
		return c.CompileUpsert(op)
	default:
		return nil, querygraph.Compilef("", "unsupported operation %T", op)
	}
}

// model resolves a model name or fails with a compile error.
func (c *Compiler) model(name string) (*schema.Model, error) {
	m := c.schema.Model(name)
	if m == nil {
		return nil, querygraph.Compilef(name, "unknown model")
	}
	return m, nil
}

// relation resolves a relation field or fails with a compile error.
func relation(m *schema.Model, name string) (*schema.RelationField, error) {
	rel := m.Relation(name)
	if rel == nil {
		return nil, querygraph.Compilef(m.Name, "unknown relation %q", name)
	}
	return rel, nil
}

// allColumns returns the id column followed by all scalar columns.
func allColumns(m *schema.Model) []string {
	cols := make([]string, 0, len(m.Fields)+1)
	cols = append(cols, m.ID.Column)
	for _, f := range m.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// selectionColumns maps a field selection to columns, always including the
// id column first plus any extra columns the caller needs (e.g. foreign
// keys required for nesting).
func selectionColumns(m *schema.Model, selection []string, extra ...string) ([]string, error) {
	if len(selection) == 0 {
		cols := allColumns(m)
		return appendMissing(cols, extra...), nil
	}
	cols := []string{m.ID.Column}
	for _, name := range selection {
		f := m.Field(name)
		if f == nil {
			return nil, querygraph.Compilef(m.Name, "unknown field %q in selection", name)
		}
		cols = appendMissing(cols, f.Column)
	}
	return appendMissing(cols, extra...), nil
}

func appendMissing(cols []string, extra ...string) []string {
	for _, e := range extra {
		found := false
		for _, c := range cols {
			if c == e {
				found = true
				break
			}
		}
		if !found {
			cols = append(cols, e)
		}
	}
	return cols
}
