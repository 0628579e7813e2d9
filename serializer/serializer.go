// Package serializer reassembles the flat row sets of an executed plan
// into the nested payload the operation asked for: column names map back
// to field names, child rows group under their parents by foreign key or
// join table pair, and to-one relations collapse to a single object or
// nil. Payloads encode to JSON or msgpack.
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/querygraph"
	"github.com/syssam/querygraph/compiler"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/graph"
	"github.com/syssam/querygraph/interpreter"
)

// Record is one serialized record: field names to values, relation names
// to nested records.
type Record map[string]any

// Payload builds the result payload of an executed plan: a list of
// records, a single record or nil, or a count object, depending on the
// plan kind.
func Payload(out *interpreter.Outcome, plan *compiler.Plan) (any, error) {
	if plan.Kind == compiler.PlanCount {
		return countPayload(out), nil
	}
	if plan.Shape == nil {
		return nil, querygraph.Internalf("serializer: plan has no read shape")
	}
	recs, _, err := records(out, plan.Shape)
	if err != nil {
		return nil, err
	}
	if plan.Kind == compiler.PlanRecord {
		if len(recs) == 0 {
			return nil, nil
		}
		return recs[0], nil
	}
	return recs, nil
}

func countPayload(out *interpreter.Outcome) Record {
	switch res := out.Result().(type) {
	case *graph.ValueResult:
		return Record{"count": res.Value}
	case *graph.RowsResult:
		return Record{"count": int64(len(res.Rows))}
	default:
		return Record{"count": int64(0)}
	}
}

// records builds the payload records of one shape level, returning the
// source rows in parallel so the caller can group them under its own
// level.
func records(out *interpreter.Outcome, shape *compiler.ReadShape) ([]Record, []connector.Row, error) {
	res, ok := out.NodeResult(shape.Node)
	if !ok {
		return nil, nil, nil
	}
	rows := graph.RowsOf(res)
	recs := make([]Record, len(rows))
	for i, row := range rows {
		rec, err := project(shape, row)
		if err != nil {
			return nil, nil, err
		}
		recs[i] = rec
	}
	for _, cs := range shape.Children {
		if err := attach(out, shape, recs, rows, cs); err != nil {
			return nil, nil, err
		}
	}
	return recs, rows, nil
}

// project maps one row's columns back to the selected field names.
func project(shape *compiler.ReadShape, row connector.Row) (Record, error) {
	m := shape.Model
	if len(shape.Selection) == 0 {
		rec := make(Record, len(m.Fields)+1)
		rec[m.ID.Name] = row[m.ID.Column]
		for _, f := range m.Fields {
			rec[f.Name] = row[f.Column]
		}
		return rec, nil
	}
	rec := make(Record, len(shape.Selection))
	for _, name := range shape.Selection {
		f := m.Field(name)
		if f == nil {
			return nil, querygraph.Internalf("serializer: unknown field %q on model %q", name, m.Name)
		}
		rec[name] = row[f.Column]
	}
	return rec, nil
}

// attach builds one child level and hangs its records under the parent
// records, keyed on the relation's storage side.
func attach(out *interpreter.Outcome, parent *compiler.ReadShape, parentRecs []Record, parentRows []connector.Row, cs *compiler.ReadShape) error {
	childRecs, childRows, err := records(out, cs)
	if err != nil {
		return err
	}
	rel := cs.Relation
	child := cs.Model

	byID := make(map[any]int, len(childRows))
	for i, row := range childRows {
		byID[row[child.ID.Column]] = i
	}

	switch {
	case rel.ManyToMany():
		pairs, _ := out.NodeResult(cs.JoinNode)
		perParent := make(map[any][]int)
		for _, jr := range graph.RowsOf(pairs) {
			if ci, ok := byID[jr[rel.JoinInverseColumn]]; ok {
				pid := jr[rel.JoinColumn]
				perParent[pid] = append(perParent[pid], ci)
			}
		}
		for i, prow := range parentRows {
			pid := prow[parent.Model.ID.Column]
			parentRecs[i][rel.Name] = pick(childRecs, perParent[pid], cs)
		}
	case rel.InlinedOnModel():
		// The parent row points at its record through the foreign key.
		for i, prow := range parentRows {
			fk := prow[rel.ForeignKey]
			if fk == nil {
				parentRecs[i][rel.Name] = nil
				continue
			}
			if ci, ok := byID[fk]; ok {
				parentRecs[i][rel.Name] = childRecs[ci]
			} else {
				parentRecs[i][rel.Name] = nil
			}
		}
	default:
		// The child rows point at their parent through the foreign key.
		perParent := make(map[any][]int)
		for i, row := range childRows {
			fk := row[rel.ForeignKey]
			perParent[fk] = append(perParent[fk], i)
		}
		for i, prow := range parentRows {
			pid := prow[parent.Model.ID.Column]
			ixs := perParent[pid]
			if rel.Many {
				parentRecs[i][rel.Name] = pick(childRecs, ixs, cs)
				continue
			}
			if len(ixs) > 0 {
				parentRecs[i][rel.Name] = childRecs[ixs[0]]
			} else {
				parentRecs[i][rel.Name] = nil
			}
		}
	}
	return nil
}

// pick selects the child records at the given indexes, applying the
// level's per-parent pagination.
func pick(recs []Record, ixs []int, cs *compiler.ReadShape) []Record {
	if cs.Skip > 0 {
		if cs.Skip >= len(ixs) {
			ixs = nil
		} else {
			ixs = ixs[cs.Skip:]
		}
	}
	if cs.Take > 0 && cs.Take < len(ixs) {
		ixs = ixs[:cs.Take]
	}
	out := make([]Record, 0, len(ixs))
	for _, ix := range ixs {
		out = append(out, recs[ix])
	}
	return out
}

// EncodeJSON encodes a payload as JSON.
func EncodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// EncodeMsgpack encodes a payload as msgpack.
func EncodeMsgpack(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}
