package graph

import "github.com/syssam/querygraph/connector"

// ExpressionResult is the runtime value produced by executing a node,
// propagated along its outgoing edges. The set of implementations is
// closed: RowsResult, ValueResult, DiffResult and EmptyResult.
type ExpressionResult interface {
	expressionResult()
}

// RowsResult is a selection of records.
type RowsResult struct {
	Rows []connector.Row
}

// ValueResult is a raw scalar value, e.g. a count or an affected-rows
// number.
type ValueResult struct {
	Value any
}

// DiffResult is the outcome of a Diff computation over two id sets:
// Left holds the ids present only before, Right the ids present only after.
type DiffResult struct {
	Left  []any
	Right []any
}

// EmptyResult carries no data.
type EmptyResult struct{}

func (*RowsResult) expressionResult()  {}
func (*ValueResult) expressionResult() {}
func (*DiffResult) expressionResult()  {}
func (*EmptyResult) expressionResult() {}

// RowsOf returns the rows carried by the result, or nil for non-row
// results.
func RowsOf(res ExpressionResult) []connector.Row {
	if r, ok := res.(*RowsResult); ok {
		return r.Rows
	}
	return nil
}

// FirstRow returns the first row of a row result, or nil.
func FirstRow(res ExpressionResult) connector.Row {
	rows := RowsOf(res)
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// IDsOf extracts the values of the given column from a row result,
// preserving row order.
func IDsOf(res ExpressionResult, column string) []any {
	rows := RowsOf(res)
	ids := make([]any, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r[column])
	}
	return ids
}

// SizeOf reports how many records a result stands for: the row count for a
// row result, one for a scalar value, the total id count for a diff, and
// zero for an empty result.
func SizeOf(res ExpressionResult) int {
	switch r := res.(type) {
	case *RowsResult:
		return len(r.Rows)
	case *ValueResult:
		return 1
	case *DiffResult:
		return len(r.Left) + len(r.Right)
	default:
		return 0
	}
}
