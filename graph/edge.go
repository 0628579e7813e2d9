package graph

import "fmt"

// EdgeKind tags the dependency variant carried by an edge.
type EdgeKind uint8

// Edge kinds.
const (
	// EdgeData carries a transform applied to the target before it
	// executes, and optionally a DataExpectation over the source result.
	EdgeData EdgeKind = iota + 1
	// EdgeOrder only sequences execution; no data flows.
	EdgeOrder
	// EdgeThen makes the target live iff the source (lookup) result is
	// non-empty.
	EdgeThen
	// EdgeElse makes the target live iff the source (lookup) result is
	// empty.
	EdgeElse
)

// TransformFunc mutates the pending arguments of the target node using the
// resolved result of the source node.
type TransformFunc func(target *Node, source ExpressionResult) error

// Dependency is the content of an edge.
type Dependency struct {
	Kind      EdgeKind
	Name      string // debugging label, not used for semantics
	Expect    *DataExpectation
	Transform TransformFunc
}

// Data returns a data-dependency edge content with an optional expectation
// and transform.
func Data(name string, expect *DataExpectation, transform TransformFunc) Dependency {
	return Dependency{Kind: EdgeData, Name: name, Expect: expect, Transform: transform}
}

// Order returns a pure execution-order edge content.
func Order() Dependency {
	return Dependency{Kind: EdgeOrder}
}

// Then returns a conditional edge content activating the target when the
// source result is non-empty.
func Then() Dependency {
	return Dependency{Kind: EdgeThen}
}

// Else returns a conditional edge content activating the target when the
// source result is empty.
func Else() Dependency {
	return Dependency{Kind: EdgeElse}
}

// ExpectKind tags the predicate of a DataExpectation.
type ExpectKind uint8

// Expectation kinds.
const (
	// ExpectNonEmpty requires at least one record.
	ExpectNonEmpty ExpectKind = iota + 1
	// ExpectEmpty requires zero records.
	ExpectEmpty
	// ExpectExactlyOne requires exactly one record.
	ExpectExactlyOne
)

// DataExpectation is a predicate over an edge's source result paired with
// the domain error raised when it does not hold. Expectation failures abort
// the whole graph and roll back its transaction.
type DataExpectation struct {
	Kind ExpectKind
	Err  error
}

// NonEmpty returns an expectation requiring at least one record.
func NonEmpty(err error) *DataExpectation {
	return &DataExpectation{Kind: ExpectNonEmpty, Err: err}
}

// EmptyRows returns an expectation requiring zero records.
func EmptyRows(err error) *DataExpectation {
	return &DataExpectation{Kind: ExpectEmpty, Err: err}
}

// ExactlyOne returns an expectation requiring exactly one record.
func ExactlyOne(err error) *DataExpectation {
	return &DataExpectation{Kind: ExpectExactlyOne, Err: err}
}

// Check evaluates the expectation against the source result, returning the
// bound domain error when it does not hold.
func (x *DataExpectation) Check(res ExpressionResult) error {
	n := SizeOf(res)
	switch x.Kind {
	case ExpectNonEmpty:
		if n == 0 {
			return x.Err
		}
	case ExpectEmpty:
		if n > 0 {
			return x.Err
		}
	case ExpectExactlyOne:
		if n != 1 {
			return x.Err
		}
	default:
		return fmt.Errorf("graph: unknown expectation kind %d", x.Kind)
	}
	return nil
}
