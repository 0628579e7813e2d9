package connector

// Pred is a predicate over the rows of one table, already lowered to column
// names. The set of implementations is closed: Cmp, InList, Null, Exists,
// AndPred, OrPred and NotPred.
type Pred interface {
	pred()
}

// CmpOp enumerates scalar comparison operators.
type CmpOp string

// Comparison operators.
const (
	CmpEQ        CmpOp = "="
	CmpNEQ       CmpOp = "<>"
	CmpGT        CmpOp = ">"
	CmpGTE       CmpOp = ">="
	CmpLT        CmpOp = "<"
	CmpLTE       CmpOp = "<="
	CmpContains  CmpOp = "contains"
	CmpHasPrefix CmpOp = "has_prefix"
	CmpHasSuffix CmpOp = "has_suffix"
)

// Cmp compares a column against a constant value.
type Cmp struct {
	Column string
	Op     CmpOp
	Value  any
}

// InList matches rows whose column value is in (or, negated, not in) the
// given list. An empty non-negated list matches no rows.
type InList struct {
	Column string
	Values []any
	Negate bool
}

// Null checks a column for NULL (or, negated, NOT NULL).
type Null struct {
	Column string
	Negate bool
}

// Exists matches rows for which a correlated subquery on another table
// yields at least one row (or, negated, none). The correlation equates
// the outer LocalColumn with the subquery table's ForeignColumn.
type Exists struct {
	Table         string
	LocalColumn   string
	ForeignColumn string
	Where         Pred // nil matches any row
	Negate        bool
}

// AndPred matches when all operands match.
type AndPred struct {
	Operands []Pred
}

// OrPred matches when at least one operand matches.
type OrPred struct {
	Operands []Pred
}

// NotPred negates its operand.
type NotPred struct {
	Operand Pred
}

func (*Cmp) pred()     {}
func (*InList) pred()  {}
func (*Null) pred()    {}
func (*Exists) pred()  {}
func (*AndPred) pred() {}
func (*OrPred) pred()  {}
func (*NotPred) pred() {}

// AndAll combines the non-nil predicates into a conjunction. It returns nil
// when no predicate remains and the single predicate unwrapped when only
// one remains.
func AndAll(ps ...Pred) Pred {
	var kept []Pred
	for _, p := range ps {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &AndPred{Operands: kept}
	}
}
