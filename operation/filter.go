package operation

// Op enumerates the comparison operators usable in a field filter.
type Op string

// Comparison operators.
const (
	OpEQ        Op = "eq"
	OpNEQ       Op = "neq"
	OpGT        Op = "gt"
	OpGTE       Op = "gte"
	OpLT        Op = "lt"
	OpLTE       Op = "lte"
	OpIn        Op = "in"
	OpNotIn     Op = "not_in"
	OpContains  Op = "contains"
	OpHasPrefix Op = "has_prefix"
	OpHasSuffix Op = "has_suffix"
	OpIsNull    Op = "is_null"
	OpNotNull   Op = "not_null"
)

// Quantifier selects how a relation filter applies to the related records.
type Quantifier string

// Relation quantifiers.
const (
	// QuantSome matches records with at least one related record matching.
	QuantSome Quantifier = "some"
	// QuantEvery matches records where all related records match.
	QuantEvery Quantifier = "every"
	// QuantNone matches records with no related record matching.
	QuantNone Quantifier = "none"
)

// Filter is a node in a filter expression tree. The set of implementations
// is closed: Field, Relation, And, Or and Not.
type Filter interface {
	filter()
}

// Field compares a scalar field against a value (or value list for the
// in/not-in operators).
type Field struct {
	Name   string
	Op     Op
	Value  any
	Values []any // for OpIn / OpNotIn
}

// Relation quantifies a condition over the records of a relation field.
type Relation struct {
	Field      string
	Quantifier Quantifier
	Where      Filter // nil means "any record"
}

// And matches when all operands match.
type And struct {
	Operands []Filter
}

// Or matches when at least one operand matches.
type Or struct {
	Operands []Filter
}

// Not negates its operand.
type Not struct {
	Operand Filter
}

func (*Field) filter()    {}
func (*Relation) filter() {}
func (*And) filter()      {}
func (*Or) filter()       {}
func (*Not) filter()      {}

// EQ returns a field equality filter.
func EQ(name string, v any) *Field { return &Field{Name: name, Op: OpEQ, Value: v} }

// NEQ returns a field inequality filter.
func NEQ(name string, v any) *Field { return &Field{Name: name, Op: OpNEQ, Value: v} }

// GT returns a field greater-than filter.
func GT(name string, v any) *Field { return &Field{Name: name, Op: OpGT, Value: v} }

// GTE returns a field greater-or-equal filter.
func GTE(name string, v any) *Field { return &Field{Name: name, Op: OpGTE, Value: v} }

// LT returns a field less-than filter.
func LT(name string, v any) *Field { return &Field{Name: name, Op: OpLT, Value: v} }

// LTE returns a field less-or-equal filter.
func LTE(name string, v any) *Field { return &Field{Name: name, Op: OpLTE, Value: v} }

// In returns a field membership filter.
func In(name string, vs ...any) *Field { return &Field{Name: name, Op: OpIn, Values: vs} }

// NotIn returns a negated field membership filter.
func NotIn(name string, vs ...any) *Field { return &Field{Name: name, Op: OpNotIn, Values: vs} }

// Contains returns a substring filter.
func Contains(name, v string) *Field { return &Field{Name: name, Op: OpContains, Value: v} }

// HasPrefix returns a prefix filter.
func HasPrefix(name, v string) *Field { return &Field{Name: name, Op: OpHasPrefix, Value: v} }

// HasSuffix returns a suffix filter.
func HasSuffix(name, v string) *Field { return &Field{Name: name, Op: OpHasSuffix, Value: v} }

// IsNull returns a null-check filter.
func IsNull(name string) *Field { return &Field{Name: name, Op: OpIsNull} }

// NotNull returns a not-null-check filter.
func NotNull(name string) *Field { return &Field{Name: name, Op: OpNotNull} }

// NewAnd returns the conjunction of the given filters.
func NewAnd(fs ...Filter) *And { return &And{Operands: fs} }

// NewOr returns the disjunction of the given filters.
func NewOr(fs ...Filter) *Or { return &Or{Operands: fs} }

// NewNot returns the negation of the given filter.
func NewNot(f Filter) *Not { return &Not{Operand: f} }

// Some returns a relation filter matching records with at least one related
// record satisfying where.
func Some(field string, where Filter) *Relation {
	return &Relation{Field: field, Quantifier: QuantSome, Where: where}
}

// Every returns a relation filter matching records where every related
// record satisfies where.
func Every(field string, where Filter) *Relation {
	return &Relation{Field: field, Quantifier: QuantEvery, Where: where}
}

// None returns a relation filter matching records with no related record
// satisfying where.
func None(field string, where Filter) *Relation {
	return &Relation{Field: field, Quantifier: QuantNone, Where: where}
}
