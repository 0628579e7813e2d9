// Package connector defines the contract between the interpreter and a
// database backend: a transactional handle that executes primitive read and
// write operations lowered to tables and columns. Implementations live in
// sub-packages (sqlconn for SQL databases, conntest for tests).
package connector

import "context"

// Row is one database row keyed by column name.
type Row map[string]any

// Connector opens transactions against one database.
type Connector interface {
	// BeginTx opens a transaction. The returned Tx is owned exclusively by
	// one query graph for its whole lifetime.
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transactional handle executing primitive operations.
type Tx interface {
	Execute(ctx context.Context, op Op) (*Result, error)
	Commit() error
	Rollback() error
}

// Result carries the rows, ids and counts produced by one primitive
// operation.
type Result struct {
	// Rows holds the selected (or returned) rows, if any.
	Rows []Row
	// Affected is the number of rows written by an update or delete.
	Affected int64
	// Count is the result of a count operation.
	Count int64
}

// Op is one primitive database operation. The set of implementations is
// closed: Find, Insert, Update, Delete, Connect, Disconnect and Count.
type Op interface {
	op()
	// Table reports the table the operation works on.
	TableName() string
}

// Find reads rows matching a predicate, with optional ordering and
// pagination.
type Find struct {
	Table   string
	Where   Pred // nil selects all rows
	Columns []string
	OrderBy []OrderBy
	Skip    int
	Take    int // zero means no limit
}

// OrderBy sorts by one column.
type OrderBy struct {
	Column string
	Desc   bool
}

// Insert writes one row and returns the stated columns of the inserted row.
type Insert struct {
	Table     string
	Values    Row
	Returning []string
}

// Update writes the given column values to all rows matching the predicate.
type Update struct {
	Table     string
	Where     Pred
	Values    Row
	Returning []string
}

// Delete removes all rows matching the predicate.
type Delete struct {
	Table string
	Where Pred
}

// Connect inserts rows into a many-to-many join table. One row is written
// per (left, right) id pair in the cartesian product of the two id lists.
type Connect struct {
	Table       string
	LeftColumn  string
	RightColumn string
	LeftIDs     []any
	RightIDs    []any
}

// Disconnect removes join table rows matching the given id pairs.
type Disconnect struct {
	Table       string
	LeftColumn  string
	RightColumn string
	LeftIDs     []any
	RightIDs    []any
}

// Count counts rows matching a predicate.
type Count struct {
	Table string
	Where Pred
}

func (*Find) op()       {}
func (*Insert) op()     {}
func (*Update) op()     {}
func (*Delete) op()     {}
func (*Connect) op()    {}
func (*Disconnect) op() {}
func (*Count) op()      {}

func (f *Find) TableName() string       { return f.Table }
func (i *Insert) TableName() string     { return i.Table }
func (u *Update) TableName() string     { return u.Table }
func (d *Delete) TableName() string     { return d.Table }
func (c *Connect) TableName() string    { return c.Table }
func (d *Disconnect) TableName() string { return d.Table }
func (c *Count) TableName() string      { return c.Table }
