package operation

// WriteArgs holds the scalar field assignments of a single write.
type WriteArgs map[string]any

// Clone returns a shallow copy of the args.
func (a WriteArgs) Clone() WriteArgs {
	out := make(WriteArgs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order sorts a result set by a single field.
type Order struct {
	Field     string
	Direction Direction
}

// Operation is a validated high-level operation. The set of implementations
// is closed: Read and the write operation kinds below.
type Operation interface {
	operation()
	// ModelName reports the model the operation is rooted at.
	ModelName() string
}

// Read is a (possibly nested) read operation.
type Read struct {
	Model     string
	Filter    Filter   // nil selects all records
	Selection []string // empty selects all scalar fields
	Nested    []NestedRead
	OrderBy   []Order
	Skip      int
	Take      int // zero means no limit
	Unique    bool
}

// NestedRead selects related records of a relation field.
type NestedRead struct {
	Relation string
	Read     Read
}

// CreateInput is the payload of a (possibly nested) create.
type CreateInput struct {
	Args   WriteArgs
	Nested []NestedWrite
}

// Create creates one record, with optional nested relation writes.
type Create struct {
	Model     string
	Input     CreateInput
	Selection []string
	Nested    []NestedRead // read-back shape for relations
}

// CreateMany creates a batch of records without nested writes.
type CreateMany struct {
	Model    string
	ArgsList []WriteArgs
}

// Update updates the single record matched by Where.
type Update struct {
	Model     string
	Where     Filter
	Args      WriteArgs
	NestedW   []NestedWrite
	Selection []string
	Nested    []NestedRead
}

// UpdateMany updates all records matched by Where.
type UpdateMany struct {
	Model string
	Where Filter
	Args  WriteArgs
}

// Delete deletes the single record matched by Where.
type Delete struct {
	Model     string
	Where     Filter
	Selection []string
}

// DeleteMany deletes all records matched by Where.
type DeleteMany struct {
	Model string
	Where Filter
}

// Upsert updates the record matched by Where if it exists, and creates it
// otherwise.
type Upsert struct {
	Model     string
	Where     Filter
	Create    CreateInput
	Update    WriteArgs
	UpdateW   []NestedWrite
	Selection []string
	Nested    []NestedRead
}

func (*Read) operation()       {}
func (*Create) operation()     {}
func (*CreateMany) operation() {}
func (*Update) operation()     {}
func (*UpdateMany) operation() {}
func (*Delete) operation()     {}
func (*DeleteMany) operation() {}
func (*Upsert) operation()     {}

func (r *Read) ModelName() string       { return r.Model }
func (c *Create) ModelName() string     { return c.Model }
func (c *CreateMany) ModelName() string { return c.Model }
func (u *Update) ModelName() string     { return u.Model }
func (u *UpdateMany) ModelName() string { return u.Model }
func (d *Delete) ModelName() string     { return d.Model }
func (d *DeleteMany) ModelName() string { return d.Model }
func (u *Upsert) ModelName() string     { return u.Model }

// NestedWrite collects the nested actions requested for one relation field.
// Only the fields corresponding to requested actions are populated.
type NestedWrite struct {
	Relation string

	Create          []CreateInput
	CreateMany      []WriteArgs
	Connect         []Filter
	ConnectOrCreate []ConnectOrCreate
	// Disconnect lists unique filters of related records to disconnect.
	// For a to-one relation a single nil filter stands for the currently
	// connected record.
	Disconnect []Filter
	// Set declares the full desired related set. SetProvided distinguishes
	// an explicit empty set (clear all) from an absent action.
	Set         []Filter
	SetProvided bool
	Update      []NestedUpdate
	UpdateMany  []NestedUpdateMany
	Delete      []Filter
	DeleteMany  []Filter
	Upsert      []NestedUpsert
}

// ConnectOrCreate connects the record matched by Where, creating it when
// missing.
type ConnectOrCreate struct {
	Where  Filter
	Create CreateInput
}

// NestedUpdate updates one related record.
type NestedUpdate struct {
	Where  Filter // nil on a to-one relation targets the connected record
	Args   WriteArgs
	Nested []NestedWrite
}

// NestedUpdateMany updates related records in bulk.
type NestedUpdateMany struct {
	Where Filter
	Args  WriteArgs
}

// NestedUpsert updates one related record or creates it when missing.
type NestedUpsert struct {
	Where  Filter
	Create CreateInput
	Update WriteArgs
}
