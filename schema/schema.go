// Package schema holds the model, field and relation metadata the compiler
// reads when turning operations into query graphs. The metadata is owned by
// the caller (typically loaded from a schema definition file, see Load) and
// is immutable once resolved.
package schema

import (
	"fmt"
	"sort"
)

// FieldType enumerates the scalar field types known to the engine.
type FieldType string

// Scalar field types.
const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeUUID   FieldType = "uuid"
	TypeJSON   FieldType = "json"
)

// DefaultKind enumerates how a field value is produced when absent from a
// create operation.
type DefaultKind string

// Default kinds.
const (
	DefaultNone DefaultKind = ""
	// DefaultAutoIncrement leaves id generation to the database.
	DefaultAutoIncrement DefaultKind = "autoincrement"
	// DefaultUUID makes the compiler inject a generated UUID.
	DefaultUUID DefaultKind = "uuid"
)

// Storage describes where the link of a relation physically lives.
type Storage string

// Relation storage sides.
const (
	// StorageOwner: the foreign key column lives on the model declaring
	// the relation field.
	StorageOwner Storage = "owner"
	// StorageInverse: the foreign key column lives on the related model.
	StorageInverse Storage = "inverse"
	// StorageJoinTable: the link lives in a separate join table.
	StorageJoinTable Storage = "join_table"
)

// Field describes one scalar field of a model.
type Field struct {
	Name    string
	Column  string
	Type    FieldType
	Default DefaultKind
}

// RelationField describes one side of a relation between two models.
// The compiler and the flip algorithm read this metadata but never own it.
type RelationField struct {
	// Name of the relation field on the declaring model, e.g. "posts".
	Name string
	// RelatedTo names the model on the other side of the relation.
	RelatedTo string
	// Inverse is the relation field name on the related model, e.g. "author".
	Inverse string
	// Many reports whether this side holds many related records.
	Many bool
	// Required reports whether this side must always be connected.
	Required bool
	// Storage is the physical side holding the link.
	Storage Storage
	// ForeignKey is the FK column for owner/inverse storage.
	ForeignKey string
	// JoinTable, JoinColumn and JoinInverseColumn describe the join table
	// for many-to-many relations. JoinColumn references the declaring
	// model, JoinInverseColumn the related model.
	JoinTable         string
	JoinColumn        string
	JoinInverseColumn string

	model   *Model
	related *Model
}

// Model returns the model declaring the relation field.
func (r *RelationField) Model() *Model { return r.model }

// RelatedModel returns the model on the other side of the relation.
func (r *RelationField) RelatedModel() *Model { return r.related }

// InverseField returns the relation field on the related model, or nil if
// the relation has no back-reference.
func (r *RelationField) InverseField() *RelationField {
	if r.related == nil || r.Inverse == "" {
		return nil
	}
	return r.related.Relation(r.Inverse)
}

// ManyToMany reports whether the relation is stored in a join table.
func (r *RelationField) ManyToMany() bool { return r.Storage == StorageJoinTable }

// InlinedOnModel reports whether the FK column lives on the declaring model.
func (r *RelationField) InlinedOnModel() bool { return r.Storage == StorageOwner }

// InlinedOnRelated reports whether the FK column lives on the related model.
func (r *RelationField) InlinedOnRelated() bool { return r.Storage == StorageInverse }

// InverseRequired reports whether the other side of the relation is
// required. A relation without a back-reference is never required on the
// other side.
func (r *RelationField) InverseRequired() bool {
	inv := r.InverseField()
	return inv != nil && inv.Required
}

// Model describes one model mapped to one table.
type Model struct {
	Name   string
	Table  string
	ID     *Field
	Fields []*Field

	relations   []*RelationField
	referencing []*RelationField
	fields      map[string]*Field
}

// Field returns the scalar field with the given name, or nil.
// The id field is addressable by its name like any other field.
func (m *Model) Field(name string) *Field {
	if m.ID != nil && m.ID.Name == name {
		return m.ID
	}
	return m.fields[name]
}

// Relation returns the relation field with the given name, or nil.
func (m *Model) Relation(name string) *RelationField {
	for _, r := range m.relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Relations returns all relation fields declared on the model.
func (m *Model) Relations() []*RelationField { return m.relations }

// RelationsTo returns all relation fields of other models whose foreign key
// references this model, whether or not this model declares a back-reference.
// Used for required-relation checks on delete.
func (m *Model) RelationsTo() []*RelationField { return m.referencing }

// Schema is a resolved set of models.
type Schema struct {
	models map[string]*Model
}

// New returns a resolved schema from the given models, or an error if the
// metadata is inconsistent.
func New(models ...*Model) (*Schema, error) {
	s := &Schema{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		if _, ok := s.models[m.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate model %q", m.Name)
		}
		if m.Table == "" {
			m.Table = TableName(m.Name)
		}
		m.fields = make(map[string]*Field, len(m.Fields))
		for _, f := range m.Fields {
			if f.Column == "" {
				f.Column = ColumnName(f.Name)
			}
			if _, ok := m.fields[f.Name]; ok {
				return nil, fmt.Errorf("schema: duplicate field %q on model %q", f.Name, m.Name)
			}
			m.fields[f.Name] = f
		}
		if m.ID == nil {
			return nil, fmt.Errorf("schema: model %q has no id field", m.Name)
		}
		if m.ID.Column == "" {
			m.ID.Column = ColumnName(m.ID.Name)
		}
		m.referencing = nil
		s.models[m.Name] = m
	}
	for _, m := range models {
		for _, r := range m.relations {
			if err := s.resolveRelation(m, r); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *Schema) resolveRelation(m *Model, r *RelationField) error {
	related, ok := s.models[r.RelatedTo]
	if !ok {
		return fmt.Errorf("schema: relation %q on model %q references unknown model %q", r.Name, m.Name, r.RelatedTo)
	}
	r.model = m
	r.related = related
	switch r.Storage {
	case StorageOwner, StorageInverse:
		if r.ForeignKey == "" {
			r.ForeignKey = ColumnName(r.Name) + "_id"
		}
		if r.Storage == StorageOwner {
			related.referencing = append(related.referencing, r)
		}
	case StorageJoinTable:
		if r.JoinTable == "" {
			return fmt.Errorf("schema: many-to-many relation %q on model %q has no join table", r.Name, m.Name)
		}
		if r.JoinColumn == "" || r.JoinInverseColumn == "" {
			return fmt.Errorf("schema: many-to-many relation %q on model %q has incomplete join columns", r.Name, m.Name)
		}
	default:
		return fmt.Errorf("schema: relation %q on model %q has unknown storage %q", r.Name, m.Name, r.Storage)
	}
	if r.Inverse != "" {
		inv := related.Relation(r.Inverse)
		if inv == nil {
			return fmt.Errorf("schema: relation %q on model %q names missing inverse %q on %q", r.Name, m.Name, r.Inverse, related.Name)
		}
	}
	return nil
}

// Model returns the model with the given name, or nil.
func (s *Schema) Model(name string) *Model { return s.models[name] }

// Models returns all models sorted by name.
func (s *Schema) Models() []*Model {
	out := make([]*Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddRelations attaches relation fields to a model under construction.
// It must be called before New resolves the schema.
func (m *Model) AddRelations(rs ...*RelationField) *Model {
	m.relations = append(m.relations, rs...)
	return m
}
