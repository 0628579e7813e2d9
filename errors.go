package querygraph

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for the engine's domain error kinds.
var (
	// ErrNotFound is returned when a record required by the operation does
	// not exist (e.g. a record to connect, or the target of a nested update).
	ErrNotFound = errors.New("querygraph: record not found")

	// ErrRelationViolation is returned when an operation would break a
	// required relation (e.g. disconnecting the last link of a required
	// one-to-one relation).
	ErrRelationViolation = errors.New("querygraph: required relation violated")

	// ErrNotUnique is returned when a filter expected to match at most one
	// record matches several.
	ErrNotUnique = errors.New("querygraph: filter matched more than one record")
)

// NotFoundError reports that a record needed to fulfil an operation was
// missing. Model names the record's model; Relation is set when the record
// was looked up through a relation field.
type NotFoundError struct {
	Model    string
	Relation string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("querygraph: no %q record found for relation %q", e.Model, e.Relation)
	}
	return fmt.Sprintf("querygraph: no %q record found", e.Model)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// RelationViolationError reports that an operation would leave a required
// relation unsatisfied.
type RelationViolationError struct {
	Relation     string
	Model        string
	RelatedModel string
}

// Error returns the error string.
func (e *RelationViolationError) Error() string {
	return fmt.Sprintf(
		"querygraph: the change you are trying to make would violate the required relation %q between %q and %q",
		e.Relation, e.Model, e.RelatedModel,
	)
}

// Is reports whether the target error matches RelationViolationError.
func (e *RelationViolationError) Is(err error) bool {
	return err == ErrRelationViolation
}

// IsRelationViolation returns true if the error is a RelationViolationError.
func IsRelationViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *RelationViolationError
	return errors.As(err, &e) || errors.Is(err, ErrRelationViolation)
}

// NotUniqueError reports that a unique filter matched more than one record.
type NotUniqueError struct {
	Model string
	Count int // -1 if unknown
}

// Error returns the error string.
func (e *NotUniqueError) Error() string {
	if e.Count >= 0 {
		return fmt.Sprintf("querygraph: expected at most one %q record, got %d", e.Model, e.Count)
	}
	return fmt.Sprintf("querygraph: expected at most one %q record", e.Model)
}

// Is reports whether the target error matches NotUniqueError.
func (e *NotUniqueError) Is(err error) bool {
	return err == ErrNotUnique
}

// IsNotUnique returns true if the error is a NotUniqueError.
func IsNotUnique(err error) bool {
	if err == nil {
		return false
	}
	var e *NotUniqueError
	return errors.As(err, &e) || errors.Is(err, ErrNotUnique)
}

// CompileError reports that the requested operation cannot be expressed
// against the schema (e.g. connecting through an unknown relation). It is
// raised before any database access.
type CompileError struct {
	Model string
	Msg   string
}

// Error returns the error string.
func (e *CompileError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("querygraph: compile %q: %s", e.Model, e.Msg)
	}
	return fmt.Sprintf("querygraph: compile: %s", e.Msg)
}

// Compilef returns a new CompileError for the given model with a formatted
// message.
func Compilef(model, format string, args ...any) *CompileError {
	return &CompileError{Model: model, Msg: fmt.Sprintf(format, args...)}
}

// IsCompileError returns true if the error is a CompileError.
func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompileError
	return errors.As(err, &e)
}

// ConstraintError wraps a database constraint violation reported by a
// connector.
type ConstraintError struct {
	msg  string
	wrap error
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) *ConstraintError {
	return &ConstraintError{msg: msg, wrap: wrap}
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("querygraph: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// InternalError reports a broken engine invariant (e.g. a cycle in a
// compiled graph). It is never the result of a valid operation.
type InternalError struct {
	Msg string
}

// Error returns the error string.
func (e *InternalError) Error() string {
	return "querygraph: internal: " + e.Msg
}

// Internalf returns a new InternalError with a formatted message.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// IsInternal returns true if the error is an InternalError.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	var e *InternalError
	return errors.As(err, &e)
}
