package fitting

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrConstraint is returned when creating an edge that already exists.
	ErrConstraint = errors.New("fitting: edge already exists")

	// ErrNotRegistered is returned when an entity type or kind is unknown
	// to the registry.
	ErrNotRegistered = errors.New("fitting: kind not registered")

	// ErrInvalidIdentity is returned when an entity does not expose a
	// usable positive integer id. Such entities cannot participate in
	// edges.
	ErrInvalidIdentity = errors.New("fitting: entity has no usable id")
)

// ConstraintError is returned when an edge create violates the uniqueness
// invariant: no two edges share the same (namespace, source, sink) identity.
type ConstraintError struct {
	Namespace Namespace
	Source    EntityRef
	Sink      EntityRef
	wrap      error // underlying driver error, if any
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("fitting: edge %s -> %s already exists in namespace %d",
		e.Source, e.Sink, e.Namespace)
}

// Is reports whether the target error matches ConstraintError.
// This allows errors.Is(err, ErrConstraint) to return true.
func (e *ConstraintError) Is(err error) bool {
	return err == ErrConstraint
}

// Unwrap returns the underlying driver error, if any.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError for the given edge
// identity, wrapping the driver error that reported the violation.
func NewConstraintError(ns Namespace, source, sink EntityRef, err error) *ConstraintError {
	return &ConstraintError{Namespace: ns, Source: source, Sink: sink, wrap: err}
}

// IsConstraint returns true if the error is a ConstraintError.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e) || errors.Is(err, ErrConstraint)
}

// NotRegisteredError is returned when a Go type or kind label has not been
// registered with the registry.
type NotRegisteredError struct {
	Kind     Kind   // the unknown kind label, if resolved by label
	TypeName string // the unknown Go type, if resolved by value
}

// Error returns the error string.
func (e *NotRegisteredError) Error() string {
	if e.TypeName != "" {
		return fmt.Sprintf("fitting: type %s not registered", e.TypeName)
	}
	return fmt.Sprintf("fitting: kind %q not registered", e.Kind)
}

// Is reports whether the target error matches NotRegisteredError.
func (e *NotRegisteredError) Is(err error) bool {
	return err == ErrNotRegistered
}

// IsNotRegistered returns true if the error is a NotRegisteredError.
func IsNotRegistered(err error) bool {
	if err == nil {
		return false
	}
	var e *NotRegisteredError
	return errors.As(err, &e) || errors.Is(err, ErrNotRegistered)
}

// InvalidIdentityError is returned when an entity does not carry a positive
// integer id, e.g. it has not been saved yet or uses a composite key.
type InvalidIdentityError struct {
	Kind Kind
	ID   int64
}

// Error returns the error string.
func (e *InvalidIdentityError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("fitting: %s entity has no usable id (got %d)", e.Kind, e.ID)
	}
	return fmt.Sprintf("fitting: entity has no usable id (got %d)", e.ID)
}

// Is reports whether the target error matches InvalidIdentityError.
func (e *InvalidIdentityError) Is(err error) bool {
	return err == ErrInvalidIdentity
}

// IsInvalidIdentity returns true if the error is an InvalidIdentityError.
func IsInvalidIdentity(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidIdentityError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidIdentity)
}

// ValidationError reports an invalid store configuration field.
type ValidationError struct {
	Field string
	Err   error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("fitting: invalid config field %q: %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
