// Package apperr defines the error taxonomy shared by the query and
// dependency engine. Every error carries a kind (not found, validation,
// forbidden) and optionally a reason sentinel so callers can branch with
// errors.Is on either.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// Reasons.
var (
	ErrCycle          = errors.New("would create cycle")
	ErrSelfDependency = errors.New("self-dependency")
	ErrDuplicateEdge  = errors.New("duplicate edge")
	ErrValueExists    = errors.New("custom field value already exists")
	ErrTypeMismatch   = errors.New("type mismatch")
)

// Error is a classified engine error.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the reason to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation returns a validation error with a formatted reason.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

// ValidationWith returns a validation error tagged with a reason sentinel.
func ValidationWith(reason error, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...), Err: reason}
}

// NotFound returns a not-found error for the named entity.
func NotFound(entity, id string) error {
	return &Error{Kind: ErrNotFound, Reason: fmt.Sprintf("%s %s", entity, id)}
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
