package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core's failure taxonomy. Unresolved and
// NotFound are valid terminal states, not infrastructure failures;
// callers branch on them rather than surfacing stack traces.
var (
	ErrUnresolved       = errors.New("no deterministic mapping found")
	ErrNotFound         = errors.New("citation not found")
	ErrIndexUnavailable = errors.New("vector index unavailable")
	ErrStoreUnavailable = errors.New("relational store unavailable")
	ErrLowConfidence    = errors.New("aggregate confidence below release floor")

	ErrInvalidCitation = errors.New("invalid citation")
	ErrUnknownAct      = errors.New("unknown act alias")
	ErrEmptySection    = errors.New("empty section number")
	ErrQueryTooShort   = errors.New("query too short")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
