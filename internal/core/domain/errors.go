package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a resource does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller's role may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrUpstreamUnavailable is returned when the datastore cannot be reached
	// (circuit open, deadline exceeded). Clients may retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError reports which input fields were rejected and why.
// It is never retried automatically.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records another rejected field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasFields reports whether any field was rejected
func (e *ValidationError) HasFields() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError checks whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
