// Package apperr defines the error kinds shared by the services and the
// HTTP layer.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidAssignee    = errors.New("invalid assignee")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Error attaches a caller-facing message to one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind with a message.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validation builds a validation error from per-field messages.
func Validation(fields map[string]string) *Error {
	parts := make([]string, 0, len(fields))
	for _, msg := range fields {
		parts = append(parts, msg)
	}
	sort.Strings(parts)
	return &Error{Kind: ErrValidation, Message: strings.Join(parts, "; "), Fields: fields}
}

// Kind reports the sentinel kind of err, or nil for unexpected errors.
func Kind(err error) error {
	for _, k := range []error{
		ErrUnauthenticated, ErrValidation, ErrNotFound, ErrForbidden,
		ErrInvalidAssignee, ErrInvalidStatus, ErrConflict, ErrInvalidCredentials,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the caller-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if k := Kind(err); k != nil {
		return k.Error()
	}
	return "internal server error"
}
