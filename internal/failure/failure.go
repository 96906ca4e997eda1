// Package failure defines the error kinds surfaced to API clients.
// Each error carries a fixed machine-readable code and maps to exactly one HTTP status.
package failure

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Invalid Kind = iota + 1
	Unauthorized
	Forbidden
	NotFound
	Conflict
	UnsupportedMediaType
	TooManyRequests
	Internal
)

// Status returns HTTP status code for the kind
func (k Kind) Status() int {
	switch k {
	case Invalid:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case UnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a stable code string.
// Detail is optional human readable text, used by validation errors.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
}

func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

// Validation returns a validation error with the provided detail
func Validation(detail string) *Error {
	return &Error{Kind: Invalid, Code: "VALIDATION_FAILED", Detail: detail}
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Code
}

// Is matches errors by kind and code so that wrapped copies of sentinels still compare equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && (t.Detail == "" || e.Detail == t.Detail)
}

// From extracts *Error from err. Anything else is reported as an internal error
// without leaking its text.
func From(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: Internal, Code: "Internal server error"}
}
