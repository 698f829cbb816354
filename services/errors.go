package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies a service failure for HTTP status mapping.
type ErrorKind int

const (
	KindValidation ErrorKind = iota // bad input shape/format
	KindNotFound                    // missing or not-owned resource
	KindConflict                    // precondition conflict (e.g. retry after completion)
	KindUpstream                    // blob store, database or AI provider failure
	KindAuth                        // missing/invalid credential
)

// Error is the service-layer failure type. Message is safe to return to the
// client; Err carries the wrapped cause for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// HTTPStatus maps a service error to its response status. Unknown errors are
// treated as internal failures.
func HTTPStatus(err error) int {
	var se *Error
	if !errors.As(err, &se) {
		return fiber.StatusInternalServerError
	}

	switch se.Kind {
	case KindValidation, KindConflict:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindAuth:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// ClientMessage returns the user-visible message for an error, hiding
// internal detail behind the given fallback for unclassified failures.
func ClientMessage(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return fallback
}
