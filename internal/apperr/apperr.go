// Package apperr defines the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies an error by how callers should react to it.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindDisabled
	KindMisconfigured
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindDisabled:
		return "disabled"
	case KindMisconfigured:
		return "misconfigured"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind onto a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindDisabled:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a message that is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New returns a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a classified error carrying cause for logs and errors.Is.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf reports the kind of the first classified error in err's chain.
// Context deadlines and cancellations count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnavailable
	}
	return KindInternal
}

// PublicMessage returns the client-facing text for err. Unclassified errors
// never leak their text.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	if KindOf(err) == KindUnavailable {
		return "request timed out, please retry"
	}
	return "internal server error"
}

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
