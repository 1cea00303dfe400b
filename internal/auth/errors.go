package auth

import (
	"errors"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
)

// Bearer token outcomes. Each failure mode has its own sentinel so callers and
// metrics can tell them apart with errors.Is.
var (
	ErrMissingCredential = apperr.New(apperr.KindUnauthenticated, "Missing or invalid Authorization header.")
	ErrMalformedToken    = apperr.New(apperr.KindUnauthenticated, "Invalid JWT format.")
	ErrInvalidSignature  = apperr.New(apperr.KindUnauthenticated, "Invalid token signature.")
	ErrTokenExpired      = apperr.New(apperr.KindUnauthenticated, "JWT has expired.")
	ErrMissingSubject    = apperr.New(apperr.KindUnauthenticated, "Invalid JWT payload.")
	ErrUnknownSubject    = apperr.New(apperr.KindNotFound, "User not found in database.")
	ErrMisconfigured     = apperr.New(apperr.KindMisconfigured, "Server misconfiguration.")
)

// ErrInvalidServiceKey covers both a missing and a wrong shared key.
var ErrInvalidServiceKey = apperr.New(apperr.KindForbidden, "Invalid API Key for trusted service.")

// Session header outcomes.
var (
	ErrMissingSession     = apperr.New(apperr.KindUnauthenticated, "Authentication username required.")
	ErrInvalidSession     = apperr.New(apperr.KindForbidden, "Invalid or expired session username.")
	ErrSessionUserMissing = apperr.New(apperr.KindNotFound, "Authenticated user not found.")
)

// Reason returns a short label for an auth failure, used as a metrics label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrMissingSubject):
		return "missing_subject"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, ErrInvalidServiceKey):
		return "service_key"
	case errors.Is(err, ErrMissingSession):
		return "missing_session"
	case errors.Is(err, ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, ErrSessionUserMissing):
		return "session_user_missing"
	default:
		return "other"
	}
}
