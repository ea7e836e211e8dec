// Package werr provides the error model used across the wallet core.
// Every error carries a kind, an internal diagnostic and a user-facing
// message; only the user-facing message crosses the UI boundary.
package werr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error
type Kind string

const (
	// KindValidation represents rejected user input
	KindValidation Kind = "validation"
	// KindInvalidData represents malformed data from any source
	KindInvalidData Kind = "invalid_data"
	// KindUnauthorized represents a missing or expired session
	KindUnauthorized Kind = "unauthorized"
	// KindInternal represents a programming or state error
	KindInternal Kind = "internal"
	// KindExternal represents a remote service failure
	KindExternal Kind = "external"
	// KindNetwork represents a transport-level failure
	KindNetwork Kind = "network"
	// KindTimeout represents an expired deadline
	KindTimeout Kind = "timeout"
	// KindNotFound represents a missing resource
	KindNotFound Kind = "not_found"
	// KindDuplicate represents a uniqueness violation
	KindDuplicate Kind = "duplicate"
	// KindIntegrity represents conflicting ciphertexts for the same id
	KindIntegrity Kind = "integrity"
	// KindDecryption represents a failed decryption, usually a wrong password
	KindDecryption Kind = "decryption"
)

// Error is the error type used across the wallet core
type Error struct {
	Kind     Kind
	Internal string // diagnostic detail, logged but never shown
	User     string // message safe to surface to the UI
	Cause    error
}

// Error implements the error interface using the internal diagnostic.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Internal, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Internal)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns the user-facing message, falling back to a generic one.
func (e *Error) UserMessage() string {
	if e.User != "" {
		return e.User
	}
	return "Something went wrong"
}

func newError(kind Kind, internal, user string, cause error) *Error {
	return &Error{Kind: kind, Internal: internal, User: user, Cause: cause}
}

// Validation creates a validation error shown to the user verbatim.
func Validation(msg string) *Error {
	return newError(KindValidation, msg, msg, nil)
}

// InvalidData creates an invalid data error.
func InvalidData(internal, user string) *Error {
	return newError(KindInvalidData, internal, user, nil)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(user string) *Error {
	return newError(KindUnauthorized, user, user, nil)
}

// SessionExpired is the canonical unauthorized error for an expired session.
func SessionExpired() *Error {
	return Unauthorized("Session expired")
}

// Internal creates an internal error; the user sees a generic message.
func Internal(internal string, cause error) *Error {
	return newError(KindInternal, internal, "Something went wrong", cause)
}

// External creates a remote service error.
func External(service string, cause error) *Error {
	return newError(KindExternal,
		fmt.Sprintf("remote service %s failed", service),
		"A remote service is unavailable", cause)
}

// Network creates a transport error.
func Network(internal string, cause error) *Error {
	return newError(KindNetwork, internal, "Network unavailable", cause)
}

// Timeout creates a deadline error.
func Timeout(internal string) *Error {
	return newError(KindTimeout, internal, "The request timed out", nil)
}

// NotFound creates a missing resource error.
func NotFound(resource string) *Error {
	return newError(KindNotFound,
		fmt.Sprintf("%s not found", resource),
		fmt.Sprintf("%s not found", resource), nil)
}

// Duplicate creates a uniqueness violation error.
func Duplicate(internal string) *Error {
	return newError(KindDuplicate, internal, "Already exists", nil)
}

// Integrity creates a ciphertext conflict error.
func Integrity(internal string) *Error {
	return newError(KindIntegrity, internal, "Local data is corrupted", nil)
}

// Decryption creates a failed decryption error.
func Decryption(internal string) *Error {
	return newError(KindDecryption, internal, "Incorrect password", nil)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage extracts the user-facing message from any error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return "Something went wrong"
}

// IsRetryable reports whether a retry may succeed for err.
// Deterministic failures (validation, duplicates, decryption) never retry.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindExternal:
		return true
	}
	return false
}

// HTTPStatus maps an error kind to the status code used by the command surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidData:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate, KindIntegrity:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindExternal, KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatusCode maps a remote service status code to an error, following
// the shared convention of the backup and user services.
func FromStatusCode(code int, service string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return SessionExpired()
	case code == http.StatusNotFound:
		return NotFound(service)
	default:
		return External(service, fmt.Errorf("unexpected status %d", code))
	}
}
