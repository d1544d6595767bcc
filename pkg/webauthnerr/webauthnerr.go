// Package webauthnerr defines the tagged error taxonomy this core raises,
// mirroring the DOMException names a browser-facing WebAuthn client
// expects. Errors carry a human-readable Reason for diagnostics but never
// leak vault contents or user identity.
package webauthnerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags one of the DOMException-equivalent error variants.
type Kind string

const (
	KindUriBlocked   Kind = "UriBlocked"
	KindInvalidState Kind = "InvalidState"
	KindNotAllowed   Kind = "NotAllowed"
	KindSecurity     Kind = "Security"
	KindTypeError    Kind = "TypeError"
	KindNotSupported Kind = "NotSupported"
	KindUnknown      Kind = "Unknown"
)

// Error is the tagged error type returned by the client and authenticator
// layers.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func UriBlocked(reason string) *Error   { return newError(KindUriBlocked, reason) }
func InvalidState(reason string) *Error { return newError(KindInvalidState, reason) }
func NotAllowed(reason string) *Error   { return newError(KindNotAllowed, reason) }
func Security(reason string) *Error     { return newError(KindSecurity, reason) }
func TypeErr(reason string) *Error      { return newError(KindTypeError, reason) }
func NotSupported(reason string) *Error { return newError(KindNotSupported, reason) }

// Unknown wraps an unexpected downstream failure. cause is preserved for
// errors.Unwrap but never surfaced in Error() beyond a generic reason, so
// internal details do not leak to the caller.
func Unknown(cause error) *Error {
	return &Error{Kind: KindUnknown, Reason: "unexpected failure", cause: errors.WithStack(cause)}
}

// Is reports whether err carries the given Kind. Intended for
// errors.Is-style checks from callers that only care about the taxonomy.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// AsKind extracts the Kind of a webauthnerr.Error, defaulting to
// KindUnknown for any other error (this is what the client layer's
// "map everything else to Unknown" rule reduces to).
func AsKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
