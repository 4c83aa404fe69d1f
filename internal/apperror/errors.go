// Package apperror defines the error taxonomy shared by services and
// handlers. Handlers map these to HTTP responses; everything else is
// wrapped and surfaced as an internal error.
package apperror

import "errors"

// ErrNotFound reports a missing session or room. It is also the outcome
// of a lost auth-result registration race: callers cannot tell "never
// existed" from "already registered" and must treat both the same.
var ErrNotFound = errors.New("not found")

// ErrForbidden reports a failed or unconfigured provider check.
var ErrForbidden = errors.New("forbidden")

// BadRequestError reports malformed or conflicting client input with a
// human-readable reason that is safe to return to the caller.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return "bad request: " + e.Reason
}

// BadRequest returns a BadRequestError with the given reason.
func BadRequest(reason string) error {
	return &BadRequestError{Reason: reason}
}

// ErrSessionExists reports an attribute-correlation id collision on
// session insert. The original row is left unmodified.
var ErrSessionExists = BadRequest("a session with that ID already exists")
