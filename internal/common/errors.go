// Package common holds the error taxonomy shared by repositories, services
// and HTTP handlers.
package common

import (
	"errors"
	"strings"
)

var (
	// ErrBadRequest marks missing or malformed input.
	ErrBadRequest = errors.New("bad request")
	// ErrInvalidCredentials is returned for an unknown user, a wrong password
	// or an inactive account. Callers never learn which one.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated means there is no valid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned by repositories when the targeted row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited means too many login attempts from one source.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps database failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("conflict")
	// ErrReservedKey is returned when a settings key collides with the session namespace.
	ErrReservedKey = errors.New("reserved settings key")
	// ErrCorruptRecord is returned when a stored blob cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
)

// ValidationError lists the required fields a request did not carry.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Is lets errors.Is(err, ErrBadRequest) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}

// Field is one required input and whether the request carried it.
type Field struct {
	Name    string
	Present bool
}

// Text reports a string input as present when it is not blank.
func Text(name, value string) Field {
	return Field{Name: name, Present: strings.TrimSpace(value) != ""}
}

// RequireFields returns a *ValidationError naming every absent field, in the
// order given, or nil when all are present.
func RequireFields(fields ...Field) error {
	var missing []string
	for _, f := range fields {
		if !f.Present {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Missing: missing}
}

// RequestError is a bad request with a reason that is safe to show to clients.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return e.Reason
}

// Is lets errors.Is(err, ErrBadRequest) match request errors.
func (e *RequestError) Is(target error) bool {
	return target == ErrBadRequest
}
