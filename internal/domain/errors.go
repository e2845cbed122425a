package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered means telemetry arrived before the host registered
	ErrNotRegistered = errors.New("host not registered")
	// ErrUnknownRoute means no handler serves the request path
	ErrUnknownRoute = errors.New("unknown route")
)

// ValidationError rejects a malformed address or payload
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a directory failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RelayError wraps a failed relay submission. It is logged, never surfaced
// as a response status.
type RelayError struct {
	Host    string
	Service string
	Err     error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s/%s: %v", e.Host, e.Service, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// Classify maps an error returned by a handler onto a response status
func Classify(err error) (ResultClass, ResultCode) {
	var verr *ValidationError
	switch {
	case err == nil:
		return ClassSuccess, CodeChanged
	case errors.As(err, &verr):
		return ClassClientError, CodeBadRequest
	case errors.Is(err, ErrNotRegistered):
		return ClassClientError, CodePreconditionFailed
	case errors.Is(err, ErrUnknownRoute):
		return ClassClientError, CodeNotFound
	}
	return ClassServerError, CodeInternalServerError
}
