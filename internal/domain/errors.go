package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input caught before any adapter call
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a mutation target that does not exist
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFoundError creates a NotFoundError with a formatted message
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports an add of a record that already exists
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a ConflictError with a formatted message
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// TransportError reports a network failure or non-2xx backend response.
// Message carries the server-provided detail when one could be parsed.
type TransportError struct {
	Message    string
	StatusCode int // 0 when the request never reached the backend
	Err        error
}

func (e *TransportError) Error() string { return e.Message }

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError creates a TransportError wrapping err
func NewTransportError(statusCode int, message string, err error) *TransportError {
	return &TransportError{Message: message, StatusCode: statusCode, Err: err}
}

// StaleReorderError reports a reorder confirmation or rollback that arrived
// for a superseded sequence number. It is a concurrency-control artifact,
// swallowed inside the engine and never surfaced to callers.
type StaleReorderError struct {
	Entity string
	Seq    uint64
	Latest uint64
}

func (e *StaleReorderError) Error() string {
	return fmt.Sprintf("stale reorder for %s: seq %d superseded by %d", e.Entity, e.Seq, e.Latest)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTransport reports whether err is a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsStaleReorder reports whether err is a StaleReorderError
func IsStaleReorder(err error) bool {
	var sre *StaleReorderError
	return errors.As(err, &sre)
}
