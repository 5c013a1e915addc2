// internal/pkg/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error so transport layers can map it to a
// response without string matching.
type Kind int

const (
	// KindValidation marks malformed input, rejected before any I/O
	KindValidation Kind = iota
	// KindNotFound marks a missing product, cart item or order
	KindNotFound
	// KindUnavailable marks a failed call to the durable store; the caller's
	// mutation must not be assumed to have happened
	KindUnavailable
)

// Error is an application error with a classification
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap exposes the wrapped cause, if any
func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error classification
func (e *Error) Kind() Kind {
	return e.kind
}

// Validation creates a validation error with a specific reason
func Validation(format string, args ...interface{}) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error for the named resource
func NotFound(format string, args ...interface{}) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a durable-store failure
func Unavailable(msg string, err error) error {
	return &Error{kind: KindUnavailable, msg: msg, err: err}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsUnavailable reports whether err is an upstream-unavailable error
func IsUnavailable(err error) bool {
	return isKind(err, KindUnavailable)
}

func isKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind == kind
	}
	return false
}
