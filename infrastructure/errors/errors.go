// Package errors provides the error taxonomy shared by the crypto and
// monitoring subsystems.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies one of the error categories the crypto and monitoring
// subsystems surface to callers.
type Code string

const (
	// InvalidArgument marks malformed input: wrong lengths, non-UTF8 DN,
	// zero-value timestamps where a real one is required.
	InvalidArgument Code = "invalid_argument"
	// NotSupported marks an algorithm, extension or mode the selected
	// back-end does not implement.
	NotSupported Code = "not_supported"
	// NotFound marks a missing key, instance, OID or partition.
	NotFound Code = "not_found"
	// AlreadyExists marks a duplicate start of monitoring or a
	// pre-existing extension.
	AlreadyExists Code = "already_exists"
	// OutOfRange marks slot-table exhaustion.
	OutOfRange Code = "out_of_range"
	// NoMemory marks a fixed-size container at capacity.
	NoMemory Code = "no_memory"
	// WrongState marks a cipher/hasher used before Init or after
	// Finalize, or a monitor Start/Stop ordering violation.
	WrongState Code = "wrong_state"
	// Timeout marks an upstream call that did not complete in its
	// budget.
	Timeout Code = "timeout"
	// Failed is the generic back-end failure, wrapping the back-end's
	// own error message verbatim.
	Failed Code = "failed"
)

// CoreError is the concrete error type returned by this module's public
// operations. It carries a stable Code plus an optional wrapped cause.
type CoreError struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *CoreError) Unwrap() error {
	return e.Err
}

// New creates a CoreError with no wrapped cause.
func New(code Code, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// Wrap creates a CoreError wrapping an existing error.
func Wrap(code Code, message string, err error) *CoreError {
	return &CoreError{Code: code, Message: message, Err: err}
}

// Convenience constructors, one per tag.

func InvalidArgumentf(format string, args ...interface{}) *CoreError {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

func NotSupportedf(format string, args ...interface{}) *CoreError {
	return New(NotSupported, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *CoreError {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func AlreadyExistsf(format string, args ...interface{}) *CoreError {
	return New(AlreadyExists, fmt.Sprintf(format, args...))
}

func OutOfRangef(format string, args ...interface{}) *CoreError {
	return New(OutOfRange, fmt.Sprintf(format, args...))
}

func NoMemoryf(format string, args ...interface{}) *CoreError {
	return New(NoMemory, fmt.Sprintf(format, args...))
}

func WrongStatef(format string, args ...interface{}) *CoreError {
	return New(WrongState, fmt.Sprintf(format, args...))
}

func Timeoutf(format string, args ...interface{}) *CoreError {
	return New(Timeout, fmt.Sprintf(format, args...))
}

func Failedf(err error, format string, args ...interface{}) *CoreError {
	return Wrap(Failed, fmt.Sprintf(format, args...), err)
}

// Is reports whether err is a *CoreError with the given code.
func Is(err error, code Code) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// GetCode extracts the Code from err, or "" if err is not a *CoreError.
func GetCode(err error) Code {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
