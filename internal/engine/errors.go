package engine

import (
	"errors"
	"fmt"
)

// SessionError represents a fatal error detected while running a session.
//
// Session errors include:
//   - Scope underflow: a pop with no open scope (protocol desynchronisation)
//   - Store failure: the cache could not be read or written
//   - Solver failure: the channel failed for a reason other than closure
//   - Client failure: client input could not be read or output written
//
// A SessionError ends the session. Ordinary endings (end of input, exit,
// solver closed, cancellation) are reported through Result instead.
type SessionError struct {
	// Code identifies the error category.
	Code SessionErrorCode

	// Message is a human-readable description.
	Message string

	// LineNo is the 1-based client line that triggered the error, or 0.
	LineNo int

	// Err is the underlying cause, if any.
	Err error
}

// SessionErrorCode categorizes session errors.
type SessionErrorCode string

const (
	// ErrCodeScopeUnderflow indicates a pop without a matching push.
	ErrCodeScopeUnderflow SessionErrorCode = "SCOPE_UNDERFLOW"

	// ErrCodeStoreFailure indicates a cache lookup or insert failed.
	ErrCodeStoreFailure SessionErrorCode = "STORE_FAILURE"

	// ErrCodeSolverFailure indicates the solver channel failed unexpectedly.
	ErrCodeSolverFailure SessionErrorCode = "SOLVER_FAILURE"

	// ErrCodeClientFailure indicates client I/O failed.
	ErrCodeClientFailure SessionErrorCode = "CLIENT_FAILURE"
)

// Error implements the error interface.
func (e *SessionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.LineNo > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.LineNo)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if err is (or wraps) a SessionError.
func IsFatal(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// IsScopeUnderflow returns true if the error is a scope underflow error.
// Uses errors.As to handle wrapped errors.
func IsScopeUnderflow(err error) bool {
	return hasCode(err, ErrCodeScopeUnderflow)
}

// IsStoreFailure returns true if the error is a store failure.
// Uses errors.As to handle wrapped errors.
func IsStoreFailure(err error) bool {
	return hasCode(err, ErrCodeStoreFailure)
}

func hasCode(err error, code SessionErrorCode) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func newScopeUnderflowError(lineNo int, err error) *SessionError {
	return &SessionError{
		Code:    ErrCodeScopeUnderflow,
		Message: "pop without a corresponding push",
		LineNo:  lineNo,
		Err:     err,
	}
}

func newStoreError(lineNo int, op string, err error) *SessionError {
	return &SessionError{
		Code:    ErrCodeStoreFailure,
		Message: op + " failed",
		LineNo:  lineNo,
		Err:     err,
	}
}

func newSolverError(lineNo int, err error) *SessionError {
	return &SessionError{
		Code:    ErrCodeSolverFailure,
		Message: "solver channel failed",
		LineNo:  lineNo,
		Err:     err,
	}
}

func newClientError(lineNo int, op string, err error) *SessionError {
	return &SessionError{
		Code:    ErrCodeClientFailure,
		Message: op + " failed",
		LineNo:  lineNo,
		Err:     err,
	}
}
