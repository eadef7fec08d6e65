// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for the reflector engine.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the module.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidHandle     = errors.New("invalid connection handle")
	ErrNotSupported      = errors.New("operation not supported")
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	ErrReactorClosed     = errors.New("reactor is closed")
)

// ErrorCode represents specific error conditions in the module.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResolve
	ErrCodeSocket
	ErrCodeConnect
	ErrCodeBind
	ErrCodeResourceLimit
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeResolve:
		return "resolve"
	case ErrCodeSocket:
		return "socket"
	case ErrCodeConnect:
		return "connect"
	case ErrCodeBind:
		return "bind"
	case ErrCodeResourceLimit:
		return "resource limit"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
// Startup failures are reported as *Error so the caller can pick an exit status.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain,
// ErrCodeInternal for other non-nil errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
