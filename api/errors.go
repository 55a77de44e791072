// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-tcp.

package api

import (
	"errors"
	"fmt"
	"syscall"
)

// Common errors used across the library.
var (
	// ErrWouldBlock reports that an operation cannot make progress until the
	// descriptor becomes ready again. It is never a failure.
	ErrWouldBlock   = errors.New("operation would block")
	ErrNotSupported = errors.New("operation not supported")
	ErrClosed       = errors.New("use of closed descriptor")
)

// ErrorCode classifies failures of the connection-establishment path.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	// ErrCodeConfig: bad bind address, certificate or key material.
	ErrCodeConfig
	// ErrCodeSystem: an OS socket call failed; Errno is set.
	ErrCodeSystem
	// ErrCodeProtocol: unexpected address family from a collaborator.
	ErrCodeProtocol
	// ErrCodeValidation: caller input rejected by value construction.
	ErrCodeValidation
	// ErrCodeHandshake: the TLS handshake failed for one connection.
	ErrCodeHandshake
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeConfig:
		return "config"
	case ErrCodeSystem:
		return "system"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeHandshake:
		return "handshake"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	// Errno carries the originating OS error for ErrCodeSystem.
	Errno syscall.Errno
	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Errno != 0 {
		msg = fmt.Sprintf("%s: %v", msg, e.Errno)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the errno or wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e.Errno != 0 {
		return e.Errno
	}
	return e.Err
}

// Is matches another *Error by code only, so sentinel values built with
// NewError can be used as errors.Is targets.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Errno == 0
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// SystemError builds an ErrCodeSystem error from the failing call and its errno.
// Non-errno causes are wrapped as-is.
func SystemError(op string, err error) *Error {
	e := NewError(ErrCodeSystem, op)
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Errno = errno
	} else {
		e.Err = err
	}
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

// Wrap records cause as the underlying error.
func (e *Error) Wrap(cause error) *Error {
	e.Err = cause
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or ErrCodeOK.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeOK
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
