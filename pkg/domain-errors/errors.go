// Package domainerrors carries coded errors across layer boundaries.
//
// Stores return sentinel facts; services translate them into a Code so
// callers can branch on the failure class without matching strings:
//
//	if dErrors.HasCode(err, dErrors.CodeNotFound) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeTypeMismatch   Code = "type_mismatch"
	CodeBackendFailure Code = "backend_failure"
	CodeInvalidInput   Code = "invalid_input"
	CodeInvalidState   Code = "invalid_state"
	CodeTimeout        Code = "timeout"
	CodeInternal       Code = "internal"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in err's chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Is is HasCode under the name most call sites use.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
