package service

import (
	"errors"
	"fmt"
)

// Code classifies a service failure. The transport maps each code to a
// status in one place.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidArgument
	CodeUnauthenticated
	CodePermissionDenied
	CodeNotFound
	CodeAlreadyExists
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeUnauthenticated:
		return "unauthenticated"
	case CodePermissionDenied:
		return "permission_denied"
	case CodeNotFound:
		return "not_found"
	case CodeAlreadyExists:
		return "already_exists"
	default:
		return "internal"
	}
}

// Error is returned by every service method that fails. Message is the short
// client-facing error, Description the longer explanation shown next to it.
type Error struct {
	Code        Code
	Message     string
	Description string
	Err         error

	// Fields carries per-field validation messages.
	Fields map[string][]string
	// Details is extra structured context, such as failing import rows.
	Details any
}

// NewError wraps err with a code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// WithMessage sets the client-facing message and description.
func (e *Error) WithMessage(message, description string) *Error {
	e.Message = message
	e.Description = description
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

func internalError(err error) *Error {
	return NewError(CodeInternal, err).WithMessage("Internal server error", "")
}
