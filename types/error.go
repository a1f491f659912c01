package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the listener service.
type ErrorCode string

// Registry error codes
const (
	ErrServerCreation      ErrorCode = "SERVER_CREATION"
	ErrServerAlreadyExists ErrorCode = "SERVER_ALREADY_EXISTS"
	ErrServerNotFound      ErrorCode = "SERVER_NOT_FOUND"
	ErrNotInitialized      ErrorCode = "NOT_INITIALIZED"
	ErrDisposed            ErrorCode = "DISPOSED"
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
)

// Response delivery error codes
const (
	ErrTransportIO   ErrorCode = "TRANSPORT_IO"
	ErrStream        ErrorCode = "STREAM"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
	ErrConnClosed    ErrorCode = "CONNECTION_CLOSED"
	ErrSchedulerFull ErrorCode = "SCHEDULER_REJECTED"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any error in err's chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// NewServerCreationError reports a server that could not be created, e.g. an
// unresolvable host.
func NewServerCreationError(message string, cause error) *Error {
	return NewError(ErrServerCreation, message).WithCause(cause)
}

// NewServerAlreadyExistsError reports a live server already bound to addr
// for the same identifier.
func NewServerAlreadyExistsError(addr ServerAddress) *Error {
	return NewError(ErrServerAlreadyExists,
		fmt.Sprintf("a server for %s already exists", addr))
}

// NewServerNotFoundError reports an identifier with no registered server.
func NewServerNotFoundError(id ServerIdentifier) *Error {
	return NewError(ErrServerNotFound,
		fmt.Sprintf("server %s could not be found", id))
}
