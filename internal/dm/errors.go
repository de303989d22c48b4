package dm

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a protocol response code in class.detail form.
type Code uint8

// Protocol error codes.
const (
	CodeBadRequest       Code = 0x80 // 4.00
	CodeNotFound         Code = 0x84 // 4.04
	CodeMethodNotAllowed Code = 0x85 // 4.05
	CodeInternal         Code = 0xA0 // 5.00
)

// String returns the dotted class.detail form, e.g. "4.05".
func (c Code) String() string {
	return fmt.Sprintf("%d.%02d", c>>5, c&0x1f)
}

// HTTPStatus maps the code onto an HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is checks.
var (
	ErrBadRequest       = &Error{Code: CodeBadRequest, Message: "bad request"}
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrMethodNotAllowed = &Error{Code: CodeMethodNotAllowed, Message: "method not allowed"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// Error is a protocol-level failure of a read, write or execute.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// NewError creates a protocol error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithCause creates a protocol error wrapping cause.
func NewErrorWithCause(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
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

// Is matches any *Error with the same code, so errors.Is(err, ErrBadRequest) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the protocol code from err. Errors that are not *Error map to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
