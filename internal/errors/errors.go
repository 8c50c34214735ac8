// Package errors provides coded domain errors for the clip editing engine.
//
// Engine operations return *Error values so callers can branch on the Code:
//
//	if errors.Is(err, errors.ErrInvalidInterval) {
//	    // start >= end, nothing was stored
//	}
//
// ILLEGAL_MERGE_STATE and TIMELINE_NOT_FOUND signal a caller that broke the
// engine's invariants. They are never produced by user input alone.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the engine and API.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeValidation        Code = "VALIDATION"
	CodeConflict          Code = "CONFLICT"
	CodeInternal          Code = "INTERNAL"
	CodeInvalidInterval   Code = "INVALID_INTERVAL"
	CodeIllegalMergeState Code = "ILLEGAL_MERGE_STATE"
	CodeTimelineNotFound  Code = "TIMELINE_NOT_FOUND"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeTimelineNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeInvalidInterval:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Invariant reports whether the code marks a programming error rather than bad input.
func (c Code) Invariant() bool {
	return c == CodeIllegalMergeState || c == CodeTimelineNotFound
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
	ErrInvalidInterval   = &Error{Code: CodeInvalidInterval, Message: "invalid interval"}
	ErrIllegalMergeState = &Error{Code: CodeIllegalMergeState, Message: "illegal merge state"}
	ErrTimelineNotFound  = &Error{Code: CodeTimelineNotFound, Message: "timeline not found"}
)

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExistsf creates an already exists error with formatted message.
func AlreadyExistsf(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// InvalidIntervalf reports an interval whose start is not before its end, or one
// that would break the non-overlap invariant.
func InvalidIntervalf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInterval, Message: fmt.Sprintf(format, args...)}
}

// IllegalMergeStatef reports a merge that references clips missing from the store.
func IllegalMergeStatef(format string, args ...any) *Error {
	return &Error{Code: CodeIllegalMergeState, Message: fmt.Sprintf(format, args...)}
}

// TimelineNotFound reports an operation against a timeline that was never opened.
func TimelineNotFound(timelineID string) *Error {
	return &Error{Code: CodeTimelineNotFound, Message: fmt.Sprintf("timeline %q is not open", timelineID)}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
