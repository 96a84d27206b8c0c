package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Graphwright errors.
type ErrorCode string

// Validation and tool error codes
const (
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"
	TOOL_NOT_FOUND    ErrorCode = "TOOL_NOT_FOUND"
	TOOL_EXEC_FAILED  ErrorCode = "TOOL_EXEC_FAILED"
)

// Graph store error codes
const (
	CONSTRAINT_VIOLATION ErrorCode = "CONSTRAINT_VIOLATION"
	NOT_FOUND            ErrorCode = "NOT_FOUND"
	QUERY_FAILED         ErrorCode = "QUERY_FAILED"
	GRAPH_UNAVAILABLE    ErrorCode = "GRAPH_UNAVAILABLE"
)

// Resolution and orchestration error codes
const (
	AMBIGUOUS_ENTITY   ErrorCode = "AMBIGUOUS_ENTITY"
	ESCALATION_TIMEOUT ErrorCode = "ESCALATION_TIMEOUT"
	SESSION_NOT_FOUND  ErrorCode = "SESSION_NOT_FOUND"
	CHECKPOINT_FAILED  ErrorCode = "CHECKPOINT_FAILED"
)

// Completion service error codes
const (
	COMPLETION_FAILED    ErrorCode = "COMPLETION_FAILED"
	COMPLETION_MALFORMED ErrorCode = "COMPLETION_MALFORMED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Error represents a structured error with error code, message, and optional
// cause. It supports error wrapping and retryability hints used by the
// orchestrator's retry policy.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *Error) Is(target error) bool {
	var gwErr *Error
	if errors.As(target, &gwErr) {
		return e.Code == gwErr.Code
	}
	return false
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable Error with the given code and
// message. Use this for transient errors that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a new retryable Error that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err carries a retryable hint anywhere in its
// chain. Non-structured errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return false
}

// CodeOf returns the error code of err, or an empty code if err does not
// carry one.
func CodeOf(err error) ErrorCode {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return ""
}
