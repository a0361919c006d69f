package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeUnknownTool    = "UNKNOWN_TOOL"
	ErrCodeInvalidArgs    = "INVALID_ARGS"
	ErrCodeHandler        = "HANDLER_ERROR"
	ErrCodeLLM            = "LLM_ERROR"
	ErrCodeSearch         = "SEARCH_ERROR"
	ErrCodeTransport      = "TRANSPORT_ERROR"
	ErrCodeIterationLimit = "ITERATION_LIMIT"
	ErrCodeCancelled      = "CANCELLED"
	ErrCodeCircuitOpen    = "CIRCUIT_OPEN"
)

// Error is the structured error type shared by all agent8 components.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Cause      error          `json:"-"`

	// retryable marks transient failures (network, 429, 5xx).
	retryable bool
}

func (e *Error) Error() string {
	if e.ToolCallID != "" {
		return fmt.Sprintf("[%s] call %s: %s", e.Code, e.ToolCallID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithToolCall attaches a tool call ID to the error.
func (e *Error) WithToolCall(id string) *Error {
	e.ToolCallID = id
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Retryable marks the error as transient.
func (e *Error) Retryable() *Error {
	e.retryable = true
	return e
}

// IsRetryable reports whether the failure is worth another attempt.
func (e *Error) IsRetryable() bool {
	return e.retryable
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
