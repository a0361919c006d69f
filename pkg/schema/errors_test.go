package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrCodeUnknownTool, `tool "nope" is not registered`)
	assert.Equal(t, `[UNKNOWN_TOOL] tool "nope" is not registered`, err.Error())

	err = err.WithToolCall("call_1")
	assert.Equal(t, `[UNKNOWN_TOOL] call call_1: tool "nope" is not registered`, err.Error())
}

func TestError_UnwrapAndHasCode(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewErrorf(ErrCodeLLM, "request failed: %v", cause).WithCause(cause)
	wrapped := fmt.Errorf("run: %w", err)

	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, HasCode(wrapped, ErrCodeLLM))
	assert.False(t, HasCode(wrapped, ErrCodeSearch))
	assert.False(t, HasCode(cause, ErrCodeLLM))

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, ErrCodeLLM, e.Code)
}

func TestError_Retryable(t *testing.T) {
	err := NewError(ErrCodeLLM, "bad gateway")
	assert.False(t, err.IsRetryable())
	assert.True(t, err.Retryable().IsRetryable())
}

func TestError_WithDetails(t *testing.T) {
	err := NewError(ErrCodeInvalidArgs, "bad").WithDetails(map[string]any{"violations": []string{"/a: missing"}})
	assert.Equal(t, []string{"/a: missing"}, err.Details["violations"])
}
