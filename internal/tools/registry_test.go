package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a minimal Tool for registry tests.
type stubTool struct {
	definition
	call func(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error)
}

func newStubTool(name string, opts ...mcp.ToolOption) *stubTool {
	return &stubTool{definition: definition{mcp.NewTool(name, opts...)}}
}

func (s *stubTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	if s.call != nil {
		return s.call(ctx, args, emit)
	}
	return map[string]any{"ok": true}, nil
}

func requireCode(t *testing.T, err error, code string) *schema.Error {
	t.Helper()
	require.Error(t, err)
	var e *schema.Error
	require.True(t, errors.As(err, &e), "expected *schema.Error, got %T", err)
	assert.Equal(t, code, e.Code)
	return e
}

func TestRegistry_Register_Success(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(newStubTool("echo", mcp.WithDescription("Echo"))))
	assert.Equal(t, 1, reg.Count())

	specs := reg.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, "echo", specs[0].Name)
	assert.Equal(t, "Echo", specs[0].Description)
	var params map[string]any
	require.NoError(t, json.Unmarshal(specs[0].Parameters, &params))
	assert.Equal(t, "object", params["type"])
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(newStubTool("dup")))

	requireCode(t, reg.Register(newStubTool("dup")), schema.ErrCodeConflict)
}

func TestRegistry_Register_Nil(t *testing.T) {
	reg := NewRegistry(nil)
	requireCode(t, reg.Register(nil), schema.ErrCodeValidation)
}

func TestRegistry_Register_EmptyName(t *testing.T) {
	reg := NewRegistry(nil)
	requireCode(t, reg.Register(newStubTool("")), schema.ErrCodeValidation)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Get("deploy_contract")
	e := requireCode(t, err, schema.ErrCodeUnknownTool)
	assert.Equal(t, "unknown tool: deploy_contract", e.Message)
}

func TestRegistry_Specs_RegistrationOrder(t *testing.T) {
	reg := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(newStubTool(name)))
	}

	var names []string
	for _, s := range reg.Specs() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	assert.Len(t, reg.Tools(), 3)
}

func TestRegistry_Dispatch_UnknownTool(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Dispatch(context.Background(), "nope", json.RawMessage(`{}`), nil)
	requireCode(t, err, schema.ErrCodeUnknownTool)
}

func TestRegistry_Dispatch_InvalidJSON(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(newStubTool("t")))

	_, err := reg.Dispatch(context.Background(), "t", json.RawMessage(`{bad`), nil)
	requireCode(t, err, schema.ErrCodeInvalidArgs)

	_, err = reg.Dispatch(context.Background(), "t", json.RawMessage(`[1,2]`), nil)
	e := requireCode(t, err, schema.ErrCodeInvalidArgs)
	assert.Contains(t, e.Message, "JSON object")
}

func TestRegistry_Dispatch_EmptyArgumentsAreObject(t *testing.T) {
	reg := NewRegistry(nil)
	var seen map[string]any
	tool := newStubTool("t")
	tool.call = func(_ context.Context, args map[string]any, _ streaming.Emitter) (any, error) {
		seen = args
		return "ok", nil
	}
	require.NoError(t, reg.Register(tool))

	out, err := reg.Dispatch(context.Background(), "t", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, map[string]any{}, seen)
}

func TestRegistry_Dispatch_SchemaViolation(t *testing.T) {
	reg := NewRegistry(nil)
	called := false
	tool := newStubTool("t", mcp.WithString("query", mcp.Required()))
	tool.call = func(context.Context, map[string]any, streaming.Emitter) (any, error) {
		called = true
		return nil, nil
	}
	require.NoError(t, reg.Register(tool))

	_, err := reg.Dispatch(context.Background(), "t", json.RawMessage(`{}`), nil)
	requireCode(t, err, schema.ErrCodeInvalidArgs)
	assert.False(t, called, "handler must not run on invalid arguments")
}

func TestRegistry_Dispatch_HandlerError(t *testing.T) {
	reg := NewRegistry(nil)
	tool := newStubTool("t")
	tool.call = func(context.Context, map[string]any, streaming.Emitter) (any, error) {
		return nil, errors.New("exchange offline")
	}
	require.NoError(t, reg.Register(tool))

	_, err := reg.Dispatch(context.Background(), "t", json.RawMessage(`{}`), nil)
	e := requireCode(t, err, schema.ErrCodeHandler)
	assert.Equal(t, "exchange offline", e.Message)
	assert.Equal(t, `{"error":"HANDLER_ERROR: exchange offline"}`, ErrorContent(err))
}

func TestRegistry_Dispatch_HandlerPanic(t *testing.T) {
	reg := NewRegistry(nil)
	tool := newStubTool("t")
	tool.call = func(context.Context, map[string]any, streaming.Emitter) (any, error) {
		panic("boom")
	}
	require.NoError(t, reg.Register(tool))

	_, err := reg.Dispatch(context.Background(), "t", json.RawMessage(`{}`), nil)
	e := requireCode(t, err, schema.ErrCodeHandler)
	assert.Contains(t, e.Message, "panicked")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(nil)
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = reg.Register(newStubTool(string(rune('a' + n))))
		}(i)
	}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Specs()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, reg.Count())
}

func TestResultContent(t *testing.T) {
	s, err := ResultContent("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", s)

	s, err = ResultContent(schema.Edge{ID: "edge-a-b", Source: "a", Target: "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"edge-a-b","source":"a","target":"b"}`, s)

	s, err = ResultContent(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)
}

func TestErrorContent_PlainError(t *testing.T) {
	assert.Equal(t, `{"error":"boom"}`, ErrorContent(errors.New("boom")))
}
