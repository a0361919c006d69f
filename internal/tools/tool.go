package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
)

// Tool is a capability the model can invoke by name.
type Tool interface {
	Name() string
	Definition() mcp.Tool
	Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error)
}

// ToolRegistry manages lookup and dispatch of tools.
type ToolRegistry interface {
	Register(tool Tool) error
	Get(name string) (Tool, error)
	Specs() []schema.ToolSpec
	Dispatch(ctx context.Context, name string, raw json.RawMessage, emit streaming.Emitter) (any, error)
}

// decodeParams converts validated arguments into the tool's parameter struct.
func decodeParams[P any](args map[string]any) (P, error) {
	var p P
	raw, err := json.Marshal(args)
	if err != nil {
		return p, schema.NewError(schema.ErrCodeInvalidArgs, "arguments are not serializable").WithCause(err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, schema.NewErrorf(schema.ErrCodeInvalidArgs, "decode arguments: %v", err).WithCause(err)
	}
	return p, nil
}

// ResultContent renders a handler result as the content of a tool turn.
// Strings pass through, everything else is JSON encoded.
func ResultContent(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrorContent renders a failure as the content of an error tool turn.
func ErrorContent(err error) string {
	msg := err.Error()
	if e, ok := asSchemaError(err); ok {
		msg = e.Code + ": " + e.Message
	}
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
