package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/internal/validation"
	"github.com/rendis/agent8/pkg/schema"
)

// Registry is the concrete thread-safe ToolRegistry implementation.
// Tools keep their registration order, which is the order the model sees.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	specs     map[string]schema.ToolSpec
	order     []string
	validator validation.Validator
}

// NewRegistry creates an empty Registry. A nil validator falls back to JSON Schema.
func NewRegistry(v validation.Validator) *Registry {
	if v == nil {
		v = validation.NewJSONSchemaValidator()
	}
	return &Registry{
		tools:     make(map[string]Tool),
		specs:     make(map[string]schema.ToolSpec),
		validator: v,
	}
}

// Register adds a tool to the registry. Returns error on duplicate name.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return schema.NewError(schema.ErrCodeValidation, "tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "tool name is empty")
	}
	spec, err := specFor(tool)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "tool %q already registered", name)
	}

	r.tools[name] = tool
	r.specs[name] = spec
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownTool, "unknown tool: %s", name)
	}
	return tool, nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Specs returns the model-facing descriptors in registration order.
func (r *Registry) Specs() []schema.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schema.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch validates raw arguments against the tool's parameter schema and
// invokes its handler. Errors carry UNKNOWN_TOOL, INVALID_ARGS or HANDLER_ERROR.
func (r *Registry) Dispatch(ctx context.Context, name string, raw json.RawMessage, emit streaming.Emitter) (any, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	args, err := parseArguments(raw)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	spec := r.specs[name]
	r.mu.RUnlock()

	if err := r.validator.ValidateArgs(args, spec.Parameters); err != nil {
		return nil, err
	}

	if emit == nil {
		emit = streaming.Discard
	}
	return callSafe(ctx, tool, args, emit)
}

func callSafe(ctx context.Context, tool Tool, args map[string]any, emit streaming.Emitter) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = schema.NewErrorf(schema.ErrCodeHandler, "tool %s panicked: %v", tool.Name(), rec)
		}
	}()

	result, err = tool.Call(ctx, args, emit)
	if err == nil {
		return result, nil
	}
	if e, ok := asSchemaError(err); ok && e.Code == schema.ErrCodeInvalidArgs {
		return nil, err
	}
	return nil, schema.NewError(schema.ErrCodeHandler, err.Error()).WithCause(err)
}

func parseArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidArgs, "arguments are not valid JSON").WithCause(err)
	}
	args, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewError(schema.ErrCodeInvalidArgs, "arguments must be a JSON object")
	}
	return args, nil
}

func specFor(tool Tool) (schema.ToolSpec, error) {
	def := tool.Definition()
	params := def.RawInputSchema
	if len(params) == 0 {
		b, err := json.Marshal(def.InputSchema)
		if err != nil {
			return schema.ToolSpec{}, fmt.Errorf("tool %s: encode parameters: %w", tool.Name(), err)
		}
		params = b
	}
	return schema.ToolSpec{
		Name:        tool.Name(),
		Description: def.Description,
		Parameters:  params,
	}, nil
}

func asSchemaError(err error) (*schema.Error, bool) {
	var e *schema.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// definition is a helper for tools built from an mcp.Tool literal.
type definition struct {
	def mcp.Tool
}

func (d definition) Name() string         { return d.def.Name }
func (d definition) Definition() mcp.Tool { return d.def }
