package validation

import (
	"errors"
	"sync"
	"testing"

	"github.com/rendis/agent8/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeParams = `{
	"type": "object",
	"required": ["node_type", "config"],
	"properties": {
		"node_type": {"type": "string", "enum": ["wallet", "dex", "nft", "staking", "email"]},
		"config": {"type": "object"},
		"position": {"type": "object", "properties": {"x": {"type": "number"}, "y": {"type": "number"}}}
	}
}`

func requireCode(t *testing.T, err error, code string) *schema.Error {
	t.Helper()
	require.Error(t, err)
	var e *schema.Error
	require.True(t, errors.As(err, &e), "expected *schema.Error, got %T", err)
	assert.Equal(t, code, e.Code)
	return e
}

func TestJSONSchemaValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = NewJSONSchemaValidator()
}

func TestValidateArgs_NilArgs(t *testing.T) {
	v := NewJSONSchemaValidator()

	err := v.ValidateArgs(nil, []byte(nodeParams))
	e := requireCode(t, err, schema.ErrCodeInvalidArgs)
	assert.Contains(t, e.Message, "JSON object")
}

func TestValidateArgs_EmptySchema(t *testing.T) {
	v := NewJSONSchemaValidator()

	assert.NoError(t, v.ValidateArgs(map[string]any{"foo": "bar"}, nil))
	assert.NoError(t, v.ValidateArgs(map[string]any{"foo": "bar"}, []byte{}))
}

func TestValidateArgs_Valid(t *testing.T) {
	v := NewJSONSchemaValidator()

	args := map[string]any{
		"node_type": "dex",
		"config":    map[string]any{"dex": "minswap", "pair": "ADA/DJED"},
		"position":  map[string]any{"x": 250, "y": 280.5},
	}
	assert.NoError(t, v.ValidateArgs(args, []byte(nodeParams)))
}

func TestValidateArgs_MissingRequired(t *testing.T) {
	v := NewJSONSchemaValidator()

	err := v.ValidateArgs(map[string]any{"node_type": "wallet"}, []byte(nodeParams))
	e := requireCode(t, err, schema.ErrCodeInvalidArgs)
	assert.Contains(t, e.Message, "missing property")
	assert.Contains(t, e.Message, "config")
	assert.NotEmpty(t, e.Details["violations"])
}

func TestValidateArgs_EnumViolation(t *testing.T) {
	v := NewJSONSchemaValidator()

	err := v.ValidateArgs(map[string]any{"node_type": "bridge", "config": map[string]any{}}, []byte(nodeParams))
	e := requireCode(t, err, schema.ErrCodeInvalidArgs)
	assert.Contains(t, e.Message, "/node_type")
}

func TestValidateArgs_WrongNestedType(t *testing.T) {
	v := NewJSONSchemaValidator()

	args := map[string]any{
		"node_type": "wallet",
		"config":    map[string]any{},
		"position":  map[string]any{"x": "left"},
	}
	err := v.ValidateArgs(args, []byte(nodeParams))
	e := requireCode(t, err, schema.ErrCodeInvalidArgs)
	assert.Contains(t, e.Message, "/position/x")
}

func TestValidateArgs_ConfigMustBeObject(t *testing.T) {
	v := NewJSONSchemaValidator()

	err := v.ValidateArgs(map[string]any{"node_type": "wallet", "config": "none"}, []byte(nodeParams))
	requireCode(t, err, schema.ErrCodeInvalidArgs)
}

func TestValidateArgs_InvalidSchema(t *testing.T) {
	v := NewJSONSchemaValidator()

	err := v.ValidateArgs(map[string]any{"foo": "bar"}, []byte(`{not json`))
	e := requireCode(t, err, schema.ErrCodeValidation)
	assert.Contains(t, e.Message, "invalid parameter schema")
}

func TestValidateArgs_SchemaCaching(t *testing.T) {
	v := NewJSONSchemaValidator()
	args := map[string]any{"node_type": "wallet", "config": map[string]any{}}

	require.NoError(t, v.ValidateArgs(args, []byte(nodeParams)))
	require.NoError(t, v.ValidateArgs(args, []byte(nodeParams)))

	v.mu.RLock()
	defer v.mu.RUnlock()
	assert.Len(t, v.cache, 1, "schema should be compiled once")
}

func TestValidateArgs_Concurrent(t *testing.T) {
	v := NewJSONSchemaValidator()

	schema1 := []byte(`{"type": "object", "properties": {"a": {"type": "string"}}}`)
	schema2 := []byte(`{"type": "object", "properties": {"b": {"type": "integer"}}}`)

	var wg sync.WaitGroup
	errs := make([]error, 100)

	for i := range 100 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if idx%2 == 0 {
				errs[idx] = v.ValidateArgs(map[string]any{"a": "hello"}, schema1)
			} else {
				errs[idx] = v.ValidateArgs(map[string]any{"b": 42}, schema2)
			}
		}(i)
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "goroutine %d should not error", i)
	}
}
