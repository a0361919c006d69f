package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/rendis/agent8/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())
}

func TestCEL_ConfigMembership(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{
		"node_type": "dex",
		"config":    map[string]any{"dex": "minswap", "pair": "ADA/DJED"},
	}
	out, err := e.Evaluate(context.Background(), `"dex" in config && config.pair == "ADA/DJED"`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_MissingVariablesDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `node_type == "" && size(config) == 0`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_EmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestCEL_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "config.(", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CEL compile error")
}

func TestCEL_ProgramCache(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Evaluate(context.Background(), `"pool" in config`, map[string]any{"config": map[string]any{"pool": "p"}})
		}()
	}
	wg.Wait()

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 1)
}

func TestNodeLinter_Lint(t *testing.T) {
	l, err := NewNodeLinter(DefaultNodeRules)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		node schema.Node
		want int
	}{
		{"wallet has no rules", schema.Node{Type: schema.NodeTypeWallet, Data: map[string]any{}}, 0},
		{"dex complete", schema.Node{Type: schema.NodeTypeDEX, Data: map[string]any{"dex": "minswap", "pair": "ADA/DJED"}}, 0},
		{"dex missing pair", schema.Node{Type: schema.NodeTypeDEX, Data: map[string]any{"dex": "minswap"}}, 1},
		{"nft missing collection", schema.Node{Type: schema.NodeTypeNFT, Data: map[string]any{}}, 1},
		{"staking ok", schema.Node{Type: schema.NodeTypeStaking, Data: map[string]any{"pool": "pool1xyz"}}, 0},
		{"email nil config", schema.Node{Type: schema.NodeTypeEmail}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, l.Lint(ctx, tc.node), tc.want)
		})
	}
}

func TestNewNodeLinter_BadRule(t *testing.T) {
	_, err := NewNodeLinter([]NodeRule{{NodeType: schema.NodeTypeDEX, Expression: "config.(", Message: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule for dex")
}
