package expressions

import (
	"context"
	"fmt"

	"github.com/rendis/agent8/pkg/schema"
)

// NodeRule is a CEL predicate a node of the given type must satisfy.
type NodeRule struct {
	NodeType   schema.NodeType
	Expression string
	Message    string
}

// DefaultNodeRules encode the config keys each node type is expected to carry.
var DefaultNodeRules = []NodeRule{
	{schema.NodeTypeDEX, `"dex" in config && "pair" in config`, "dex node requires 'dex' and 'pair' in config"},
	{schema.NodeTypeNFT, `"collection" in config`, "nft node requires 'collection' in config"},
	{schema.NodeTypeStaking, `"pool" in config`, "staking node requires 'pool' in config"},
	{schema.NodeTypeEmail, `"recipient" in config`, "email node requires 'recipient' in config"},
}

// NodeLinter checks node configs against a rule set.
type NodeLinter struct {
	engine *CELEngine
	rules  map[schema.NodeType][]NodeRule
}

// NewNodeLinter compiles every rule up front so a bad rule fails at startup.
func NewNodeLinter(rules []NodeRule) (*NodeLinter, error) {
	engine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	l := &NodeLinter{engine: engine, rules: make(map[schema.NodeType][]NodeRule)}
	for _, r := range rules {
		if _, err := engine.getOrCompile(r.Expression); err != nil {
			return nil, fmt.Errorf("rule for %s: %w", r.NodeType, err)
		}
		l.rules[r.NodeType] = append(l.rules[r.NodeType], r)
	}
	return l, nil
}

// Lint returns one message per violated rule. Rules that fail to evaluate
// count as violations.
func (l *NodeLinter) Lint(ctx context.Context, node schema.Node) []string {
	data := map[string]any{
		"node_type": string(node.Type),
		"config":    node.Data,
	}

	var violations []string
	for _, r := range l.rules[node.Type] {
		out, err := l.engine.Evaluate(ctx, r.Expression, data)
		if err != nil {
			violations = append(violations, fmt.Sprintf("%s (%v)", r.Message, err))
			continue
		}
		if ok, _ := out.(bool); !ok {
			violations = append(violations, r.Message)
		}
	}
	return violations
}
