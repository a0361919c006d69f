package expressions

import "context"

// Engine evaluates expressions against a JSON-like data map.
// Two implementations: CEL (node config rules) and GoJQ (payload extraction).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
