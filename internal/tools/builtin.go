package tools

import (
	"log/slog"

	"github.com/rendis/agent8/internal/expressions"
	"github.com/rendis/agent8/internal/search"
	"github.com/rendis/agent8/internal/validation"
)

// Deps are the collaborators the built-in tools need.
type Deps struct {
	Searcher search.Searcher
	Linter   *expressions.NodeLinter
	Logger   *slog.Logger
}

// RegisterBuiltins registers the eight built-in tools in the order the model sees them.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	all := make([]Tool, 0, 8)

	all = append(all,
		newSearchWebTool(deps.Searcher),
		newCreateNodeTool(deps.Linter, deps.Logger),
		newCreateEdgeTool(),
		newRegisterAgentTool(),
	)
	all = append(all, HydraTools()...)
	all = append(all, newBackpackTradeTool())

	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry creates a registry holding every built-in tool.
func NewBuiltinRegistry(v validation.Validator, deps Deps) (*Registry, error) {
	reg := NewRegistry(v)
	if err := RegisterBuiltins(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
