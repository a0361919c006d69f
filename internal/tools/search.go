package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/search"
	"github.com/rendis/agent8/internal/streaming"
)

type searchWebParams struct {
	Query string `json:"query"`
}

type searchWebTool struct {
	definition
	searcher search.Searcher
}

func newSearchWebTool(s search.Searcher) *searchWebTool {
	if s == nil {
		s = search.Stub{}
	}
	return &searchWebTool{
		definition: definition{mcp.NewTool("search_web",
			mcp.WithDescription("Search the web for information about Cardano, tokens, or DeFi protocols."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The search query")),
		)},
		searcher: s,
	}
}

// Call emits nothing; the answer only flows back to the model.
func (t *searchWebTool) Call(ctx context.Context, args map[string]any, _ streaming.Emitter) (any, error) {
	p, err := decodeParams[searchWebParams](args)
	if err != nil {
		return nil, err
	}
	return t.searcher.Search(ctx, p.Query), nil
}
