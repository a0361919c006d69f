package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/agent8/internal/expressions"
	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
)

// --- create_cardano_node ---

type createNodeParams struct {
	NodeType schema.NodeType  `json:"node_type"`
	Config   map[string]any   `json:"config"`
	Position *schema.Position `json:"position,omitempty"`
}

type createNodeTool struct {
	definition
	linter *expressions.NodeLinter
	logger *slog.Logger
}

func newCreateNodeTool(linter *expressions.NodeLinter, logger *slog.Logger) *createNodeTool {
	nodeTypes := make([]string, len(schema.NodeTypes))
	for i, t := range schema.NodeTypes {
		nodeTypes[i] = string(t)
	}
	return &createNodeTool{
		definition: definition{mcp.NewTool("create_cardano_node",
			mcp.WithDescription("Create a node in the workflow diagram."),
			mcp.WithString("node_type", mcp.Required(),
				mcp.Enum(nodeTypes...),
				mcp.Description("The type of node to create"),
			),
			mcp.WithObject("config", mcp.Required(),
				mcp.Description("Configuration for the node (e.g., {'dex': 'minswap', 'pair': 'ADA/DJED'})"),
			),
			mcp.WithObject("position",
				mcp.Properties(map[string]any{
					"x": map[string]any{"type": "number"},
					"y": map[string]any{"type": "number"},
				}),
				mcp.Description("Optional position"),
			),
		)},
		linter: linter,
		logger: logging.OrDefault(logger),
	}
}

func (t *createNodeTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	p, err := decodeParams[createNodeParams](args)
	if err != nil {
		return nil, err
	}

	pos := schema.DefaultPosition
	if p.Position != nil {
		pos = *p.Position
	}
	data := p.Config
	if data == nil {
		data = map[string]any{}
	}

	node := schema.Node{
		ID:       newNodeID(),
		Type:     p.NodeType,
		Position: pos,
		Data:     data,
	}
	emit.Emit(ctx, streaming.NodeCreated(node))

	if t.linter != nil {
		for _, msg := range t.linter.Lint(ctx, node) {
			t.logger.WarnContext(ctx, "node config incomplete",
				slog.String("node_id", node.ID),
				slog.String("problem", msg),
			)
		}
	}
	return node, nil
}

// --- create_edge ---

type createEdgeParams struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type createEdgeTool struct {
	definition
}

func newCreateEdgeTool() *createEdgeTool {
	return &createEdgeTool{definition: definition{mcp.NewTool("create_edge",
		mcp.WithDescription("Connect two nodes in the workflow."),
		mcp.WithString("source", mcp.Required(), mcp.Description("ID of the source node")),
		mcp.WithString("target", mcp.Required(), mcp.Description("ID of the target node")),
	)}}
}

// Call does not verify that either endpoint exists.
func (t *createEdgeTool) Call(ctx context.Context, args map[string]any, emit streaming.Emitter) (any, error) {
	p, err := decodeParams[createEdgeParams](args)
	if err != nil {
		return nil, err
	}
	edge := schema.Edge{
		ID:     newEdgeID(p.Source, p.Target),
		Source: p.Source,
		Target: p.Target,
	}
	emit.Emit(ctx, streaming.EdgeCreated(edge))
	return edge, nil
}
