package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/internal/tools"
)

// handleTool returns the MCP handler for one registry tool. Arguments are
// validated and dispatched by the registry; failures come back as tool-error
// results rather than protocol errors.
func (s *Server) handleTool(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode arguments: %v", err)), nil
		}

		emit := s.emitterFor(ctx)
		result, err := s.registry.Dispatch(ctx, name, raw, emit)
		if err != nil {
			s.logger.WarnContext(ctx, "mcp: tool call failed", "tool", name, "error", err)
			return mcp.NewToolResultError(tools.ErrorContent(err)), nil
		}
		return marshalResult(result)
	}
}

// emitterFor routes events to the calling client, or drops them when the
// call has no client session.
func (s *Server) emitterFor(ctx context.Context) streaming.Emitter {
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return streaming.Discard
	}
	calls := s.sessions.Touch(session.SessionID())
	s.logger.DebugContext(ctx, "mcp: tool call", "session_id", session.SessionID(), "calls", calls)
	return NewNotifier(s.mcpServer, s.sessions, session.SessionID(), s.logger)
}

// marshalResult converts a tool result to a tool result message. Strings are
// returned as text, everything else as JSON.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	if text, ok := v.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	data, err := tools.ResultContent(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
