package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/tools"
)

const instructions = "agent8 builds Cardano workflow graphs. Use create_cardano_node and create_edge to place nodes, " +
	"search_web for market context, register_agent and the hydra tools for Masumi trading agents, and " +
	"execute_backpack_trade for centralized exchange orders. Graph and log events are pushed as notifications/message."

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Registry *tools.Registry
	Version  string
	Logger   *slog.Logger
}

// Server exposes the tool registry over MCP.
type Server struct {
	registry  *tools.Registry
	sessions  *SessionRegistry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with one MCP tool per registered tool.
func NewServer(deps ServerDeps) *Server {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		registry: deps.Registry,
		sessions: NewSessionRegistry(),
		logger:   logging.OrDefault(deps.Logger),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.sessions.Remove(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"agent8",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions(instructions),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO runs the stdio transport over the given streams.
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools wraps every registry tool in a dispatching handler, in registration order.
func (s *Server) tools() []server.ServerTool {
	if s.registry == nil {
		return nil
	}
	registered := s.registry.Tools()
	out := make([]server.ServerTool, 0, len(registered))
	for _, t := range registered {
		out = append(out, server.ServerTool{Tool: t.Definition(), Handler: s.handleTool(t.Name())})
	}
	return out
}
