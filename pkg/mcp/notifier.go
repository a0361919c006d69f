package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/agent8/internal/streaming"
)

// notificationMethod carries realtime events to MCP clients.
const notificationMethod = "notifications/message"

// Notifier is a streaming.Emitter that pushes events to one MCP client session.
type Notifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
	sessionID string
	logger    *slog.Logger
}

// NewNotifier creates a notifier bound to sessionID.
func NewNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry, sessionID string, logger *slog.Logger) *Notifier {
	return &Notifier{mcpServer: mcpServer, sessions: sessions, sessionID: sessionID, logger: logger}
}

// Emit sends {event, data} to the session. Best-effort: a gone session is
// forgotten and other failures are logged.
func (n *Notifier) Emit(ctx context.Context, ev streaming.Event) {
	if ctx.Err() != nil {
		return
	}
	err := n.mcpServer.SendNotificationToSpecificClient(n.sessionID, notificationMethod, map[string]any{
		"event": ev.Name,
		"data":  ev.Data,
	})
	switch {
	case err == nil:
	case errors.Is(err, server.ErrSessionNotFound):
		// Session expired between the call and the send.
		n.sessions.Remove(n.sessionID)
	default:
		n.logger.WarnContext(ctx, "mcp: notification failed", "session_id", n.sessionID, "event", ev.Name, "error", err)
	}
}

var _ streaming.Emitter = (*Notifier)(nil)
