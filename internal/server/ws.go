package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rendis/agent8/internal/session"
	"github.com/rendis/agent8/pkg/schema"
)

type wsHandler struct {
	cfg      Config
	sessions *session.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// ctx parents every session and is cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

func newWSHandler(cfg Config, sessions *session.Manager, logger *slog.Logger) *wsHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &wsHandler{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header (non-browser clients)
// and browser requests from an allowed origin.
func (h *wsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin)
}

func (h *wsHandler) handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("ws: upgrade failed", "remote_ip", c.RealIP(), "error", err)
		return nil
	}

	sess := h.sessions.Open(h.ctx)
	h.logger.Info("ws: client connected", "session_id", sess.ID(), "remote_ip", c.RealIP())

	go h.writePump(conn, sess)
	h.readPump(conn, sess)
	return nil
}

// readPump feeds inbound frames to the session until the connection drops.
func (h *wsHandler) readPump(conn *websocket.Conn, sess *session.Session) {
	defer func() {
		sess.Close()
		conn.Close()
		h.logger.Info("ws: client disconnected", "session_id", sess.ID())
	}()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("ws: read failed", "session_id", sess.ID(), "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		sess.HandleMessage(message)
	}
}

// writePump is the only writer on conn. It drains the session queue in order
// and keeps the connection alive with pings.
func (h *wsHandler) writePump(conn *websocket.Conn, sess *session.Session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-sess.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.transportError(sess, err)
				return
			}
		case <-sess.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.transportError(sess, err)
				return
			}
		}
	}
}

// transportError logs a send failure and tears the session down. It is never
// reported back to the run.
func (h *wsHandler) transportError(sess *session.Session, err error) {
	terr := schema.NewError(schema.ErrCodeTransport, "websocket send failed").WithCause(err)
	h.logger.Warn("ws: write failed", "session_id", sess.ID(), "error", terr)
	sess.Close()
}

func (h *wsHandler) close() {
	h.cancel()
}
