package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/session"
)

// Connection and rate limit defaults.
const (
	DefaultWriteTimeout   = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultPingInterval   = DefaultPongWait * 9 / 10
	DefaultMaxMessageSize = 64 << 10

	statusRequestsPerMinute = 100
)

// APIStatus reports which upstream credentials are configured.
type APIStatus struct {
	LLM    bool `json:"llm"`
	Search bool `json:"search"`
	Google bool `json:"google"`
}

// Config configures the HTTP and websocket surface.
type Config struct {
	AllowedOrigins []string
	Model          string
	APIs           APIStatus

	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func (c *Config) applyDefaults() {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
}

// Server serves the status endpoint and the realtime websocket.
type Server struct {
	cfg      Config
	echo     *echo.Echo
	sessions *session.Manager
	logger   *slog.Logger
	ws       *wsHandler
}

// New builds the echo instance and registers routes.
func New(cfg Config, sessions *session.Manager, logger *slog.Logger) *Server {
	cfg.applyDefaults()
	logger = logging.OrDefault(logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:      cfg,
		echo:     e,
		sessions: sessions,
		logger:   logger,
	}
	s.ws = newWSHandler(cfg, sessions, logger)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http: request",
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "remote_ip", v.RemoteIP)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	e.GET("/", s.handleStatus, statusRateLimiter())
	e.GET("/ws", s.ws.handle)
	return s
}

// statusRateLimiter allows 100 requests per minute per client IP.
func statusRateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(statusRequestsPerMinute) / 60),
			Burst:     statusRequestsPerMinute,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
	})
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	AIModel        string    `json:"ai_model"`
	APIsConfigured APIStatus `json:"apis_configured"`
	ActiveSessions int       `json:"active_sessions"`
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:         "ok",
		Message:        "agent8 Backend API",
		AIModel:        s.cfg.Model,
		APIsConfigured: s.cfg.APIs,
		ActiveSessions: s.sessions.Count(),
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("server: listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every session and waits for
// in-flight runs to unwind or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.ws.close()

	done := make(chan struct{})
	go func() {
		s.sessions.CloseAll()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("server: shutdown timed out waiting for sessions")
	}
	return err
}
