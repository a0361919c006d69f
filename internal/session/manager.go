package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/orchestrator"
	"github.com/rendis/agent8/internal/streaming"
)

// Manager tracks connected sessions.
type Manager struct {
	runner      Runner
	logger      *slog.Logger
	queueBuffer int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Runner      Runner
	Logger      *slog.Logger
	QueueBuffer int // per-session outbound buffer; <= 0 uses the queue default
}

// NewManager creates an empty Manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		runner:      cfg.Runner,
		logger:      logging.OrDefault(cfg.Logger),
		queueBuffer: cfg.QueueBuffer,
		sessions:    make(map[string]*Session),
	}
}

// Open creates and registers a new idle session. The session is closed when
// ctx is cancelled or Close is called.
func (m *Manager) Open(ctx context.Context) *Session {
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		id:      newSessionID(),
		manager: m,
		runner:  m.runner,
		logger:  m.logger,
		queue:   streaming.NewQueue(m.queueBuffer, m.logger),
		nodes:   orchestrator.NewNodeSet(),
		ctx:     sctx,
		cancel:  cancel,
		state:   StateIdle,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	context.AfterFunc(ctx, s.Close)
	m.logger.Info("session: opened", "session_id", s.id)
	return s
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session and waits for their runs to unwind.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	for _, s := range open {
		s.Close()
	}
	for _, s := range open {
		s.Wait()
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
