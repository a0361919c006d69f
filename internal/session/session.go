package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/orchestrator"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/pkg/schema"
)

// Inbound error messages sent back to the client.
const (
	MsgInvalidMessage    = "invalid message"
	MsgPromptRequired    = "prompt is required"
	MsgAlreadyGenerating = "a workflow is already being generated for this session"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Runner executes one generation run. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// inbound is the client envelope {"event": ..., "data": ...}.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type generateData struct {
	Prompt string `json:"prompt"`
}

// Session is one connected client. It owns the outbound queue and at most one
// in-flight run.
type Session struct {
	id      string
	manager *Manager
	runner  Runner
	logger  *slog.Logger
	queue   *streaming.Queue
	nodes   *orchestrator.NodeSet

	// ctx is cancelled on Close and parents every run.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex // guards state and gen
	state State
	gen   uint64 // bumped per run so a finishing run cannot idle its successor
	runs  sync.WaitGroup
}

func newSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames is the encoded outbound event stream for the connection writer.
func (s *Session) Frames() <-chan []byte { return s.queue.Frames() }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.queue.Done() }

// HandleMessage processes one inbound frame. Protocol errors are reported to
// the client as error events and leave the session state unchanged.
func (s *Session) HandleMessage(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendError(MsgInvalidMessage)
		return
	}
	if msg.Event != schema.EventGenerateWorkflow {
		s.sendError("unknown event: " + msg.Event)
		return
	}

	var data generateData
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			s.sendError(MsgInvalidMessage)
			return
		}
	}

	if err := s.Generate(data.Prompt); err != nil {
		s.sendError(userMessage(err))
	}
}

// Generate starts a run for prompt in its own goroutine.
// It fails when the prompt is blank, a run is already in flight, or the
// session is closed.
func (s *Session) Generate(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return schema.NewError(schema.ErrCodeValidation, MsgPromptRequired)
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return schema.NewError(schema.ErrCodeCancelled, "session closed")
	case StateGenerating:
		s.mu.Unlock()
		return schema.NewError(schema.ErrCodeConflict, MsgAlreadyGenerating)
	}
	s.state = StateGenerating
	s.gen++
	gen := s.gen
	s.runs.Add(1)
	s.mu.Unlock()

	go s.run(prompt, gen)
	return nil
}

func (s *Session) run(prompt string, gen uint64) {
	defer s.runs.Done()

	ctx := logging.WithSessionID(s.ctx, s.id)
	s.logger.InfoContext(ctx, "session: generation started")

	res, err := s.runner.Run(ctx, orchestrator.Request{
		SessionID:  s.id,
		Prompt:     prompt,
		Emitter:    s.queue,
		Nodes:      s.nodes,
		OnTerminal: func() { s.settle(gen) },
	})
	s.settle(gen)

	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "session: generation finished", "run_id", res.RunID, "iterations", res.Iterations)
	case schema.HasCode(err, schema.ErrCodeCancelled):
		s.logger.DebugContext(ctx, "session: generation cancelled")
	default:
		s.logger.WarnContext(ctx, "session: generation failed", "error", err)
	}
}

// settle returns the session to idle if run gen is still the current one.
func (s *Session) settle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateGenerating && s.gen == gen {
		s.state = StateIdle
	}
}

// Close cancels any in-flight run, stops the outbound queue and unregisters
// the session. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.cancel()
	s.queue.Close()
	s.manager.remove(s.id)
	s.logger.Info("session: closed", "session_id", s.id)
}

// Wait blocks until the in-flight run, if any, has returned.
func (s *Session) Wait() {
	s.runs.Wait()
}

func (s *Session) sendError(message string) {
	s.queue.Emit(s.ctx, streaming.Error(message))
}

func userMessage(err error) string {
	var e *schema.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
