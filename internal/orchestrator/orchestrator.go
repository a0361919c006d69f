package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rendis/agent8/internal/conversation"
	"github.com/rendis/agent8/internal/llm"
	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/store"
	"github.com/rendis/agent8/internal/streaming"
	"github.com/rendis/agent8/internal/telemetry"
	"github.com/rendis/agent8/internal/tools"
	"github.com/rendis/agent8/pkg/schema"
)

// DefaultMaxIterations bounds the number of model turns per run.
const DefaultMaxIterations = 16

// Dispatcher is the subset of the tool registry the loop needs.
type Dispatcher interface {
	Specs() []schema.ToolSpec
	Dispatch(ctx context.Context, name string, raw json.RawMessage, emit streaming.Emitter) (any, error)
}

// RunRecorder persists run metadata. store.Store satisfies it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *store.Run) error
	UpdateRun(ctx context.Context, id string, update store.RunUpdate) error
	AppendToolCall(ctx context.Context, call *store.ToolCall) error
}

// Config wires the orchestrator's collaborators.
type Config struct {
	LLM           llm.Client
	Tools         Dispatcher
	Recorder      RunRecorder // optional
	Logger        *slog.Logger
	MaxIterations int
	SystemPrompt  string
	Model         string // recorded with each run
}

// Orchestrator drives the tool-calling loop. One instance serves every session.
type Orchestrator struct {
	llm           llm.Client
	tools         Dispatcher
	recorder      RunRecorder
	logger        *slog.Logger
	tracer        trace.Tracer
	maxIterations int
	systemPrompt  string
	model         string
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	return &Orchestrator{
		llm:           cfg.LLM,
		tools:         cfg.Tools,
		recorder:      cfg.Recorder,
		logger:        logging.OrDefault(cfg.Logger),
		tracer:        telemetry.Tracer("github.com/rendis/agent8/internal/orchestrator"),
		maxIterations: cfg.MaxIterations,
		systemPrompt:  cfg.SystemPrompt,
		model:         cfg.Model,
	}
}

// Request is one generate_workflow invocation.
type Request struct {
	SessionID string
	Prompt    string
	Emitter   streaming.Emitter
	// Nodes tracks node ids already placed in the session. Nil starts an empty set.
	Nodes *NodeSet
	// OnTerminal, when set, runs right before workflow_complete or error is emitted.
	OnTerminal func()
}

func (r Request) terminal() {
	if r.OnTerminal != nil {
		r.OnTerminal()
	}
}

// Result summarizes a finished run.
type Result struct {
	RunID        string
	Status       schema.RunStatus
	Iterations   int
	ToolCalls    int
	Conversation *conversation.Conversation
}

// Run executes the loop until the model stops calling tools, the provider
// fails, the iteration cap is hit, or ctx is cancelled. It emits exactly one
// terminal event (workflow_complete or error) unless cancelled, in which case
// it emits nothing further.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	emit := req.Emitter
	if emit == nil {
		emit = streaming.Discard
	}
	nodes := req.Nodes
	if nodes == nil {
		nodes = NewNodeSet()
	}

	res := &Result{
		RunID:        uuid.NewString(),
		Status:       schema.RunStatusRunning,
		Conversation: conversation.New(o.systemPrompt, req.Prompt),
	}

	ctx = logging.WithRunID(ctx, res.RunID)
	if req.SessionID != "" {
		ctx = logging.WithSessionID(ctx, req.SessionID)
	}
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "orchestrator.run",
		attribute.String(telemetry.RunIDKey, res.RunID),
		attribute.String(telemetry.SessionIDKey, req.SessionID),
		attribute.String(telemetry.ModelKey, o.model),
	)
	defer span.End()

	o.startRun(ctx, req, res.RunID)
	o.logger.InfoContext(ctx, "orchestrator: run started", "prompt_chars", len(req.Prompt))

	specs := o.tools.Specs()
	for {
		if ctx.Err() != nil {
			return o.cancel(ctx, res)
		}
		if res.Iterations >= o.maxIterations {
			err := schema.NewErrorf(schema.ErrCodeIterationLimit,
				"workflow generation exceeded %d iterations", o.maxIterations)
			req.terminal()
			emit.Emit(ctx, streaming.Error(err.Message))
			telemetry.SetError(span, err)
			return o.fail(ctx, res, err)
		}
		res.Iterations++

		turn, err := o.llm.NextTurn(ctx, res.Conversation.Turns(), specs)
		if err != nil {
			if ctx.Err() != nil || llm.IsCancelled(err) {
				return o.cancel(ctx, res)
			}
			req.terminal()
			emit.Emit(ctx, streaming.Error(userMessage(err)))
			telemetry.SetError(span, err)
			return o.fail(ctx, res, err)
		}
		res.Conversation.Append(turn)

		if turn.Terminal() {
			req.terminal()
			emit.Emit(ctx, streaming.WorkflowComplete())
			res.Status = schema.RunStatusCompleted
			o.finishRun(ctx, res, "")
			o.logger.InfoContext(ctx, "orchestrator: run completed",
				"iterations", res.Iterations, "tool_calls", res.ToolCalls)
			return res, nil
		}

		for _, call := range turn.ToolCalls {
			if ctx.Err() != nil {
				return o.cancel(ctx, res)
			}
			res.ToolCalls++
			res.Conversation.Append(o.dispatch(ctx, res.RunID, call, emit, nodes))
		}
	}
}

// dispatch runs one tool call and reifies its outcome as a Tool turn.
// Failures never escape: they become error content for the model.
func (o *Orchestrator) dispatch(ctx context.Context, runID string, call conversation.ToolCall, emit streaming.Emitter, nodes *NodeSet) conversation.Tool {
	ctx = logging.WithToolCallID(ctx, call.ID)
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "tool."+call.Name,
		attribute.String(telemetry.ToolNameKey, call.Name),
		attribute.String(telemetry.ToolCallIDKey, call.ID),
	)
	defer span.End()

	start := time.Now()
	turn := conversation.Tool{CallID: call.ID}

	result, err := o.tools.Dispatch(ctx, call.Name, call.Arguments, emit)
	if err == nil {
		var content string
		content, err = tools.ResultContent(result)
		turn.Content = content
	}
	if err != nil {
		turn.Content = tools.ErrorContent(err)
		turn.IsError = true
		telemetry.SetError(span, err)
		o.logger.WarnContext(ctx, "orchestrator: tool call failed", "tool", call.Name, "error", err)
	} else {
		o.trackGraph(ctx, result, nodes)
	}

	o.recordToolCall(ctx, runID, call, err, time.Since(start))
	return turn
}

// trackGraph remembers created nodes and warns about edges to unknown ones.
// Such edges are still created.
func (o *Orchestrator) trackGraph(ctx context.Context, result any, nodes *NodeSet) {
	switch v := result.(type) {
	case schema.Node:
		nodes.Add(v.ID)
	case schema.Edge:
		for _, id := range []string{v.Source, v.Target} {
			if !nodes.Has(id) {
				o.logger.WarnContext(ctx, "orchestrator: edge references unknown node", "edge", v.ID, "node", id)
			}
		}
	}
}

func (o *Orchestrator) cancel(ctx context.Context, res *Result) (*Result, error) {
	res.Status = schema.RunStatusCancelled
	o.finishRun(ctx, res, "")
	o.logger.InfoContext(ctx, "orchestrator: run cancelled", "iterations", res.Iterations)
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	return res, schema.NewError(schema.ErrCodeCancelled, "run cancelled").WithCause(cause)
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, err error) (*Result, error) {
	res.Status = schema.RunStatusFailed
	o.finishRun(ctx, res, userMessage(err))
	o.logger.ErrorContext(ctx, "orchestrator: run failed", "iterations", res.Iterations, "error", err)
	return res, err
}

// --- recording ---

func (o *Orchestrator) startRun(ctx context.Context, req Request, runID string) {
	if o.recorder == nil {
		return
	}
	err := o.recorder.CreateRun(ctx, &store.Run{
		ID:        runID,
		SessionID: req.SessionID,
		Prompt:    req.Prompt,
		Model:     o.model,
		Status:    schema.RunStatusRunning,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "orchestrator: record run start", "error", err)
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, res *Result, errMsg string) {
	if o.recorder == nil {
		return
	}
	now := time.Now()
	status := res.Status
	iterations, calls := res.Iterations, res.ToolCalls
	err := o.recorder.UpdateRun(context.WithoutCancel(ctx), res.RunID, store.RunUpdate{
		Status:      &status,
		Iterations:  &iterations,
		ToolCalls:   &calls,
		Error:       &errMsg,
		CompletedAt: &now,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "orchestrator: record run finish", "error", err)
	}
}

func (o *Orchestrator) recordToolCall(ctx context.Context, runID string, call conversation.ToolCall, callErr error, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}
	rec := &store.ToolCall{
		RunID:      runID,
		CallID:     call.ID,
		Tool:       call.Name,
		OK:         callErr == nil,
		DurationMs: elapsed.Milliseconds(),
	}
	if callErr != nil {
		rec.Error = errorSummary(callErr)
	}
	if err := o.recorder.AppendToolCall(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.WarnContext(ctx, "orchestrator: record tool call", "error", err)
	}
}

// userMessage is the human-readable text sent in an error event.
func userMessage(err error) string {
	var e *schema.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func errorSummary(err error) string {
	var e *schema.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return err.Error()
}
