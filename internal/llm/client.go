package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/agent8/internal/conversation"
	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/pkg/schema"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "x-ai/grok-2-1212"
	DefaultTimeout = 60 * time.Second

	referer = "https://agent8.ai"
	title   = "agent8 - Cardano AI Workflow Builder"

	maxResponseBytes = 4 << 20
)

// Client produces the next assistant turn for a conversation.
type Client interface {
	NextTurn(ctx context.Context, turns []conversation.Turn, specs []schema.ToolSpec) (conversation.Assistant, error)
}

// Config holds provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker CircuitBreakerConfig
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint.
// It is safe for concurrent use.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	retry      RetryPolicy
	breaker    *CircuitBreaker
	logger     *slog.Logger
}

// NewChatClient creates a client, filling unset fields with defaults.
func NewChatClient(cfg Config, logger *slog.Logger) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Breaker == (CircuitBreakerConfig{}) {
		cfg.Breaker = DefaultCircuitBreakerConfig()
	}
	return &ChatClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      cfg.Retry,
		breaker:    NewCircuitBreaker(cfg.Breaker),
		logger:     logging.OrDefault(logger),
	}
}

// Model returns the configured model id.
func (c *ChatClient) Model() string {
	return c.model
}

// Breaker exposes the shared circuit breaker.
func (c *ChatClient) Breaker() *CircuitBreaker {
	return c.breaker
}

// NextTurn sends the conversation and tool list and maps the reply to an Assistant turn.
func (c *ChatClient) NextTurn(ctx context.Context, turns []conversation.Turn, specs []schema.ToolSpec) (conversation.Assistant, error) {
	if err := c.breaker.AllowRequest(); err != nil {
		return conversation.Assistant{}, err
	}

	body, err := json.Marshal(c.buildRequest(turns, specs))
	if err != nil {
		return conversation.Assistant{}, schema.NewError(schema.ErrCodeLLM, "failed to marshal request").WithCause(err)
	}

	var resp *chatCompletionResponse
	for attempt := 0; ; attempt++ {
		resp, err = c.createChatCompletion(ctx, body)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			c.breaker.Release()
			return conversation.Assistant{}, cancelled(ctx)
		}
		if attempt >= c.retry.MaxRetries || !isRetryableError(err) {
			c.breaker.RecordFailure()
			return conversation.Assistant{}, err
		}
		delay := c.retry.backoff(attempt)
		logging.LogWith(ctx, c.logger).WarnContext(ctx, "llm call failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if waitForBackoff(ctx, delay) != nil {
			c.breaker.Release()
			return conversation.Assistant{}, cancelled(ctx)
		}
	}

	turn, err := toAssistant(resp)
	if err != nil {
		c.breaker.RecordFailure()
		return conversation.Assistant{}, err
	}
	c.breaker.RecordSuccess()
	return turn, nil
}

func (c *ChatClient) buildRequest(turns []conversation.Turn, specs []schema.ToolSpec) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(turns)),
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, toMessage(t))
	}
	for _, s := range specs {
		req.Tools = append(req.Tools, tool{
			Type: "function",
			Function: toolFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req
}

func (c *ChatClient) createChatCompletion(ctx context.Context, body []byte) (*chatCompletionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeLLM, "failed to create request").WithCause(err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeLLM, "failed to send request: %v", err).WithCause(err).Retryable()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeLLM, "failed to read response: %v", err).WithCause(err).Retryable()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := apiStatusError(resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			e.Retryable()
		}
		return nil, e
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeLLM, "failed to unmarshal response: %v", err).WithCause(err)
	}
	return &result, nil
}

func (c *ChatClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("HTTP-Referer", referer)
	req.Header.Set("X-Title", title)
}

func apiStatusError(status int, body []byte) *schema.Error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return schema.NewErrorf(schema.ErrCodeLLM, "LLM API error [%d]: %s (type: %s)",
			status, errResp.Error.Message, errResp.Error.Type).
			WithDetails(map[string]any{"status": status})
	}
	return schema.NewErrorf(schema.ErrCodeLLM, "LLM API error [%d]: %s", status, strings.TrimSpace(string(body))).
		WithDetails(map[string]any{"status": status})
}

func toMessage(t conversation.Turn) chatMessage {
	switch v := t.(type) {
	case conversation.System:
		return chatMessage{Role: string(conversation.RoleSystem), Content: v.Content}
	case conversation.User:
		return chatMessage{Role: string(conversation.RoleUser), Content: v.Content}
	case conversation.Assistant:
		m := chatMessage{Role: string(conversation.RoleAssistant), Content: v.Content}
		for _, call := range v.ToolCalls {
			args := string(call.Arguments)
			if args == "" {
				args = "{}"
			}
			m.ToolCalls = append(m.ToolCalls, toolCall{
				ID:       call.ID,
				Type:     "function",
				Function: toolCallFunction{Name: call.Name, Arguments: args},
			})
		}
		return m
	case conversation.Tool:
		return chatMessage{Role: string(conversation.RoleTool), Content: v.Content, ToolCallID: v.CallID}
	default:
		return chatMessage{Role: string(t.Role())}
	}
}

func toAssistant(resp *chatCompletionResponse) (conversation.Assistant, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return conversation.Assistant{}, schema.NewError(schema.ErrCodeLLM, "malformed response: no choices")
	}
	msg := resp.Choices[0].Message

	out := conversation.Assistant{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return conversation.Assistant{}, schema.NewErrorf(schema.ErrCodeLLM,
				"tool call %s has invalid JSON arguments", tc.Function.Name).
				WithToolCall(tc.ID)
		}
		id := tc.ID
		if id == "" {
			id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		out.ToolCalls = append(out.ToolCalls, conversation.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return out, nil
}

func cancelled(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	return schema.NewError(schema.ErrCodeCancelled, "llm call cancelled").WithCause(cause)
}

// IsCancelled reports whether err came from a cancelled run.
func IsCancelled(err error) bool {
	return schema.HasCode(err, schema.ErrCodeCancelled) || errors.Is(err, context.Canceled)
}

var _ Client = (*ChatClient)(nil)

