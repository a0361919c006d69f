package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/agent8/internal/expressions"
	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/pkg/schema"
)

const (
	// StubResult is returned when no API key is configured.
	StubResult = "Mock search result: Minswap is the leading DEX on Cardano with low fees. NMKR is great for NFTs."
	// FallbackResult is returned when the provider call fails for any reason.
	FallbackResult = "Error searching web. Using fallback knowledge."

	DefaultBaseURL = "https://api.perplexity.ai"
	DefaultModel   = "llama-3.1-sonar-small-128k-online"
	DefaultTimeout = 20 * time.Second

	systemInstruction = "Be precise and concise."
	contentPath       = ".choices[0].message.content"
	maxBodyBytes      = 1 << 20
)

// Searcher answers a free-text query. It never fails: problems degrade to a
// fixed fallback string.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// Stub answers every query with StubResult.
type Stub struct{}

func (Stub) Search(context.Context, string) string { return StubResult }

// Config holds Perplexity client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client queries the Perplexity chat-completions endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	jq     *expressions.GoJQEngine
	logger *slog.Logger
}

// New returns a Perplexity client, or Stub when no API key is configured.
func New(cfg Config, logger *slog.Logger) Searcher {
	if cfg.APIKey == "" {
		return Stub{}
	}
	return NewClient(cfg, logger)
}

// NewClient returns a Perplexity client, filling unset fields with defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		jq:     expressions.NewGoJQEngine(),
		logger: logging.OrDefault(logger),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// Search returns the provider's answer, or FallbackResult on failure.
func (c *Client) Search(ctx context.Context, query string) string {
	content, err := c.query(ctx, query)
	if err != nil {
		c.logger.WarnContext(ctx, "web search failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return FallbackResult
	}
	return content
}

func (c *Client) query(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(request{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return "", schema.NewError(schema.ErrCodeSearch, "encode request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", schema.NewError(schema.ErrCodeSearch, "build request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeSearch, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", schema.NewError(schema.ErrCodeSearch, "read response").WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", schema.NewErrorf(schema.ErrCodeSearch, "search API error [%d]: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", schema.NewError(schema.ErrCodeSearch, "malformed response body").WithCause(err)
	}
	out, err := c.jq.Evaluate(ctx, contentPath, data)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeSearch, "extract content").WithCause(err)
	}
	content, ok := out.(string)
	if !ok {
		return "", schema.NewError(schema.ErrCodeSearch, fmt.Sprintf("no content at %s", contentPath))
	}
	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
