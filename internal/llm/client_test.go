package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rendis/agent8/internal/conversation"
	"github.com/rendis/agent8/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	return Config{
		APIKey:  "sk-test",
		BaseURL: url,
		Retry:   RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func seedTurns() []conversation.Turn {
	return []conversation.Turn{
		conversation.System{Content: "sys"},
		conversation.User{Content: "swap ADA"},
	}
}

var nodeSpec = schema.ToolSpec{
	Name:        "create_edge",
	Description: "Connect two nodes in the workflow.",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"source":{"type":"string"}}}`),
}

func TestChatClient_NextTurn_RequestShape(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://agent8.ai", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "agent8 - Cardano AI Workflow Builder", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Workflow ready."}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL+"/api/v1/"), nil)
	turn, err := c.NextTurn(context.Background(), seedTurns(), []schema.ToolSpec{nodeSpec})
	require.NoError(t, err)
	assert.True(t, turn.Terminal())
	assert.Equal(t, "Workflow ready.", turn.Content)

	assert.Equal(t, DefaultModel, body["model"])
	assert.Equal(t, "auto", body["tool_choice"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "sys"}, msgs[0])

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "function", tools[0].(map[string]any)["type"])
	assert.Equal(t, "create_edge", fn["name"])
	assert.Equal(t, "object", fn["parameters"].(map[string]any)["type"])
}

func TestChatClient_NextTurn_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"create_cardano_node","arguments":"{\"node_type\":\"wallet\",\"config\":{}}"}},
			{"id":"call_2","type":"function","function":{"name":"search_web","arguments":""}}
		]}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	turn, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 2)
	assert.False(t, turn.Terminal())
	assert.Equal(t, "call_1", turn.ToolCalls[0].ID)
	assert.Equal(t, "create_cardano_node", turn.ToolCalls[0].Name)
	assert.JSONEq(t, `{"node_type":"wallet","config":{}}`, string(turn.ToolCalls[0].Arguments))
	assert.JSONEq(t, `{}`, string(turn.ToolCalls[1].Arguments))
}

func TestChatClient_NextTurn_ReplaysToolTurns(t *testing.T) {
	var body chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	turns := append(seedTurns(),
		conversation.Assistant{ToolCalls: []conversation.ToolCall{{ID: "call_1", Name: "create_edge", Arguments: json.RawMessage(`{"source":"a","target":"b"}`)}}},
		conversation.Tool{CallID: "call_1", Content: `{"id":"edge-a-b","source":"a","target":"b"}`},
	)
	c := NewChatClient(testConfig(srv.URL), nil)
	_, err := c.NextTurn(context.Background(), turns, nil)
	require.NoError(t, err)

	require.Len(t, body.Messages, 4)
	assert.Equal(t, "assistant", body.Messages[2].Role)
	require.Len(t, body.Messages[2].ToolCalls, 1)
	assert.Equal(t, "function", body.Messages[2].ToolCalls[0].Type)
	assert.Equal(t, `{"source":"a","target":"b"}`, body.Messages[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "tool", body.Messages[3].Role)
	assert.Equal(t, "call_1", body.Messages[3].ToolCallID)
	assert.Nil(t, body.ToolChoice)
}

func TestChatClient_NextTurn_APIErrorFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"No auth credentials found","type":"auth_error"}}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeLLM))
	assert.Contains(t, err.Error(), "LLM API error [401]: No auth credentials found (type: auth_error)")
}

func TestChatClient_NextTurn_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeLLM))
	assert.Contains(t, err.Error(), "malformed response")
}

func TestChatClient_NextTurn_InvalidArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"create_edge","arguments":"{source:"}}
		]}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeLLM))
	assert.Contains(t, err.Error(), "invalid JSON arguments")
}

func TestChatClient_NextTurn_RetriesTransient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	turn, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", turn.Content)
	assert.Equal(t, int32(3), hits.Load())
}

func TestChatClient_NextTurn_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM API error [429]")
	assert.Equal(t, int32(3), hits.Load())
}

func TestChatClient_NextTurn_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestChatClient_NextTurn_CircuitOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Breaker = CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour, HalfOpenMax: 1}
	c := NewChatClient(cfg, nil)

	for range 2 {
		_, err := c.NextTurn(context.Background(), seedTurns(), nil)
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, c.Breaker().State())

	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeLLM))
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(2), hits.Load(), "open circuit must not reach the provider")
}

func TestChatClient_NextTurn_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewChatClient(testConfig(srv.URL), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.NextTurn(ctx, seedTurns(), nil)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, CircuitClosed, c.Breaker().State(), "cancellation is not a provider failure")
}

func TestChatClient_NextTurn_CancelledHalfOpenCallFreesSlot(t *testing.T) {
	var mode atomic.Int32 // 0 fail, 1 hang, 2 ok
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch mode.Load() {
		case 0:
			w.WriteHeader(http.StatusBadRequest)
		case 1:
			<-r.Context().Done()
		default:
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`))
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Breaker = CircuitBreakerConfig{FailureThreshold: 1, Cooldown: 20 * time.Millisecond, HalfOpenMax: 1}
	c := NewChatClient(cfg, nil)

	_, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.Error(t, err)
	require.Equal(t, CircuitOpen, c.Breaker().State())
	time.Sleep(30 * time.Millisecond)

	mode.Store(1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = c.NextTurn(ctx, seedTurns(), nil)
	require.Error(t, err)
	require.True(t, IsCancelled(err))

	mode.Store(2)
	turn, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", turn.Content)
	assert.Equal(t, CircuitClosed, c.Breaker().State())
}

func TestChatClient_NextTurn_AcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL), nil)
	turn, err := c.NextTurn(context.Background(), seedTurns(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", turn.Content)
}
