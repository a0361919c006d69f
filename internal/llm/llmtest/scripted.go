package llmtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rendis/agent8/internal/conversation"
	"github.com/rendis/agent8/pkg/schema"
)

// Reply is one scripted model response.
type Reply struct {
	Turn conversation.Assistant
	Err  error
	// Block waits for ctx cancellation instead of replying.
	Block bool
}

// Text is a terminal reply.
func Text(content string) Reply {
	return Reply{Turn: conversation.Assistant{Content: content}}
}

// Calls is a reply requesting the given tool calls.
func Calls(calls ...conversation.ToolCall) Reply {
	return Reply{Turn: conversation.Assistant{ToolCalls: calls}}
}

// Fail is a reply that errors.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Block is a reply that never arrives until the run is cancelled.
func Block() Reply {
	return Reply{Block: true}
}

// Call builds a tool call.
func Call(id, name, args string) conversation.ToolCall {
	return conversation.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

// Scripted is a Client that replays a fixed list of replies.
// When Repeat is set, the last reply is returned forever once the script runs out.
type Scripted struct {
	Repeat bool

	mu      sync.Mutex
	replies []Reply
	next    int
	calls   [][]conversation.Turn
	specs   [][]schema.ToolSpec
	started chan struct{}
	once    sync.Once
}

// NewScripted creates a client that returns replies in order.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies, started: make(chan struct{})}
}

// NextTurn records the request and returns the next scripted reply.
func (s *Scripted) NextTurn(ctx context.Context, turns []conversation.Turn, specs []schema.ToolSpec) (conversation.Assistant, error) {
	s.mu.Lock()
	snapshot := make([]conversation.Turn, len(turns))
	copy(snapshot, turns)
	s.calls = append(s.calls, snapshot)
	s.specs = append(s.specs, specs)

	var r Reply
	switch {
	case s.next < len(s.replies):
		r = s.replies[s.next]
		s.next++
	case s.Repeat && len(s.replies) > 0:
		r = s.replies[len(s.replies)-1]
	default:
		s.mu.Unlock()
		return conversation.Assistant{}, schema.NewError(schema.ErrCodeLLM, "script exhausted")
	}
	s.mu.Unlock()

	if r.Block {
		s.once.Do(func() { close(s.started) })
		<-ctx.Done()
		return conversation.Assistant{}, schema.NewError(schema.ErrCodeCancelled, "llm call cancelled").WithCause(ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		return conversation.Assistant{}, schema.NewError(schema.ErrCodeCancelled, "llm call cancelled").WithCause(err)
	}
	return r.Turn, r.Err
}

// Blocked is closed once a Block reply is waiting on its context.
func (s *Scripted) Blocked() <-chan struct{} {
	return s.started
}

// Requests returns the conversation snapshot sent on each call.
func (s *Scripted) Requests() [][]conversation.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]conversation.Turn, len(s.calls))
	copy(out, s.calls)
	return out
}

// Specs returns the tool list sent on each call.
func (s *Scripted) Specs() [][]schema.ToolSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]schema.ToolSpec, len(s.specs))
	copy(out, s.specs)
	return out
}

// CallCount returns how many times NextTurn ran.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
