package conversation

import (
	"fmt"

	"github.com/rendis/agent8/pkg/schema"
)

// Conversation is an append-only ordered list of turns.
// Not safe for concurrent use; a run owns its conversation.
type Conversation struct {
	turns []Turn
}

// New seeds a conversation with the system instruction and the user prompt.
func New(system, prompt string) *Conversation {
	return &Conversation{turns: []Turn{System{Content: system}, User{Content: prompt}}}
}

// Append adds turns at the end.
func (c *Conversation) Append(turns ...Turn) {
	c.turns = append(c.turns, turns...)
}

// Turns returns a copy of the turn list.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Validate checks that every assistant turn with tool calls is answered by
// exactly one tool turn per call, in call order, before the next assistant turn.
// A trailing assistant turn whose calls are still being answered is reported too.
func (c *Conversation) Validate() error {
	var pending []ToolCall
	for i, t := range c.turns {
		switch turn := t.(type) {
		case Assistant:
			if len(pending) > 0 {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"turn %d: assistant turn before tool call %q was answered", i, pending[0].ID)
			}
			pending = append(pending[:0:0], turn.ToolCalls...)
		case Tool:
			if len(pending) == 0 {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"turn %d: tool turn %q answers no pending call", i, turn.CallID)
			}
			if turn.CallID != pending[0].ID {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"turn %d: tool turn %q out of order, expected %q", i, turn.CallID, pending[0].ID)
			}
			pending = pending[1:]
		case System, User:
			if len(pending) > 0 {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"turn %d: %s turn interrupts pending tool calls", i, t.Role())
			}
		default:
			return fmt.Errorf("turn %d: unknown turn type %T", i, t)
		}
	}
	if len(pending) > 0 {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"%d tool call(s) left unanswered", len(pending))
	}
	return nil
}
