package conversation

import "encoding/json"

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one message in the conversation. The concrete types are
// System, User, Assistant and Tool.
type Turn interface {
	Role() Role
	isTurn()
}

// System is the immutable seed instruction.
type System struct {
	Content string
}

// User carries the client's prompt.
type User struct {
	Content string
}

// Assistant is a model reply: either terminal text or a non-empty list of tool calls.
type Assistant struct {
	Content   string
	ToolCalls []ToolCall
}

// Tool answers exactly one ToolCall.
type Tool struct {
	CallID  string
	Content string
	IsError bool
}

// ToolCall is a structured request from the model to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (System) Role() Role    { return RoleSystem }
func (User) Role() Role      { return RoleUser }
func (Assistant) Role() Role { return RoleAssistant }
func (Tool) Role() Role      { return RoleTool }

func (System) isTurn()    {}
func (User) isTurn()      {}
func (Assistant) isTurn() {}
func (Tool) isTurn()      {}

// Terminal reports whether the reply ends the run.
func (a Assistant) Terminal() bool {
	return len(a.ToolCalls) == 0
}
