package store

import (
	"time"

	"github.com/rendis/agent8/pkg/schema"
)

// Run is the persisted metadata of one orchestrator run.
type Run struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"session_id"`
	Prompt      string           `json:"prompt"`
	Model       string           `json:"model,omitempty"`
	Status      schema.RunStatus `json:"status"`
	Iterations  int              `json:"iterations"`
	ToolCalls   int              `json:"tool_calls"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// RunUpdate holds optional fields for updating a run.
type RunUpdate struct {
	Status      *schema.RunStatus
	Iterations  *int
	ToolCalls   *int
	Error       *string
	CompletedAt *time.Time
}

// RunFilter controls ListRuns results.
type RunFilter struct {
	SessionID string
	Status    *schema.RunStatus
	Since     *time.Time
	Limit     int
	Offset    int
}

// ToolCall is the audit entry for one dispatched tool call.
// Arguments and results are never stored.
type ToolCall struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Seq        int64     `json:"seq"`
	CallID     string    `json:"call_id"`
	Tool       string    `json:"tool"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
