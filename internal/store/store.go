package store

import (
	"context"
	"time"
)

// Store defines the run audit persistence contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRun(ctx context.Context, id string, update RunUpdate) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// Tool calls (append-only)
	AppendToolCall(ctx context.Context, call *ToolCall) error
	ListToolCalls(ctx context.Context, runID string) ([]*ToolCall, error)

	// Maintenance
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
