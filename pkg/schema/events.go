package schema

import "encoding/json"

// Realtime event names.
const (
	EventGenerateWorkflow = "generate_workflow" // inbound

	EventNodeCreated      = "node_created"
	EventEdgeCreated      = "edge_created"
	EventLog              = "log"
	EventWorkflowComplete = "workflow_complete"
	EventError            = "error"
)

// RunStatus is the lifecycle state of an orchestrator run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ToolSpec describes a callable tool as exposed to the model.
// Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
