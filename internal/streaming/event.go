package streaming

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rendis/agent8/pkg/schema"
)

// Event is one named outbound message. On the wire it is {"event": ..., "data": ...}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Marshal encodes the event envelope.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// NodeCreatedPayload is the data of a node_created event.
type NodeCreatedPayload struct {
	Node schema.Node `json:"node"`
}

// EdgeCreatedPayload is the data of an edge_created event.
type EdgeCreatedPayload struct {
	Edge schema.Edge `json:"edge"`
}

// CompletePayload is the data of a workflow_complete event.
type CompletePayload struct {
	Status string `json:"status"`
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

func NodeCreated(n schema.Node) Event {
	return Event{Name: schema.EventNodeCreated, Data: NodeCreatedPayload{Node: n}}
}

func EdgeCreated(e schema.Edge) Event {
	return Event{Name: schema.EventEdgeCreated, Data: EdgeCreatedPayload{Edge: e}}
}

// Log builds a log event stamped with a fresh 8-hex id and the current time.
func Log(level schema.LogLevel, message string) Event {
	return Event{Name: schema.EventLog, Data: schema.LogEntry{
		ID:        logID(),
		Timestamp: time.Now().UnixMilli(),
		Level:     level,
		Message:   message,
	}}
}

func WorkflowComplete() Event {
	return Event{Name: schema.EventWorkflowComplete, Data: CompletePayload{Status: "done"}}
}

func Error(message string) Event {
	return Event{Name: schema.EventError, Data: ErrorPayload{Message: message}}
}

func logID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
