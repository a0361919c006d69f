package mcp

import "sync"

// SessionRegistry tracks MCP client sessions that have called a tool.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]int // sessionID → tool calls
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]int)}
}

// Touch records a tool call for the session and returns its call count.
func (r *SessionRegistry) Touch(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID]++
	return r.sessions[sessionID]
}

// Calls returns the number of tool calls seen for the session.
func (r *SessionRegistry) Calls(sessionID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.sessions[sessionID]
	return n, ok
}

// Count returns the number of tracked sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove forgets the session. Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
