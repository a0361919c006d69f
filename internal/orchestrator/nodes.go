package orchestrator

import "sync"

// NodeSet is the set of node ids placed in a session.
type NodeSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewNodeSet() *NodeSet {
	return &NodeSet{ids: make(map[string]struct{})}
}

func (s *NodeSet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *NodeSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *NodeSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
