package oms

import "sync"

// sessionSet holds the sessions that are currently logged on. Fill fan-out
// holds the read lock for a whole batch so a logon or logout cannot land in
// the middle of one.
type sessionSet struct {
	mu   sync.RWMutex
	live map[string]struct{}
}

func newSessionSet() *sessionSet {
	return &sessionSet{live: make(map[string]struct{})}
}

func (s *sessionSet) add(session string) {
	s.mu.Lock()
	s.live[session] = struct{}{}
	s.mu.Unlock()
}

func (s *sessionSet) remove(session string) {
	s.mu.Lock()
	delete(s.live, session)
	s.mu.Unlock()
}

func (s *sessionSet) contains(session string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.containsLocked(session)
}

// containsLocked expects the caller to hold mu.
func (s *sessionSet) containsLocked(session string) bool {
	_, ok := s.live[session]
	return ok
}
