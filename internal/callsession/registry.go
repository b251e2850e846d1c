package callsession

import "sync"

// Registry maps each live telephony connection to its session. At most one
// session exists per connection; entries are removed at teardown. The
// registry does not survive a process restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers the session for a connection.
func (r *Registry) Add(connID string, s *Session) {
	r.mu.Lock()
	r.sessions[connID] = s
	r.mu.Unlock()
}

// Get returns the session for a connection, if any.
func (r *Registry) Get(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Remove drops the mapping for a connection.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
