package callsession

import "sync"

// SessionFuture is a single-assignment holder for the conversational-agent
// session handle. Session creation is asynchronous; readers poll TryGet.
type SessionFuture struct {
	mu  sync.Mutex
	id  string
	set bool
}

// Set stores the handle. The first assignment wins.
func (f *SessionFuture) Set(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return
	}
	f.id = id
	f.set = true
}

// TryGet returns the handle if it has been assigned.
func (f *SessionFuture) TryGet() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id, f.set
}
