package stream

import (
	"sort"
	"sync"
)

// Status is a snapshot of one live session, suitable for logging.
type Status struct {
	ID         string `json:"session_id"`
	RemoteAddr string `json:"client_ip"`
	CloseAfter int    `json:"close_after_ms"`
	State      string `json:"state"`
	EventsSent int64  `json:"events_sent"`
	Created    int64  `json:"created_at"`
}

// Registry tracks the sessions currently being served.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s and returns the number of live sessions.
func (r *Registry) Add(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return len(r.sessions)
}

// Remove forgets s and returns the number of live sessions.
func (r *Registry) Remove(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID)
	return len(r.sessions)
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns the status of every live session, oldest first.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	list := make([]Status, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, Status{
			ID:         s.ID,
			RemoteAddr: s.RemoteAddr,
			CloseAfter: s.CloseAfter,
			State:      s.State().String(),
			EventsSent: s.EventsSent(),
			Created:    s.Created.UnixNano(),
		})
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Created < list[j].Created
	})
	return list
}
