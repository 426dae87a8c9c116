package session

import (
	"sync"
	"time"

	"github.com/pagegate/pagegate/pkg/access"
)

// Registry is the set of live sessions, keyed by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session for the given caller and channel, returning
// it with a fresh unique id.
func (r *Registry) Create(user string, perms access.PermissionRecord, ch Channel) *Session {
	s := &Session{
		ID:          newID(),
		User:        user,
		Permissions: perms.Clone(),
		CreatedAt:   time.Now().UTC(),
		channel:     ch,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the live session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy removes a session and releases its channel. Destroying an unknown
// or already-destroyed id is a no-op.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		s.release()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DestroyAll tears down every live session. Used on shutdown.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.release()
	}
}
