package session

import (
	"sort"
	"sync"

	"remcon/pkg/logger"
)

// HandlerTable is the registration surface the registry tears down when a
// session goes away. The dispatch router implements it.
type HandlerTable interface {
	DropSession(sessionID string)
}

// Registry is the process-wide table of live sessions, keyed by agent
// identity.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	table    HandlerTable
	log      *logger.Logger
}

// NewRegistry creates a registry that tears down handler registrations
// through the given table on unregister.
func NewRegistry(table HandlerTable) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		table:    table,
		log:      logger.Get().With("component", "registry"),
	}
}

// Register adds a session to the registry. A session already registered
// under the same identity is torn down and replaced; the newer connection
// wins. The registry unregisters the session automatically when it
// disconnects.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	old, exists := r.sessions[s.id]
	r.sessions[s.id] = s
	r.mu.Unlock()

	if exists && old != s {
		r.log.Info("replacing existing session", "agent", s.id)
		r.table.DropSession(old.id)
		old.Disconnect()
	}

	s.SubscribeState(func(connected bool) {
		if !connected {
			r.unregisterSession(s)
		}
	})

	// State events are not replayed to late subscribers: a session that
	// disconnected before the subscription took effect is evicted here.
	if s.State() == StateDisconnected {
		r.unregisterSession(s)
		return
	}

	r.log.Info("session registered", "agent", s.id)
}

// Unregister removes the session for the given identity. Handler
// registrations are torn down synchronously before removal completes.
// Unregistering an unknown identity is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.table.DropSession(id)
	s.Disconnect()
	r.log.Info("session unregistered", "agent", id)
}

// unregisterSession removes s only if it is still the registered session
// for its identity, so a replaced connection cannot evict its successor.
func (r *Registry) unregisterSession(s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[s.id]
	if ok && current == s {
		delete(r.sessions, s.id)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.table.DropSession(s.id)
	r.log.Info("session unregistered", "agent", s.id)
}

// Get returns the session for the given identity
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// All returns a snapshot of all live sessions ordered by agent identity.
// Callers may iterate it without observing concurrent mutation.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].id < sessions[j].id
	})
	return sessions
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
