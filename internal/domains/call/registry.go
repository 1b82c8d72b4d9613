package call

import (
	"sync"

	"github.com/google/uuid"

	"github.com/advisorhq/voicebridge/pkg/Logger"
)

// Registry is the single source of truth for which sessions are live.
// Reservation happens synchronously under the lock before any slow
// initialization work, so two near-simultaneous connection attempts for
// the same session id cannot both win.
type Registry struct {
	logger *Logger.Logger

	mu    sync.Mutex
	conns map[string]*CallConnection
}

func NewRegistry(logger *Logger.Logger) *Registry {
	return &Registry{
		logger: logger,
		conns:  make(map[string]*CallConnection),
	}
}

// Reserve atomically claims the session id for conn. Returns false when
// another connection already holds it; the loser must close its own
// socket and leave the winner untouched.
func (r *Registry) Reserve(sessionID string, conn *CallConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[sessionID]; exists {
		return false
	}
	r.conns[sessionID] = conn
	return true
}

// Attach merges late-arriving state (agent link, draft id) into an
// existing reservation.
func (r *Registry) Attach(sessionID string, agent AgentLink, draftID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[sessionID]
	if !ok {
		return
	}
	if agent != nil {
		conn.SetAgent(agent)
	}
	if draftID != uuid.Nil {
		conn.SetDraftID(draftID)
	}
}

// Get returns the live connection for a session id, if any.
func (r *Registry) Get(sessionID string) (*CallConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[sessionID]
	return conn, ok
}

// Remove deletes the entry and reports whether it was present, which
// lets teardown run its effects exactly once.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[sessionID]; !ok {
		return false
	}
	delete(r.conns, sessionID)
	return true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Snapshot copies the live connections for stats reporting.
func (r *Registry) Snapshot() []*CallConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*CallConnection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// CloseAllAgents force-closes every live vendor connection. Called on
// process shutdown so no agent link is abandoned half-open.
func (r *Registry) CloseAllAgents() {
	for _, conn := range r.Snapshot() {
		if agent := conn.Agent(); agent != nil {
			if err := agent.Close(); err != nil {
				r.logger.Errorf("force-closing agent link for session %s: %v", conn.SessionID, err)
			}
		}
	}
}
