package session

import (
	"sync"

	"github.com/hupe1980/agentloom/core"
)

type sessionKey struct{ app, user, id string }

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map keyed by (app, user, session). It is safe
// for concurrent access and best suited for tests or ephemeral demo servers.
// Each returned session is cloned to prevent external mutation of internal
// state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[sessionKey]*core.Session)}
}

// Create creates a session seeded with initialState, replacing any existing
// session under the same key. A generated ID is used when sessionID is empty.
func (s *InMemoryStore) Create(appName, userID, sessionID string, initialState map[string]any) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = core.NewID()
	}

	sess := core.NewSession(appName, userID, sessionID)
	if len(initialState) > 0 {
		sess.ApplyStateDelta(initialState)
	}
	s.sessions[sessionKey{appName, userID, sessionID}] = sess

	return sess.Clone(), nil
}

// Get returns a clone of an existing session or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(appName, userID, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey{appName, userID, sessionID}]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	return sess.Clone(), nil
}

// List returns the session IDs stored for the given application and user.
func (s *InMemoryStore) List(appName, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for key := range s.sessions {
		if key.app == appName && key.user == userID {
			ids = append(ids, key.id)
		}
	}

	return ids, nil
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *InMemoryStore) Delete(appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{appName, userID, sessionID})
	return nil
}

// AppendEvent adds an event to a session and merges its state delta. The
// session is created lazily when it does not exist yet.
func (s *InMemoryStore) AppendEvent(appName, userID, sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{appName, userID, sessionID}
	sess, ok := s.sessions[key]
	if !ok {
		sess = core.NewSession(appName, userID, sessionID)
		s.sessions[key] = sess
	}

	sess.AddEvent(ev)
	if len(ev.Actions.StateDelta) > 0 {
		sess.ApplyStateDelta(ev.Actions.StateDelta)
	}

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(appName, userID, sessionID string, delta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey{appName, userID, sessionID}]
	if !ok {
		return core.ErrSessionNotFound
	}

	sess.ApplyStateDelta(delta)

	return nil
}
