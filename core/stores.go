package core

import "errors"

// ErrSessionNotFound is returned by SessionStore implementations when no
// session exists for the requested (appName, userID, sessionID) triple.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions and their evolving state / event history.
// Sessions are scoped by application and user so a single store can serve
// multiple applications and users without collisions. Implementations must be
// safe for concurrent use.
type SessionStore interface {
	// Create creates a session seeded with initialState, replacing any
	// existing session with the same key. If sessionID is empty,
	// implementations generate one.
	Create(appName, userID, sessionID string, initialState map[string]any) (*Session, error)
	// Get returns the session or ErrSessionNotFound.
	Get(appName, userID, sessionID string) (*Session, error)
	// List returns the session IDs for the given application and user.
	List(appName, userID string) ([]string, error)
	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(appName, userID, sessionID string) error
	// AppendEvent persists an event and merges its state delta (if any) into
	// the stored session state. Appending to a session that does not exist
	// creates it.
	AppendEvent(appName, userID, sessionID string, event Event) error
	// ApplyDelta merges a state delta into the stored session state without
	// recording an event.
	ApplyDelta(appName, userID, sessionID string, delta map[string]any) error
}

// ArtifactStore defines the interface for artifact persistence. Implementations
// should be thread-safe and scope artifacts by session identifier. Short method
// names (Save/Get/List/Delete) mirror other store interfaces for consistency.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// MemoryStore defines persistence + retrieval (search) for conversational
// memory snippets. Implementations can back search with embeddings, keywords
// or any heuristic. Short method names align with other *Store interfaces.
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}

// SearchResult represents a retrieved memory item with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
