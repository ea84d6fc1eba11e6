package artifact

import "sync"

type artifactKey struct {
	sessionID  string
	artifactID string
}

type record struct {
	data []byte
	rev  int
}

// InMemoryStore keeps artifact payloads in process memory, keyed by
// (session, artifact) pair. Bytes are copied in and out so callers can never
// alias an internal buffer. Each Save bumps the artifact's revision counter,
// mirroring the version numbers that ride on event artifact deltas.
//
// Suitable for tests and single-process runs; use a durable backend when
// artifacts must outlive the process.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[artifactKey]*record
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[artifactKey]*record)}
}

// Save stores a copy of data under (sessionID, artifactID), overwriting any
// previous revision.
func (s *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	key := artifactKey{sessionID, artifactID}
	cp := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		rec.data = cp
		rec.rev++
		return nil
	}
	s.records[key] = &record{data: cp, rev: 1}
	return nil
}

// Get returns a copy of the latest revision or ErrNotFound.
func (s *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[artifactKey{sessionID, artifactID}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec.data...), nil
}

// Version returns the current revision number of an artifact, starting at 1
// for the first Save. Unknown artifacts report ErrNotFound.
func (s *InMemoryStore) Version(sessionID, artifactID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[artifactKey{sessionID, artifactID}]
	if !ok {
		return 0, ErrNotFound
	}
	return rec.rev, nil
}

// List returns the artifact IDs stored for a session, in no particular order.
func (s *InMemoryStore) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for key := range s.records {
		if key.sessionID == sessionID {
			ids = append(ids, key.artifactID)
		}
	}
	return ids, nil
}

// Delete removes an artifact and its revision history. Deleting an unknown
// artifact returns ErrNotFound.
func (s *InMemoryStore) Delete(sessionID, artifactID string) error {
	key := artifactKey{sessionID, artifactID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}
