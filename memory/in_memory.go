package memory

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/hupe1980/agentloom/core"
)

type snippet struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryStore is a process-local MemoryStore. It holds two things per
// session: a key/value map merged via Put, and an ordered list of stored
// snippets searched by case-insensitive substring match. Every hit scores a
// flat 1.0, so this is a fixture for tests and demos rather than a retrieval
// engine.
type InMemoryStore struct {
	mu       sync.RWMutex
	kv       map[string]map[string]any
	snippets map[string][]snippet
	nextID   int
}

// NewInMemoryStore returns an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		kv:       make(map[string]map[string]any),
		snippets: make(map[string][]snippet),
	}
}

// Get returns a copy of the session's key/value memory.
func (s *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.kv[sessionID]))
	maps.Copy(out, s.kv[sessionID])
	return out, nil
}

// Put merges delta into the session's key/value memory.
func (s *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv[sessionID] == nil {
		s.kv[sessionID] = make(map[string]any, len(delta))
	}
	maps.Copy(s.kv[sessionID], delta)
	return nil
}

// Store appends a snippet to the session's memory under a generated ID.
func (s *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.snippets[sessionID] = append(s.snippets[sessionID], snippet{
		id:       fmt.Sprintf("mem_%d", s.nextID),
		content:  content,
		metadata: metadata,
	})
	return nil
}

// Search scans the session's snippets in insertion order and returns up to
// limit case-insensitive substring matches. An empty query matches everything.
func (s *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	results := []core.SearchResult{}
	for _, sn := range s.snippets[sessionID] {
		if len(results) >= limit {
			break
		}
		if needle != "" && !strings.Contains(strings.ToLower(sn.content), needle) {
			continue
		}
		md := make(map[string]any, len(sn.metadata))
		maps.Copy(md, sn.metadata)
		results = append(results, core.SearchResult{
			ID:       sn.id,
			Content:  sn.content,
			Score:    1.0,
			Metadata: md,
		})
	}
	return results, nil
}

// Delete removes a stored snippet by ID.
func (s *InMemoryStore) Delete(sessionID string, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.snippets[sessionID]
	for i, sn := range list {
		if sn.id == memoryID {
			s.snippets[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memory not found")
}
