package core

import (
	"context"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...interface{}) {}
func (l testLogger) Info(string, ...interface{})  {}
func (l testLogger) Warn(string, ...interface{})  {}
func (l testLogger) Error(string, ...interface{}) {}
func (l testLogger) Fatal(string, ...interface{}) {}

type rcMockSessionStore struct {
	applied map[string]map[string]interface{}
}

func (s *rcMockSessionStore) Get(app, user, id string) (*Session, error) {
	return NewSession(app, user, id), nil
}

func (s *rcMockSessionStore) Create(app, user, id string, initial map[string]any) (*Session, error) {
	sess := NewSession(app, user, id)
	sess.ApplyStateDelta(initial)
	return sess, nil
}

func (s *rcMockSessionStore) List(app, user string) ([]string, error) { return []string{}, nil }

func (s *rcMockSessionStore) Delete(app, user, id string) error { return nil }

func (s *rcMockSessionStore) AppendEvent(app, user, id string, ev Event) error { return nil }

func (s *rcMockSessionStore) ApplyDelta(app, user, id string, delta map[string]interface{}) error {
	if s.applied == nil {
		s.applied = map[string]map[string]interface{}{}
	}
	cp := map[string]interface{}{}
	for k, v := range delta {
		cp[k] = v
	}
	s.applied[id] = cp
	return nil
}

type rcMockArtifactStore struct{ saved map[string]map[string][]byte }

func (a *rcMockArtifactStore) Save(sid, aid string, data []byte) error {
	if a.saved == nil {
		a.saved = map[string]map[string][]byte{}
	}
	if _, ok := a.saved[sid]; !ok {
		a.saved[sid] = map[string][]byte{}
	}
	a.saved[sid][aid] = append([]byte{}, data...)
	return nil
}
func (a *rcMockArtifactStore) Get(sid, aid string) ([]byte, error) {
	if a.saved == nil {
		return nil, nil
	}
	if m, ok := a.saved[sid]; ok {
		return m[aid], nil
	}
	return nil, nil
}
func (a *rcMockArtifactStore) List(sid string) ([]string, error) {
	if a.saved == nil {
		return []string{}, nil
	}
	m := a.saved[sid]
	res := []string{}
	for k := range m {
		res = append(res, k)
	}
	return res, nil
}
func (a *rcMockArtifactStore) Delete(sid, aid string) error { return nil }

type rcMockMemoryStore struct{}

func (m *rcMockMemoryStore) Get(sessionID string) (map[string]any, error) {
	return map[string]any{}, nil
}
func (m *rcMockMemoryStore) Put(sessionID string, delta map[string]any) error { return nil }
func (m *rcMockMemoryStore) Search(sid, q string, limit int) ([]SearchResult, error) {
	return []SearchResult{}, nil
}
func (m *rcMockMemoryStore) Store(sid, content string, metadata map[string]interface{}) error {
	return nil
}
func (m *rcMockMemoryStore) Delete(sid, memoryID string) error { return nil }

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)
	sess := NewSession("app-x", "user-x", "sess-x")
	sStore := &rcMockSessionStore{}
	aStore := &rcMockArtifactStore{}
	mStore := &rcMockMemoryStore{}
	return NewRunContext(context.Background(), "app-x", "user-x", "sess-x", "run-x", AgentInfo{Name: "Agent1", Type: "test"}, Content{}, 0, emit, resume, sess, sStore, aStore, mStore, testLogger{}), emit
}
