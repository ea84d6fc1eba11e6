package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hupe1980/agentloom/core"
)

var _ core.SessionStore = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)

	if _, err := store.Create("recipe_app", "user-1", "s1", map[string]any{"recipes": []any{}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sess, err := store.Get("recipe_app", "user-1", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.AppName != "recipe_app" || sess.UserID != "user-1" {
		t.Fatalf("identity mismatch: %+v", sess)
	}
	if _, ok := sess.GetState("recipes"); !ok {
		t.Fatal("initial state not persisted")
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)
	_, err := store.Get("app", "u", "missing")
	if !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSQLiteStore_CreateReplacesExisting(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, err := store.Create("app", "u", "s1", map[string]any{"stale": true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.AppendEvent("app", "u", "s1", core.NewMessageEvent("agent", "old turn")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := store.Create("app", "u", "s1", map[string]any{"fresh": true}); err != nil {
		t.Fatalf("recreate: %v", err)
	}

	sess, err := store.Get("app", "u", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := sess.GetState("stale"); ok {
		t.Error("recreate kept old state")
	}
	if v, ok := sess.GetState("fresh"); !ok || v != true {
		t.Errorf("recreate lost new state: %+v", sess.State)
	}
	if len(sess.GetEvents()) != 0 {
		t.Errorf("recreate kept old events: %d", len(sess.GetEvents()))
	}
}

func TestSQLiteStore_StateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sessions.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Create("app", "u", "s1", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.ApplyDelta("app", "u", "s1", map[string]any{"user_name": "Brandon"}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	sess, err := reopened.Get("app", "u", "s1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if v, ok := sess.GetState("user_name"); !ok || v != "Brandon" {
		t.Fatalf("state lost across reopen: %+v", sess.State)
	}
}

func TestSQLiteStore_AppendEventPersistsHistoryAndDelta(t *testing.T) {
	store := newTestSQLiteStore(t)
	store.Create("app", "u", "s1", nil)

	userEv := core.NewUserMessageEvent("run-1", "my favorite color is blue")
	if err := store.AppendEvent("app", "u", "s1", userEv); err != nil {
		t.Fatalf("append user event: %v", err)
	}

	agentEv := core.NewMessageEvent("memory_agent", "Got it, I will remember that.")
	agentEv.Actions.StateDelta = map[string]any{"favorite_color": "blue"}
	if err := store.AppendEvent("app", "u", "s1", agentEv); err != nil {
		t.Fatalf("append agent event: %v", err)
	}

	sess, err := store.Get("app", "u", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	events := sess.GetEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Content == nil || events[0].Content.Text() != "my favorite color is blue" {
		t.Fatalf("event order/content wrong: %+v", events[0])
	}
	if v, ok := sess.GetState("favorite_color"); !ok || v != "blue" {
		t.Fatalf("event delta not merged into stored state: %+v", sess.State)
	}
}

func TestSQLiteStore_AppendEventCreatesSession(t *testing.T) {
	store := newTestSQLiteStore(t)

	ev := core.NewMessageEvent("agent", "first")
	ev.Actions.StateDelta = map[string]any{"seen": "yes"}
	if err := store.AppendEvent("app", "u", "lazy", ev); err != nil {
		t.Fatalf("append: %v", err)
	}

	sess, err := store.Get("app", "u", "lazy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.GetEvents()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sess.GetEvents()))
	}
	if v, ok := sess.GetState("seen"); !ok || v != "yes" {
		t.Fatalf("state delta not merged: %+v", sess.State)
	}
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	store := newTestSQLiteStore(t)
	store.Create("app", "u", "s1", nil)
	store.Create("app", "u", "s2", nil)
	store.Create("app", "other", "s3", nil)

	ids, err := store.List("app", "u")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 sessions, got %v", ids)
	}

	if err := store.Delete("app", "u", "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, _ = store.List("app", "u")
	if len(ids) != 1 || ids[0] != "s2" {
		t.Fatalf("expected only s2 after delete, got %v", ids)
	}
}
