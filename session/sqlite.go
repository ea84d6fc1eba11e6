package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/agentloom/core"
)

// SQLiteStore is a durable SessionStore backed by a local SQLite database.
// Session state is stored as a JSON blob keyed by (app_name, user_id,
// session_id); events are stored row-per-event in insertion order so history
// survives process restarts. A single store can serve multiple applications
// and users.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewSQLiteStore creates or opens a session database at dbPath, creating
// parent directories as needed. The caller owns the store and must Close it.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: dbPath}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// initSchema creates the database schema.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Session state as one JSON blob per (app, user, session)
	CREATE TABLE IF NOT EXISTS sessions (
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id)
	);

	-- Event history, row per event in insertion order
	CREATE TABLE IF NOT EXISTS session_events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		event_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_key ON session_events(app_name, user_id, session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create writes a session row seeded with initialState, replacing any
// existing row under the same key (its events are dropped with it). A
// generated ID is used when sessionID is empty.
func (s *SQLiteStore) Create(appName, userID, sessionID string, initialState map[string]any) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = core.NewID()
	}

	if initialState == nil {
		initialState = map[string]any{}
	}

	stateJSON, err := json.Marshal(initialState)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO sessions (app_name, user_id, session_id, state_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		appName, userID, sessionID, string(stateJSON), now, now,
	); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Recreating a session starts its history over.
	if _, err := tx.Exec(
		`DELETE FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		appName, userID, sessionID,
	); err != nil {
		return nil, fmt.Errorf("failed to reset session events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sess := core.NewSession(appName, userID, sessionID)
	sess.ApplyStateDelta(initialState)
	sess.Created = now
	sess.Updated = now

	return sess, nil
}

// Get loads a session including its full event history, or
// core.ErrSessionNotFound when no row exists.
func (s *SQLiteStore) Get(appName, userID, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stateJSON string
	var created, updated time.Time

	err := s.db.QueryRow(
		`SELECT state_json, created_at, updated_at FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		appName, userID, sessionID,
	).Scan(&stateJSON, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}

	sess := core.NewSession(appName, userID, sessionID)
	sess.ApplyStateDelta(state)
	sess.Created = created
	sess.Updated = updated

	rows, err := s.db.Query(
		`SELECT event_json FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ? ORDER BY seq`,
		appName, userID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(eventJSON), &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}

	return sess, rows.Err()
}

// List returns the session IDs stored for the given application and user.
func (s *SQLiteStore) List(appName, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT session_id FROM sessions WHERE app_name = ? AND user_id = ? ORDER BY created_at`,
		appName, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Delete removes a session and its events. Unknown sessions are a no-op.
func (s *SQLiteStore) Delete(appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_events WHERE app_name = ? AND user_id = ? AND session_id = ?`, appName, userID, sessionID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`, appName, userID, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return tx.Commit()
}

// AppendEvent persists an event row and merges its state delta (if any) into
// the stored state blob within a single transaction. A session row is created
// on first append when the session does not exist yet.
func (s *SQLiteStore) AppendEvent(appName, userID, sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	state, err := s.loadStateTx(tx, appName, userID, sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		now := time.Now().UTC()
		if _, err := tx.Exec(
			`INSERT INTO sessions (app_name, user_id, session_id, state_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			appName, userID, sessionID, "{}", now, now,
		); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		state = map[string]any{}
	} else if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO session_events (app_name, user_id, session_id, event_json) VALUES (?, ?, ?, ?)`,
		appName, userID, sessionID, string(eventJSON),
	); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	for k, v := range ev.Actions.StateDelta {
		state[k] = v
	}

	if err := s.saveStateTx(tx, appName, userID, sessionID, state); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyDelta merges a key/value delta into the stored state blob.
func (s *SQLiteStore) ApplyDelta(appName, userID, sessionID string, delta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	state, err := s.loadStateTx(tx, appName, userID, sessionID)
	if err != nil {
		return err
	}

	for k, v := range delta {
		state[k] = v
	}

	if err := s.saveStateTx(tx, appName, userID, sessionID, state); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) loadStateTx(tx *sql.Tx, appName, userID, sessionID string) (map[string]any, error) {
	var stateJSON string

	err := tx.QueryRow(
		`SELECT state_json FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		appName, userID, sessionID,
	).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}

	return state, nil
}

func (s *SQLiteStore) saveStateTx(tx *sql.Tx, appName, userID, sessionID string, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET state_json = ?, updated_at = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		string(stateJSON), time.Now().UTC(), appName, userID, sessionID,
	); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	return nil
}
