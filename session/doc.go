// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package
// to centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, runner) from depending on concrete storage.
//
// Two backends ship with the framework: the volatile InMemoryStore for tests
// and demos, and the SQLiteStore for durable state that survives process
// restarts. Additional backends (Redis, Postgres, Firestore, etc.) can be
// added without changing any calling code; only the wiring layer needs to
// decide which implementation to instantiate.
package session
