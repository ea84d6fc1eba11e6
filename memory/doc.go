// Package memory provides core.MemoryStore implementations. The store
// interface and SearchResult type reside in the core package; code should
// depend on core.MemoryStore and pick an implementation at wiring time.
package memory
