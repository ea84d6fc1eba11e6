// Package artifact provides core.ArtifactStore implementations. The store
// interface lives in the core package so callers depend on the contract
// rather than a concrete backend; this package supplies the in-memory
// implementation used by tests and the example programs.
package artifact
