// Package runner implements the core orchestration layer for AgentLoom.
//
// The Runner serves as the central coordination hub that manages the complete
// lifecycle of multi-agent conversations and workflows. It bridges the gap
// between high-level AgentLoom operations and low-level agent implementations,
// providing a robust foundation for scalable agent orchestration.
//
// A Runner is bound to a single application name; sessions it touches are
// keyed by (appName, userID, sessionID) so one store can serve several
// applications side by side. The public façade (agentloom) hides most
// orchestration details for simple setups.
//
// # Responsibilities (abridged)
//   - Agent invocation orchestration (async streaming + sync helper via façade)
//   - Event processing & side‑effect application (session state, artifacts)
//   - Session history persistence
//   - Invocation lifecycle management & cancellation
//
// See runner.go for the operational implementation details.
package runner
