// Package core provides the foundational domain types, interfaces and execution
// contexts used by AgentLoom. It defines the core abstractions for:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (stateful conversational containers scoped by app and user)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext / CallbackContext (scoped execution surfaces)
//   - Pluggable stores for session state, artifacts and memory recall/search
//
// The package intentionally keeps implementation concerns (persistence, runner
// orchestration, concrete agents) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
