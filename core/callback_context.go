package core

import (
	"context"

	"github.com/hupe1980/agentloom/logging"
)

// CallbackContext is the read-mostly view handed to lifecycle callbacks
// (before/after agent, before/after model). Callbacks can inspect identifiers
// and conversation history, and stage state mutations that ride on the next
// emitted event. They cannot emit events directly; short-circuiting is
// expressed through the callback return value instead.
type CallbackContext struct {
	runCtx *RunContext

	*loggerAdapter
}

// NewCallbackContext wraps a RunContext for consumption by lifecycle callbacks.
func NewCallbackContext(runCtx *RunContext) *CallbackContext {
	return &CallbackContext{
		runCtx:        runCtx,
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the ambient cancellation context.
func (cc *CallbackContext) Context() context.Context { return cc.runCtx.Context }

// AppName returns the application name for the current run.
func (cc *CallbackContext) AppName() string { return cc.runCtx.AppName }

// UserID returns the user ID for the current run.
func (cc *CallbackContext) UserID() string { return cc.runCtx.UserID }

// SessionID returns the session ID for the current run.
func (cc *CallbackContext) SessionID() string { return cc.runCtx.SessionID }

// RunID returns the run ID for the current run.
func (cc *CallbackContext) RunID() string { return cc.runCtx.RunID }

// AgentName returns the name of the agent the callback fires for.
func (cc *CallbackContext) AgentName() string { return cc.runCtx.Agent.Name }

// Logger returns the logger for the current run.
func (cc *CallbackContext) Logger() logging.Logger { return cc.loggerAdapter.Logger() }

// UserContent returns the triggering user content for this run.
func (cc *CallbackContext) UserContent() Content { return cc.runCtx.UserContent }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (cc *CallbackContext) GetState(k string) (any, bool) { return cc.runCtx.GetState(k) }

// SetState stages a state mutation that will ride on the next emitted event.
func (cc *CallbackContext) SetState(k string, v any) { cc.runCtx.SetState(k, v) }

// StateSnapshot returns a copy of the merged view of persisted state plus
// staged deltas.
func (cc *CallbackContext) StateSnapshot() map[string]any {
	var snap map[string]any
	if cc.runCtx.Session != nil {
		snap = cc.runCtx.Session.StateSnapshot()
	} else {
		snap = map[string]any{}
	}
	for k, v := range cc.runCtx.StagedStateDelta() {
		snap[k] = v
	}
	return snap
}

// GetConversationHistory returns the filtered conversation history.
func (cc *CallbackContext) GetConversationHistory() []Event {
	if cc.runCtx.Session == nil {
		return nil
	}
	return cc.runCtx.Session.GetConversationHistory()
}
