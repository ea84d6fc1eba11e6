// Package agentloom provides a high-level façade over the Runner and the
// service abstractions (sessions, artifacts, memory & logging) enabling rapid
// construction of agent applications. Most programs interact with this
// package by:
//  1. Creating an AgentLoom via New() with an application name and root agent
//     (optionally overriding the default in-memory services)
//  2. Sending user turns asynchronously (Send) or synchronously (SendSync)
//
// Sessions are keyed by (appName, userID, sessionID) and created lazily on
// first contact, so callers only need to pick stable identifiers. All
// defaults are safe for local development and testing; durable deployments
// supply a persistent session store (e.g. session.NewSQLiteStore) and a
// structured logger.
package agentloom

import (
	"context"

	"github.com/hupe1980/agentloom/artifact"
	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/logging"
	"github.com/hupe1980/agentloom/memory"
	"github.com/hupe1980/agentloom/runner"
	"github.com/hupe1980/agentloom/session"
)

// Options configures the AgentLoom instance.
type Options struct {
	// MaxConcurrentInvocations limits the number of agent invocations that
	// can execute simultaneously.
	MaxConcurrentInvocations int

	// EnableStreaming determines whether events are streamed in real-time
	// or buffered until completion.
	EnableStreaming bool

	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int

	// MaxModelCalls limits the number of model calls per run.
	MaxModelCalls int

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentLoom is the high-level façade aggregating the runner and services for
// one application.
type AgentLoom struct {
	opts   Options
	runner *runner.Runner
}

// New creates a new AgentLoom instance for the named application, driven by
// the given root agent. Any unset service is initialized with an in-memory
// implementation.
func New(appName string, rootAgent core.Agent, optFns ...func(o *Options)) *AgentLoom {
	opts := Options{
		MaxConcurrentInvocations: 10,
		EnableStreaming:          true,
		EventBufferSize:          100,
		MaxModelCalls:            100,
		SessionStore:             session.NewInMemoryStore(),
		ArtifactStore:            artifact.NewInMemoryStore(),
		MemoryStore:              memory.NewInMemoryStore(),
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(appName, rootAgent, func(o *runner.Options) {
		o.MaxConcurrentInvocations = opts.MaxConcurrentInvocations
		o.EnableStreaming = opts.EnableStreaming
		o.EventBufferSize = opts.EventBufferSize
		o.MaxModelCalls = opts.MaxModelCalls
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MemoryStore = opts.MemoryStore
		o.Logger = opts.Logger
	})

	return &AgentLoom{opts: opts, runner: r}
}

// Runner exposes the underlying runner for advanced use.
func (m *AgentLoom) Runner() *runner.Runner { return m.runner }

// Sessions exposes the configured session store, e.g. for listing or
// deleting a user's sessions.
func (m *AgentLoom) Sessions() core.SessionStore { return m.opts.SessionStore }

// Send starts an asynchronous turn returning the run ID plus event & error
// channels. The session is created on first use.
func (m *AgentLoom) Send(
	ctx context.Context,
	userID string,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return m.runner.Run(ctx, userID, sessionID, userContent)
}

// SendText is a convenience wrapper around Send for plain text input.
func (m *AgentLoom) SendText(
	ctx context.Context,
	userID string,
	sessionID string,
	text string,
) (string, <-chan core.Event, <-chan error, error) {
	return m.Send(ctx, userID, sessionID, core.NewTextContent("user", text))
}

// SendSync executes a turn and blocks until the agent finishes, returning the
// final response event.
func (m *AgentLoom) SendSync(
	ctx context.Context,
	userID string,
	sessionID string,
	userContent core.Content,
) (*core.Event, error) {
	return m.runner.RunSync(ctx, userID, sessionID, userContent)
}

// SendTextSync is a convenience wrapper around SendSync for plain text input;
// it returns the final response text.
func (m *AgentLoom) SendTextSync(
	ctx context.Context,
	userID string,
	sessionID string,
	text string,
) (string, error) {
	ev, err := m.SendSync(ctx, userID, sessionID, core.NewTextContent("user", text))
	if err != nil {
		return "", err
	}
	if ev.Content == nil {
		return "", nil
	}
	return ev.Content.Text(), nil
}

// Cancel cancels a running turn by its run ID.
func (m *AgentLoom) Cancel(runID string) error { return m.runner.Cancel(runID) }
