package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloom/artifact"
	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/logging"
	"github.com/hupe1980/agentloom/memory"
	"github.com/hupe1980/agentloom/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits concurrent agent invocations.
	MaxConcurrentInvocations int
	// EnableStreaming toggles real-time event streaming vs buffered.
	EnableStreaming bool
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run.
	MaxModelCalls int
	// Session management services.
	SessionStore core.SessionStore
	// Artifact management services.
	ArtifactStore core.ArtifactStore
	// Memory management services.
	MemoryStore core.MemoryStore
	// Logging services.
	Logger logging.Logger
}

// Runner coordinates agent execution for one application: it resolves
// sessions, creates run contexts, streams events, applies side‑effects, and
// persists history. Sessions are keyed by (appName, userID, sessionID) so a
// single store can back many runners. Public methods are safe for concurrent
// use.
type Runner struct {
	appName string
	agent   core.Agent

	maxConcurrentInvocations int
	enableStreaming          bool
	eventBufferSize          int
	maxModelCalls            int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner for the named application with optional overrides.
func New(appName string, agent core.Agent, optFns ...func(o *Options)) *Runner {
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

	return &Runner{
		appName:                  appName,
		agent:                    agent,
		maxConcurrentInvocations: opts.MaxConcurrentInvocations,
		enableStreaming:          opts.EnableStreaming,
		eventBufferSize:          opts.EventBufferSize,
		maxModelCalls:            opts.MaxModelCalls,
		sessionStore:             opts.SessionStore,
		artifactStore:            opts.ArtifactStore,
		memoryStore:              opts.MemoryStore,
		logger:                   opts.Logger,
		activeRuns:               make(map[string]context.CancelFunc),
	}
}

// AppName returns the application name this runner serves.
func (r *Runner) AppName() string { return r.appName }

// SessionStore exposes the backing session store, e.g. for listing a user's
// sessions before resuming one.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// resolveSession loads the session or lazily creates it on first contact.
func (r *Runner) resolveSession(userID, sessionID string) (*core.Session, error) {
	sess, err := r.sessionStore.Get(r.appName, userID, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess, err = r.sessionStore.Create(r.appName, userID, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("runner created session app=%s user=%s session=%s", r.appName, userID, sess.ID)

	return sess, nil
}

// Run starts an asynchronous invocation for the given user and session. The
// session is created on first use.
func (r *Runner) Run(
	ctx context.Context,
	userID string,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.resolveSession(userID, sessionID)
	if err != nil {
		return "", nil, nil, err
	}
	sessionID = sess.ID

	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	agentInfo := core.AgentInfo{Name: r.agent.Name(), Type: "unknown"}

	runCtx := core.NewRunContext(
		ctx,
		r.appName,
		userID,
		sessionID,
		runID,
		agentInfo,
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.artifactStore,
		r.memoryStore,
		r.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(r.appName, userID, sessionID, userEvent); err != nil {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	go func() {
		defer func() {
			close(agentEmit)
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
		}()

		if err := r.runAgent(runCtx); err != nil {
			select {
			case <-runCtx.Done():
				return
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()

		r.processEvents(runCtx, userID, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync executes a turn and blocks until the agent finishes, returning the
// final response event. Intermediate events (partials, tool responses) are
// discarded.
func (r *Runner) RunSync(
	ctx context.Context,
	userID string,
	sessionID string,
	userContent core.Content,
) (*core.Event, error) {
	_, eventsCh, errorsCh, err := r.Run(ctx, userID, sessionID, userContent)
	if err != nil {
		return nil, err
	}

	var final *core.Event
	for ev := range eventsCh {
		if ev.IsPartial() {
			continue
		}
		e := ev
		final = &e
	}

	if err := <-errorsCh; err != nil {
		return final, err
	}
	if final == nil {
		return nil, errors.New("agent produced no response")
	}
	if final.ErrorMessage != nil {
		return final, errors.New(*final.ErrorMessage)
	}

	return final, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

func (r *Runner) runAgent(runCtx *core.RunContext) error {
	if err := r.agent.Start(runCtx); err != nil {
		return err
	}

	// Ensure the agent is stopped when the run context is done
	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			r.logger.Warn("error stopping agent %s: %v", r.agent.Name(), err)
		}
	}()

	return r.agent.Run(runCtx)
}

func (r *Runner) processEvents(
	runCtx *core.RunContext,
	userID string,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}
			if err := r.applyEventActions(userID, sessionID, ev); err != nil {
				select {
				case <-runCtx.Done():
					return
				case errorsCh <- fmt.Errorf("failed to process event actions: %w", err):
				}
				return
			}
			if !ev.IsPartial() {
				if err := r.sessionStore.AppendEvent(r.appName, userID, sessionID, ev); err != nil {
					select {
					case <-runCtx.Done():
						return
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}
					return
				}
			}
			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
				r.logger.Debug("runner delivered event event_id=%s session_id=%s", ev.ID, sessionID)
			}
			// Every non-partial emission has exactly one waiter blocked on the
			// resume channel, so the send must not be dropped; a dropped
			// signal would stall a parallel branch until context timeout.
			if !ev.IsPartial() {
				select {
				case <-runCtx.Done():
					return
				case resumeCh <- struct{}{}:
				}
			}
		}
	}
}

func (r *Runner) applyEventActions(userID, sessionID string, ev core.Event) error {
	// StateDelta is persisted together with the event in AppendEvent; apply it
	// separately only for partial events that never reach the store.
	if ev.IsPartial() && len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(r.appName, userID, sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		r.logger.Debug("runner.event.transfer_to_agent target=%s session_id=%s", *ev.Actions.TransferToAgent, sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate session_id=%s", sessionID)
	}

	return nil
}
