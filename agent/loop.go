// Package agent provides loop-based execution coordination for repetitive tasks.
//
// LoopAgent executes a single child agent repeatedly with configurable termination
// controls (max iterations, predicate, interval, escalation monitoring).

package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloom/core"
)

// ErrEscalated is returned when a child agent signals escalation.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent coordinates the repeated execution of a child agent.
//
// This agent type enables iterative workflows by executing a child agent
// multiple times with configurable termination conditions. The loop can
// be controlled by maximum iterations, custom predicates, interval timing,
// and error handling strategies.
//
// Key features:
//   - Configurable maximum iteration limits
//   - Custom termination predicates based on output
//   - Interval timing between iterations
//   - Flexible error handling (stop or continue)
//   - Context cancellation support
//   - Shared session state across iterations
//
// LoopAgent is ideal for:
//   - Monitoring and polling scenarios
//   - Iterative data processing workflows
//   - Retry logic with custom conditions
//   - Periodic task execution
//   - Workflows requiring convergence checking
type LoopAgent struct {
	BaseAgent
	child       core.Agent        // Child agent to execute repeatedly
	maxIters    int               // Maximum number of iterations allowed
	interval    time.Duration     // Time delay between iterations
	stopOnError bool              // Whether to stop execution on child agent errors
	predicate   func(string) bool // Custom termination condition based on output
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Defaults: 100 iterations, no interval, stop on first error.
//
// Default configuration:
//   - Maximum 100 iterations
//   - No interval between iterations
//   - Stop execution on errors
//   - No custom termination predicate
//
// Parameters:
//   - name: Human-readable name for the coordinator
//   - child: Agent to execute iteratively
//   - opts: Configuration options for loop behavior
//
// Returns a configured LoopAgent ready for iterative execution.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		maxIters:    100,
		interval:    0,
		stopOnError: true,
	}

	for _, o := range opts {
		o(la)
	}

	return la
}

// LoopOption defines a configuration function for customizing LoopAgent behavior.
type LoopOption func(*LoopAgent)

// WithMaxIters sets the maximum number of iterations for the loop.
//
// The loop will terminate after this many iterations even if other
// termination conditions are not met. Set to a reasonable value to
// prevent infinite loops.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval sets the time delay between loop iterations.
//
// This is useful for rate limiting, polling scenarios, or giving
// external systems time to process between iterations. Set to 0
// for no delay between iterations.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithPredicate sets a custom termination condition based on output.
//
// The predicate function receives the string output from the child agent
// and should return true to terminate the loop early. This enables
// sophisticated termination logic based on agent responses.
//
// Example:
//
//	WithPredicate(func(output string) bool {
//	    return strings.Contains(output, "COMPLETE")
//	})
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// Run executes the child agent repeatedly according to configuration.
//
// This method implements the iterative execution pattern with escalation support:
//  1. Starts the loop agent coordinator
//  2. Executes the child agent up to maxIters times
//  3. Monitors events for escalation signals from child agents
//  4. Checks custom predicate for early termination
//  5. Applies interval delays between iterations
//  6. Handles errors according to stopOnError setting
//  7. Respects context cancellation throughout execution
//  8. Manages cleanup and lifecycle
//
// The same RunContext is passed to all iterations, allowing
// the child agent to accumulate state across loop executions.
//
// If a child agent emits an event with Escalate=true, the loop immediately
// terminates and forwards the escalation event, following the Google ADK pattern.
//
// Parameters:
//   - runCtx: Shared context maintained across all iterations
//
// Returns an error if execution fails or if configured to stop on child errors.
// Run implements core.Agent performing iterative execution with escalation
// detection. It returns early (nil error) on escalation events.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	// Execute the loop with configured termination conditions and escalation monitoring
	for i := 0; i < l.maxIters; i++ {
		// Check for context cancellation
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}

		runCtx.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", i+1)

		// Execute child agent with monitoring for escalation
		output, childErr := l.runChildWithEscalationMonitoring(runCtx)

		// Handle escalation - if child escalated, stop immediately
		if errors.Is(childErr, ErrEscalated) {
			runCtx.LogInfo("agent.loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil // Escalation is not an error, just early termination
		}

		// Handle other errors
		if childErr != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, l.child.Name(), childErr)
			}
			runCtx.LogWarn("agent.loop.iteration_failed", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
			// Continue loop if configured to ignore errors
		}

		// Check custom termination predicate against the child's final output
		if l.predicate != nil && l.predicate(output) {
			runCtx.LogInfo("agent.loop.predicate_met", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		// Apply interval delay between iterations (except after last iteration)
		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(l.interval):
				// Continue to next iteration
			}
		}
	}

	runCtx.LogDebug("agent.loop.complete", "agent", l.Name(), "iterations", l.maxIters)

	return nil
}

// runChildWithEscalationMonitoring executes the child while intercepting emitted events
// to detect escalation flags before forwarding to the parent context. It also
// captures the child's final text output for predicate evaluation.
func (l *LoopAgent) runChildWithEscalationMonitoring(runCtx *core.RunContext) (string, error) {
	// Create intercepting channels and derive a child context using helper
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childInvocationCtx := runCtx.NewChildContext(interceptChan, resumeChan, runCtx.Branch)

	// Channel to communicate child execution completion
	done := make(chan error, 1)

	// Run child agent in a separate goroutine
	go func() {
		defer close(done)
		done <- l.child.Run(childInvocationCtx)
	}()

	var lastText string

	// Monitor events and forward them, checking for escalation
	for {
		select {
		case event, ok := <-interceptChan:
			if !ok {
				// Child closed the channel, wait for completion
				return lastText, <-done
			}

			if event.Content != nil && !event.IsPartial() {
				if text := event.Content.Text(); text != "" {
					lastText = text
				}
			}

			escalated := event.Actions.Escalate != nil && *event.Actions.Escalate
			if escalated {
				runCtx.LogDebug("agent.loop.escalation_event", "agent", l.Name())
			}

			if err := l.forwardEvent(runCtx, event); err != nil {
				return lastText, err
			}

			// The child blocks on its resume channel after non-partial
			// events; release it only once the parent has persisted.
			if !event.IsPartial() {
				select {
				case resumeChan <- struct{}{}:
				case <-runCtx.Done():
					return lastText, runCtx.Err()
				}
			}

			if escalated {
				<-done
				return lastText, ErrEscalated
			}

		case err := <-done:
			// Child completed without escalation. Forward anything still
			// buffered before reporting.
			for {
				select {
				case event := <-interceptChan:
					if fwdErr := l.forwardEvent(runCtx, event); fwdErr != nil {
						return lastText, fwdErr
					}
				default:
					return lastText, err
				}
			}

		case <-runCtx.Done():
			return lastText, runCtx.Err()
		}
	}
}

// forwardEvent relays a child event to the parent context and, for events the
// runner persists, consumes the parent's resume signal so the child never
// observes stale session state on its next refresh.
func (l *LoopAgent) forwardEvent(runCtx *core.RunContext, event core.Event) error {
	if err := runCtx.EmitEvent(event); err != nil {
		return err
	}

	if !event.IsPartial() {
		return runCtx.WaitForResume()
	}

	return nil
}

// CreateEscalationEvent creates an event that signals escalation to the parent agent.
//
// This helper function creates a properly formatted event with the escalation flag set,
// following the Google ADK escalation pattern. Agents can use this to create escalation
// events when they determine that they cannot complete their task and need to escalate
// to a higher level agent.
//
// Parameters:
//   - author: Name of the agent creating the escalation event
//   - invocationID: Current invocation context identifier
//   - content: Optional content describing the reason for escalation
//
// Returns a fully configured Event with Escalate=true.
//
// Example usage:
//
//	event := CreateEscalationEvent(
//	    "TaskAgent",
//	    ctx.InvocationID,
//	    &event.Content{
//	        Role: "assistant",
//	        Parts: []event.Part{event.TextPart{Text: "Task complexity exceeds my capabilities"}},
//	    },
//	)
//	return ctx.EmitEvent(event)
//
// CreateEscalationEvent helper for constructing an escalation signal event.
func CreateEscalationEvent(invocationID, author string, content *core.Content) core.Event {
	escalate := true
	ev := core.NewEvent(invocationID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content
	return ev
}
