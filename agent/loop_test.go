package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/logging"
)

// TestEscalatingAgent is a mock agent that escalates after a certain number of runs
type TestEscalatingAgent struct {
	BaseAgent
	runCount   int
	escalateOn int
}

func NewTestEscalatingAgent(name string, escalateOn int) *TestEscalatingAgent {
	return &TestEscalatingAgent{
		BaseAgent:  NewBaseAgent(name),
		escalateOn: escalateOn,
	}
}

func (t *TestEscalatingAgent) Run(runCtx *core.RunContext) error {
	t.runCount++

	ev := core.NewEvent(runCtx.RunID, t.Name())

	if t.runCount >= t.escalateOn {
		escalate := true
		ev.Actions.Escalate = &escalate
		ev.Content = &core.Content{
			Role: "assistant",
			Parts: []core.Part{core.TextPart{
				Text: "Task complexity exceeds my capabilities, escalating to parent",
			}},
		}
	} else {
		ev.Content = &core.Content{
			Role: "assistant",
			Parts: []core.Part{core.TextPart{
				Text: "Working on task iteration " + string(rune(t.runCount+'0')),
			}},
		}
	}

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}

	return runCtx.WaitForResume()
}

// TestRegularAgent is a mock agent that never escalates
type TestRegularAgent struct {
	BaseAgent
	runCount int
	respond  func(iteration int) string
}

func NewTestRegularAgent(name string) *TestRegularAgent {
	return &TestRegularAgent{BaseAgent: NewBaseAgent(name)}
}

func (t *TestRegularAgent) Run(runCtx *core.RunContext) error {
	t.runCount++

	text := "Working on task iteration " + string(rune(t.runCount+'0'))
	if t.respond != nil {
		text = t.respond(t.runCount)
	}

	ev := core.NewEvent(runCtx.RunID, t.Name())
	ev.Content = &core.Content{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: text}},
	}

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}

	return runCtx.WaitForResume()
}

// newLoopRunContext builds a run context wired to the given channels.
func newLoopRunContext(ctx context.Context, emit chan core.Event, resume chan struct{}) *core.RunContext {
	sess := core.NewSession("test-app", "test-user", "test-session")
	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "go"}}}
	return core.NewRunContext(
		ctx,
		"test-app", "test-user", "test-session", "test-run",
		core.AgentInfo{Name: "TestLoop", Type: "loop"},
		userContent,
		0,
		emit, resume, sess,
		nil, nil, nil, logging.NoOpLogger{},
	)
}

func TestLoopAgent_EscalationHandling(t *testing.T) {
	tests := []struct {
		name               string
		childAgent         core.Agent
		maxIters           int
		expectedIterations int
		shouldEscalate     bool
	}{
		{
			name:               "Agent escalates on iteration 2",
			childAgent:         NewTestEscalatingAgent("escalator", 2),
			maxIters:           5,
			expectedIterations: 2,
			shouldEscalate:     true,
		},
		{
			name:               "Agent never escalates, completes all iterations",
			childAgent:         NewTestRegularAgent("regular"),
			maxIters:           3,
			expectedIterations: 3,
			shouldEscalate:     false,
		},
		{
			name:               "Agent escalates immediately",
			childAgent:         NewTestEscalatingAgent("immediate", 1),
			maxIters:           5,
			expectedIterations: 1,
			shouldEscalate:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loopAgent := NewLoopAgent("TestLoop", tt.childAgent, WithMaxIters(tt.maxIters))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			emitChan := make(chan core.Event, 10)
			resumeChan := make(chan struct{}, 10)
			runCtx := newLoopRunContext(ctx, emitChan, resumeChan)

			var events []core.Event
			var eventWg sync.WaitGroup
			eventWg.Add(1)

			go func() {
				defer eventWg.Done()
				for event := range emitChan {
					events = append(events, event)
					select {
					case resumeChan <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}()

			err := loopAgent.Run(runCtx)

			close(emitChan)
			eventWg.Wait()

			if err != nil {
				t.Errorf("Loop agent returned unexpected error: %v", err)
			}

			if len(events) != tt.expectedIterations {
				t.Errorf("Expected %d events, got %d", tt.expectedIterations, len(events))
			}

			if tt.shouldEscalate && len(events) > 0 {
				lastEvent := events[len(events)-1]
				if lastEvent.Actions.Escalate == nil || !*lastEvent.Actions.Escalate {
					t.Error("Expected last event to have escalation flag set")
				}
			}

			switch child := tt.childAgent.(type) {
			case *TestEscalatingAgent:
				if child.runCount != tt.expectedIterations {
					t.Errorf("Expected escalating agent to run %d times, ran %d times",
						tt.expectedIterations, child.runCount)
				}
			case *TestRegularAgent:
				if child.runCount != tt.expectedIterations {
					t.Errorf("Expected regular agent to run %d times, ran %d times",
						tt.expectedIterations, child.runCount)
				}
			}
		})
	}
}

func TestLoopAgent_PredicateTermination(t *testing.T) {
	child := NewTestRegularAgent("worker")
	child.respond = func(iteration int) string {
		if iteration >= 3 {
			return "result DONE"
		}
		return "still working"
	}

	loopAgent := NewLoopAgent("TestLoop", child,
		WithMaxIters(10),
		WithPredicate(func(output string) bool { return strings.Contains(output, "DONE") }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	emitChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	runCtx := newLoopRunContext(ctx, emitChan, resumeChan)

	var eventWg sync.WaitGroup
	eventWg.Add(1)
	go func() {
		defer eventWg.Done()
		for range emitChan {
			select {
			case resumeChan <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	err := loopAgent.Run(runCtx)
	close(emitChan)
	eventWg.Wait()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.runCount != 3 {
		t.Fatalf("expected 3 iterations before predicate stop, got %d", child.runCount)
	}
}

func TestCreateEscalationEvent(t *testing.T) {
	author := "TestAgent"
	runID := "test-run-123"
	content := &core.Content{
		Role: "assistant",
		Parts: []core.Part{core.TextPart{
			Text: "Cannot complete task, escalating",
		}},
	}

	event := CreateEscalationEvent(runID, author, content)

	if event.Author != author {
		t.Errorf("Expected author %s, got %s", author, event.Author)
	}

	if event.InvocationID != runID {
		t.Errorf("Expected invocation ID %s, got %s", runID, event.InvocationID)
	}

	if event.Actions.Escalate == nil || !*event.Actions.Escalate {
		t.Error("Expected escalation flag to be set to true")
	}

	if event.Content != content {
		t.Error("Expected content to match provided content")
	}

	if event.ID == "" {
		t.Error("Expected event to have generated ID")
	}

	if event.Timestamp.IsZero() {
		t.Error("Expected event to have generated timestamp")
	}
}
