package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/internal/util"
	"github.com/hupe1980/agentloom/model"
	"github.com/hupe1980/agentloom/tool"
)

// BaseFlow is a minimal single-agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post
// processors and before/after model callbacks.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	functionExecutor   FunctionExecutor
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		functionExecutor:   NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the default tool call executor.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.functionExecutor = executor
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response is emitted or an unrecoverable
// error occurs. Callers should range over the returned channel.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for {
			last := f.runOnce(runCtx, eventChan)
			if last == nil {
				break
			}
			// A function response means the model gets another turn
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}
			if last.IsPartial() {
				runCtx.LogWarn("flow.unexpected_partial_tail", "agent", f.agent.GetName())
				break
			}
			if last.IsFinalResponse() {
				break
			}
		}
	}()

	return eventChan, nil
}

// emitError converts an internal error to a system Event. Error events are
// non-partial and therefore persisted by the runner, so the flow must consume
// the matching resume signal like any other non-partial emission.
func (f *BaseFlow) emitError(runCtx *core.RunContext, eventChan chan<- core.Event, err error) {
	ev := core.NewEvent(runCtx.RunID, "system")
	msg := err.Error()
	ev.ErrorMessage = &msg
	eventChan <- ev

	if runCtx.Resume != nil {
		select {
		case <-runCtx.Context.Done():
		case <-runCtx.Resume:
		}
	}
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event (final or intermediate). A nil return signals termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) *core.Event {
	// Refresh session snapshot so request processors see the latest
	// conversation (including tool responses).
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			f.emitError(runCtx, eventChan, fmt.Errorf("failed to refresh session: %w", err))
			return nil
		}
	}

	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			f.emitError(runCtx, eventChan, fmt.Errorf("request processor %s failed: %w", processor.Name(), err))
			return nil
		}
	}

	f.appendToolDefinitions(req)

	respCh, errCh := f.generate(runCtx, req, eventChan)
	if respCh == nil {
		return nil
	}

	var lastEvent *core.Event

	for respCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if !resp.Partial {
				if done := f.applyAfterModelCallback(runCtx, &resp, eventChan); done {
					return nil
				}
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					f.emitError(runCtx, eventChan, fmt.Errorf("response processor %s failed: %w", processor.Name(), err))
					return nil
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial
			if runCtx.Branch != "" {
				branch := runCtx.Branch
				ev.Branch = &branch
			}

			// Final assistant response with no pending tool calls completes the turn
			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete

				if err := f.applyOutput(runCtx, &ev); err != nil {
					f.emitError(runCtx, eventChan, err)
					return nil
				}
			}

			// Callback-staged state rides on the persisted event.
			if !resp.Partial {
				runCtx.MergeStagedActions(&ev)
			}

			lastEvent = &ev

			eventChan <- ev

			// Wait for session persistence (runner signals resume after append)
			if !ev.IsPartial() && runCtx.Resume != nil {
				select {
				case <-runCtx.Context.Done():
					return lastEvent
				case <-runCtx.Resume:
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				var responses []core.Event

				f.functionExecutor.Execute(runCtx, f.agent, f.toolRegistry(), fnCalls, func(respEv core.Event) error {
					responses = append(responses, respEv)
					return nil
				})

				if len(responses) == 0 {
					return lastEvent
				}

				// One event per tool batch so history and persistence see a
				// single tool turn.
				merged := mergeFunctionResponseEvents(runCtx.RunID, f.agent.GetName(), responses)
				runCtx.MergeStagedActions(&merged)

				lastEvent = &merged
				eventChan <- merged

				if runCtx.Resume != nil {
					select {
					case <-runCtx.Context.Done():
						return lastEvent
					case <-runCtx.Resume:
					}
				}

				if merged.Actions.TransferToAgent != nil {
					target := *merged.Actions.TransferToAgent
					if err := f.agent.TransferToAgent(runCtx, target); err != nil {
						f.emitError(runCtx, eventChan, fmt.Errorf("transfer to agent %s failed: %w", target, err))
					}
					return nil
				}
			}
		case err, ok := <-errCh:
			if !ok {
				// keep draining responses; a nil channel never selects
				errCh = nil
				continue
			}
			if err != nil {
				runCtx.LogError("flow.model.error", "agent", f.agent.GetName(), "error", err.Error())
				f.emitError(runCtx, eventChan, err)
				return nil
			}
		}
	}

	return lastEvent
}

// generate dispatches the model request honoring the before-model callback.
// A scripted callback response is delivered through the same channel shape the
// model would use so downstream handling stays uniform.
func (f *BaseFlow) generate(runCtx *core.RunContext, req *model.Request, eventChan chan<- core.Event) (<-chan model.Response, <-chan error) {
	if cb := f.agent.GetBeforeModelCallback(); cb != nil {
		canned, err := cb(core.NewCallbackContext(runCtx), req)
		if err != nil {
			f.emitError(runCtx, eventChan, fmt.Errorf("before model callback failed: %w", err))
			return nil, nil
		}
		if canned != nil {
			runCtx.LogInfo("flow.model.short_circuit", "agent", f.agent.GetName())
			respCh := make(chan model.Response, 1)
			errCh := make(chan error)
			respCh <- *canned
			close(respCh)
			close(errCh)
			return respCh, errCh
		}
	}

	// A short-circuited turn never reaches the provider, so the budget is
	// only consumed here.
	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			f.emitError(runCtx, eventChan, err)
			return nil, nil
		}
	}

	return f.agent.GetLLM().Generate(runCtx.Context, *req)
}

// applyAfterModelCallback runs the after-model hook, replacing the response in
// place when the hook returns one. Reports true when the turn must abort.
func (f *BaseFlow) applyAfterModelCallback(runCtx *core.RunContext, resp *model.Response, eventChan chan<- core.Event) bool {
	cb := f.agent.GetAfterModelCallback()
	if cb == nil {
		return false
	}

	replacement, err := cb(core.NewCallbackContext(runCtx), resp)
	if err != nil {
		f.emitError(runCtx, eventChan, fmt.Errorf("after model callback failed: %w", err))
		return true
	}
	if replacement != nil {
		runCtx.LogDebug("flow.model.response_replaced", "agent", f.agent.GetName())
		*resp = *replacement
	}

	return false
}

// applyOutput stores the final response under the agent's output key, parsing
// and validating against the output schema when one is configured.
func (f *BaseFlow) applyOutput(runCtx *core.RunContext, ev *core.Event) error {
	outputKey := f.agent.GetOutputKey()
	if outputKey == "" || ev.Content == nil {
		return nil
	}

	text := ev.Content.Text()

	var value any = text
	if schema := f.agent.GetOutputSchema(); schema != nil {
		parsed := map[string]any{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
			return fmt.Errorf("output of agent %s is not valid JSON: %w", f.agent.GetName(), err)
		}
		if err := util.ValidateParameters(parsed, schema); err != nil {
			return fmt.Errorf("output of agent %s does not match schema: %w", f.agent.GetName(), err)
		}
		value = parsed
	}

	if ev.Actions.StateDelta == nil {
		ev.Actions.StateDelta = map[string]any{}
	}
	ev.Actions.StateDelta[outputKey] = value

	runCtx.LogDebug("flow.output.saved", "agent", f.agent.GetName(), "output_key", outputKey)

	return nil
}

// toolRegistry returns the agent's tools, extended with the transfer tool
// when agent transfer is enabled.
func (f *BaseFlow) toolRegistry() map[string]tool.Tool {
	tools := f.agent.GetTools()
	if !f.agent.IsTransferEnabled() {
		return tools
	}

	registry := make(map[string]tool.Tool, len(tools)+1)
	for name, t := range tools {
		registry[name] = t
	}

	transfer := tool.NewTransferToAgentTool()
	if _, exists := registry[transfer.Name()]; !exists {
		registry[transfer.Name()] = transfer
	}

	return registry
}

func (f *BaseFlow) appendToolDefinitions(req *model.Request) {
	tools := f.agent.GetTools()
	if len(tools) == 0 {
		return
	}

	toolDefinitions := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		toolDefinitions = append(toolDefinitions, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	req.Tools = append(req.Tools, toolDefinitions...)
}
