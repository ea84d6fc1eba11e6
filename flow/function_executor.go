package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/tool"
)

// FunctionExecutor runs a batch of tool calls and hands the resulting
// function-response events to emit. Implementations must honor run context
// cancellation, recover from tool panics, produce exactly one response event
// per call, and carry each ToolContext's accumulated actions on that event.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <1 means one worker per call
	PreserveOrder  bool // buffer results and emit in call order
	LogStartEvents bool // log a line when each function starts
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor builds the default executor.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	emitResponse := func(ev core.Event, name string) {
		if err := emit(ev); err != nil {
			runCtx.LogError("agent.function.emit.error", "function", name, "error", err.Error())
		}
	}

	// Single call runs inline on the flow goroutine.
	if n == 1 {
		emitResponse(e.invoke(runCtx, agent, toolRegistry, fnCalls[0]), fnCalls[0].Name)
		return
	}

	workers := e.cfg.MaxParallel
	if workers < 1 || workers > n {
		workers = n
	}

	batchStart := time.Now()
	ordered := make([]core.Event, n)
	unordered := make(chan core.Event, n)

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, fc := range fnCalls {
		if runCtx.Context.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Context.Err() != nil {
				return
			}

			ev := e.invoke(runCtx, agent, toolRegistry, fc)
			if e.cfg.PreserveOrder {
				ordered[idx] = ev
			} else {
				unordered <- ev
			}
		}(i, fc)
	}

	wg.Wait()
	close(unordered)

	if e.cfg.PreserveOrder {
		for i, ev := range ordered {
			if ev.ID == "" {
				continue
			}
			emitResponse(ev, fnCalls[i].Name)
		}
	} else {
		for ev := range unordered {
			emitResponse(ev, functionName(ev))
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", workers,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// invoke runs one tool call to completion and returns its response event with
// the tool context's actions applied.
func (e *parallelFunctionExecutor) invoke(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fc core.FunctionCall,
) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	if e.cfg.LogStartEvents {
		runCtx.LogInfo(
			"agent.function.start",
			"agent", agent.GetName(),
			"function", fc.Name,
			"function_call_id", fc.ID,
		)
	}

	start := time.Now()
	result, err := e.callTool(runCtx, agent, toolRegistry, toolCtx, fc)

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewFunctionResponseEvent(agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&ev)
	return ev
}

// callTool looks the tool up, decodes its arguments and executes it, turning
// panics into errors so one misbehaving tool cannot take the flow down.
func (e *parallelFunctionExecutor) callTool(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	toolCtx *core.ToolContext,
	fc core.FunctionCall,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicErr{val: r, stack: debug.Stack()}
			runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
		}
	}()

	impl, ok := toolRegistry[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(toolCtx, args)
}

func functionName(ev core.Event) string {
	if ev.Content == nil {
		return ""
	}
	for _, part := range ev.Content.Parts {
		if p, ok := part.(core.FunctionResponsePart); ok {
			return p.FunctionResponse.Name
		}
	}
	return ""
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return "panic recovered" }
