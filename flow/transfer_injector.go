package flow

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/model"
	"github.com/hupe1980/agentloom/tool"
)

// TransferToolInjector adds the transfer_to_agent tool definition to the
// request when the agent supports transfers and has sub-agents to route to.
// The injected description enumerates the reachable sub-agents so the model
// can pick a valid target.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest injects the transfer tool definition exactly once per request.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}

	transfer := tool.NewTransferToAgentTool()

	for _, td := range req.Tools {
		if td.Function.Name == transfer.Name() {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sub := range subAgents {
		names = append(names, sub.GetName())
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        transfer.Name(),
			Description: fmt.Sprintf("%s Available agents: %s.", transfer.Description(), strings.Join(names, ", ")),
			Parameters:  transfer.Parameters(),
		},
	})

	runCtx.LogDebug("flow.transfer_tool.injected", "agent", agent.GetName(), "targets", strings.Join(names, ","))

	return nil
}
