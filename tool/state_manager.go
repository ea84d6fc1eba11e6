package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentloom/core"
)

// StateManagerTool exposes the ToolContext surface to the model as a single
// dispatching tool: session state reads and writes, flow control (transfer,
// escalate, skip summarization), artifacts, memory, and session history.
type StateManagerTool struct {
	name        string
	description string
}

// NewStateManagerTool returns the state management tool.
func NewStateManagerTool() *StateManagerTool {
	return &StateManagerTool{
		name: "state_manager",
		description: "Manages session state, agent flow control, and framework integration. " +
			"Supports operations: get_state, set_state, transfer_agent, escalate, save_artifact, " +
			"load_artifact, search_memory, store_memory.",
	}
}

func (t *StateManagerTool) Name() string { return t.name }

func (t *StateManagerTool) Description() string { return t.description }

// Parameters returns the JSON schema for the tool's arguments.
func (t *StateManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					"get_state", "set_state", "transfer_agent", "escalate",
					"save_artifact", "load_artifact", "search_memory", "store_memory",
					"list_artifacts", "get_session_history", "skip_summarization",
				},
				"description": "The state management operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key for get_state/set_state operations",
			},
			"value": map[string]any{
				"description": "Value for set_state operations (any type)",
			},
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Agent name for transfer_agent operation",
			},
			"artifact_id": map[string]any{
				"type":        "string",
				"description": "Artifact identifier for artifact operations",
			},
			"data": map[string]any{
				"type":        "string",
				"description": "Artifact payload for save_artifact operation",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Search query for memory operations",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content to store in memory",
			},
			"metadata": map[string]any{
				"type":        "object",
				"description": "Metadata for memory storage",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Limit for search operations (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

// Call dispatches to the requested operation.
func (t *StateManagerTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	op, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch op {
	case "get_state":
		return t.getState(toolCtx, args)
	case "set_state":
		return t.setState(toolCtx, args)
	case "transfer_agent":
		return t.transferAgent(toolCtx, args)
	case "escalate":
		toolCtx.Escalate()
		return okResult("Escalation initiated"), nil
	case "save_artifact":
		return t.saveArtifact(toolCtx, args)
	case "load_artifact":
		return t.loadArtifact(toolCtx, args)
	case "search_memory":
		return t.searchMemory(toolCtx, args)
	case "store_memory":
		return t.storeMemory(toolCtx, args)
	case "list_artifacts":
		return t.listArtifacts(toolCtx)
	case "get_session_history":
		return t.sessionHistory(toolCtx)
	case "skip_summarization":
		toolCtx.SkipSummarization()
		return okResult("Summarization will be skipped for this interaction"), nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", op)
	}
}

func okResult(msg string) map[string]any {
	return map[string]any{"success": true, "message": msg}
}

func stringArg(args map[string]any, name, op string) (string, error) {
	s, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%s parameter is required for %s operation", name, op)
	}
	return s, nil
}

func (t *StateManagerTool) getState(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	key, err := stringArg(args, "key", "get_state")
	if err != nil {
		return nil, err
	}

	value, exists := toolCtx.GetState(key)
	return map[string]any{
		"key":    key,
		"exists": exists,
		"value":  value,
	}, nil
}

func (t *StateManagerTool) setState(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	key, err := stringArg(args, "key", "set_state")
	if err != nil {
		return nil, err
	}

	value := args["value"]
	toolCtx.SetState(key, value)

	return map[string]any{
		"key":     key,
		"value":   value,
		"success": true,
		"message": fmt.Sprintf("State key '%s' set successfully", key),
	}, nil
}

func (t *StateManagerTool) transferAgent(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	agentName, err := stringArg(args, "agent_name", "transfer_agent")
	if err != nil {
		return nil, err
	}

	toolCtx.TransferToAgent(agentName)

	return map[string]any{
		"agent_name": agentName,
		"success":    true,
		"message":    fmt.Sprintf("Transfer to agent '%s' initiated", agentName),
	}, nil
}

func (t *StateManagerTool) saveArtifact(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	artifactID, err := stringArg(args, "artifact_id", "save_artifact")
	if err != nil {
		return nil, err
	}
	payload, err := stringArg(args, "data", "save_artifact")
	if err != nil {
		return nil, err
	}

	data := []byte(payload)
	if err := toolCtx.SaveArtifact(artifactID, data); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	return map[string]any{
		"artifact_id": artifactID,
		"size":        len(data),
		"success":     true,
		"message":     fmt.Sprintf("Artifact '%s' saved successfully", artifactID),
	}, nil
}

func (t *StateManagerTool) loadArtifact(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	artifactID, err := stringArg(args, "artifact_id", "load_artifact")
	if err != nil {
		return nil, err
	}

	data, err := toolCtx.LoadArtifact(artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}

	return map[string]any{
		"artifact_id": artifactID,
		"data":        string(data),
		"size":        len(data),
		"success":     true,
	}, nil
}

func (t *StateManagerTool) searchMemory(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	query, err := stringArg(args, "query", "search_memory")
	if err != nil {
		return nil, err
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	results, err := toolCtx.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}

	return map[string]any{
		"query":   query,
		"limit":   limit,
		"count":   len(results),
		"results": results,
		"success": true,
	}, nil
}

func (t *StateManagerTool) storeMemory(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	content, err := stringArg(args, "content", "store_memory")
	if err != nil {
		return nil, err
	}

	metadata, _ := args["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if err := toolCtx.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	return map[string]any{
		"content":  content,
		"metadata": metadata,
		"success":  true,
		"message":  "Memory stored successfully",
	}, nil
}

func (t *StateManagerTool) listArtifacts(toolCtx *core.ToolContext) (any, error) {
	ids, err := toolCtx.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	return map[string]any{
		"artifacts": ids,
		"count":     len(ids),
		"success":   true,
	}, nil
}

func (t *StateManagerTool) sessionHistory(toolCtx *core.ToolContext) (any, error) {
	history := toolCtx.GetSessionHistory()

	events := make([]map[string]any, len(history))
	for i, ev := range history {
		entry := map[string]any{
			"id":          ev.ID,
			"author":      ev.Author,
			"timestamp":   ev.Timestamp,
			"partial":     ev.Partial,
			"has_content": ev.Content != nil,
		}
		if summary := summarizeContent(ev.Content); summary != "" {
			entry["content_summary"] = summary
		}
		events[i] = entry
	}

	return map[string]any{
		"events":  events,
		"count":   len(events),
		"success": true,
	}, nil
}

// summarizeContent renders a compact one-line description of a content block
// so history stays readable for the model.
func summarizeContent(content *core.Content) string {
	if content == nil || len(content.Parts) == 0 {
		return ""
	}

	parts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		switch p := part.(type) {
		case core.TextPart:
			preview := p.Text
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			parts = append(parts, "text: "+preview)
		case core.FunctionCallPart:
			parts = append(parts, "function_call: "+p.FunctionCall.Name)
		case core.FunctionResponsePart:
			parts = append(parts, "function_response: "+p.FunctionResponse.Name)
		default:
			parts = append(parts, "other")
		}
	}
	return strings.Join(parts, ", ")
}
