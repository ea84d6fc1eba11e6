// Package openai adapts the OpenAI Chat Completions API (streaming and
// function calling included) to the model.Model interface.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloom/core"
	"github.com/hupe1980/agentloom/model"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI adapter. Only the parameters the framework
// needs are surfaced; add more via the functional options without breaking
// callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model implements model.Model on top of the OpenAI Chat Completions API.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel builds an adapter with a default client, which reads
// OPENAI_API_KEY from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient builds an adapter around an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Info describes the configured model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// Generate runs one completion, streaming partial responses when req.Stream
// is set. Responses arrive on the first channel; a single error may arrive on
// the second. Both channels close when the call finishes.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.requestParams(req)
		if req.Stream {
			m.stream(ctx, params, out, errCh)
		} else {
			m.complete(ctx, params, out, errCh)
		}
	}()

	return out, errCh
}

// requestParams translates the normalized request into Chat Completion
// parameters: contents become chat messages, tool declarations become
// function tools.
func (m *Model) requestParams(req model.Request) openai.ChatCompletionNewParams {
	pending, order := pendingToolResults(req)

	var messages []openai.ChatCompletionMessageParamUnion
	for _, c := range req.Contents {
		if c.Role == "tool" {
			continue
		}

		text := contentText(c)
		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "assistant":
			messages = append(messages, assistantMessages(c, text, pending)...)
		case "user":
			messages = append(messages, openai.UserMessage(text))
		default:
			if text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	// Tool results whose originating call never appeared still have to reach
	// the API, in the order they were produced.
	for _, id := range order {
		if result, ok := pending[id]; ok {
			messages = append(messages, openai.ToolMessage(result, id))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	for _, decl := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        decl.Function.Name,
				Description: openai.String(decl.Function.Description),
				Parameters:  decl.Function.Parameters,
			},
		})
	}

	return params
}

// assistantMessages renders an assistant turn. A turn with tool calls is
// followed directly by the matching tool results, which the API requires.
func assistantMessages(c core.Content, text string, pending map[string]string) []openai.ChatCompletionMessageParamUnion {
	var calls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string
	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID:   fc.FunctionCall.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      fc.FunctionCall.Name,
					Arguments: fc.FunctionCall.Arguments,
				},
			})
			callIDs = append(callIDs, fc.FunctionCall.ID)
		}
	}

	if len(calls) == 0 {
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text)}
	}

	messages := []openai.ChatCompletionMessageParamUnion{{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: calls,
		},
	}}
	for _, id := range callIDs {
		if id == "" {
			continue
		}
		if result, ok := pending[id]; ok {
			messages = append(messages, openai.ToolMessage(result, id))
			delete(pending, id)
		}
	}
	return messages
}

// pendingToolResults indexes tool results by call ID, keeping first-seen
// order for results that need appending at the end.
func pendingToolResults(req model.Request) (map[string]string, []string) {
	results := map[string]string{}
	var order []string
	for _, c := range req.Contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			if _, seen := results[fr.FunctionResponse.ID]; seen {
				continue
			}
			results[fr.FunctionResponse.ID] = stringifyResult(fr.FunctionResponse.Response)
			order = append(order, fr.FunctionResponse.ID)
		}
	}
	return results, order
}

func stringifyResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func contentText(c core.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// callBuilder accumulates streamed tool call fragments for one call index
// until the finish chunk arrives.
type callBuilder struct{ id, name, args string }

func (b *callBuilder) part() core.FunctionCallPart {
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID:        b.id,
		Name:      b.name,
		Arguments: b.args,
	}}
}

func (m *Model) stream(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	s := m.client.Chat.Completions.NewStreaming(ctx, params)

	var text strings.Builder
	builders := map[int64]*callBuilder{}

	for s.Next() {
		for _, choice := range s.Current().Choices {
			if delta := choice.Delta.Content; delta != "" {
				text.WriteString(delta)
				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: delta}},
					},
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				b := builders[tc.Index]
				if b == nil {
					b = &callBuilder{}
					builders[tc.Index] = b
				}
				if tc.ID != "" {
					b.id = tc.ID
				}
				if tc.Function.Name != "" {
					b.name = tc.Function.Name
				}
				b.args += tc.Function.Arguments

				out <- model.Response{
					Partial: true,
					Content: core.Content{Role: "assistant", Parts: []core.Part{b.part()}},
				}
			}

			if choice.FinishReason != "" {
				parts := make([]core.Part, 0, len(builders)+1)
				if text.Len() > 0 {
					parts = append(parts, core.TextPart{Text: text.String()})
				}
				for _, b := range builders {
					parts = append(parts, b.part())
				}
				out <- model.Response{
					Partial:      false,
					Content:      core.Content{Role: "assistant", Parts: parts},
					FinishReason: choice.FinishReason,
				}
			}
		}
	}

	if err := s.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func (m *Model) complete(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}

	choice := resp.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
	}
}
