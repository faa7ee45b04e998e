// Package llmprovider adapts real LLM SDKs to the brain.LLMProvider
// streaming contract.
//
// Grounded on original_source/.../llm/llm.py's chat_stream: an
// OpenAI-compatible streaming chat completion that accumulates tool-call
// argument fragments by index and yields TEXT and TOOL_CALL deltas.
// The pkg/providers/llm/openai.go hand-rolls the same endpoint
// over net/http; this replaces that hand-rolled client with
// github.com/openai/openai-go, which natively streams tool-call deltas
// instead of requiring manual JSON decoding.
package llmprovider

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tank-voice/assistant/pkg/brain"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/tools"
)

// OpenAI adapts the OpenAI (or OpenAI-compatible, e.g. OpenRouter/Groq)
// chat completions streaming API to brain.LLMProvider.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI builds a provider. baseURL may be empty to use the default
// OpenAI endpoint, or point at an OpenAI-compatible gateway (mirroring the
// NewOpenAILLM / NewGroqLLM split, unified behind one base URL
// parameter here since the wire protocol is identical).
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return "openai-llm" }

// ResolveBaseURL maps a provider name to the OpenAI-compatible endpoint it
// should dial, mirroring cmd/agent/main.go LLM-selection
// switch (openai/anthropic/google/groq) but collapsed to the subset that
// actually speaks the OpenAI chat-completions wire protocol: Groq and
// OpenRouter both expose an OpenAI-compatible gateway, so NewOpenAI can
// point at either by base URL alone. explicitBaseURL always wins when set.
func ResolveBaseURL(provider, explicitBaseURL string) string {
	if explicitBaseURL != "" {
		return explicitBaseURL
	}
	switch provider {
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "openai":
		fallthrough
	default:
		return ""
	}
}

func toOpenAIMessages(messages []brain.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionAssistantMessageParam{
				Content:   openai.String(m.Content),
				ToolCalls: calls,
			}.ToParam())
		}
	}
	return out
}

func toOpenAITools(manifest []tools.Manifest) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(manifest))
	for _, m := range manifest {
		props := make(map[string]interface{}, len(m.Function.Parameters.Properties))
		for k, v := range m.Function.Parameters.Properties {
			props[k] = map[string]interface{}{"type": v.Type, "description": v.Description}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        m.Function.Name,
				Description: openai.String(m.Function.Description),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": props,
					"required":   m.Function.Parameters.Required,
				},
			},
		})
	}
	return out
}

// ChatStream implements brain.LLMProvider. It streams one model turn:
// TEXT deltas for visible content and TOOL_CALL deltas carrying the
// accumulated-so-far argument JSON per call index. It emits no THOUGHT
// deltas: provider-specific reasoning tokens (e.g. DeepSeek's
// reasoning_content) are not read from the stream.
func (o *OpenAI) ChatStream(ctx context.Context, messages []brain.ChatMessage, manifest []tools.Manifest) (<-chan brain.Delta, <-chan brain.StreamOutcome) {
	deltas := make(chan brain.Delta, 32)
	outcome := make(chan brain.StreamOutcome, 1)

	go func() {
		defer close(deltas)
		defer close(outcome)

		params := openai.ChatCompletionNewParams{
			Model:    o.model,
			Messages: toOpenAIMessages(messages),
		}
		if len(manifest) > 0 {
			params.Tools = toOpenAITools(manifest)
		}

		stream := o.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		accum := map[int64]*brain.ToolCall{}
		var order []int64

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if delta.Content != "" {
				select {
				case deltas <- brain.Delta{Kind: events.UpdateText, Content: delta.Content}:
				case <-ctx.Done():
					outcome <- brain.StreamOutcome{Err: ctx.Err()}
					return
				}
			}

			for _, tc := range delta.ToolCalls {
				idx := tc.Index
				entry, ok := accum[idx]
				if !ok {
					entry = &brain.ToolCall{Index: int(idx)}
					accum[idx] = entry
					order = append(order, idx)
				}
				if tc.ID != "" {
					entry.ID = tc.ID
				}
				if tc.Function.Name != "" {
					entry.Name += tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					entry.Arguments += tc.Function.Arguments
				}
				snapshot := *entry
				select {
				case deltas <- brain.Delta{Kind: events.UpdateToolCall, ToolCall: &snapshot}:
				case <-ctx.Done():
					outcome <- brain.StreamOutcome{Err: ctx.Err()}
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			outcome <- brain.StreamOutcome{Err: err}
			return
		}

		pending := make([]brain.ToolCall, 0, len(order))
		for _, idx := range order {
			pending = append(pending, *accum[idx])
		}
		outcome <- brain.StreamOutcome{PendingToolCalls: pending}
	}()

	return deltas, outcome
}
