package brain

import (
	"context"

	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/tools"
)

// ChatMessage is one role-tagged conversation record (spec.md §3
// ConversationHistory). Tool-role messages carry ToolCallID/Name; assistant
// messages that triggered tool calls carry ToolCalls.
type ChatMessage struct {
	Role       string // "system" | "user" | "assistant" | "tool"
	Content    string
	ToolCallID string
	Name       string
	ToolCalls  []ToolCall
}

// ToolCall is one tool invocation descriptor, complete or still
// accumulating (spec.md §4.4: "index, name, accumulating JSON arguments").
type ToolCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Delta is one incremental unit from the LLM provider's streaming turn
// (spec.md §6.3): reasoning text, content text, or a tool-call argument
// fragment carrying the accumulated-so-far state for its index.
type Delta struct {
	Kind     events.UpdateKind // THOUGHT or TEXT or TOOL_CALL
	Content  string            // populated for THOUGHT/TEXT
	ToolCall *ToolCall         // populated for TOOL_CALL, accumulated so far
}

// StreamOutcome is delivered once, after the delta channel closes: any
// tool calls the provider's turn ended with pending, or a terminal error.
type StreamOutcome struct {
	PendingToolCalls []ToolCall
	Err              error
}

// LLMProvider is the streaming chat contract (spec.md §6.3). One call to
// ChatStream covers exactly one model turn (not the whole tool-loop — the
// caller re-invokes with extended history when PendingToolCalls is
// non-empty, per spec.md §4.4).
type LLMProvider interface {
	ChatStream(ctx context.Context, messages []ChatMessage, manifest []tools.Manifest) (<-chan Delta, <-chan StreamOutcome)
	Name() string
}
