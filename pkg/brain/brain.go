// Package brain implements the orchestrator turn loop (spec.md §4.4): the
// hardest subsystem. Consumes BrainInputEvents serially, runs a streaming
// LLM turn with a tool-call loop and mid-turn barge-in interruption, and
// enqueues completed utterances for TTS.
//
// Grounded on original_source/.../core/brain.py's per-turn algorithm
// (clear interrupt → append user message → processing_started →
// streaming loop → processing_ended via finally) and .../llm/llm.py's
// chat_stream tool-loop (execute pending calls, append tool-role
// messages, re-invoke). Teacher's pkg/orchestrator/orchestrator.go and
// conversation.go contribute the Go idiom: an exported struct holding
// provider interfaces. Brain holds no mutex; its state is only touched by
// the goroutine running Run, which handles one event at a time.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/runtime"
	"github.com/tank-voice/assistant/pkg/tools"
)

// toolResultSummaryLimit truncates tool result summaries streamed to the
// client (spec.md §4.4: "truncated to an implementation-defined length;
// typical 200 characters").
const toolResultSummaryLimit = 200

// Config configures one Brain instance.
type Config struct {
	MaxTurns          int // conversation history cap: len <= 2*MaxTurns+1
	MaxToolIterations int
	SystemPrompt      string
	ApologyText       string // localized apology on LLM error (spec.md §4.4, §7)
}

func DefaultConfig() Config {
	return Config{
		MaxTurns:          10,
		MaxToolIterations: DefaultMaxToolIterations,
		ApologyText:       "Sorry, something went wrong on my end.",
	}
}

// OnExit is invoked when the client sends an exit command (spec.md §4.4).
type OnExit func()

// Brain runs one session's turn loop. Owns the conversation history
// exclusively; no other component may read or write it.
type Brain struct {
	llm      LLMProvider
	tools    *tools.Registry
	rc       *runtime.Context
	cfg      Config
	log      logging.Logger
	metrics  Metrics
	onExit   OnExit
	shutdown func()

	history *History
}

func New(llm LLMProvider, toolRegistry *tools.Registry, rc *runtime.Context, cfg Config, log logging.Logger, metrics Metrics, onExit OnExit, shutdown func()) *Brain {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	return &Brain{
		llm:      llm,
		tools:    toolRegistry,
		rc:       rc,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		onExit:   onExit,
		shutdown: shutdown,
		history:  NewHistory(cfg.SystemPrompt),
	}
}

// Run consumes BrainInputEvents from the runtime context's brain-input
// queue until ctx is cancelled. One turn runs at a time (spec.md §4.4:
// "one outstanding turn per session").
func (b *Brain) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.rc.BrainInput:
			if !ok {
				return
			}
			b.handleEvent(ctx, ev)
		}
	}
}

func (b *Brain) handleEvent(ctx context.Context, ev events.BrainInputEvent) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return // spec.md §4.4 step 1: ignore empty-after-trim events
	}

	if lower := strings.ToLower(text); lower == "quit" || lower == "exit" {
		// spec.md §4.4 "interrupt speaker" before exit: drain both queues
		// named in §4.8 step 2/3, matching the other two interrupt triggers
		// (pkg/session/factory.go's barge-in, pkg/wsapi.go's explicit signal).
		b.rc.Interrupt.Set()
		b.rc.DrainAudioOutput()
		b.rc.DrainAudioChunkOut()
		if b.shutdown != nil {
			b.shutdown()
		}
		if b.onExit != nil {
			b.onExit()
		}
		return
	}

	b.runTurn(ctx, text, ev.User)
}

func (b *Brain) runTurn(ctx context.Context, userText, speaker string) {
	start := time.Now()

	b.rc.Interrupt.Clear() // spec.md §4.4 step 2: fresh turn clears the flag
	b.history.Append(ChatMessage{Role: "user", Content: userText})
	b.history.Truncate(b.cfg.MaxTurns)

	assistantMsgID := uuid.NewString()
	b.rc.PushSignal(events.SignalMessage{Signal: events.SignalProcessingStarted, MsgID: assistantMsgID})

	var fullText string
	var turnErr error
	interrupted := false

	func() {
		defer func() {
			// spec.md §4.4 step 7: processing_ended fires on every path.
			b.rc.PushSignal(events.SignalMessage{Signal: events.SignalProcessingEnded, MsgID: assistantMsgID})
		}()
		fullText, turnErr = b.streamTurn(ctx, assistantMsgID)
		interrupted = turnErr == ErrInterrupted
	}()

	b.metrics.ObserveLLMTurn(time.Since(start))

	switch {
	case interrupted:
		// spec.md §4.4 "Interrupted": close the visual block, no TTS, no
		// history append — the user has superseded this turn.
		b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: "", IsUser: false, IsFinal: true, MsgID: assistantMsgID, Update: events.UpdateText})
	case turnErr != nil:
		// spec.md §4.4 "Error": localized apology with a fresh id, no TTS.
		b.log.Error("brain turn failed", "error", turnErr)
		errID := uuid.NewString()
		apology := events.DisplayMessage{Speaker: "assistant", Text: b.cfg.ApologyText, IsUser: false, IsFinal: true, MsgID: errID, Update: events.UpdateText}
		if errors.Is(turnErr, ErrToolLoopExceeded) {
			// The tool-loop cap is reported to the client as a structured error.
			apology.Metadata = map[string]interface{}{"error": "tool_loop_exceeded", "max_tool_iterations": b.cfg.MaxToolIterations}
		}
		b.rc.PushDisplay(apology)
	default:
		// spec.md §4.4 "Normal end".
		b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: "", IsUser: false, IsFinal: true, MsgID: assistantMsgID, Update: events.UpdateText})
		b.history.Append(ChatMessage{Role: "assistant", Content: fullText})
		b.history.Truncate(b.cfg.MaxTurns)
		if strings.TrimSpace(fullText) != "" {
			// spec.md invariant: "TTS is never launched on partial assistant
			// text" — only reached here after the stream has fully ended.
			select {
			case b.rc.AudioOutput <- events.TTSRequest{Text: fullText, Language: "auto"}:
			default:
				b.log.Warn("audio output queue full, dropping TTS request")
			}
		}
	}

	_ = speaker
}

// streamTurn runs the inner LLM-turn-plus-tool-loop (spec.md §4.4
// "Streaming LLM turn"). Returns the accumulated assistant text, or
// ErrInterrupted / a wrapped provider error.
func (b *Brain) streamTurn(ctx context.Context, assistantMsgID string) (string, error) {
	var fullText strings.Builder
	manifest := b.tools.Manifests()

	for iteration := 0; ; iteration++ {
		if iteration >= b.cfg.MaxToolIterations {
			b.metrics.IncToolLoopExceeded()
			return "", fmt.Errorf("%w (cap=%d)", ErrToolLoopExceeded, b.cfg.MaxToolIterations)
		}

		deltas, outcomeCh := b.llm.ChatStream(ctx, b.history.Snapshot(), manifest)
		llmStart := time.Now()
		firstDelta := true

		for d := range deltas {
			if firstDelta {
				// SPEC_FULL.md per-stage instrumentation: LLM-to-first-delta.
				b.metrics.ObserveLLMFirstDelta(time.Since(llmStart))
				firstDelta = false
			}
			if b.rc.Interrupt.IsSet() {
				// spec.md §4.4: "if set and barge-in is enabled, raise an
				// internal interrupted condition, which aborts the stream."
				return "", ErrInterrupted
			}
			switch d.Kind {
			case events.UpdateThought:
				b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: d.Content, IsFinal: false, MsgID: assistantMsgID, Update: events.UpdateThought})
			case events.UpdateText:
				fullText.WriteString(d.Content)
				b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: d.Content, IsFinal: false, MsgID: assistantMsgID, Update: events.UpdateText})
			case events.UpdateToolCall:
				meta := map[string]interface{}{"status": "calling"}
				if d.ToolCall != nil {
					meta["index"] = d.ToolCall.Index
					meta["name"] = d.ToolCall.Name
					meta["arguments"] = d.ToolCall.Arguments
				}
				b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: "", IsFinal: false, MsgID: assistantMsgID, Update: events.UpdateToolCall, Metadata: meta})
			}
		}

		outcome := <-outcomeCh
		if outcome.Err != nil {
			return "", fmt.Errorf("llm stream: %w", outcome.Err)
		}

		if len(outcome.PendingToolCalls) == 0 {
			return fullText.String(), nil
		}

		b.history.Append(ChatMessage{Role: "assistant", Content: fullText.String(), ToolCalls: outcome.PendingToolCalls})
		fullText.Reset()

		for _, tc := range outcome.PendingToolCalls {
			b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: "", IsFinal: false, MsgID: assistantMsgID, Update: events.UpdateToolCall,
				Metadata: map[string]interface{}{"index": tc.Index, "name": tc.Name, "arguments": tc.Arguments, "status": "executing"}})

			toolStart := time.Now()
			result := b.tools.Execute(ctx, tc.Name, tc.Arguments)
			b.metrics.ObserveToolExecution(tc.Name, time.Since(toolStart))

			summary, status := summarizeToolResult(result)
			b.rc.PushDisplay(events.DisplayMessage{Speaker: "assistant", Text: summary, IsFinal: false, MsgID: assistantMsgID, Update: events.UpdateToolResult,
				Metadata: map[string]interface{}{"index": tc.Index, "name": tc.Name, "status": status}})

			b.history.Append(ChatMessage{Role: "tool", Content: toolResultContent(result), ToolCallID: tc.ID, Name: tc.Name})
		}
		// spec.md §4.4: re-invoke the provider with the extended history.
	}
}

func summarizeToolResult(r tools.ExecutionResult) (summary string, status string) {
	content := toolResultContent(r)
	if r.Error != "" {
		status = "error"
	} else {
		status = "success"
	}
	if len(content) > toolResultSummaryLimit {
		return content[:toolResultSummaryLimit] + "...", status
	}
	return content, status
}

func toolResultContent(r tools.ExecutionResult) string {
	if r.Error != "" {
		return fmt.Sprintf("Error: %s", r.Error)
	}
	return fmt.Sprintf("%v", r.Result)
}

// HistoryLen exposes the current conversation history length for tests
// verifying spec.md §8 property 3.
func (b *Brain) HistoryLen() int { return b.history.Len() }

// HistorySnapshot exposes a copy of history for tests.
func (b *Brain) HistorySnapshot() []ChatMessage { return b.history.Snapshot() }
