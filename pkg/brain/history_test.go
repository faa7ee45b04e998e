package brain

import "testing"

func TestHistoryPreservesSystemPromptAtTruncation(t *testing.T) {
	h := NewHistory("you are a helpful assistant")
	for i := 0; i < 20; i++ {
		h.Append(ChatMessage{Role: "user", Content: "hi"})
	}
	h.Truncate(3) // limit = 2*3+1 = 7

	if got, want := h.Len(), 7; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	snap := h.Snapshot()
	if snap[0].Role != "system" || snap[0].Content != "you are a helpful assistant" {
		t.Fatalf("index 0 = %+v, want the system record preserved", snap[0])
	}
}

func TestHistoryTruncateNoOpUnderLimit(t *testing.T) {
	h := NewHistory("sys")
	h.Append(ChatMessage{Role: "user", Content: "hi"})
	h.Truncate(10)
	if got, want := h.Len(), 2; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
}

func TestHistoryWithoutSystemPrompt(t *testing.T) {
	h := NewHistory("")
	for i := 0; i < 5; i++ {
		h.Append(ChatMessage{Role: "user", Content: "hi"})
	}
	h.Truncate(1) // limit = 3
	if got, want := h.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if h.Snapshot()[0].Role == "system" {
		t.Fatalf("no system prompt was ever appended, but index 0 reports one")
	}
}

func TestHistoryTruncateZeroMaxTurnsKeepsOnlySystem(t *testing.T) {
	h := NewHistory("sys")
	h.Append(ChatMessage{Role: "user", Content: "hi"})
	h.Append(ChatMessage{Role: "assistant", Content: "hello"})
	h.Truncate(0) // limit = 1

	if got, want := h.Len(), 1; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if h.Snapshot()[0].Role != "system" {
		t.Fatalf("expected the sole remaining record to be the system prompt")
	}
}
