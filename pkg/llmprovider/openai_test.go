package llmprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tank-voice/assistant/pkg/brain"
	"github.com/tank-voice/assistant/pkg/events"
)

// sseChatServer replays a fixed sequence of chat-completion streaming
// chunks in OpenAI's server-sent-events wire format, the way the teacher's
// openai_test.go fakes the (in their case non-streaming) chat endpoint.
func sseChatServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func TestOpenAIChatStreamEmitsTextDeltas(t *testing.T) {
	server := sseChatServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"hello "},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"world"},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	})
	defer server.Close()

	o := NewOpenAI("test-key", "gpt-4o-mini", server.URL)
	deltas, outcomeCh := o.ChatStream(context.Background(), []brain.ChatMessage{{Role: "user", Content: "hi"}}, nil)

	var text string
	timeout := time.After(5 * time.Second)
loop:
	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				break loop
			}
			if d.Kind == events.UpdateText {
				text += d.Content
			}
		case <-timeout:
			t.Fatal("timed out reading deltas")
		}
	}

	outcome := <-outcomeCh
	if outcome.Err != nil {
		t.Fatalf("unexpected outcome error: %v", outcome.Err)
	}
	if text != "hello world" {
		t.Fatalf("accumulated text = %q, want %q", text, "hello world")
	}
	if len(outcome.PendingToolCalls) != 0 {
		t.Fatalf("PendingToolCalls = %+v, want none", outcome.PendingToolCalls)
	}
	if o.Name() != "openai-llm" {
		t.Fatalf("Name() = %q, want openai-llm", o.Name())
	}
}

func TestResolveBaseURLPicksKnownGateways(t *testing.T) {
	cases := []struct {
		provider, explicit, want string
	}{
		{"openai", "", ""},
		{"groq", "", "https://api.groq.com/openai/v1"},
		{"openrouter", "", "https://openrouter.ai/api/v1"},
		{"groq", "https://override.example", "https://override.example"},
		{"unknown", "", ""},
	}
	for _, c := range cases {
		if got := ResolveBaseURL(c.provider, c.explicit); got != c.want {
			t.Fatalf("ResolveBaseURL(%q, %q) = %q, want %q", c.provider, c.explicit, got, c.want)
		}
	}
}

func TestOpenAIChatStreamAccumulatesToolCallArguments(t *testing.T) {
	server := sseChatServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"calculate","arguments":""}}]},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"expression\""}}]},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"2+2\"}"}}]},"finish_reason":null}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	})
	defer server.Close()

	o := NewOpenAI("test-key", "gpt-4o-mini", server.URL)
	deltas, outcomeCh := o.ChatStream(context.Background(), []brain.ChatMessage{{Role: "user", Content: "2+2?"}}, nil)

	for range deltas {
	}
	outcome := <-outcomeCh
	if outcome.Err != nil {
		t.Fatalf("unexpected outcome error: %v", outcome.Err)
	}
	if len(outcome.PendingToolCalls) != 1 {
		t.Fatalf("PendingToolCalls = %+v, want exactly one accumulated call", outcome.PendingToolCalls)
	}
	call := outcome.PendingToolCalls[0]
	if call.Name != "calculate" || call.ID != "call_1" || call.Arguments != `{"expression":"2+2"}` {
		t.Fatalf("accumulated call = %+v, want name=calculate id=call_1 arguments={\"expression\":\"2+2\"}", call)
	}
}
