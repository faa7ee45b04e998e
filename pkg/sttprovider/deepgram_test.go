package sttprovider

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// fakeDeepgramServer accepts a streaming connection, drains binary frames,
// and replies with one canned "Results" message after each frame, starting
// with the first, until the canned messages run out.
func fakeDeepgramServer(t *testing.T, messages []deepgramMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		for _, m := range messages {
			_, _, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := wsjson.Write(r.Context(), conn, m); err != nil {
				return
			}
		}
		// keep the connection open for any trailing frames the client sends.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
}

func resultMsg(text string, isFinal bool) deepgramMessage {
	m := deepgramMessage{Type: "Results", IsFinal: isFinal}
	m.Channel.Alternatives = []struct {
		Transcript string `json:"transcript"`
	}{{Transcript: text}}
	return m
}

func TestDeepgramFeedReturnsInterimThenFinalTranscript(t *testing.T) {
	server := fakeDeepgramServer(t, []deepgramMessage{
		resultMsg("hel", false),
		resultMsg("hello", true),
	})
	defer server.Close()

	d := &Deepgram{apiKey: "key", host: strings.TrimPrefix(server.URL, "http://"), model: "nova-2", scheme: "ws"}

	frame := make([]float32, 160)

	var text string
	var isEndpoint bool
	var err error
	for i := 0; i < 50; i++ {
		text, isEndpoint, err = d.Feed(context.Background(), frame, 16000)
		if err != nil {
			t.Fatalf("Feed error: %v", err)
		}
		if text == "hel" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if text != "hel" || isEndpoint {
		t.Fatalf("first observed result = (%q, final=%v), want (%q, final=false)", text, isEndpoint, "hel")
	}

	for i := 0; i < 50; i++ {
		text, isEndpoint, err = d.Feed(context.Background(), frame, 16000)
		if err != nil {
			t.Fatalf("Feed error: %v", err)
		}
		if isEndpoint {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if text != "hello" || !isEndpoint {
		t.Fatalf("final observed result = (%q, final=%v), want (%q, final=true)", text, isEndpoint, "hello")
	}
}

func TestDeepgramFeedIsNonBlockingWithoutAResultYet(t *testing.T) {
	server := fakeDeepgramServer(t, nil)
	defer server.Close()

	d := &Deepgram{apiKey: "key", host: strings.TrimPrefix(server.URL, "http://"), model: "nova-2", scheme: "ws"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		text, isEndpoint, err := d.Feed(context.Background(), make([]float32, 160), 16000)
		if err != nil || text != "" || isEndpoint {
			t.Errorf("Feed() = (%q, %v, %v), want (\"\", false, nil) with no server result pending", text, isEndpoint, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Feed() blocked waiting for a result instead of returning immediately")
	}
}

func TestDeepgramResetClosesConnection(t *testing.T) {
	server := fakeDeepgramServer(t, nil)
	defer server.Close()

	d := &Deepgram{apiKey: "key", host: strings.TrimPrefix(server.URL, "http://"), model: "nova-2", scheme: "ws"}
	_, _, err := d.Feed(context.Background(), make([]float32, 160), 16000)
	if err != nil {
		t.Fatalf("Feed error: %v", err)
	}

	d.Reset()

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		t.Fatal("expected Reset() to clear the pooled connection")
	}
}

func TestEncodePCM16ClampsAndConverts(t *testing.T) {
	out := encodePCM16([]float32{0, 1, -1, 2, -2})
	if len(out) != 10 {
		t.Fatalf("len(out) = %d, want 10", len(out))
	}
	// sample 0 -> 0
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("sample 0 bytes = %v, want zero", out[0:2])
	}
	// 1.0 and an out-of-range 2.0 both map to full scale; -2.0 clamps to -1.0.
	if got := int16(binary.LittleEndian.Uint16(out[2:4])); got != 32767 {
		t.Fatalf("sample 1 (1.0) = %d, want 32767", got)
	}
	if got := int16(binary.LittleEndian.Uint16(out[6:8])); got != 32767 {
		t.Fatalf("sample 3 (2.0) = %d, want clamped to 32767", got)
	}
	if got := int16(binary.LittleEndian.Uint16(out[8:10])); got != -32767 {
		t.Fatalf("sample 4 (-2.0) = %d, want clamped to -32767", got)
	}
}
