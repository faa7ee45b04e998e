package ttsprovider

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Lokutor streams synthesis over a persistent WebSocket connection,
// reconnecting lazily on failure.
//
// Grounded on pkg/providers/tts/lokutor.go
// (LokutorTTS.StreamSynthesize): reused connection guarded by a mutex,
// JSON request frame, binary-message chunks, "EOS"/"ERR:" text-message
// control protocol. Reworked from a single onChunk-callback method into a
// two-channel (chunk, error) stream to match this repo's Provider contract
// and to let the caller cancel mid-stream via ctx without a bespoke abort
// method.
type Lokutor struct {
	apiKey string
	host   string
	scheme string // "wss" in production; tests point it at a plain "ws" httptest server

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLokutor(apiKey string) *Lokutor {
	return &Lokutor{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

func (t *Lokutor) Name() string { return "lokutor" }

func (t *Lokutor) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("lokutor dial: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *Lokutor) dropConn(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == conn {
		t.conn = nil
	}
}

func (t *Lokutor) StreamSynthesize(ctx context.Context, text, language, voiceID string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		conn, err := t.getConn(ctx)
		if err != nil {
			errs <- err
			return
		}

		req := map[string]interface{}{
			"text":    text,
			"voice":   voiceID,
			"lang":    language,
			"speed":   1.05,
			"version": "versa-1.0",
		}
		if err := wsjson.Write(ctx, conn, req); err != nil {
			t.dropConn(conn)
			conn.Close(websocket.StatusAbnormalClosure, "write failed")
			errs <- fmt.Errorf("lokutor send: %w", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return // barge-in: abandon the stream, connection stays pooled
			default:
			}

			msgType, payload, err := conn.Read(ctx)
			if err != nil {
				t.dropConn(conn)
				conn.Close(websocket.StatusAbnormalClosure, "read failed")
				if ctx.Err() == nil {
					errs <- fmt.Errorf("lokutor recv: %w", err)
				}
				return
			}

			switch msgType {
			case websocket.MessageBinary:
				select {
				case chunks <- payload:
				case <-ctx.Done():
					return
				}
			case websocket.MessageText:
				switch msg := string(payload); {
				case msg == "EOS":
					return
				case len(msg) >= 4 && msg[:4] == "ERR:":
					errs <- fmt.Errorf("lokutor error: %s", msg)
					return
				}
			}
		}
	}()

	return chunks, errs
}
