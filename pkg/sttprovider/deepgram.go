// Package sttprovider adapts third-party speech recognizers to the
// perception worker's stateful streaming ASR contract (spec.md §6.2):
// feed PCM, get back (text, is_endpoint), Reset between utterances.
package sttprovider

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Deepgram streams PCM over Deepgram's real-time listen WebSocket API and
// surfaces interim/final transcripts to perception.Worker.
//
// Grounded on pkg/providers/stt/deepgram.go (DeepgramSTT):
// query-parameter shape (model, smart_format, language) and API key
// header convention. The version is a one-shot batch
// Transcribe(whole-clip-as-bytes); this reworks it into the stateful
// streaming shape spec.md §6.2 requires, using Deepgram's actual
// streaming endpoint (wss://api.deepgram.com/v1/listen) rather than the
// batch REST endpoint, via coder/websocket the same way
// pkg/ttsprovider/lokutor.go does for its provider connection.
type Deepgram struct {
	apiKey string
	host   string
	model  string
	scheme string // "wss" in production; tests point it at a plain "ws" httptest server

	mu      sync.Mutex
	conn    *websocket.Conn
	results chan deepgramResult
	readErr error
}

type deepgramResult struct {
	text       string
	isEndpoint bool
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{apiKey: apiKey, host: "api.deepgram.com", model: "nova-2", scheme: "wss"}
}

func (d *Deepgram) Name() string { return "deepgram-stt" }

func (d *Deepgram) ensureConn(ctx context.Context, sampleRate int) (*websocket.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}

	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", "300")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	q.Set("channels", "1")

	u := url.URL{Scheme: d.scheme, Host: d.host, Path: "/v1/listen", RawQuery: q.Encode()}
	header := make(map[string][]string)
	header["Authorization"] = []string{"Token " + d.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}

	d.conn = conn
	d.results = make(chan deepgramResult, 32)
	go d.readLoop(conn)
	return conn, nil
}

func (d *Deepgram) readLoop(conn *websocket.Conn) {
	for {
		var msg deepgramMessage
		if err := wsjson.Read(context.Background(), conn, &msg); err != nil {
			d.mu.Lock()
			if d.conn == conn {
				d.readErr = err
				close(d.results)
				d.conn = nil
			}
			d.mu.Unlock()
			return
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		d.results <- deepgramResult{text: msg.Channel.Alternatives[0].Transcript, isEndpoint: msg.IsFinal}
	}
}

// Feed sends one frame of PCM and returns the oldest not-yet-returned
// transcript update, if one is queued, without blocking; one update per call.
// Most calls return ("", false, nil): the recognizer has not emitted a
// new result yet for this frame.
func (d *Deepgram) Feed(ctx context.Context, pcm []float32, sampleRate int) (string, bool, error) {
	conn, err := d.ensureConn(ctx, sampleRate)
	if err != nil {
		return "", false, err
	}

	if err := conn.Write(ctx, websocket.MessageBinary, encodePCM16(pcm)); err != nil {
		d.mu.Lock()
		d.conn = nil
		d.mu.Unlock()
		return "", false, fmt.Errorf("deepgram send: %w", err)
	}

	d.mu.Lock()
	results := d.results
	d.mu.Unlock()

	select {
	case r, ok := <-results:
		if !ok {
			d.mu.Lock()
			err := d.readErr
			d.mu.Unlock()
			return "", false, err
		}
		return r.text, r.isEndpoint, nil
	default:
		return "", false, nil
	}
}

// Reset tears down the streaming connection; the next Feed call opens a
// fresh one, matching the provider contract's "auto-reset on endpoint".
func (d *Deepgram) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.Close(websocket.StatusNormalClosure, "")
		d.conn = nil
	}
}

func encodePCM16(pcm []float32) []byte {
	out := make([]byte, len(pcm)*2)
	for i, f := range pcm {
		v := f
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(math.Round(float64(v) * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
