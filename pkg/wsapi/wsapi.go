// Package wsapi is the client channel adapter (spec.md §6.1): a single
// full-duplex WebSocket per session carrying binary mic PCM and typed JSON
// text messages in both directions.
//
// Grounded on test-only server-side websocket.Accept usage
// (pkg/providers/tts/lokutor_test.go) — there was previously no production code serving
// WebSocket itself, but its test harness shows the pack's idiom for the
// accept/read/write loop, now promoted into production code. Message
// schema grounded on original_source/.../api/router.py's connect handler
// (binary frame -> float32 PCM via int16 normalization, JSON frame ->
// dict with type/content/is_final/is_user/msg_id/metadata keys).
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/runtime"
	"github.com/tank-voice/assistant/pkg/session"
)

// ClientMessage and ServerMessage share the one wire schema spec.md §6.1
// defines for both directions: `type` in {signal, transcript, text, update,
// input}, `content` carrying the payload, and `session_id` echoed by the
// server. A THOUGHT/TOOL_CALL/TOOL_RESULT delta rides as `type:"update"`
// with its UpdateKind in `metadata.update_type`, per the table's "metadata
// ... includes update_type" note.

// ClientMessage is the wire shape of a JSON text frame sent by the client
// (spec.md §6.1): a typed text or control event.
type ClientMessage struct {
	Type      string                 `json:"type"`
	Content   string                 `json:"content"`
	Language  string                 `json:"language,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ServerMessage is the wire shape of a JSON text frame sent to the client
// (spec.md §6.1 table): the flattened form of events.UIMessage.
type ServerMessage struct {
	Type      string                 `json:"type"` // signal | transcript | text | update
	Content   string                 `json:"content,omitempty"`
	IsFinal   bool                   `json:"is_final,omitempty"`
	IsUser    bool                   `json:"is_user,omitempty"`
	MsgID     string                 `json:"msg_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	// pingInterval keeps intermediary proxies from idling out the
	// connection during long silent stretches between utterances.
	pingInterval  = 25 * time.Second
	sampleRate16k = 16000
)

// Handler wires a registry into an http.Handler that accepts one
// WebSocket per request and runs it as one session (spec.md §4.1, §6.1).
type Handler struct {
	Registry   *session.Registry
	Factory    session.Factory
	Log        logging.Logger
	SampleRate int
}

func NewHandler(registry *session.Registry, factory session.Factory, log logging.Logger) *Handler {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Handler{Registry: registry, Factory: factory, Log: log, SampleRate: sampleRate16k}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	ctx := r.Context()
	sess, err := h.Registry.GetOrCreate(ctx, sessionID, h.Factory)
	if err != nil {
		var dup *session.ErrDuplicateSession
		if errors.As(err, &dup) {
			conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}
		h.Log.Error("session create failed", "error", err)
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	// spec.md §6.1: "upon accept, the server immediately sends a ready
	// signal" before any client input is required.
	sess.RC.PushSignal(events.SignalMessage{Signal: events.SignalReady})

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	go h.pumpOutbound(readCtx, conn, sess.RC, sessionID)
	h.pumpInbound(readCtx, conn, sess)
}

// pumpInbound reads frames off the socket until it closes, translating
// binary frames to AudioFrames and JSON text frames to BrainInputEvents.
func (h *Handler) pumpInbound(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			return // client disconnected; registry keeps the session until Close
		}

		switch msgType {
		case websocket.MessageBinary:
			frame := audioio.AudioFrame{PCM: decodePCM16(payload), SampleRate: h.sampleRate(), Timestamp: time.Now()}
			if sess.Source != nil {
				sess.Source.Push(frame)
			}
		case websocket.MessageText:
			var cm ClientMessage
			if err := json.Unmarshal(payload, &cm); err != nil {
				// spec.md §7 "Bad input": logged, dropped, no client-visible error.
				h.Log.Warn("malformed client text frame", "error", err)
				continue
			}
			switch cm.Type {
			case "input":
				// spec.md §6.1: client -> server "input" carries keyboard text.
				select {
				case sess.RC.BrainInput <- events.BrainInputEvent{Source: events.SourceText, Text: cm.Content, Language: cm.Language, Metadata: cm.Metadata}:
				case <-ctx.Done():
					return
				}
			case "signal":
				// spec.md §6.1: client -> server "signal" with content "interrupt"
				// is trigger (b) of the interrupt discipline (§4.8).
				if cm.Content == string(events.SignalInterrupt) {
					sess.RC.Interrupt.Set()
					sess.RC.DrainAudioOutput()
					sess.RC.DrainAudioChunkOut()
				}
			default:
				// unknown signal/type: logged, dropped (spec.md §7 "Bad input").
				h.Log.Warn("unknown client message type", "type", cm.Type)
			}
		}
	}
}

// pumpOutbound forwards every UI message and every TTS audio chunk to the
// client until ctx is cancelled.
func (h *Handler) pumpOutbound(ctx context.Context, conn *websocket.Conn, rc *runtime.Context, sessionID string) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-rc.UI:
			if !ok {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, encodeUIMessage(msg, sessionID)); err != nil {
				return
			}
		case chunk, ok := <-rc.AudioChunkOut:
			if !ok {
				continue
			}
			if chunk.End {
				continue // the end-of-stream sentinel is internal plumbing only
			}
			if err := conn.Write(ctx, websocket.MessageBinary, chunk.Data); err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Handler) sampleRate() int {
	if h.SampleRate == 0 {
		return sampleRate16k
	}
	return h.SampleRate
}

// encodeUIMessage flattens one events.UIMessage onto spec.md §6.1's wire
// schema: a user DisplayMessage becomes "transcript", an assistant TEXT
// delta becomes "text", an assistant THOUGHT/TOOL_CALL/TOOL_RESULT delta
// becomes "update" with its kind folded into metadata.update_type, and a
// SignalMessage becomes "signal" with its kind as content (§3's closed
// signal-kind set). session_id is echoed on every frame per the table.
func encodeUIMessage(msg events.UIMessage, sessionID string) []byte {
	out := ServerMessage{SessionID: sessionID}
	switch {
	case msg.Display != nil:
		d := msg.Display
		switch {
		case d.IsUser:
			out.Type = "transcript"
		case d.Update == events.UpdateText:
			out.Type = "text"
		default:
			out.Type = "update"
		}
		out.Content = d.Text
		out.IsFinal = d.IsFinal
		out.IsUser = d.IsUser
		out.MsgID = d.MsgID
		out.Metadata = displayMetadata(d)
	case msg.Signal != nil:
		s := msg.Signal
		out.Type = "signal"
		out.Content = string(s.Signal)
		out.MsgID = s.MsgID
		out.Metadata = s.Metadata
	}
	b, _ := json.Marshal(out)
	return b
}

// displayMetadata carries the speaker label and, for non-text deltas, the
// UpdateKind (spec.md §6.1: "metadata ... includes update_type").
func displayMetadata(d *events.DisplayMessage) map[string]interface{} {
	needsUpdateType := d.Update != events.UpdateText && !d.IsUser
	if d.Metadata == nil && d.Speaker == "" && !needsUpdateType {
		return nil
	}
	out := make(map[string]interface{}, len(d.Metadata)+2)
	for k, v := range d.Metadata {
		out[k] = v
	}
	if d.Speaker != "" {
		out["speaker"] = d.Speaker
	}
	if needsUpdateType {
		out["update_type"] = string(d.Update)
	}
	return out
}

// decodePCM16 converts little-endian signed 16-bit samples to float32 in
// [-1, 1] (spec.md §6.1: "pcm[i] = int16[i] / 32768.0").
func decodePCM16(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(s) / 32768.0
	}
	return out
}

