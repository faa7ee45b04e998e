// Package runtime holds the per-session shared state: bounded queues and
// the edge-triggered interrupt flag that every worker polls.
//
// Grounded on original_source/.../core/runtime.py (RuntimeContext:
// brain_input_queue, audio_output_queue, ui_queue, interrupt_event) and the
// ManagedStream cancellation fields (pkg/orchestrator/managed_stream.go),
// which play the same role as an interrupt flag using per-call
// context.CancelFuncs instead. This repo uses a single atomic flag per
// spec.md §3/§5, closer to the Python original than to the teacher's
// context-per-stage approach.
package runtime

import (
	"sync/atomic"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/events"
)

// Queue bounds from spec.md §5's table. FrameQueueSize and
// AudioChunkQueueSize are not fixed constants here since pkg/config makes
// them tunable; these are the spec's defaults.
const (
	DefaultFrameQueueSize      = 400 // ~8s at 20ms frames
	DefaultAudioChunkQueueSize = 20
)

// InterruptFlag is a shared, edge-triggered boolean. Set-only from
// triggering workers, clear-only at the start of a new unit of work (brain
// turn or TTS request), read from everywhere.
type InterruptFlag struct {
	v atomic.Bool
}

func (f *InterruptFlag) Set()          { f.v.Store(true) }
func (f *InterruptFlag) Clear()        { f.v.Store(false) }
func (f *InterruptFlag) IsSet() bool   { return f.v.Load() }

// Context is the per-session RuntimeContext (spec.md §3). Its lifetime
// equals the session's lifetime; it is never shared across sessions.
type Context struct {
	BrainInput    chan events.BrainInputEvent // bounded
	AudioOutput   chan events.TTSRequest      // unbounded-by-policy (we use a large buffer)
	AudioChunkOut chan audioio.AudioChunk     // bounded: synthesized audio bound for the transport adapter
	UI            chan events.UIMessage       // unbounded-by-policy
	Interrupt     InterruptFlag
}

// uiBuffer and audioOutputBuffer approximate "unbounded" with a large
// buffered channel, matching Go idiom (an actually unbounded channel does
// not exist). Overflow indicates a stuck consumer: PushUI then evicts the
// oldest UI message, and the brain drops a TTS request it cannot enqueue.
const (
	uiQueueBuffer          = 4096
	audioOutputQueueBuffer = 4096
	brainInputQueueBuffer  = 256
)

// New builds a fresh RuntimeContext for one session. audioChunkQueueSize
// bounds AudioChunkOut; pass DefaultAudioChunkQueueSize absent a
// configured override.
func New(audioChunkQueueSize int) *Context {
	if audioChunkQueueSize <= 0 {
		audioChunkQueueSize = DefaultAudioChunkQueueSize
	}
	return &Context{
		BrainInput:    make(chan events.BrainInputEvent, brainInputQueueBuffer),
		AudioOutput:   make(chan events.TTSRequest, audioOutputQueueBuffer),
		AudioChunkOut: make(chan audioio.AudioChunk, audioChunkQueueSize),
		UI:            make(chan events.UIMessage, uiQueueBuffer),
	}
}

// DrainAudioOutput discards every pending TTSRequest (spec.md §4.8 step 2).
// Non-blocking; returns the number of requests discarded.
func (c *Context) DrainAudioOutput() int {
	n := 0
	for {
		select {
		case <-c.AudioOutput:
			n++
		default:
			return n
		}
	}
}

// DrainAudioChunkOut discards every pending synthesized-audio chunk queued
// for the transport adapter (spec.md §4.8 step 3). Non-blocking; returns
// the number of chunks discarded.
func (c *Context) DrainAudioChunkOut() int {
	n := 0
	for {
		select {
		case <-c.AudioChunkOut:
			n++
		default:
			return n
		}
	}
}

// PushUI enqueues a UI message without blocking the caller on backpressure
// policy beyond the buffer itself; the UI queue is specified unbounded.
func (c *Context) PushUI(msg events.UIMessage) {
	select {
	case c.UI <- msg:
	default:
		// Buffer saturated: this indicates a stalled client reader. Spec
		// treats the UI queue as unbounded; we drop the oldest-effort here
		// only as a last resort to keep the session alive.
		select {
		case <-c.UI:
		default:
		}
		select {
		case c.UI <- msg:
		default:
		}
	}
}

func (c *Context) PushDisplay(d events.DisplayMessage) {
	c.PushUI(events.UIMessage{Display: &d})
}

func (c *Context) PushSignal(s events.SignalMessage) {
	c.PushUI(events.UIMessage{Signal: &s})
}
