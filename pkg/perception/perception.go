package perception

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/runtime"
)

// Metrics is the narrow instrumentation seam this worker reports the
// perception stage's latency through (SPEC_FULL.md "Supplemented
// features": per-stage histograms alongside LLM-to-first-delta and
// TTS-to-first-chunk). A nil Metrics is never dereferenced; noOpMetrics is
// the zero-dependency default.
type Metrics interface {
	ObservePerceptionLatency(d time.Duration)
}

type noOpMetrics struct{}

func (noOpMetrics) ObservePerceptionLatency(time.Duration) {}

// BargeInFunc is invoked exactly once per utterance on the first
// non-empty partial transcript (spec.md §4.3 step 3, §4.8 trigger (a)).
type BargeInFunc func()

// Worker is the single consumer of a session's frame queue (spec.md §4.3).
type Worker struct {
	frames  <-chan audioio.AudioFrame
	asr     ASRProvider
	rc      *runtime.Context
	user    string
	onBargeIn BargeInFunc
	log     logging.Logger
	metrics Metrics

	vad       *VAD
	echoGuard *EchoGuard

	lastText    string
	bargeInDone bool
	msgID       string
}

type Option func(*Worker)

// WithVADPrefilter enables the optional VAD/echo pre-filter ahead of the
// recognizer (SPEC_FULL.md "Supplemented features"), for the local-
// microphone deployment path.
func WithVADPrefilter(vad *VAD, echoGuard *EchoGuard) Option {
	return func(w *Worker) {
		w.vad = vad
		w.echoGuard = echoGuard
	}
}

func NewWorker(frames <-chan audioio.AudioFrame, asr ASRProvider, rc *runtime.Context, user string, onBargeIn BargeInFunc, log logging.Logger, opts ...Option) *Worker {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	w := &Worker{frames: frames, asr: asr, rc: rc, user: user, onBargeIn: onBargeIn, log: log, metrics: noOpMetrics{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithMetrics reports per-frame ASR latency through m instead of the
// zero-dependency default (SPEC_FULL.md per-stage histograms).
func WithMetrics(m Metrics) Option {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// Run consumes frames until the channel closes or ctx is cancelled
// (spec.md §4.3 steps 1-6).
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-w.frames:
			if !ok {
				return
			}
			w.handleFrame(ctx, frame)
		}
	}
}

func (w *Worker) handleFrame(ctx context.Context, frame audioio.AudioFrame) {
	if w.vad != nil {
		if w.echoGuard != nil && w.echoGuard.IsEcho(frame.PCM) {
			return // treat as echo of our own playback; do not feed ASR
		}
		if ev := w.vad.Process(frame.PCM); ev != nil && ev.Kind == VADSilence {
			return // no speech energy; skip the recognizer call entirely
		}
	}

	feedStart := time.Now()
	text, isEndpoint, err := w.asr.Feed(ctx, frame.PCM, frame.SampleRate)
	w.metrics.ObservePerceptionLatency(time.Since(feedStart))
	if err != nil {
		// spec.md §4.3 "Failure policy": log and skip, keep consuming.
		w.log.Warn("asr feed error", "error", err)
		return
	}

	if text != "" && !w.bargeInDone {
		w.bargeInDone = true
		if w.onBargeIn != nil {
			w.onBargeIn()
		}
	}

	if w.msgID == "" {
		w.msgID = uuid.NewString()
	}

	if text != w.lastText || isEndpoint {
		w.rc.PushDisplay(events.DisplayMessage{
			Speaker: w.user,
			Text:    text,
			IsUser:  true,
			IsFinal: isEndpoint,
			MsgID:   w.msgID,
			Update:  events.UpdateText,
		})
		w.lastText = text
	}

	if isEndpoint {
		if text != "" {
			w.rc.BrainInput <- events.BrainInputEvent{
				Source: events.SourceAudio,
				Text:   text,
				User:   w.user,
			}
		}
		w.asr.Reset()
		w.lastText = ""
		w.bargeInDone = false
		w.msgID = ""
	}
}
