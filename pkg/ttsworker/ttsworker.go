// Package ttsworker implements the TTS worker (spec.md §4.6): dequeues
// TTSRequests, streams synthesized audio to the sink queue, and honors
// mid-stream barge-in by aborting the provider stream.
//
// Grounded on original_source/.../audio/output/audio_output.py
// (AudioOutput.run: dequeue request, clear interrupt, stream chunks while
// not interrupted, always enqueue the end-of-stream sentinel on exit) and
// pkg/orchestrator/managed_stream.go cancellation-on-abort
// pattern (here: a per-request context cancelled when the shared interrupt
// flag flips, rather than a bespoke Abort() call).
package ttsworker

import (
	"context"
	"time"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/runtime"
	"github.com/tank-voice/assistant/pkg/ttsprovider"
)

// interruptPollInterval bounds how long an abort can lag behind the
// interrupt flag flipping, since the provider stream is otherwise only
// watched via its own channels.
const interruptPollInterval = 15 * time.Millisecond

// Metrics is the narrow instrumentation seam this worker reports the
// TTS-to-first-chunk stage latency through (SPEC_FULL.md "Supplemented
// features": per-stage histograms alongside perception and
// LLM-to-first-delta). A nil Metrics is never dereferenced; noOpMetrics is
// the zero-dependency default.
type Metrics interface {
	ObserveTTSFirstChunk(d time.Duration)
}

type noOpMetrics struct{}

func (noOpMetrics) ObserveTTSFirstChunk(time.Duration) {}

// Worker is the single consumer of a session's AudioOutput queue.
type Worker struct {
	rc       *runtime.Context
	provider ttsprovider.Provider
	sink     chan<- audioio.AudioChunk
	sampleRate int
	log      logging.Logger
	metrics  Metrics
}

func NewWorker(rc *runtime.Context, provider ttsprovider.Provider, sink chan<- audioio.AudioChunk, sampleRate int, log logging.Logger) *Worker {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Worker{rc: rc, provider: provider, sink: sink, sampleRate: sampleRate, log: log, metrics: noOpMetrics{}}
}

// WithMetrics reports the TTS-to-first-chunk stage latency through m
// instead of the zero-dependency default.
func (w *Worker) WithMetrics(m Metrics) *Worker {
	if m != nil {
		w.metrics = m
	}
	return w
}

// Run consumes TTSRequests until the queue closes or ctx is cancelled. The
// worker is the sink channel's sole producer, so it closes the channel on
// exit to let the sink's range loop terminate rather than leak.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.sink)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-w.rc.AudioOutput:
			if !ok {
				return
			}
			w.handleRequest(ctx, req)
		}
	}
}

func (w *Worker) handleRequest(ctx context.Context, req events.TTSRequest) {
	// spec.md §4.6 step 2: a fresh request clears the flag — this request
	// was not superseded at enqueue time.
	w.rc.Interrupt.Clear()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	abortTicker := time.NewTicker(interruptPollInterval)
	defer abortTicker.Stop()
	go func() {
		for {
			select {
			case <-reqCtx.Done():
				return
			case <-abortTicker.C:
				if w.rc.Interrupt.IsSet() {
					cancel()
					return
				}
			}
		}
	}()

	ttsStart := time.Now()
	chunks, errs := w.provider.StreamSynthesize(reqCtx, req.Text, req.Language, req.VoiceID)
	firstChunk := true

	defer func() {
		// spec.md §4.6: "a sink always receives an end-of-stream sentinel,
		// whether the stream completed, was aborted, or errored."
		select {
		case w.sink <- audioio.EndOfStream:
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case data, ok := <-chunks:
			if !ok {
				chunks = nil
				if errs == nil {
					return
				}
				continue
			}
			if firstChunk {
				// SPEC_FULL.md per-stage instrumentation: TTS-to-first-chunk.
				w.metrics.ObserveTTSFirstChunk(time.Since(ttsStart))
				firstChunk = false
			}
			select {
			case w.sink <- audioio.AudioChunk{Data: data, SampleRate: w.sampleRate, Channels: 1}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				if chunks == nil {
					return
				}
				continue
			}
			if err != nil {
				w.log.Warn("tts stream error", "error", err, "provider", w.provider.Name())
			}
		case <-ctx.Done():
			return
		}
	}
}
