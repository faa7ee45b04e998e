package session

import (
	"context"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/brain"
	"github.com/tank-voice/assistant/pkg/config"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/perception"
	"github.com/tank-voice/assistant/pkg/runtime"
	"github.com/tank-voice/assistant/pkg/tools"
	"github.com/tank-voice/assistant/pkg/ttsprovider"
	"github.com/tank-voice/assistant/pkg/ttsworker"
)

// sessionSampleRate is the fixed PCM rate spec.md §6.1 specifies for the
// client channel.
const sessionSampleRate = 16000

// Deps bundles the providers and shared registries every session's
// factory closes over — built once at process startup and reused across
// every session.
type Deps struct {
	LLM         brain.LLMProvider
	ASRFactory  func() perception.ASRProvider // fresh recognizer state per session
	TTS         ttsprovider.Provider
	Tools       *tools.Registry
	BrainConfig brain.Config
	Cfg         config.Config
	Log         logging.Logger
	Metrics     brain.Metrics
}

// QueueFactory builds a remote (WebSocket) session: a QueueSource fed by
// the transport adapter, and a CallbackSink that forwards synthesized
// audio onto the runtime context's AudioChunkOut queue for the transport
// adapter to relay back over the socket.
//
// Grounded on original_source/.../core/worker.py's five-worker session
// graph (ingest -> perception -> brain -> tts -> sink), adapted to this
// repo's channel-per-stage runtime.Context instead of asyncio queues.
// registry is captured so the brain's exit command can tear its own
// session down asynchronously without the closing goroutine waiting on
// itself.
func QueueFactory(deps Deps, registry *Registry) Factory {
	return func(ctx context.Context, rc *runtime.Context, sessionID string) Built {
		source := audioio.NewQueueSource(deps.Cfg.FrameQueueSize, deps.Log)

		sinkQueue := make(chan audioio.AudioChunk, deps.Cfg.AudioChunkQueueSize)
		sink := audioio.NewCallbackSink(sinkQueue, rc.Interrupt.IsSet,
			func(chunk audioio.AudioChunk) {
				select {
				case rc.AudioChunkOut <- chunk:
				default:
					deps.Log.Warn("audio chunk out queue full, dropping chunk")
				}
			},
			func() { rc.PushSignal(events.SignalMessage{Signal: events.SignalTTSEnded}) },
			deps.Log,
		)

		var perceptionOpts []perception.Option
		if pm, ok := deps.Metrics.(perception.Metrics); ok {
			// Deps.Metrics is typed narrowly as brain.Metrics; the concrete
			// *metrics.Prometheus also satisfies the per-stage interfaces
			// perception/ttsworker declare (SPEC_FULL.md per-stage histograms).
			perceptionOpts = append(perceptionOpts, perception.WithMetrics(pm))
		}

		asr := deps.ASRFactory()
		perceptionWorker := perception.NewWorker(source.Frames(), asr, rc, sessionID, func() {
			// spec.md §4.8 trigger (a): first non-empty partial from this
			// session's own perception worker raises the interrupt.
			rc.Interrupt.Set()
			rc.DrainAudioOutput()
			rc.DrainAudioChunkOut()
		}, deps.Log, perceptionOpts...)

		b := brain.New(deps.LLM, deps.Tools, rc, deps.BrainConfig, deps.Log, deps.Metrics,
			func() { go registry.Close(sessionID) }, // onExit: tear the session down off the worker goroutine
			func() {},
		)
		ttsW := ttsworker.NewWorker(rc, deps.TTS, sinkQueue, sessionSampleRate, deps.Log)
		if tm, ok := deps.Metrics.(ttsworker.Metrics); ok {
			ttsW = ttsW.WithMetrics(tm)
		}

		return Built{
			Source: source,
			Workers: []func(context.Context) error{
				func(ctx context.Context) error { source.Start(); <-ctx.Done(); source.Stop(); return nil },
				func(ctx context.Context) error { perceptionWorker.Run(ctx); return nil },
				func(ctx context.Context) error { b.Run(ctx); return nil },
				func(ctx context.Context) error { ttsW.Run(ctx); return nil },
				func(ctx context.Context) error { sink.Start(); sink.Join(); return nil },
			},
		}
	}
}
