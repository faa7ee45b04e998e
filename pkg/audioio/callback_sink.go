package audioio

import "github.com/tank-voice/assistant/pkg/logging"

// CallbackSink consumes chunks from a queue and passes them to an injected
// callback — used by the WebSocket client adapter to forward PCM as
// binary frames, and by tests to capture output.
//
// Grounded on original_source/.../audio/output/callback_sink.py
// (CallbackAudioSink: queue-consumer loop, sentinel → on_stream_end).
//
// interrupt is a predicate rather than *runtime.InterruptFlag directly:
// pkg/runtime needs to reference AudioChunk for its audio-out queue, so
// this package cannot import pkg/runtime without a cycle.
type CallbackSink struct {
	chunks      <-chan AudioChunk
	interrupt   func() bool
	onChunk     func(AudioChunk)
	onStreamEnd func()
	log         logging.Logger
	done        chan struct{}
}

func NewCallbackSink(chunks <-chan AudioChunk, interrupt func() bool, onChunk func(AudioChunk), onStreamEnd func(), log logging.Logger) *CallbackSink {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &CallbackSink{
		chunks:      chunks,
		interrupt:   interrupt,
		onChunk:     onChunk,
		onStreamEnd: onStreamEnd,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (s *CallbackSink) Start() {
	go s.run()
}

func (s *CallbackSink) run() {
	defer close(s.done)
	for chunk := range s.chunks {
		if chunk.End {
			if s.onStreamEnd != nil {
				s.onStreamEnd()
			}
			continue
		}
		if s.interrupt != nil && s.interrupt() {
			continue
		}
		if s.onChunk != nil {
			s.onChunk(chunk)
		}
	}
}

func (s *CallbackSink) Join() { <-s.done }
