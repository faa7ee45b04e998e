package audioio

import (
	"sync"

	"github.com/tank-voice/assistant/pkg/logging"
)

// fadeDurationMs is the linear fade-in/fade-out ramp length applied at the
// start and end of each utterance's PCM stream to avoid boundary clicks
// (spec.md §4.7: "fade length ≈ 5 ms of samples; ramp is linear in
// amplitude").
const fadeDurationMs = 5

// PlaybackSink drives an output device buffer with fade-in on the first
// chunk of an utterance and fade-out on the last, and flushes immediately
// on interrupt.
//
// Grounded on original_source/.../audio/output/playback_worker.py (the
// counterpart to callback_sink.py for local speaker playback) and the
// cmd/agent/main.go onSamples output-buffer pattern.
type PlaybackSink struct {
	chunks     <-chan AudioChunk
	interrupt  func() bool
	sampleRate int
	log        logging.Logger

	mu      sync.Mutex
	buffer  []byte
	playing bool

	done chan struct{}
}

// NewPlaybackSink builds a sink. interrupt is a predicate rather than
// *runtime.InterruptFlag directly: pkg/runtime references AudioChunk for
// its audio-out queue, so this package cannot import pkg/runtime without
// a cycle.
func NewPlaybackSink(chunks <-chan AudioChunk, interrupt func() bool, sampleRate int, log logging.Logger) *PlaybackSink {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &PlaybackSink{
		chunks:     chunks,
		interrupt:  interrupt,
		sampleRate: sampleRate,
		log:        log,
		done:       make(chan struct{}),
	}
}

func (s *PlaybackSink) Start() {
	go s.run()
}

func (s *PlaybackSink) run() {
	defer close(s.done)
	first := true
	for chunk := range s.chunks {
		if chunk.End {
			s.applyFade(true)
			first = true
			continue
		}
		if s.interrupt != nil && s.interrupt() {
			s.flush()
			first = true
			continue
		}
		data := chunk.Data
		if first {
			data = fadeIn(data, s.sampleRate)
			first = false
		}
		s.mu.Lock()
		s.buffer = append(s.buffer, data...)
		s.playing = true
		s.mu.Unlock()
	}
}

// applyFade ramps the tail of the current buffer to silence.
func (s *PlaybackSink) applyFade(final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !final || len(s.buffer) == 0 {
		return
	}
	fadeOutTail(s.buffer, s.sampleRate)
}

// flush discards buffered audio immediately (interrupt path).
func (s *PlaybackSink) flush() {
	s.mu.Lock()
	s.buffer = nil
	s.playing = false
	s.mu.Unlock()
}

// Pull drains up to n bytes for the device callback to play, matching
// MicSource's onPlaybackPull signature.
func (s *PlaybackSink) Pull(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.buffer) {
		n = len(s.buffer)
	}
	out := s.buffer[:n]
	s.buffer = s.buffer[n:]
	if len(s.buffer) == 0 {
		s.playing = false
	}
	return out
}

func (s *PlaybackSink) Join() { <-s.done }

func fadeSamples(sampleRate int) int {
	n := sampleRate * fadeDurationMs / 1000
	if n < 1 {
		n = 1
	}
	return n
}

// fadeIn ramps the first fadeSamples(rate) int16 samples linearly from 0 to
// full amplitude.
func fadeIn(data []byte, sampleRate int) []byte {
	n := fadeSamples(sampleRate)
	out := make([]byte, len(data))
	copy(out, data)
	total := len(out) / 2
	if n > total {
		n = total
	}
	for i := 0; i < n; i++ {
		scale := float64(i) / float64(n)
		idx := i * 2
		s := int16(out[idx]) | int16(out[idx+1])<<8
		scaled := int16(float64(s) * scale)
		out[idx] = byte(scaled)
		out[idx+1] = byte(scaled >> 8)
	}
	return out
}

// fadeOutTail ramps the last fadeSamples(rate) int16 samples of buf
// linearly from full amplitude to 0, in place.
func fadeOutTail(buf []byte, sampleRate int) {
	n := fadeSamples(sampleRate)
	total := len(buf) / 2
	if n > total {
		n = total
	}
	start := total - n
	for i := 0; i < n; i++ {
		scale := 1.0 - float64(i+1)/float64(n)
		idx := (start + i) * 2
		s := int16(buf[idx]) | int16(buf[idx+1])<<8
		scaled := int16(float64(s) * scale)
		buf[idx] = byte(scaled)
		buf[idx+1] = byte(scaled >> 8)
	}
}
