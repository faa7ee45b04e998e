package audioio

import (
	"sync"

	"github.com/tank-voice/assistant/pkg/logging"
)

// QueueSource is an ingest source fed by externally pushed frames — the
// variant used by remote (WebSocket) clients. Push drops the incoming
// frame when the bounded frame queue is full, preferring liveness over
// completeness (spec.md §4.2).
//
// Grounded on original_source/.../audio/input/queue_source.py
// (QueueAudioSource: put_nowait, drop+warn on queue.Full).
type QueueSource struct {
	frames chan AudioFrame
	log    logging.Logger

	mu      sync.Mutex
	stopped bool
}

// NewQueueSource builds a queue-backed source with the given bound.
func NewQueueSource(queueSize int, log logging.Logger) *QueueSource {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &QueueSource{
		frames: make(chan AudioFrame, queueSize),
		log:    log,
	}
}

// Frames exposes the read side for perception to consume.
func (s *QueueSource) Frames() <-chan AudioFrame { return s.frames }

func (s *QueueSource) Start() { s.log.Info("queue audio source started") }

func (s *QueueSource) Join() {}

// Push delivers an externally-received frame. Drops the frame and logs a
// warning if the bounded queue is full.
func (s *QueueSource) Push(frame AudioFrame) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	select {
	case s.frames <- frame:
	default:
		s.log.Warn("frame queue full, dropping frame")
	}
}

func (s *QueueSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.frames)
}
