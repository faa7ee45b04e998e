package perception

import (
	"math"
	"sync"
)

// echoRefWindow is how much recently-played audio is retained for
// correlation against freshly-captured mic frames.
const echoRefWindow = 16000 // ~1s of float32 samples at 16kHz

// EchoGuard suppresses self-capture of the assistant's own TTS output when
// a live microphone shares a room with its speaker. It correlates each
// incoming mic frame against a rolling buffer of recently-played samples
// and mutes frames that match closely enough to be an echo rather than
// genuine user speech.
//
// Grounded on pkg/orchestrator/echo_suppression.go
// (EchoSuppressor: time-domain cross-correlation between captured and
// played audio, real-time mute-on-match plus an offline PostProcess pass).
// This is an independent, smaller-scope reimplementation in the same
// spirit, not a line-for-line port — file mixes in several
// postprocessing passes (envelope correlation for sibilants) that this
// repo's local-mic deployment path does not need given the WebSocket path
// carries no physical echo at all.
type EchoGuard struct {
	mu        sync.Mutex
	reference []float32
}

func NewEchoGuard() *EchoGuard {
	return &EchoGuard{}
}

// RecordPlayed appends samples the assistant just sent to the speaker to
// the reference buffer, trimming to echoRefWindow.
func (e *EchoGuard) RecordPlayed(samples []float32) {
	if len(samples) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reference = append(e.reference, samples...)
	if len(e.reference) > echoRefWindow {
		e.reference = e.reference[len(e.reference)-echoRefWindow:]
	}
}

// Clear drops the reference buffer — called on interrupt, since a fresh
// speaking context means prior playback is no longer relevant to compare
// against.
func (e *EchoGuard) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reference = nil
}

// IsEcho reports whether captured is likely a capture of previously
// played audio, via normalized cross-correlation against the tail of the
// reference buffer.
func (e *EchoGuard) IsEcho(captured []float32) bool {
	if len(captured) == 0 {
		return false
	}
	e.mu.Lock()
	ref := e.reference
	e.mu.Unlock()
	if len(ref) == 0 {
		return false
	}

	n := len(captured)
	if n > len(ref) {
		n = len(ref)
	}
	tail := ref[len(ref)-n:]
	corr := normalizedCorrelation(captured[len(captured)-n:], tail)
	const echoCorrelationThreshold = 0.85
	return corr >= echoCorrelationThreshold
}

func normalizedCorrelation(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
