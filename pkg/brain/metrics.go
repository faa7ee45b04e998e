package brain

import "time"

// Metrics is the instrumentation seam the brain reports per-turn stage
// durations through (SPEC_FULL.md "Supplemented features": per-turn
// latency instrumentation, grounded on ManagedStream
// sttStartTime/llmStartTime/... fields and GetLatencyBreakdown()).
// A nil Metrics is never dereferenced; NoOpMetrics is the zero-dependency
// default. ObserveLLMFirstDelta reports the LLM-to-first-delta stage
// duration named alongside perception and TTS-to-first-chunk in
// SPEC_FULL.md's per-stage histogram set.
type Metrics interface {
	ObserveLLMTurn(d time.Duration)
	ObserveLLMFirstDelta(d time.Duration)
	ObserveToolExecution(name string, d time.Duration)
	IncToolLoopExceeded()
}

type NoOpMetrics struct{}

func (NoOpMetrics) ObserveLLMTurn(time.Duration)               {}
func (NoOpMetrics) ObserveLLMFirstDelta(time.Duration)         {}
func (NoOpMetrics) ObserveToolExecution(string, time.Duration) {}
func (NoOpMetrics) IncToolLoopExceeded()                       {}
