// Package perception implements the streaming perception worker
// (spec.md §4.3): feeds frames into streaming ASR, emits partial/final
// transcripts, fires barge-in on first non-empty partial.
package perception

import "context"

// ASRProvider is the streaming ASR contract (spec.md §6.2): a stateful
// stream accepting PCM and yielding (text, is_endpoint) per feed. Reset is
// called automatically by the worker on endpoint.
type ASRProvider interface {
	Feed(ctx context.Context, pcm []float32, sampleRate int) (text string, isEndpoint bool, err error)
	Reset()
	Name() string
}
