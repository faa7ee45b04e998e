// Package ttsprovider adapts third-party text-to-speech services to the
// streaming contract spec.md §6.3 requires: a lazy, cancellable byte-chunk
// stream per request.
package ttsprovider

import "context"

// Provider is the streaming TTS contract (spec.md §6.3). StreamSynthesize
// must stop producing chunks promptly once ctx is cancelled — this is how
// the TTS worker implements barge-in abort.
type Provider interface {
	StreamSynthesize(ctx context.Context, text, language, voiceID string) (<-chan []byte, <-chan error)
	Name() string
}
