package sttprovider

import (
	"testing"
	"time"
)

func TestResolvePicksWhisperByName(t *testing.T) {
	p := Resolve("whisper", "key", "", time.Second, 0.05)
	if p.Name() != "whisper-stt" {
		t.Fatalf("Resolve(whisper) = %T %q, want whisper-stt", p, p.Name())
	}
}

func TestResolvePicksGroqWhisperByName(t *testing.T) {
	p := Resolve("groq", "key", "", time.Second, 0.05)
	w, ok := p.(*Whisper)
	if !ok || w.url != groqTranscriptionsURL {
		t.Fatalf("Resolve(groq) = %+v, want a *Whisper pointed at %q", p, groqTranscriptionsURL)
	}
}

func TestResolveDefaultsToStreaming(t *testing.T) {
	for _, provider := range []string{"streaming", "", "unknown"} {
		p := Resolve(provider, "key", "", time.Second, 0.05)
		if p.Name() != "deepgram-stt" {
			t.Fatalf("Resolve(%q) = %q, want deepgram-stt", provider, p.Name())
		}
	}
}
