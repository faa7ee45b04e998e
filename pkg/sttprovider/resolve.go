package sttprovider

import (
	"time"

	"github.com/tank-voice/assistant/pkg/perception"
)

// Resolve picks a concrete ASRProvider by name, mirroring the teacher's
// cmd/agent/main.go STT-selection switch (openai/deepgram/assemblyai/groq)
// collapsed to the two wire shapes this repo actually implements: a live
// streaming recognizer (Deepgram) and a batch Whisper-style endpoint for
// OpenAI-compatible gateways (openai, groq) that don't expose one. Unknown
// names fall back to "streaming", matching switch-default
// idiom.
func Resolve(provider, apiKey, model string, silenceHold time.Duration, vadThreshold float64) perception.ASRProvider {
	switch provider {
	case "whisper":
		return NewWhisper(apiKey, model, silenceHold, vadThreshold)
	case "groq":
		return NewGroqWhisper(apiKey, model, silenceHold, vadThreshold)
	case "streaming":
		fallthrough
	default:
		return NewDeepgram(apiKey)
	}
}
