// Package audioio defines the audio data model (spec.md §3) and the
// ingest-source / sink abstractions (spec.md §4.2, §4.7).
package audioio

import "time"

// AudioFrame is one immutable slice of mono PCM, produced by an ingest
// source and consumed once by perception. Samples are 32-bit floats in
// [-1.0, 1.0]. Expected rate 16kHz; typical duration 10-20ms.
type AudioFrame struct {
	PCM        []float32
	SampleRate int
	Timestamp  time.Time
}

// AudioChunk is one immutable slice of encoded PCM produced by the TTS
// worker and consumed by a sink: little-endian signed 16-bit samples.
// A nil Data slice with End set to true is the end-of-stream sentinel.
type AudioChunk struct {
	Data       []byte
	SampleRate int
	Channels   int
	End        bool
}

// EndOfStream is the sentinel AudioChunk marking stream termination
// (spec.md §3: "a null/sentinel value marks end-of-stream").
var EndOfStream = AudioChunk{End: true}

// Source is the ingest-source capability (spec.md §4.2): start, join,
// push. It does not interpret audio, only delivers frames.
type Source interface {
	Start()
	Join()
	Push(frame AudioFrame)
	Stop()
}

// Sink is the audio-sink capability (spec.md §4.7): consume chunks until
// the end-of-stream sentinel, then signal completion.
type Sink interface {
	Start()
	Join()
}
