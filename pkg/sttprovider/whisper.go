package sttprovider

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/tank-voice/assistant/pkg/audioio"
)

// Whisper adapts an OpenAI-compatible batch transcription endpoint
// (/v1/audio/transcriptions) to the stateful streaming ASR contract
// (spec.md §6.2) by buffering PCM locally and calling the endpoint once a
// period of silence marks an utterance boundary, rather than streaming.
//
// Grounded on pkg/providers/stt/openai.go (OpenAISTT:
// multipart WAV upload, "Bearer"-prefixed auth, whisper-1 default model)
// and pkg/providers/stt/groq.go (GroqSTT: identical multipart shape against
// Groq's OpenAI-compatible transcriptions endpoint, whisper-large-v3-turbo
// default model) — both collapse to the same wire protocol, so one
// baseURL-parameterized adapter covers both, the way llmprovider.OpenAI
// covers OpenAI/Groq/OpenRouter chat completions. Also grounded on
// original_source's transcription.py (save_audio_to_temp_file/
// record_audio: buffer audio until a pause, then transcribe the whole
// clip) for the buffer-until-silence shape — the batch-endpoint
// counterpart to sttprovider/deepgram.go's streaming adapter.
type Whisper struct {
	apiKey string
	url    string
	model  string

	silenceHold   time.Duration
	silenceThresh float64

	mu           sync.Mutex
	buf          []float32
	sampleRate   int
	silenceSince time.Time
	speaking     bool
}

const openAITranscriptionsURL = "https://api.openai.com/v1/audio/transcriptions"
const groqTranscriptionsURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// NewWhisper builds a provider against the OpenAI transcriptions endpoint.
// silenceHold is how long RMS energy must stay below silenceThresh before
// the buffered clip is flushed and sent.
func NewWhisper(apiKey, model string, silenceHold time.Duration, silenceThresh float64) *Whisper {
	return newWhisper(apiKey, openAITranscriptionsURL, model, "whisper-1", silenceHold, silenceThresh)
}

// NewGroqWhisper builds a provider against Groq's OpenAI-compatible
// transcriptions endpoint, mirroring NewGroqSTT default model.
func NewGroqWhisper(apiKey, model string, silenceHold time.Duration, silenceThresh float64) *Whisper {
	return newWhisper(apiKey, groqTranscriptionsURL, model, "whisper-large-v3-turbo", silenceHold, silenceThresh)
}

func newWhisper(apiKey, url, model, defaultModel string, silenceHold time.Duration, silenceThresh float64) *Whisper {
	if model == "" {
		model = defaultModel
	}
	return &Whisper{
		apiKey:        apiKey,
		url:           url,
		model:         model,
		silenceHold:   silenceHold,
		silenceThresh: silenceThresh,
	}
}

func (w *Whisper) Name() string { return "whisper-stt" }

// Feed accumulates pcm into the current utterance buffer and flushes (calls
// the transcription endpoint and reports isEndpoint=true) once silenceHold
// has elapsed since the last frame with energy above silenceThresh.
func (w *Whisper) Feed(ctx context.Context, pcm []float32, sampleRate int) (string, bool, error) {
	w.mu.Lock()
	w.sampleRate = sampleRate
	loud := audioio.RMS(pcm) >= w.silenceThresh
	if loud {
		w.speaking = true
		w.silenceSince = time.Now()
		w.buf = append(w.buf, pcm...)
		w.mu.Unlock()
		return "", false, nil
	}

	if !w.speaking {
		w.mu.Unlock()
		return "", false, nil
	}

	w.buf = append(w.buf, pcm...)
	if time.Since(w.silenceSince) < w.silenceHold {
		w.mu.Unlock()
		return "", false, nil
	}

	clip := w.buf
	rate := w.sampleRate
	w.buf = nil
	w.speaking = false
	w.silenceSince = time.Time{}
	w.mu.Unlock()

	if len(clip) == 0 {
		return "", true, nil
	}

	text, err := w.transcribe(ctx, clip, rate)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Reset discards any buffered, not-yet-flushed audio for the current
// utterance, matching the provider contract's "auto-reset on endpoint"
// (handleFrame already flushed via Feed before calling Reset, so this only
// guards against a Reset arriving mid-utterance from a caller-triggered
// interrupt).
func (w *Whisper) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = nil
	w.speaking = false
	w.silenceSince = time.Time{}
}

func (w *Whisper) transcribe(ctx context.Context, pcm []float32, sampleRate int) (string, error) {
	wavData := encodeWAV(encodePCM16(pcm), sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("model", w.model); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper transcribe: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// encodeWAV wraps raw PCM16 bytes in a minimal canonical WAV header,
// adapted from pkg/audio.NewWavBuffer (mono, 16-bit).
func encodeWAV(pcm16 []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm16)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm16)))
	buf.Write(pcm16)

	return buf.Bytes()
}
