package perception

import (
	"math"
	"time"
)

// VAD is a lightweight RMS-based voice activity detector with hysteresis:
// a run of consecutive above-threshold frames confirms speech-start, and a
// hold duration of below-threshold frames confirms speech-end. Used as an
// optional pre-filter ahead of the ASR recognizer for the local-microphone
// deployment path (SPEC_FULL.md "Supplemented features").
//
// Grounded on pkg/orchestrator/vad.go (RMSVAD): confirm-frame
// hysteresis for speech-start, silence-duration hold for speech-end. The
// managed_stream.go additionally references SetAdaptiveMode and
// MinConfirmed on this type without them existing in vad.go as retrieved;
// this version defines them consistently rather than reproducing that
// inconsistency (the adaptive flag is stored on the VAD; the threshold
// logic does not read it).
type VAD struct {
	threshold    float64
	silenceLimit time.Duration
	minConfirmed int
	adaptive     bool

	speaking          bool
	consecutiveFrames int
	silenceStart      time.Time
	lastRMS           float64
}

func NewVAD(threshold float64, silenceLimit time.Duration) *VAD {
	return &VAD{
		threshold:    threshold,
		silenceLimit: silenceLimit,
		minConfirmed: 7,
		adaptive:     true,
	}
}

type VADEventKind string

const (
	VADSpeechStart VADEventKind = "SPEECH_START"
	VADSpeechEnd   VADEventKind = "SPEECH_END"
	VADSilence     VADEventKind = "SILENCE"
)

type VADEvent struct {
	Kind      VADEventKind
	Timestamp time.Time
}

func (v *VAD) SetMinConfirmed(n int)     { v.minConfirmed = n }
func (v *VAD) MinConfirmed() int         { return v.minConfirmed }
func (v *VAD) SetThreshold(t float64)    { v.threshold = t }
func (v *VAD) Threshold() float64        { return v.threshold }
func (v *VAD) SetAdaptiveMode(on bool)   { v.adaptive = on }
func (v *VAD) AdaptiveMode() bool        { return v.adaptive }
func (v *VAD) LastRMS() float64          { return v.lastRMS }
func (v *VAD) IsSpeaking() bool          { return v.speaking }

func (v *VAD) Reset() {
	v.speaking = false
	v.consecutiveFrames = 0
	v.silenceStart = time.Time{}
}

// Process consumes one frame of mono float32 PCM and reports a speech
// boundary event, or nil during steady state.
func (v *VAD) Process(pcm []float32) *VADEvent {
	rms := rmsOf(pcm)
	v.lastRMS = rms
	now := time.Now()

	if rms > v.threshold {
		v.consecutiveFrames++
		if !v.speaking {
			if v.consecutiveFrames >= v.minConfirmed {
				v.speaking = true
				return &VADEvent{Kind: VADSpeechStart, Timestamp: now}
			}
			return nil
		}
		v.silenceStart = time.Time{}
		return nil
	}

	v.consecutiveFrames = 0
	if v.speaking {
		if v.silenceStart.IsZero() {
			v.silenceStart = now
		}
		if now.Sub(v.silenceStart) >= v.silenceLimit {
			v.speaking = false
			v.silenceStart = time.Time{}
			return &VADEvent{Kind: VADSpeechEnd, Timestamp: now}
		}
		return nil
	}
	return &VADEvent{Kind: VADSilence, Timestamp: now}
}

func rmsOf(pcm []float32) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, f := range pcm {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
