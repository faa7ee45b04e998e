package audioio

import (
	"math"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/tank-voice/assistant/pkg/logging"
)

// MicSource captures from a hardware device at a configured frame
// duration, for the local-CLI deployment path (cmd/localmic).
//
// Grounded on cmd/agent/main.go malgo duplex device setup
// (onSamples callback converting int16 PCM to float32 and pushing it
// through the pipeline).
type MicSource struct {
	frames      chan AudioFrame
	sampleRate  int
	log         logging.Logger
	malgoCtx    *malgo.AllocatedContext
	device      *malgo.Device
	deviceIndex *int
}

// NewMicSource opens a duplex capture/playback device. onPlaybackPull is
// called from the device callback to fetch bytes to play (may return
// fewer bytes than requested; remainder is padded with silence).
func NewMicSource(sampleRate int, queueSize int, deviceIndex *int, log logging.Logger, onPlaybackPull func(n int) []byte) (*MicSource, error) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &MicSource{
		frames:      make(chan AudioFrame, queueSize),
		sampleRate:  sampleRate,
		log:         log,
		deviceIndex: deviceIndex,
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	s.malgoCtx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			pcm := make([]float32, len(pInput)/2)
			for i := 0; i < len(pcm); i++ {
				sample := int16(pInput[2*i]) | int16(pInput[2*i+1])<<8
				pcm[i] = float32(sample) / 32768.0
			}
			frame := AudioFrame{PCM: pcm, SampleRate: sampleRate, Timestamp: time.Now()}
			select {
			case s.frames <- frame:
			default:
				s.log.Warn("mic frame queue full, dropping frame")
			}
		}
		if pOutput != nil && onPlaybackPull != nil {
			data := onPlaybackPull(len(pOutput))
			n := copy(pOutput, data)
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		mctx.Uninit()
		return nil, err
	}
	s.device = device

	return s, nil
}

func (s *MicSource) Frames() <-chan AudioFrame { return s.frames }

func (s *MicSource) Start() {
	if err := s.device.Start(); err != nil {
		s.log.Error("failed to start audio device", "error", err)
	}
}

func (s *MicSource) Join() {}

func (s *MicSource) Push(AudioFrame) {
	// Hardware-backed source: external pushes are not accepted.
}

func (s *MicSource) Stop() {
	if s.device != nil {
		s.device.Uninit()
	}
	if s.malgoCtx != nil {
		s.malgoCtx.Uninit()
	}
	close(s.frames)
}

// RMS computes root-mean-square energy of a float32 PCM slice, used by
// sttprovider.Whisper to tell speech frames from silence.
func RMS(pcm []float32) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, f := range pcm {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
