// Command localmic runs one conversation against the local microphone and
// speaker, descended from cmd/agent/main.go: same malgo
// duplex device setup and env-driven provider selection, now wired
// through this repo's session/runtime/brain machinery instead of the
// orchestrator.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/brain"
	"github.com/tank-voice/assistant/pkg/config"
	"github.com/tank-voice/assistant/pkg/events"
	"github.com/tank-voice/assistant/pkg/llmprovider"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/perception"
	"github.com/tank-voice/assistant/pkg/runtime"
	"github.com/tank-voice/assistant/pkg/sttprovider"
	"github.com/tank-voice/assistant/pkg/tools"
	"github.com/tank-voice/assistant/pkg/ttsprovider"
	"github.com/tank-voice/assistant/pkg/ttsworker"
)

const localSampleRate = 16000

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLog, err := logging.NewZap()
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer zapLog.Sync()

	rc := runtime.New(cfg.AudioChunkQueueSize)

	sinkQueue := make(chan audioio.AudioChunk, cfg.AudioChunkQueueSize)
	playback := audioio.NewPlaybackSink(sinkQueue, rc.Interrupt.IsSet, localSampleRate, zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vad := perception.NewVAD(cfg.VADThreshold, cfg.SilenceHold)
	echoGuard := perception.NewEchoGuard()

	// Every block sent to the speaker is also recorded into the echo guard,
	// so mic frames that replay it are recognized as echo.
	mic, err := audioio.NewMicSource(localSampleRate, cfg.FrameQueueSize, nil, zapLog, func(n int) []byte {
		out := playback.Pull(n)
		played := make([]float32, len(out)/2)
		for i := range played {
			played[i] = float32(int16(uint16(out[2*i])|uint16(out[2*i+1])<<8)) / 32768.0
		}
		echoGuard.RecordPlayed(played)
		return out
	})
	if err != nil {
		log.Fatalf("microphone: %v", err)
	}

	llm := llmprovider.NewOpenAI(cfg.LLMAPIKey, cfg.LLMModel, llmprovider.ResolveBaseURL(cfg.LLMProvider, cfg.LLMBaseURL))
	asr := sttprovider.Resolve(cfg.STTProvider, cfg.STTAPIKey, "", cfg.SilenceHold, cfg.VADThreshold)
	tts := ttsprovider.NewLokutor(cfg.TTSAPIKey)

	toolRegistry := tools.NewRegistry()
	toolRegistry.Register(&tools.CalculatorTool{})
	toolRegistry.Register(&tools.ClockTool{})

	brainCfg := brain.DefaultConfig()
	brainCfg.MaxTurns = cfg.MaxTurns
	brainCfg.MaxToolIterations = cfg.MaxToolIterations

	done := make(chan struct{})
	onExit := func() { close(done) }

	b := brain.New(llm, toolRegistry, rc, brainCfg, zapLog, brain.NoOpMetrics{}, onExit, func() {})
	ttsW := ttsworker.NewWorker(rc, tts, sinkQueue, localSampleRate, zapLog)
	perceptionWorker := perception.NewWorker(mic.Frames(), asr, rc, "local-user", func() {
		rc.Interrupt.Set()
		rc.DrainAudioOutput()
		echoGuard.Clear()
	}, zapLog, perception.WithVADPrefilter(vad, echoGuard))

	go logUIMessages(rc, zapLog)

	mic.Start()
	playback.Start()
	go perceptionWorker.Run(ctx)
	go ttsW.Run(ctx)
	go b.Run(ctx)

	zapLog.Info("listening on local microphone; say \"exit\" to quit")

	select {
	case <-ctx.Done():
	case <-done:
	}

	mic.Stop()
	playback.Join()
}

// logUIMessages prints assistant text and lifecycle signals to the
// terminal — the local path has no WebSocket client to render them.
func logUIMessages(rc *runtime.Context, log logging.Logger) {
	for msg := range rc.UI {
		switch {
		case msg.Display != nil && msg.Display.Update == events.UpdateText && msg.Display.Text != "":
			log.Info("assistant", "text", msg.Display.Text, "final", msg.Display.IsFinal)
		case msg.Signal != nil:
			log.Debug("signal", "kind", msg.Signal.Signal)
		}
	}
}
