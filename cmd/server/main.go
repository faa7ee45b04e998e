// Command server is the process entrypoint for the remote (WebSocket)
// deployment path: one HTTP server exposing /ws for client sessions and
// /metrics for Prometheus scraping.
//
// Grounded on cmd/agent/main.go provider-selection idiom
// (env-driven switch statements picking concrete provider
// implementations, godotenv.Load before reading env), adapted from a
// single local conversation into an HTTP server fronting many.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tank-voice/assistant/pkg/brain"
	"github.com/tank-voice/assistant/pkg/config"
	"github.com/tank-voice/assistant/pkg/llmprovider"
	"github.com/tank-voice/assistant/pkg/logging"
	tankmetrics "github.com/tank-voice/assistant/pkg/metrics"
	"github.com/tank-voice/assistant/pkg/perception"
	"github.com/tank-voice/assistant/pkg/session"
	"github.com/tank-voice/assistant/pkg/sttprovider"
	"github.com/tank-voice/assistant/pkg/tools"
	"github.com/tank-voice/assistant/pkg/ttsprovider"
	"github.com/tank-voice/assistant/pkg/wsapi"
)

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

	registry := prometheus.NewRegistry()
	m := tankmetrics.New(registry)

	llm := llmprovider.NewOpenAI(cfg.LLMAPIKey, cfg.LLMModel, llmprovider.ResolveBaseURL(cfg.LLMProvider, cfg.LLMBaseURL))
	tts := ttsprovider.NewLokutor(cfg.TTSAPIKey)

	toolRegistry := tools.NewRegistry()
	toolRegistry.Register(&tools.CalculatorTool{})
	toolRegistry.Register(&tools.ClockTool{})

	brainCfg := brain.DefaultConfig()
	brainCfg.MaxTurns = cfg.MaxTurns
	brainCfg.MaxToolIterations = cfg.MaxToolIterations

	sessionRegistry := session.NewRegistry(cfg.DuplicateSessionMode, cfg.AudioChunkQueueSize, zapLog)

	deps := session.Deps{
		LLM:         llm,
		ASRFactory:  func() perception.ASRProvider { return sttprovider.Resolve(cfg.STTProvider, cfg.STTAPIKey, "", cfg.SilenceHold, cfg.VADThreshold) },
		TTS:         tts,
		Tools:       toolRegistry,
		BrainConfig: brainCfg,
		Cfg:         cfg,
		Log:         zapLog,
		Metrics:     m,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", tankmetrics.Handler(registry))
	mux.Handle("/ws", wsapi.NewHandler(sessionRegistry, session.QueueFactory(deps, sessionRegistry), zapLog))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go pollActiveSessions(sessionRegistry, m)

	go func() {
		zapLog.Info("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("server exited", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	sessionRegistry.CloseAll()
}

func pollActiveSessions(reg *session.Registry, m *tankmetrics.Prometheus) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.SetActiveSessions(reg.Len())
	}
}
