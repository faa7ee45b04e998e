// Package config loads process configuration from environment variables,
// an optional .env file and an optional config.yaml, the way
// cmd/agent/main.go in the original codebase loaded provider keys — generalized
// from scattered os.Getenv calls into one bound struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DuplicateSessionPolicy controls what the registry does when a client
// connects with a session id that is already live (spec.md §9 open
// question — left configurable).
type DuplicateSessionPolicy string

const (
	ReplaceOldSession DuplicateSessionPolicy = "replace"
	RejectDuplicate   DuplicateSessionPolicy = "reject"
)

// Config is the single bound configuration struct for the process.
type Config struct {
	ListenAddr string
	MetricsAddr string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string

	STTProvider string
	STTAPIKey   string

	TTSProvider string
	TTSAPIKey   string

	MaxTurns             int // conversation history cap: 2*MaxTurns+1 records
	MaxToolIterations    int
	DuplicateSessionMode DuplicateSessionPolicy

	FrameQueueSize      int
	AudioChunkQueueSize int

	SilenceHold  time.Duration
	VADThreshold float64
}

// Load reads a .env file if present (missing file is not an error, matching
// "Note: No .env file found" tolerance), then layers
// environment variables and defaults via viper.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		// absence of .env is expected outside local dev; nothing to do.
		_ = err
	}

	v := viper.New()
	v.SetEnvPrefix("TANK")
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config.yaml: %w", err)
		}
	}

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("llm_provider", "openai")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("stt_provider", "streaming")
	v.SetDefault("tts_provider", "lokutor")
	v.SetDefault("max_turns", 10)
	v.SetDefault("max_tool_iterations", 8)
	v.SetDefault("duplicate_session_mode", string(ReplaceOldSession))
	v.SetDefault("frame_queue_size", 400)
	v.SetDefault("audio_chunk_queue_size", 20)
	v.SetDefault("silence_hold_ms", 500)
	v.SetDefault("vad_threshold", 0.02)

	cfg := Config{
		ListenAddr:           v.GetString("listen_addr"),
		MetricsAddr:          v.GetString("metrics_addr"),
		LLMProvider:          v.GetString("llm_provider"),
		LLMModel:             v.GetString("llm_model"),
		LLMAPIKey:            v.GetString("openai_api_key"),
		LLMBaseURL:           v.GetString("llm_base_url"),
		STTProvider:          v.GetString("stt_provider"),
		STTAPIKey:            v.GetString("stt_api_key"),
		TTSProvider:          v.GetString("tts_provider"),
		TTSAPIKey:            v.GetString("lokutor_api_key"),
		MaxTurns:             v.GetInt("max_turns"),
		MaxToolIterations:    v.GetInt("max_tool_iterations"),
		DuplicateSessionMode: DuplicateSessionPolicy(strings.ToLower(v.GetString("duplicate_session_mode"))),
		FrameQueueSize:       v.GetInt("frame_queue_size"),
		AudioChunkQueueSize:  v.GetInt("audio_chunk_queue_size"),
		SilenceHold:          time.Duration(v.GetInt("silence_hold_ms")) * time.Millisecond,
		VADThreshold:         v.GetFloat64("vad_threshold"),
	}

	if cfg.DuplicateSessionMode != ReplaceOldSession && cfg.DuplicateSessionMode != RejectDuplicate {
		cfg.DuplicateSessionMode = ReplaceOldSession
	}

	return cfg, nil
}
