// Package logging defines the logging seam every component in this module
// writes through, and a zap-backed production implementation.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every worker, provider and orchestrator component
// logs through. Key-value pairs follow the value itself, alternating key,
// value, key, value.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Used as the zero-value default so callers
// never have to nil-check a Logger field.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}

// Zap adapts a *zap.SugaredLogger to Logger.
type Zap struct {
	s *zap.SugaredLogger
}

// NewZap builds a production zap logger (JSON encoding, ISO8601 timestamps).
func NewZap() (*Zap, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Zap{s: l.Sugar()}, nil
}

func (z *Zap) Debug(msg string, args ...interface{}) { z.s.Debugw(msg, args...) }
func (z *Zap) Info(msg string, args ...interface{})  { z.s.Infow(msg, args...) }
func (z *Zap) Warn(msg string, args ...interface{})  { z.s.Warnw(msg, args...) }
func (z *Zap) Error(msg string, args ...interface{}) { z.s.Errorw(msg, args...) }

// Sync flushes buffered log entries; call before process exit.
func (z *Zap) Sync() error { return z.s.Sync() }
