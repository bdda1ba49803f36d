// Package logging builds the zap loggers used across aura. Components never
// reach for a package-level logger; the orchestrator constructs one here and
// hands out named children through constructors.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aura/internal/config"
)

// Subsystem names used with Logger.Named so log lines are attributable.
const (
	CategoryOrchestrator = "orchestrator"
	CategoryIntent       = "intent"
	CategoryReasoning    = "reasoning"
	CategoryVision       = "vision"
	CategoryDesktop      = "desktop"
	CategoryBrowse       = "browse"
	CategoryAudio        = "audio"
	CategoryDeferred     = "deferred"
	CategoryHandlers     = "handlers"
	CategoryJournal      = "journal"
	CategoryMetrics      = "metrics"
)

// New builds a zap logger from the logging section of the config.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format != "json" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
		zcfg.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewNop returns a logger that discards everything. Tests and optional
// collaborators use it so nil checks never appear at call sites.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}
