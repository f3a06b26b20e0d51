// Package telemetry builds the zap.Logger every Shadow Atlas component
// receives at construction time, and names the per-component child loggers
// so log lines can be filtered by which stage of the pipeline emitted
// them.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap.Logger at the given level ("debug", "info",
// "warn", or "error"; anything else defaults to info).
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("telemetry: build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Component names for Named(), one per pipeline stage, so a caller can
// grep logs by which component emitted them.
const (
	ComponentExtraction  = "extraction"
	ComponentValidation  = "validation"
	ComponentMerkle      = "merkle"
	ComponentSnapshot    = "snapshot"
	ComponentChangeDetect = "changedetect"
	ComponentUpdate      = "update"
	ComponentJob         = "job"
	ComponentCache       = "cache"
	ComponentRegistry    = "registry"
	ComponentAtlas       = "atlas"
)

// Named returns a child logger tagged with component, the same
// one-logger-per-subsystem convention the CLI entrypoint uses for its own
// logger.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}
