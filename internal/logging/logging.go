// Package logging builds the zap loggers used by progwatch.
//
// The terminal UI owns stdout, so diagnostics either go to a file or are
// discarded. Headless runs may log to stderr instead.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger destination.
type Options struct {
	Path   string // JSON log file; empty disables file logging
	Stderr bool   // development console output on stderr
	Debug  bool
}

// New builds a logger for opts. With neither Path nor Stderr set it returns
// a no-op logger.
func New(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	switch {
	case opts.Path != "":
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{opts.Path}
		cfg.ErrorOutputPaths = []string{opts.Path}
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build file logger: %w", err)
		}
		return logger, nil
	case opts.Stderr:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build console logger: %w", err)
		}
		return logger, nil
	default:
		return zap.NewNop(), nil
	}
}
