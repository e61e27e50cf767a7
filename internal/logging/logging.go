// Package logging builds the loggers shared by the binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Development switches to a human readable console encoder and enables V(1) logs.
	Development bool
	// Level overrides the minimum level, e.g. "debug" or "warn".
	Level  string
	Output io.Writer
}

// New returns a logr.Logger backed by zap.
func New(o Options) (logr.Logger, error) {
	level := zapcore.InfoLevel
	if o.Development {
		level = zapcore.DebugLevel
	}
	if o.Level != "" {
		if err := level.UnmarshalText([]byte(o.Level)); err != nil {
			return logr.Discard(), fmt.Errorf("failed to parse log level: %w", err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if o.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	output := o.Output
	if output == nil {
		output = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), zap.NewAtomicLevelAt(level))
	return zapr.NewLogger(zap.New(core, zap.AddCaller())), nil
}

// NewSlog returns the server's slog logger. Keys follow the OpenTelemetry log data model.
// https://opentelemetry.io/docs/specs/otel/logs/data-model/
func NewSlog(debug bool, output io.Writer) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
	}
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severitytext"
			case slog.MessageKey:
				a.Key = "body"
			}
			return a
		},
	}
	if debug {
		return slog.New(slog.NewTextHandler(output, handlerOpts)), nil
	}
	return slog.New(slog.NewJSONHandler(output, handlerOpts)), nil
}

// FromSlog adapts the server logger for code that logs through logr.
func FromSlog(logger *slog.Logger) logr.Logger {
	return logr.FromSlogHandler(logger.Handler())
}
