// Package logger builds the service's zap logger: JSON encoding, ISO8601
// timestamps, service name and pid as initial fields, output on stderr.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log output.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string `yaml:"level" env:"LOG_LEVEL"`

	// ServiceName is attached to every entry. Default: "retrievald".
	ServiceName string `yaml:"service_name" env:"LOG_SERVICE_NAME"`
}

// New builds the logger.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "retrievald"
	}

	level := zap.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	zapCfg := zap.Config{
		Level:         zap.NewAtomicLevelAt(level),
		Encoding:      "json",
		EncoderConfig: encoderCfg,
		OutputPaths:   []string{"stderr"},
		ErrorOutputPaths: []string{
			"stderr",
		},
		InitialFields: map[string]interface{}{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}
	return zapCfg.Build()
}
