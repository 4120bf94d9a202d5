// Package obslog wraps zap so the rest of the engine logs with structured
// fields instead of fmt.Sprintf-style messages.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style JSON logger, or a human-readable console
// logger when dev is true (local development / simctl runs).
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Must panics if New fails; used at process start where there is no logger
// yet to report the failure through.
func Must(dev bool) *zap.Logger {
	logger, err := New(dev)
	if err != nil {
		panic("obslog: failed to build logger: " + err.Error())
	}
	return logger
}
