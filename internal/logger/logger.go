package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vaxdash/internal/config"
)

type Logger struct {
	*zap.Logger
}

// New creates a zap logger configured by environment: JSON with ISO8601
// timestamps in production, coloured console output otherwise.
func New(cfg *config.Config) *Logger {
	var zapCfg zap.Config

	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"

	l, err := zapCfg.Build(zap.Fields(zap.String("service", "vaxdash")))
	if err != nil {
		panic(err)
	}

	return &Logger{l}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}
