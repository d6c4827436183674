package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/botadmin/internal/config"
)

// NewLogger builds the JSON zap.Logger shared by every component. Each entry
// carries the service name, version and environment.
func NewLogger(app config.AppConfig, cfg config.LoggerConfig) (*zap.Logger, error) {
	zapCfg := zap.Config{
		Level:         zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:   app.Env == "development",
		Encoding:      "json",
		EncoderConfig: encoderConfig(),
		OutputPaths:   []string{outputPath(cfg.Output)},
		ErrorOutputPaths: []string{
			"stderr",
		},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", app.Name),
		zap.String("version", app.Version),
		zap.String("env", app.Env),
	), nil
}

func parseLevel(raw string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(strings.TrimSpace(raw))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func outputPath(raw string) string {
	if raw == "" {
		return "stdout"
	}
	return raw
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "ts",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}
