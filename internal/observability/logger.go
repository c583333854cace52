package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/likecoin/likecoin-button/internal/requestctx"
)

// NewLogger builds the JSON logger the web server writes to stdout. levelName is one of
// debug, info, warn or error; anything else means info.
func NewLogger(levelName string) (*zap.Logger, error) {
	return NewLoggerTo(levelName, "stdout")
}

// NewLoggerTo is NewLogger with explicit zap sink URLs. The CLI logs to stderr so its
// JSON output stays clean.
func NewLoggerTo(levelName string, outputs ...string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(levelName))
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.OutputPaths = outputs
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]any{"service": "likebutton"}

	enc := &cfg.EncoderConfig
	enc.MessageKey = "message"
	enc.TimeKey = "timestamp"
	enc.LevelKey = "severity"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	return cfg.Build()
}

// FromContext returns the request logger, or a no-op logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}
