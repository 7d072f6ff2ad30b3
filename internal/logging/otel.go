package logging

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithOTEL tees an OpenTelemetry log core onto logger so every entry
// also flows to the OTLP exporter. A nil provider returns the logger
// unchanged; callers wire this after telemetry init and do not need to
// branch on whether log export is available.
func WithOTEL(logger *zap.Logger, provider log.LoggerProvider) *zap.Logger {
	if logger == nil || provider == nil {
		return logger
	}

	otelCore := otelzap.NewCore("incidentd",
		otelzap.WithLoggerProvider(provider),
	)

	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, otelCore)
	}))
}
