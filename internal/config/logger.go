package config

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = func() *atomic.Pointer[zap.Logger] {
	p := &atomic.Pointer[zap.Logger]{}
	p.Store(newDefaultLogger())
	return p
}()

func newDefaultLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if BoolValue("TELEMETRY_DEBUG") {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("telemetry")
}

// SetLogger replaces the package logger. A nil logger silences output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Logger returns the current package logger.
func Logger() *zap.Logger {
	return logger.Load()
}

// Public methods
func LogInfo(ctx context.Context, msg string, fields ...zap.Field) {
	writeToLog(ctx, zapcore.InfoLevel, msg, fields)
}

func LogWarn(ctx context.Context, msg string, fields ...zap.Field) {
	writeToLog(ctx, zapcore.WarnLevel, msg, fields)
}

func LogError(ctx context.Context, msg string, fields ...zap.Field) {
	writeToLog(ctx, zapcore.ErrorLevel, msg, fields)
}

func LogDebug(ctx context.Context, msg string, fields ...zap.Field) {
	if GetContextDebug(ctx) {
		writeToLog(ctx, zapcore.DebugLevel, msg, fields)
	}
}

// Private methods
func writeToLog(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {

	ce := logger.Load().Check(level, msg)
	if ce == nil {
		return
	}

	fields = append(fields,
		zap.String("cid", GetContextCorrelationId(ctx)),
		zap.String("elapsed", sinceCreated(ctx)))
	ce.Write(fields...)
}

func sinceCreated(ctx context.Context) string {

	created := GetContextTimeCreated(ctx)
	if created == -1 {
		return "0.0s"
	}
	t := time.Since(time.Unix(0, created)).Seconds()

	return strconv.FormatFloat(t, 'f', 1, 64) + "s"
}
