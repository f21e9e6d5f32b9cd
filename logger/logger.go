// Package logger provides the structured logger used across docsrag.
//
// It wraps zap with a small method set that takes an optional error and
// any number of field maps:
//
//	log := logger.New(logger.Config{Level: logger.Info, ServiceName: "docsrag"})
//	log.Info("server started", nil, map[string]any{"addr": ":8000"})
//	log.Error("embed failed", err, map[string]any{"stage": "embed"})
package logger

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

type Config struct {
	Level       string `yaml:"level"`
	ServiceName string `yaml:"service_name"`
}

// Logger is a thin wrapper around a zap.Logger. Safe for concurrent use.
type Logger struct {
	Zap *zap.Logger
}

// New builds a JSON logger writing to stderr.
func New(cfg Config) (*Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]any{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	z, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Zap: z}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Zap: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case Debug:
		return zap.DebugLevel
	case Warning, "warn":
		return zap.WarnLevel
	case Error:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func (l *Logger) fields(err error, fields ...map[string]any) []zap.Field {
	var out []zap.Field
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for _, m := range fields {
		for k, v := range m {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func (l *Logger) Debug(msg string, err error, fields ...map[string]any) {
	l.Zap.Debug(msg, l.fields(err, fields...)...)
}

func (l *Logger) Info(msg string, err error, fields ...map[string]any) {
	l.Zap.Info(msg, l.fields(err, fields...)...)
}

func (l *Logger) Warn(msg string, err error, fields ...map[string]any) {
	l.Zap.Warn(msg, l.fields(err, fields...)...)
}

func (l *Logger) Error(msg string, err error, fields ...map[string]any) {
	l.Zap.Error(msg, l.fields(err, fields...)...)
}

// With returns a child logger that always carries fields.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{Zap: l.Zap.With(l.fields(nil, fields)...)}
}

type requestIDKey struct{}

// ContextWithRequestID stores the request id picked up by WithContext.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithContext adds request_id, trace_id and span_id when ctx carries them.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var fields []zap.Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{Zap: l.Zap.With(fields...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.Zap.Sync()
}
