package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// L is the global logger instance
var L *zap.Logger

type ctxKey struct{}

var requestIDKey = ctxKey{}

// Options controls where log entries are written
type Options struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

func init() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	L, err = config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize zap logger: %v", err))
	}
}

// Setup rebuilds the global logger. When FilePath is set, entries are
// written to stdout and to a rotated file.
func Setup(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	L = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}

// Sync flushes any buffered log entries and should be called before application exit
func Sync() {
	if err := L.Sync(); err != nil {
		L.Error("Failed to sync logger",
			zap.Error(err),
		)
	}
}

// WithRequestID stores the request id so the *C helpers can attach it
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom returns the request id stored in ctx, or ""
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := RequestIDFrom(ctx); id != "" {
		return append(fields, zap.String("request_id", id))
	}
	return fields
}

// Info logs a message at InfoLevel
func Info(msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Debug logs a message at DebugLevel
func Debug(msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Error logs a message at ErrorLevel
func Error(msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Warn logs a message at WarnLevel
func Warn(msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// InfoC logs at InfoLevel with the request id from ctx
func InfoC(ctx context.Context, msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Info(msg, withContext(ctx, fields)...)
}

// DebugC logs at DebugLevel with the request id from ctx
func DebugC(ctx context.Context, msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Debug(msg, withContext(ctx, fields)...)
}

// WarnC logs at WarnLevel with the request id from ctx
func WarnC(ctx context.Context, msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Warn(msg, withContext(ctx, fields)...)
}

// ErrorC logs at ErrorLevel with the request id from ctx
func ErrorC(ctx context.Context, msg string, fields ...zap.Field) {
	L.WithOptions(zap.AddCallerSkip(1)).Error(msg, withContext(ctx, fields)...)
}
