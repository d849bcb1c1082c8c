package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the process-wide structured logger. Its zero value discards
// everything, which keeps packages usable from tests without calling Init.
var Logger zerolog.Logger

// Init initializes the global logger
func Init(serviceName string, isDevelopment bool) {
	InitWithWriter(serviceName, isDevelopment, os.Stdout)
}

// InitWithWriter initializes the global logger writing to out
func InitWithWriter(serviceName string, isDevelopment bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := out
	if isDevelopment {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	Logger = zerolog.New(output).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Logger = Logger
}

// Component returns a child logger tagged with the component name
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithContext returns a logger with trace information from context
func WithContext(ctx context.Context) *zerolog.Logger {
	logger := Logger.With().Logger()

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}

// Info logs at info level with context
func Info(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Info()
}

// Error logs at error level with context
func Error(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Error()
}

// Debug logs at debug level with context
func Debug(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Debug()
}

// Warn logs at warn level with context
func Warn(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Warn()
}

// SetLevel sets the global log level
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		Logger = Logger.Level(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = Logger
}
