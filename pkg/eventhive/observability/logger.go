// Package observability provides structured logging, metrics, and tracing
// for the event hive.
//
// Features:
//   - Structured logging via slog (Go stdlib), optionally bridged to OTel logs
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// scopeName is the instrumentation scope for logs, metrics and traces.
const scopeName = "github.com/randalmurphal/eventhive"

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string

	// Format is "text" or "json". Default: text.
	Format string

	// OTelBridge sends records to the global OTel logger provider instead of w.
	OTelBridge bool
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, opts LoggerOptions) (*slog.Logger, error) {
	if opts.OTelBridge {
		return otelslog.NewLogger(scopeName), nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	switch strings.ToLower(opts.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}
}

// EnrichLogger adds actor context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "tts")
//	enriched.Info("generating") // includes actor=tts
func EnrichLogger(logger *slog.Logger, actor string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("actor", actor))
}

// LogActorStart logs the start of an actor's dispatch loop.
func LogActorStart(logger *slog.Logger, kinds []string) {
	if logger == nil {
		return
	}
	logger.Debug("actor starting",
		slog.Any("kinds", kinds),
	)
}

// LogActorStop logs the exit of an actor's dispatch loop.
func LogActorStop(logger *slog.Logger, handled, skipped uint64) {
	if logger == nil {
		return
	}
	logger.Debug("actor stopped",
		slog.Uint64("handled", handled),
		slog.Uint64("skipped", skipped),
	)
}

// LogDispatch logs a completed handler invocation.
func LogDispatch(logger *slog.Logger, kind, command, eventID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event handled",
		slog.String("kind", kind),
		slog.String("command", command),
		slog.String("event_id", eventID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHandlerError logs a failed or panicking handler. The loop keeps running.
func LogHandlerError(logger *slog.Logger, kind, command, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("kind", kind),
		slog.String("command", command),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
