package eventhive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
)

// Handler processes one event on the owning actor's goroutine.
// The returned error is informational: it is logged and counted, never retried.
type Handler func(ctx context.Context, evt *Event) error

// Handlers maps a command name (labels[0]) to its handler.
type Handlers map[string]Handler

// MiddlewareFunc wraps a handler with additional behavior.
type MiddlewareFunc func(next Handler) Handler

// ChainMiddleware applies middleware in order, with first middleware outermost.
func ChainMiddleware(handler Handler, middleware ...MiddlewareFunc) Handler {
	// Apply in reverse order so first middleware is outermost
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// RecoveryMiddleware converts a handler panic into a *HandlerError.
func RecoveryMiddleware(actor string) MiddlewareFunc {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt *Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &HandlerError{
						Actor:   actor,
						Command: evt.Name(),
						Event:   evt,
						Err:     fmt.Errorf("%v", r),
						Panic:   true,
					}
				}
			}()
			return next(ctx, evt)
		}
	}
}

// LoggingMiddleware logs every handler invocation at debug level.
func LoggingMiddleware(logger *slog.Logger) MiddlewareFunc {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt *Event) error {
			done := observability.TimedOperation()
			err := next(ctx, evt)
			observability.LogDispatch(logger, string(evt.Kind()), evt.Name(), evt.ID(), done())
			return err
		}
	}
}

// MetricsMiddleware records invocation count, latency and errors.
func MetricsMiddleware(actor string, recorder observability.MetricsRecorder) MiddlewareFunc {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt *Event) error {
			start := time.Now()
			err := next(ctx, evt)
			recorder.RecordDispatch(ctx, actor, evt.Name(), time.Since(start), err)
			return err
		}
	}
}

// TracingMiddleware wraps each invocation in an eventhive.dispatch span.
func TracingMiddleware(actor string, spans observability.SpanManager) MiddlewareFunc {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt *Event) error {
			ctx, span := spans.StartDispatchSpan(ctx, actor, string(evt.Kind()), evt.Name(), evt.ID())
			err := next(ctx, evt)
			spans.EndSpanWithError(span, err)
			return err
		}
	}
}
