package eventhive

import (
	"log/slog"

	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
)

// ActorOption configures an Actor.
type ActorOption func(*Actor)

// WithName sets the actor name used in logs, metrics and spans.
// Default: the behavior's Go type name.
func WithName(name string) ActorOption {
	return func(a *Actor) {
		if name != "" {
			a.name = name
		}
	}
}

// WithLogger sets the actor's logger. An "actor" attribute is added to it.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) ActorOption {
	return func(a *Actor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics enables handler metrics.
//
// Example:
//
//	actor, err := eventhive.NewActor(q, tts, eventhive.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) ActorOption {
	return func(a *Actor) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithSpanManager enables a span per handler invocation.
func WithSpanManager(sm observability.SpanManager) ActorOption {
	return func(a *Actor) {
		if sm != nil {
			a.spans = sm
		}
	}
}

// WithMiddleware adds handler middleware. Middleware runs inside the
// built-in tracing, metrics and logging layers and outside panic recovery.
func WithMiddleware(mw ...MiddlewareFunc) ActorOption {
	return func(a *Actor) {
		a.middleware = append(a.middleware, mw...)
	}
}
