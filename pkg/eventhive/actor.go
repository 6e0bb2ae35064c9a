package eventhive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
)

// Behavior is what an actor reacts to. Both methods are read once, when the
// actor is created.
type Behavior interface {
	// ConsumableKinds returns the kinds the actor subscribes to.
	ConsumableKinds() []Kind

	// Handlers returns the command handlers, keyed by labels[0].
	Handlers() Handlers
}

// Producer publishes events into the hive.
type Producer interface {
	Produce(evt *Event) error
}

// Source is an optional Behavior extension for actors that generate events
// on their own (sensors, scanners). Run is called on a second goroutine
// owned by the actor and must return when ctx is done.
type Source interface {
	Run(ctx context.Context, p Producer) error
}

// State is the dispatch state of an actor.
type State int32

// Actor states.
const (
	StateIdle State = iota
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Actor runs a Behavior's handlers on its own goroutine.
//
// The actor's subscription starts when it is created, so events published
// between NewActor and Start are queued rather than lost. Handlers run one
// at a time in (priority, publish order). A handler error or panic is logged
// and the loop moves on to the next event.
type Actor struct {
	name     string
	queue    *Queue
	cursor   *Cursor
	kinds    []Kind
	handlers map[string]Handler
	source   Source

	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	middleware []MiddlewareFunc

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	state   atomic.Int32
	handled atomic.Uint64
	skipped atomic.Uint64
}

// NewActor subscribes a new actor to queue for the behavior's kinds.
func NewActor(queue *Queue, behavior Behavior, opts ...ActorOption) (*Actor, error) {
	if queue == nil {
		return nil, errors.New("eventhive: nil queue")
	}
	if behavior == nil {
		return nil, errors.New("eventhive: nil behavior")
	}

	a := &Actor{
		name:    fmt.Sprintf("%T", behavior),
		queue:   queue,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = observability.EnrichLogger(a.logger, a.name)

	a.kinds = append([]Kind(nil), behavior.ConsumableKinds()...)
	if src, ok := behavior.(Source); ok {
		a.source = src
	}

	// Tracing outermost so the span covers everything; recovery innermost so
	// a panic is seen by every other layer as an ordinary error.
	chain := []MiddlewareFunc{
		TracingMiddleware(a.name, a.spans),
		MetricsMiddleware(a.name, a.metrics),
		LoggingMiddleware(a.logger),
	}
	chain = append(chain, a.middleware...)
	chain = append(chain, RecoveryMiddleware(a.name))

	a.handlers = make(map[string]Handler)
	for cmd, h := range behavior.Handlers() {
		if h == nil {
			continue
		}
		a.handlers[cmd] = ChainMiddleware(h, chain...)
	}

	cursor, err := queue.Subscribe(a.name, a.kinds...)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", a.name, err)
	}
	a.cursor = cursor
	return a, nil
}

// Name returns the actor name.
func (a *Actor) Name() string { return a.name }

// State returns the current dispatch state.
func (a *Actor) State() State { return State(a.state.Load()) }

// Handled returns the number of handler invocations, failed ones included.
func (a *Actor) Handled() uint64 { return a.handled.Load() }

// Skipped returns the number of received events that had no handler.
func (a *Actor) Skipped() uint64 { return a.skipped.Load() }

// Produce publishes evt to the actor's queue.
func (a *Actor) Produce(evt *Event) error {
	return a.queue.Publish(evt)
}

// Start launches the dispatch loop, and the Source loop if the behavior has
// one. The loops exit when ctx is done or Stop is called.
func (a *Actor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("actor %s: %w", a.name, ErrAlreadyStarted)
	}
	if a.stopped {
		return fmt.Errorf("actor %s: %w", a.name, ErrStopped)
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.run(ctx)
	}()

	if a.source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runSource(ctx)
		}()
	}

	go func() {
		wg.Wait()
		a.state.Store(int32(StateStopped))
		observability.LogActorStop(a.logger, a.handled.Load(), a.skipped.Load())
		close(a.done)
	}()
	return nil
}

// Stop asks the loops to exit. A handler already running is not interrupted;
// it only sees its context cancelled. Stop is idempotent.
func (a *Actor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	a.stopped = true

	if a.started {
		a.cancel()
		return
	}

	// Never started: release the subscription and let Join return.
	a.cursor.Close()
	a.state.Store(int32(StateStopped))
	close(a.done)
}

// Join blocks until the actor's loops have exited.
func (a *Actor) Join() {
	<-a.done
}

// JoinTimeout waits up to d for the loops to exit and reports whether they did.
func (a *Actor) JoinTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-a.done:
		return true
	case <-timer.C:
		return false
	}
}

// Done returns a channel closed when the actor's loops have exited.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

func (a *Actor) run(ctx context.Context) {
	defer a.cursor.Close()

	kinds := make([]string, len(a.kinds))
	for i, k := range a.kinds {
		kinds[i] = string(k)
	}
	observability.LogActorStart(a.logger, kinds)

	for {
		evt, err := a.cursor.Next(ctx)
		if err != nil {
			return
		}
		a.dispatch(ctx, evt)
	}
}

func (a *Actor) dispatch(ctx context.Context, evt *Event) {
	name := evt.Name()
	h, ok := a.handlers[name]
	if !ok {
		a.skipped.Add(1)
		a.metrics.RecordSkip(ctx, a.name, string(evt.Kind()), name)
		return
	}

	a.state.Store(int32(StateDispatching))
	defer a.state.Store(int32(StateIdle))
	defer func() {
		// User middleware runs outside the recovery layer.
		if r := recover(); r != nil {
			observability.LogHandlerError(a.logger, string(evt.Kind()), name, evt.ID(),
				&HandlerError{Actor: a.name, Command: name, Event: evt, Err: fmt.Errorf("%v", r), Panic: true})
		}
	}()

	a.handled.Add(1)
	if err := h(ctx, evt); err != nil {
		var herr *HandlerError
		if !errors.As(err, &herr) {
			err = &HandlerError{Actor: a.name, Command: name, Event: evt, Err: err}
		}
		observability.LogHandlerError(a.logger, string(evt.Kind()), name, evt.ID(), err)
	}
}

func (a *Actor) runSource(ctx context.Context) {
	err := a.source.Run(ctx, a)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrQueueClosed) {
		a.logger.Error("source stopped",
			slog.String("error", err.Error()),
		)
	}
}
