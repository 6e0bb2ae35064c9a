package eventhive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultBootSplitWait is the pause between service starts.
const DefaultBootSplitWait = 100 * time.Millisecond

// Service is anything the hive starts, stops and joins.
// *Actor satisfies it; so do non-queue loops such as a resource monitor.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Join()
}

type serviceEntry struct {
	svc      Service
	joinable bool
}

// Hive owns the shared queue and the lifecycle of every service attached to it.
type Hive struct {
	queue         *Queue
	logger        *slog.Logger
	bootSplitWait time.Duration

	mu       sync.Mutex
	services []serviceEntry
	started  bool
}

// HiveOption configures a Hive.
type HiveOption func(*Hive)

// WithBootSplitWait sets the pause between consecutive service starts.
// Default: DefaultBootSplitWait. Zero starts everything back to back.
func WithBootSplitWait(d time.Duration) HiveOption {
	return func(h *Hive) {
		if d >= 0 {
			h.bootSplitWait = d
		}
	}
}

// WithHiveLogger sets the scheduler logger.
func WithHiveLogger(logger *slog.Logger) HiveOption {
	return func(h *Hive) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHive creates a hive around queue.
func NewHive(queue *Queue, opts ...HiveOption) *Hive {
	h := &Hive{
		queue:         queue,
		logger:        slog.Default(),
		bootSplitWait: DefaultBootSplitWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Queue returns the hive's shared queue.
func (h *Hive) Queue() *Queue { return h.queue }

// Add registers a service. Joinable services are waited on by Wait; the
// rest (monitors and the like) are only stopped by Shutdown.
func (h *Hive) Add(svc Service, joinable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services = append(h.services, serviceEntry{svc: svc, joinable: joinable})
}

// Services returns the names of the registered services in start order.
func (h *Hive) Services() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.services))
	for i, e := range h.services {
		names[i] = e.svc.Name()
	}
	return names
}

// Start starts every service in registration order, pausing for the boot
// split wait between them. On error the services already started keep
// running; call Shutdown.
func (h *Hive) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return fmt.Errorf("hive: %w", ErrAlreadyStarted)
	}
	h.started = true
	services := append([]serviceEntry(nil), h.services...)
	h.mu.Unlock()

	for i, e := range services {
		if i > 0 && h.bootSplitWait > 0 {
			timer := time.NewTimer(h.bootSplitWait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		if err := e.svc.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", e.svc.Name(), err)
		}
		h.logger.Debug("service started",
			slog.String("service", e.svc.Name()),
			slog.Bool("joinable", e.joinable),
		)
	}

	h.logger.Info("hive started",
		slog.Int("services", len(services)),
	)
	return nil
}

// Wait blocks until every joinable service has exited or ctx is done.
func (h *Hive) Wait(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return fmt.Errorf("hive: %w", ErrNotStarted)
	}
	services := append([]serviceEntry(nil), h.services...)
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, e := range services {
			if e.joinable {
				e.svc.Join()
			}
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops every service, then joins each one for at most timeout.
// Services still running after their bound are reported in a *JoinError
// (errors.Is(err, ErrJoinTimeout)). The queue is closed last.
func (h *Hive) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	services := append([]serviceEntry(nil), h.services...)
	h.mu.Unlock()

	for _, e := range services {
		e.svc.Stop()
	}

	var hung []string
	for _, e := range services {
		if !joinWithin(e.svc, timeout) {
			h.logger.Warn("service did not exit in time",
				slog.String("service", e.svc.Name()),
				slog.Duration("timeout", timeout),
			)
			hung = append(hung, e.svc.Name())
		}
	}

	h.queue.Close()

	if len(hung) > 0 {
		return &JoinError{Services: hung}
	}
	h.logger.Info("hive stopped")
	return nil
}

// joinWithin joins svc for at most d. A service that never exits leaves
// one goroutine parked in Join.
func joinWithin(svc Service, d time.Duration) bool {
	if t, ok := svc.(interface{ JoinTimeout(time.Duration) bool }); ok {
		return t.JoinTimeout(d)
	}

	done := make(chan struct{})
	go func() {
		svc.Join()
		close(done)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
