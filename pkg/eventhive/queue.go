package eventhive

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventhive/pkg/eventhive/observability"
)

// Queue is the shared, priority-ordered mailbox of the hive.
//
// Delivery is broadcast: every cursor interested in an event's kind receives
// its own copy of the pending entry and advances at its own pace. Consuming
// an event on one cursor never hides it from another.
//
// Publish never blocks and the backlog is unbounded. One Queue is created per
// process and shared by reference with every actor.
type Queue struct {
	mu      sync.RWMutex
	cursors map[*Cursor]struct{}
	closed  bool

	seq       atomic.Uint64
	published atomic.Uint64

	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the logger used for publish tracing at debug level.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithQueueMetrics sets the metrics recorder for published events.
func WithQueueMetrics(m observability.MetricsRecorder) QueueOption {
	return func(q *Queue) {
		if m != nil {
			q.metrics = m
		}
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		cursors: make(map[*Cursor]struct{}),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish appends evt to the backlog of every cursor subscribed to its kind
// and wakes any cursor blocked in Next.
//
// Publishing a nil or malformed event panics: it indicates a broken producer.
func (q *Queue) Publish(evt *Event) error {
	if evt == nil {
		panic("eventhive: publish of nil event")
	}
	if err := validateLabels(evt.labels); err != nil {
		panic(err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	// Sequence is taken under the read lock so a cursor created concurrently
	// either sees this event or starts after it, never half.
	entry := pending{evt: evt, seq: q.seq.Add(1)}
	delivered := 0
	for c := range q.cursors {
		if c.accepts(evt.kind) {
			c.push(entry)
			delivered++
		}
	}
	q.published.Add(1)

	q.metrics.RecordPublish(context.Background(), string(evt.kind), delivered)
	if q.logger != nil {
		q.logger.Debug("event published",
			slog.String("kind", string(evt.kind)),
			slog.String("command", evt.Name()),
			slog.Int("priority", evt.priority),
			slog.String("event_id", evt.id),
			slog.Int("subscribers", delivered),
		)
	}
	return nil
}

// Produce implements Producer so the queue itself can be handed to code
// that publishes without owning an actor.
func (q *Queue) Produce(evt *Event) error {
	return q.Publish(evt)
}

// Subscribe opens a cursor that receives every event of the given kinds
// published from now on. A cursor with no kinds receives nothing.
func (q *Queue) Subscribe(name string, kinds ...Kind) (*Cursor, error) {
	c := &Cursor{
		name:   name,
		kinds:  make(map[Kind]struct{}, len(kinds)),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		queue:  q,
	}
	for _, k := range kinds {
		c.kinds[k] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	q.cursors[c] = struct{}{}
	return c, nil
}

// Close closes the queue and every open cursor. Blocked Next calls return
// ErrCursorClosed. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	cursors := make([]*Cursor, 0, len(q.cursors))
	for c := range q.cursors {
		cursors = append(cursors, c)
	}
	q.cursors = make(map[*Cursor]struct{})
	q.mu.Unlock()

	for _, c := range cursors {
		c.shut()
	}
}

// Published returns the total number of events published.
func (q *Queue) Published() uint64 {
	return q.published.Load()
}

// Subscribers returns the number of open cursors.
func (q *Queue) Subscribers() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.cursors)
}

func (q *Queue) remove(c *Cursor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.cursors, c)
}

// Cursor is one subscriber's independent read position over the queue.
// A cursor is meant to be drained by a single goroutine.
type Cursor struct {
	name  string
	kinds map[Kind]struct{}
	queue *Queue

	mu      sync.Mutex
	backlog pendingHeap
	closed  bool

	signal    chan struct{} // Signals event availability (buffered, size 1)
	done      chan struct{}
	closeOnce sync.Once
}

// Name returns the subscriber name the cursor was opened with.
func (c *Cursor) Name() string { return c.name }

// Kinds returns the cursor's interest set.
func (c *Cursor) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c.kinds))
	for k := range c.kinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// Next returns the most urgent unseen event, ordered by priority then by
// publish order. It blocks until an event is available, ctx is done, or
// the cursor is closed.
func (c *Cursor) Next(ctx context.Context) (*Event, error) {
	for {
		if evt, ok, err := c.pop(); err != nil {
			return nil, err
		} else if ok {
			return evt, nil
		}

		select {
		case <-c.signal:
		case <-c.done:
			return nil, ErrCursorClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryNext returns the most urgent unseen event without blocking.
func (c *Cursor) TryNext() (*Event, bool) {
	evt, ok, _ := c.pop()
	return evt, ok
}

// Len returns the number of events waiting on this cursor.
func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlog.Len()
}

// Close detaches the cursor from the queue and drops its backlog.
func (c *Cursor) Close() {
	c.queue.remove(c)
	c.shut()
}

func (c *Cursor) shut() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.backlog = nil
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Cursor) accepts(k Kind) bool {
	_, ok := c.kinds[k]
	return ok
}

func (c *Cursor) push(p pending) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	heap.Push(&c.backlog, p)
	c.mu.Unlock()

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *Cursor) pop() (*Event, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, ErrCursorClosed
	}
	if c.backlog.Len() == 0 {
		return nil, false, nil
	}
	p := heap.Pop(&c.backlog).(pending)
	return p.evt, true, nil
}

// pending is a backlog entry; seq breaks priority ties in publish order.
type pending struct {
	evt *Event
	seq uint64
}

type pendingHeap []pending

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].evt.priority != h[j].evt.priority {
		return h[i].evt.priority < h[j].evt.priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pending)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = pending{} // release the event for GC
	*h = old[:n-1]
	return p
}
