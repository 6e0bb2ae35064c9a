package eventhive

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the category tag of an event (e.g. "DETECT_EVENT", "TTS_Event").
// Applications declare their own closed set of kinds as constants.
type Kind string

// Priority constants. Lower values are more urgent.
const (
	PriorityHigh   = 1
	PriorityNormal = 2
)

// Event is an immutable typed message.
//
// Labels[0] is the command name used for handler lookup. Labels[1:] is a
// positional payload whose interpretation belongs to the handler.
type Event struct {
	id            string
	kind          Kind
	labels        []any
	priority      int
	correlationID string
	causationID   string
	timestamp     time.Time
}

// EventOption configures event creation.
type EventOption func(*eventConfig)

type eventConfig struct {
	id            string
	correlationID string
	causationID   string
	timestamp     time.Time
}

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the correlation ID shared by a chain of events.
func WithCorrelationID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.correlationID = id
	}
}

// WithCausationID sets the ID of the event that caused this one.
func WithCausationID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.causationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// New creates an event of the given kind and priority.
// It returns ErrMalformedEvent if labels is empty or labels[0] is not a
// non-empty string.
func New(kind Kind, priority int, labels []any, opts ...EventOption) (*Event, error) {
	if err := validateLabels(labels); err != nil {
		return nil, err
	}

	cfg := &eventConfig{
		id:        uuid.New().String(),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// If no correlation ID, use event ID as the root
	if cfg.correlationID == "" {
		cfg.correlationID = cfg.id
	}

	return &Event{
		id:            cfg.id,
		kind:          kind,
		labels:        append([]any(nil), labels...),
		priority:      priority,
		correlationID: cfg.correlationID,
		causationID:   cfg.causationID,
		timestamp:     cfg.timestamp,
	}, nil
}

// MustNew is like New but panics on a malformed event.
// A malformed event means the producer is broken, so it fails fast.
//
// Example:
//
//	evt := eventhive.MustNew("DETECT_EVENT", eventhive.PriorityHigh, "HUMAN_DETECTED")
func MustNew(kind Kind, priority int, labels ...any) *Event {
	evt, err := New(kind, priority, labels)
	if err != nil {
		panic(err)
	}
	return evt
}

// NewFromParent creates an event caused by parent.
// It inherits the parent's correlation ID and records the parent as its cause.
func NewFromParent(parent *Event, kind Kind, priority int, labels ...any) *Event {
	if parent == nil {
		return MustNew(kind, priority, labels...)
	}
	evt, err := New(kind, priority, labels,
		WithCorrelationID(parent.correlationID),
		WithCausationID(parent.id),
	)
	if err != nil {
		panic(err)
	}
	return evt
}

func validateLabels(labels []any) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: no labels", ErrMalformedEvent)
	}
	name, ok := labels[0].(string)
	if !ok {
		return fmt.Errorf("%w: first label is %T, want string", ErrMalformedEvent, labels[0])
	}
	if name == "" {
		return fmt.Errorf("%w: empty command name", ErrMalformedEvent)
	}
	return nil
}

// ID returns the unique event identifier.
func (e *Event) ID() string { return e.id }

// Kind returns the event category.
func (e *Event) Kind() Kind { return e.kind }

// Priority returns the event priority. Lower is more urgent.
func (e *Event) Priority() int { return e.priority }

// CorrelationID groups the events of one causal chain.
func (e *Event) CorrelationID() string { return e.correlationID }

// CausationID returns the ID of the event that caused this one, if any.
func (e *Event) CausationID() string { return e.causationID }

// Timestamp returns when the event was created.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// Name returns labels[0], the command name used for handler lookup.
func (e *Event) Name() string {
	return e.labels[0].(string)
}

// Labels returns a copy of all labels, command name included.
func (e *Event) Labels() []any {
	return append([]any(nil), e.labels...)
}

// Payload returns a copy of labels[1:].
func (e *Event) Payload() []any {
	return append([]any(nil), e.labels[1:]...)
}

// Arg returns labels[1], or nil when the event carries no payload.
func (e *Event) Arg() any {
	if len(e.labels) < 2 {
		return nil
	}
	return e.labels[1]
}

// StringArg returns labels[1] as a string. The second result is false when
// there is no payload or it is not a string.
func (e *Event) StringArg() (string, bool) {
	s, ok := e.Arg().(string)
	return s, ok
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	return fmt.Sprintf("%s%v(p=%d)", e.kind, e.labels, e.priority)
}
