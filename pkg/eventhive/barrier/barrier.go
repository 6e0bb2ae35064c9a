// Package barrier implements conjunctive waits: run an action once a set of
// distinct (kind, command) conditions has each been observed.
package barrier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

// ErrNoConditions indicates a barrier registered with an empty condition set.
var ErrNoConditions = errors.New("barrier has no conditions")

// ErrDuplicate indicates a barrier name that is already registered.
var ErrDuplicate = errors.New("barrier already registered")

// Condition matches events by kind and command name (labels[0]).
type Condition struct {
	Kind  eventhive.Kind
	Label string
}

func (c Condition) String() string {
	return fmt.Sprintf("%s[%s]", c.Kind, c.Label)
}

// Matches reports whether evt satisfies the condition.
func (c Condition) Matches(evt *eventhive.Event) bool {
	return evt.Kind() == c.Kind && evt.Name() == c.Label
}

// Barrier tracks one cycle of a conjunctive wait.
type Barrier struct {
	mu        sync.Mutex
	required  []Condition
	satisfied map[Condition]bool
}

// New creates a barrier over the distinct conditions in conds.
func New(conds ...Condition) (*Barrier, error) {
	seen := make(map[Condition]bool, len(conds))
	required := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if c.Label == "" {
			return nil, fmt.Errorf("condition on %s: empty label", c.Kind)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		required = append(required, c)
	}
	if len(required) == 0 {
		return nil, ErrNoConditions
	}
	return &Barrier{
		required:  required,
		satisfied: make(map[Condition]bool, len(required)),
	}, nil
}

// Observe marks the condition evt matches. It returns true exactly once per
// cycle, when the last outstanding condition is met, and then resets.
// Repeats of an already satisfied condition are ignored.
func (b *Barrier) Observe(evt *eventhive.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := false
	for _, c := range b.required {
		if !b.satisfied[c] && c.Matches(evt) {
			b.satisfied[c] = true
			matched = true
		}
	}
	if !matched || len(b.satisfied) < len(b.required) {
		return false
	}

	b.satisfied = make(map[Condition]bool, len(b.required))
	return true
}

// Pending returns the conditions not yet satisfied in the current cycle.
func (b *Barrier) Pending() []Condition {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Condition
	for _, c := range b.required {
		if !b.satisfied[c] {
			out = append(out, c)
		}
	}
	return out
}

// Conditions returns the required set.
func (b *Barrier) Conditions() []Condition {
	return append([]Condition(nil), b.required...)
}

// Reset discards progress in the current cycle.
func (b *Barrier) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.satisfied = make(map[Condition]bool, len(b.required))
}

// Action runs when a barrier completes.
type Action func(ctx context.Context) error

type entry struct {
	barrier *Barrier
	action  Action
}

// Registry holds named barriers and fires their actions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a barrier that runs action each time every condition in
// conds has been observed.
func (r *Registry) Register(name string, action Action, conds ...Condition) error {
	b, err := New(conds...)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("register %s: %w", name, ErrDuplicate)
	}
	r.entries[name] = &entry{barrier: b, action: action}
	return nil
}

// Unregister removes a barrier. It is a no-op for unknown names.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Names returns the registered barrier names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending returns the outstanding conditions of the named barrier.
func (r *Registry) Pending(name string) ([]Condition, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.barrier.Pending(), true
}

// Observe feeds evt to every barrier and runs the action of each one it
// completes. It returns the names that fired, sorted, and the joined action
// errors.
func (r *Registry) Observe(ctx context.Context, evt *eventhive.Event) ([]string, error) {
	r.mu.RLock()
	var fired []string
	var actions []Action
	for _, name := range r.sortedNamesLocked() {
		e := r.entries[name]
		if e.barrier.Observe(evt) {
			fired = append(fired, name)
			actions = append(actions, e.action)
		}
	}
	r.mu.RUnlock()

	// Actions run outside the lock so they may register or unregister.
	var errs []error
	for i, act := range actions {
		if act == nil {
			continue
		}
		if err := act(ctx); err != nil {
			errs = append(errs, fmt.Errorf("barrier %s: %w", fired[i], err))
		}
	}
	return fired, errors.Join(errs...)
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kinds returns the distinct kinds referenced by registered conditions.
func (r *Registry) Kinds() []eventhive.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[eventhive.Kind]bool)
	var kinds []eventhive.Kind
	for _, e := range r.entries {
		for _, c := range e.barrier.required {
			if !seen[c.Kind] {
				seen[c.Kind] = true
				kinds = append(kinds, c.Kind)
			}
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Behavior returns an eventhive.Behavior that subscribes to exactly the
// registered conditions and feeds matching events to Observe. The condition
// set is captured when Behavior is called.
func (r *Registry) Behavior() eventhive.Behavior {
	r.mu.RLock()
	labels := make(map[string]bool)
	for _, e := range r.entries {
		for _, c := range e.barrier.required {
			labels[c.Label] = true
		}
	}
	r.mu.RUnlock()

	handlers := make(eventhive.Handlers, len(labels))
	for label := range labels {
		handlers[label] = func(ctx context.Context, evt *eventhive.Event) error {
			_, err := r.Observe(ctx, evt)
			return err
		}
	}
	return &behavior{kinds: r.Kinds(), handlers: handlers}
}

type behavior struct {
	kinds    []eventhive.Kind
	handlers eventhive.Handlers
}

func (b *behavior) ConsumableKinds() []eventhive.Kind { return b.kinds }
func (b *behavior) Handlers() eventhive.Handlers      { return b.handlers }
