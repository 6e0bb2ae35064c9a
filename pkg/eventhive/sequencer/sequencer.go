// Package sequencer runs an ordered list of actions, one per completion
// signal.
//
// Each action's Step publishes an event and returns. The caller advances the
// list when the matching completion event arrives:
//
//	seq := sequencer.New(map[Action]sequencer.Step{
//	    RecordSpeech: publishRecord,
//	    GenerateTTS:  publishTTS,
//	})
//	seq.Begin(ctx, RecordSpeech, GenerateTTS) // runs publishRecord
//	seq.Advance(ctx)                          // runs publishTTS
//	seq.Advance(ctx)                          // list done, sequencer idle
//
// When a completion carries an empty result, Restart re-runs the list from
// the phase start instead of advancing.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors.
var (
	// ErrBusy indicates Begin while a list is still running.
	ErrBusy = errors.New("sequence already running")

	// ErrIdle indicates Advance or Restart with no list running.
	ErrIdle = errors.New("no sequence running")

	// ErrUnknownAction indicates an action with no step in the table.
	ErrUnknownAction = errors.New("unknown action")
)

// Action names one step of a list. Applications define a small int enum
// with a String method.
type Action interface {
	comparable
	fmt.Stringer
}

// Step performs an action, typically by publishing an event.
type Step func(ctx context.Context) error

// Sequencer walks an ordered action list. It is safe for concurrent use,
// though it is normally driven from a single actor goroutine.
type Sequencer[A Action] struct {
	mu         sync.Mutex
	table      map[A]Step
	list       []A
	index      int
	phaseStart int
	onIdle     func(ctx context.Context)
}

// New creates an idle sequencer over table.
func New[A Action](table map[A]Step) *Sequencer[A] {
	t := make(map[A]Step, len(table))
	for a, s := range table {
		t[a] = s
	}
	return &Sequencer[A]{table: t}
}

// OnIdle sets a callback run each time a list completes.
func (s *Sequencer[A]) OnIdle(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// Begin loads actions and runs the first one. The phase start is reset to 0.
func (s *Sequencer[A]) Begin(ctx context.Context, actions ...A) error {
	s.mu.Lock()
	if len(s.list) > 0 {
		s.mu.Unlock()
		return ErrBusy
	}
	if len(actions) == 0 {
		s.mu.Unlock()
		return nil
	}
	for _, a := range actions {
		if _, ok := s.table[a]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownAction, a)
		}
	}
	s.list = append([]A(nil), actions...)
	s.index = 0
	s.phaseStart = 0
	step := s.table[s.list[0]]
	s.mu.Unlock()

	return step(ctx)
}

// Advance moves to the next action and runs it. After the last action the
// sequencer returns to idle and the OnIdle callback runs.
func (s *Sequencer[A]) Advance(ctx context.Context) error {
	s.mu.Lock()
	if len(s.list) == 0 {
		s.mu.Unlock()
		return ErrIdle
	}
	s.index++
	if s.index >= len(s.list) {
		s.list = nil
		s.index = 0
		s.phaseStart = 0
		onIdle := s.onIdle
		s.mu.Unlock()
		if onIdle != nil {
			onIdle(ctx)
		}
		return nil
	}
	step := s.table[s.list[s.index]]
	s.mu.Unlock()

	return step(ctx)
}

// Restart moves back to the phase start and runs that action again.
func (s *Sequencer[A]) Restart(ctx context.Context) error {
	s.mu.Lock()
	if len(s.list) == 0 {
		s.mu.Unlock()
		return ErrIdle
	}
	if s.phaseStart >= len(s.list) {
		s.mu.Unlock()
		return fmt.Errorf("phase start %d out of range [0,%d)", s.phaseStart, len(s.list))
	}
	s.index = s.phaseStart
	step := s.table[s.list[s.index]]
	s.mu.Unlock()

	return step(ctx)
}

// SetPhaseStart sets the index Restart returns to.
func (s *Sequencer[A]) SetPhaseStart(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.list) {
		return fmt.Errorf("phase start %d out of range [0,%d)", i, len(s.list))
	}
	s.phaseStart = i
	return nil
}

// ReplaceRemaining swaps every action after the current one for actions.
// An empty actions ends the list at the current action. A phase start that
// no longer fits the list moves back to the current action.
func (s *Sequencer[A]) ReplaceRemaining(actions ...A) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return ErrIdle
	}
	for _, a := range actions {
		if _, ok := s.table[a]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAction, a)
		}
	}
	s.list = append(s.list[:s.index+1:s.index+1], actions...)
	if s.phaseStart >= len(s.list) {
		s.phaseStart = s.index
	}
	return nil
}

// Reset abandons the running list without calling OnIdle.
func (s *Sequencer[A]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.index = 0
	s.phaseStart = 0
}

// Index returns the position of the current action. It is 0 when idle.
func (s *Sequencer[A]) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Current returns the current action; false when idle.
func (s *Sequencer[A]) Current() (A, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero A
	if len(s.list) == 0 {
		return zero, false
	}
	return s.list[s.index], true
}

// Running reports whether a list is loaded.
func (s *Sequencer[A]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list) > 0
}

// Remaining returns the actions after the current one.
func (s *Sequencer[A]) Remaining() []A {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return nil
	}
	return append([]A(nil), s.list[s.index+1:]...)
}
