package eventhive

import (
	"errors"
	"fmt"
)

// Sentinel errors for events and the queue.
var (
	// ErrMalformedEvent indicates an event without a usable command name.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrQueueClosed indicates Publish or Subscribe after Queue.Close.
	ErrQueueClosed = errors.New("queue closed")

	// ErrCursorClosed indicates Next on a closed cursor.
	ErrCursorClosed = errors.New("cursor closed")
)

// Sentinel errors for actor and hive lifecycle.
var (
	// ErrAlreadyStarted indicates Start was called twice on the same actor.
	ErrAlreadyStarted = errors.New("already started")

	// ErrStopped indicates Start on a service that was stopped before it ran.
	ErrStopped = errors.New("stopped")

	// ErrNotStarted indicates Join on a service that was never started.
	ErrNotStarted = errors.New("not started")

	// ErrJoinTimeout indicates a service did not exit within the shutdown bound.
	ErrJoinTimeout = errors.New("join timed out")
)

// HandlerError wraps an error returned (or a panic raised) by a handler.
type HandlerError struct {
	Actor   string // Actor that owns the handler
	Command string // labels[0] of the event
	Event   *Event // Event being handled
	Err     error  // Underlying error
	Panic   bool   // True if the handler panicked
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panic {
		return fmt.Sprintf("actor %s: handler %s panicked: %v", e.Actor, e.Command, e.Err)
	}
	return fmt.Sprintf("actor %s: handler %s: %v", e.Actor, e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// JoinError reports services that did not exit within the shutdown bound.
type JoinError struct {
	Services []string
}

// Error implements the error interface.
func (e *JoinError) Error() string {
	return fmt.Sprintf("%v: %v", ErrJoinTimeout, e.Services)
}

// Is supports errors.Is(err, ErrJoinTimeout).
func (e *JoinError) Is(target error) bool {
	return target == ErrJoinTimeout
}
