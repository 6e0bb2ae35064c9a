// Package gate provides a busy gate for a shared device: at most one holder
// at a time, and callers wait instead of failing while it is held.
package gate

import (
	"context"
	"sync"
)

// Gate is a mutex plus condition variable around a busy flag.
// The zero value is not usable; call New.
type Gate struct {
	mu   sync.Mutex
	cond *sync.Cond
	busy bool
}

// New creates an open gate.
func New() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Acquire waits until the gate is free and marks it busy. The returned
// release function reopens it and is safe to call more than once.
// If ctx ends first, Acquire returns ctx.Err() and the gate is untouched.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Broadcast under the lock so a waiter cannot miss the wake-up between
	// checking ctx and calling Wait.
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.cond.Broadcast()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	for g.busy {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.busy = true

	var once sync.Once
	return func() {
		once.Do(g.release)
	}, nil
}

func (g *Gate) release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

// Do runs fn while holding the gate.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Busy reports whether the gate is currently held.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
