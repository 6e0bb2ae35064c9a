package eventhive

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// testCtx returns a context that is cancelled when the test ends.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a Behavior that records every command it handles.
type recorder struct {
	kinds    []Kind
	commands []string

	mu   sync.Mutex
	seen []*Event
	got  chan *Event
}

func newRecorder(kinds []Kind, commands ...string) *recorder {
	return &recorder{kinds: kinds, commands: commands, got: make(chan *Event, 64)}
}

func (r *recorder) ConsumableKinds() []Kind { return r.kinds }

func (r *recorder) Handlers() Handlers {
	hs := make(Handlers, len(r.commands))
	for _, c := range r.commands {
		hs[c] = r.handle
	}
	return hs
}

func (r *recorder) handle(_ context.Context, evt *Event) error {
	r.mu.Lock()
	r.seen = append(r.seen, evt)
	r.mu.Unlock()
	r.got <- evt
	return nil
}

func (r *recorder) events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.seen...)
}

// waitFor receives n events from r or fails the test.
func (r *recorder) waitFor(t *testing.T, n int) []*Event {
	t.Helper()
	out := make([]*Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case evt := <-r.got:
			out = append(out, evt)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}
