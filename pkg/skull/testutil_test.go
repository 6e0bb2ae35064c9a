package skull

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tap opens a cursor that observes the given kinds.
func tap(t *testing.T, q *eventhive.Queue, kinds ...eventhive.Kind) *eventhive.Cursor {
	t.Helper()
	c, err := q.Subscribe("tap", kinds...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// next returns the next event on c or fails the test.
func next(t *testing.T, c *eventhive.Cursor) *eventhive.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	evt, err := c.Next(ctx)
	require.NoError(t, err, "waiting for event")
	return evt
}

// expect reads the next event on c and checks its kind and command.
func expect(t *testing.T, c *eventhive.Cursor, kind eventhive.Kind, cmd string) *eventhive.Event {
	t.Helper()
	evt := next(t, c)
	require.Equal(t, kind, evt.Kind(), "event %s", evt)
	require.Equal(t, cmd, evt.Name(), "event %s", evt)
	return evt
}

// expectQuiet checks that nothing arrives on c for a short while.
func expectQuiet(t *testing.T, c *eventhive.Cursor) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	if evt, ok := c.TryNext(); ok {
		t.Fatalf("unexpected event %s", evt)
	}
}

// call invokes a behavior's handler directly.
func call(t *testing.T, b eventhive.Behavior, evt *eventhive.Event) error {
	t.Helper()
	h, ok := b.Handlers()[evt.Name()]
	require.True(t, ok, "no handler for %s", evt.Name())
	return h(testCtx(t), evt)
}

// startActor wraps b in an actor on q and starts it.
func startActor(t *testing.T, q *eventhive.Queue, name string, b eventhive.Behavior) *eventhive.Actor {
	t.Helper()
	a, err := eventhive.NewActor(q, b, eventhive.WithName(name), eventhive.WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		a.Stop()
		a.JoinTimeout(2 * time.Second)
	})
	return a
}

func loudFrame(n int, amplitude int16) []int16 {
	f := make([]int16, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = amplitude
		} else {
			f[i] = -amplitude
		}
	}
	return f
}
