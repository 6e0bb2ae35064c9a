package eventhive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService is a Service whose exit is controlled by the test.
type stubService struct {
	name    string
	mu      sync.Mutex
	started time.Time
	stopped bool
	hang    bool
	exit    chan struct{}
	once    sync.Once
}

func newStub(name string) *stubService {
	return &stubService{name: name, exit: make(chan struct{})}
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *stubService) Stop() {
	s.mu.Lock()
	s.stopped = true
	hang := s.hang
	s.mu.Unlock()
	if !hang {
		s.finish()
	}
}

func (s *stubService) Join() { <-s.exit }

func (s *stubService) finish() { s.once.Do(func() { close(s.exit) }) }

func (s *stubService) startedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func TestHive_StartWithBootSplitWait(t *testing.T) {
	h := NewHive(NewQueue(), WithHiveLogger(discardLogger()), WithBootSplitWait(30*time.Millisecond))
	a, b := newStub("a"), newStub("b")
	h.Add(a, true)
	h.Add(b, true)

	require.NoError(t, h.Start(testCtx(t)))
	assert.GreaterOrEqual(t, b.startedAt().Sub(a.startedAt()), 30*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, h.Services())

	assert.ErrorIs(t, h.Start(testCtx(t)), ErrAlreadyStarted)
	require.NoError(t, h.Shutdown(time.Second))
}

func TestHive_StartCancelled(t *testing.T) {
	h := NewHive(NewQueue(), WithHiveLogger(discardLogger()), WithBootSplitWait(time.Hour))
	h.Add(newStub("a"), true)
	h.Add(newStub("b"), true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, h.Start(ctx), context.Canceled)
}

type failingService struct{ *stubService }

func (failingService) Start(context.Context) error { return errors.New("no device") }

func TestHive_StartError(t *testing.T) {
	h := NewHive(NewQueue(), WithHiveLogger(discardLogger()), WithBootSplitWait(0))
	h.Add(failingService{newStub("mic")}, true)

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start mic")
}

func TestHive_WaitJoinsOnlyJoinable(t *testing.T) {
	h := NewHive(NewQueue(), WithHiveLogger(discardLogger()), WithBootSplitWait(0))
	worker, monitor := newStub("worker"), newStub("monitor")
	h.Add(worker, true)
	h.Add(monitor, false)

	assert.ErrorIs(t, h.Wait(context.Background()), ErrNotStarted)
	require.NoError(t, h.Start(context.Background()))

	waitErr := make(chan error, 1)
	go func() { waitErr <- h.Wait(context.Background()) }()

	worker.finish()
	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on a non-joinable service")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
}

// A hung service is reported after the join bound instead of blocking shutdown.
func TestHive_ShutdownBounded(t *testing.T) {
	q := NewQueue()
	h := NewHive(q, WithHiveLogger(discardLogger()), WithBootSplitWait(0))
	ok, stuck := newStub("ok"), newStub("stuck")
	stuck.hang = true
	h.Add(ok, true)
	h.Add(stuck, false)
	require.NoError(t, h.Start(context.Background()))

	start := time.Now()
	err := h.Shutdown(50 * time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJoinTimeout))
	var jerr *JoinError
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, []string{"stuck"}, jerr.Services)
	assert.Less(t, elapsed, time.Second)

	_, err = q.Subscribe("late", "K")
	assert.ErrorIs(t, err, ErrQueueClosed, "queue closed after shutdown")

	stuck.finish()
}

func TestHive_WithActors(t *testing.T) {
	q := NewQueue()
	h := NewHive(q, WithHiveLogger(discardLogger()), WithBootSplitWait(0))

	rec := newRecorder([]Kind{"K"}, "CMD")
	a, err := NewActor(q, rec, WithName("rec"), WithLogger(discardLogger()))
	require.NoError(t, err)
	h.Add(a, true)

	require.NoError(t, h.Start(testCtx(t)))
	require.NoError(t, q.Publish(MustNew("K", PriorityNormal, "CMD")))
	rec.waitFor(t, 1)

	require.NoError(t, h.Shutdown(time.Second))
	assert.Equal(t, StateStopped, a.State())
}
