package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/eventhive/pkg/eventhive"
)

const kindBench eventhive.Kind = "BENCH_EVENT"

// subscribe opens n cursors on kindBench.
func subscribe(b *testing.B, q *eventhive.Queue, n int) []*eventhive.Cursor {
	b.Helper()
	cursors := make([]*eventhive.Cursor, n)
	for i := range cursors {
		c, err := q.Subscribe(fmt.Sprintf("sub-%d", i), kindBench)
		if err != nil {
			b.Fatal(err)
		}
		cursors[i] = c
	}
	return cursors
}

// BenchmarkNewEvent measures event construction, including the UUID.
func BenchmarkNewEvent(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = eventhive.MustNew(kindBench, eventhive.PriorityNormal, "PING", i)
	}
}

// BenchmarkPublish_NoSubscribers publishes into an empty queue.
func BenchmarkPublish_NoSubscribers(b *testing.B) {
	q := eventhive.NewQueue()
	evt := eventhive.MustNew(kindBench, eventhive.PriorityNormal, "PING")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Publish(evt)
	}
}

// BenchmarkPublishNext_1 round-trips events through one cursor.
func BenchmarkPublishNext_1(b *testing.B) {
	benchmarkPublishNext(b, 1)
}

// BenchmarkPublishNext_10 round-trips events through ten cursors.
func BenchmarkPublishNext_10(b *testing.B) {
	benchmarkPublishNext(b, 10)
}

func benchmarkPublishNext(b *testing.B, subscribers int) {
	q := eventhive.NewQueue()
	cursors := subscribe(b, q, subscribers)
	evt := eventhive.MustNew(kindBench, eventhive.PriorityNormal, "PING")
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Publish(evt)
		for _, c := range cursors {
			if _, err := c.Next(ctx); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkBacklog_MixedPriority drains a 1000-event backlog with
// interleaved priorities.
func BenchmarkBacklog_MixedPriority(b *testing.B) {
	events := make([]*eventhive.Event, 1000)
	for i := range events {
		events[i] = eventhive.MustNew(kindBench, 1+i%2, "PING", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q := eventhive.NewQueue()
		c := subscribe(b, q, 1)[0]
		for _, evt := range events {
			_ = q.Publish(evt)
		}
		for range events {
			if _, ok := c.TryNext(); !ok {
				b.Fatal("backlog drained early")
			}
		}
	}
}

// BenchmarkActorDispatch measures publish-to-handler latency through a
// running actor.
func BenchmarkActorDispatch(b *testing.B) {
	q := eventhive.NewQueue()
	handled := make(chan struct{}, 1)
	a, err := eventhive.NewActor(q, benchBehavior{handled: handled}, eventhive.WithName("bench"))
	if err != nil {
		b.Fatal(err)
	}
	if err := a.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	defer func() {
		a.Stop()
		a.Join()
	}()

	evt := eventhive.MustNew(kindBench, eventhive.PriorityNormal, "PING")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Publish(evt)
		<-handled
	}
}

type benchBehavior struct{ handled chan struct{} }

func (benchBehavior) ConsumableKinds() []eventhive.Kind { return []eventhive.Kind{kindBench} }

func (h benchBehavior) Handlers() eventhive.Handlers {
	return eventhive.Handlers{
		"PING": func(context.Context, *eventhive.Event) error {
			h.handled <- struct{}{}
			return nil
		},
	}
}
