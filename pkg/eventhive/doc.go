// Package eventhive is a typed publish/subscribe core for independent actors.
//
// # Overview
//
// A single Queue is shared by every actor in the process. Producers publish
// immutable Events; each subscriber reads through its own Cursor, so every
// interested actor sees every event of its kinds exactly once:
//
//   - Event carries a Kind, a priority and labels. labels[0] is the command.
//   - Queue orders each cursor's backlog by priority (lower first), then by
//     publish order.
//   - Actor runs a Behavior's handlers on its own goroutine.
//   - Hive starts actors with a pause between them and shuts them down with
//     a bounded join.
//
// # Actors
//
// A Behavior declares the kinds it consumes and a handler per command:
//
//	type jaw struct{}
//
//	func (jaw) ConsumableKinds() []eventhive.Kind { return []eventhive.Kind{"MOVEMENT_EVENT"} }
//
//	func (j jaw) Handlers() eventhive.Handlers {
//	    return eventhive.Handlers{"JAW_TTS_AUDIO": j.move}
//	}
//
//	actor, err := eventhive.NewActor(queue, jaw{}, eventhive.WithName("jaw"))
//
// Events of other kinds never reach the actor. Events whose command has no
// handler are skipped and counted. Handler errors and panics are logged and
// the loop continues.
//
// A Behavior that also implements Source gets a second goroutine for
// self-generated events, such as a sensor polling loop.
//
// # Scheduling
//
//	hive := eventhive.NewHive(queue, eventhive.WithBootSplitWait(100*time.Millisecond))
//	hive.Add(actor, true)
//	hive.Add(monitor, false)
//	if err := hive.Start(ctx); err != nil { ... }
//	hive.Wait(ctx)
//	err := hive.Shutdown(2 * time.Second) // errors.Is(err, eventhive.ErrJoinTimeout)
//
// # Observability
//
// Actors take a MetricsRecorder and a SpanManager from the observability
// package. Both default to no-op implementations.
//
// # Thread Safety
//
// Queue and Hive are safe for concurrent use. A Cursor is drained by a single
// goroutine. Handlers of one actor never run concurrently with each other.
package eventhive
