// Package event provides an in-process pub/sub bus for run lifecycle
// notifications.
//
// # Overview
//
// The engine and the run tracker publish a RunPayload event at each step of a
// run: queued, started, each node completed or failed, loop budget exceeded,
// and the terminal completed or failed event. Every event of a run carries the
// run ID as its correlation ID.
//
//	bus := event.NewBus(event.BusConfig{NonBlocking: true})
//	defer bus.Close()
//
//	sub := bus.Subscribe([]string{event.TypeRunFailed}, event.TypedHandler(
//	    func(ctx context.Context, p event.RunPayload, meta event.Metadata) error {
//	        log.Printf("run %s failed at %s: %s", p.RunID, p.NodeID, p.Error)
//	        return nil
//	    }))
//	defer sub.Unsubscribe()
//
// # Delivery
//
// Each subscription owns a buffered channel and a goroutine; events reach a
// subscriber in publish order. With NonBlocking set, Publish never waits and
// a full buffer drops the event (reported through OnDrop). Handler errors are
// reported through OnError and never reach the publisher.
package event
