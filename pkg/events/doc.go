/*
Package events implements the live progress bus. The scheduler publishes
an Event for every Operation state transition and progress update; Broker
fans those out to subscribers filtered by user, admin status, or topic
(a single operation id, for following one op across a reconnect), and
retains a bounded replay buffer so a
client that reconnects with the last sequence number it saw can recover
exactly what it missed instead of re-listing everything.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub, _ := broker.Subscribe(events.Filter{UserID: "user-1"})
	defer broker.Unsubscribe(sub)

	go func() {
		for evt := range sub.Chan() {
			fmt.Printf("op %s: %d%%\n", evt.Operation.OpID, evt.Operation.Progress)
		}
	}()

	broker.Publish(events.EventOperationUpdated, op)

Reconnecting after a dropped connection:

	missed, ok := broker.ReplaySince(lastSeq, events.Filter{UserID: "user-1"})
	if !ok {
		// lastSeq fell out of the buffer; re-list via ops.list instead.
	}

# Design Patterns

Non-blocking publish: Publish enqueues onto a buffered channel and
returns immediately; a single dispatch goroutine assigns sequence
numbers and fans out, so publishers never block on a slow subscriber.
Drop-on-full: a subscriber whose buffer is full gets skipped rather than
stalling the bus; ReplaySince is how it catches back up.

# See Also

  - pkg/scheduler for the only publisher of these events
  - pkg/api for the ops.subscribe/unsubscribe request handlers
*/
package events
