// Package event provides the in-process fan-out hub between the session
// registry and everything that watches a debate.
//
// Topics are session rooms: a connection subscribes to the room named by
// its session id and receives every event the registry or router publishes
// there. Producers never know who is listening; the websocket transport,
// the AI driver, and metrics taps all subscribe independently.
//
// # Main Types
//
//   - [Event]: one fan-out unit, either a typed server payload or a binary
//     audio frame
//   - [Bus]: synchronous room-scoped dispatcher, safe for concurrent use
//   - [Handler]: function type for subscribers (func(Event))
//
// # Delivery
//
// Publish dispatches synchronously in subscription order, room handlers
// before firehose handlers. Handlers must not block: the websocket layer
// enqueues onto per-connection send buffers and drops slow consumers
// rather than stalling the bus. A panicking handler is recovered and
// logged so one bad subscriber cannot stop delivery to the rest.
//
// Rejections are not bus traffic. Error events go straight back to the
// originating connection; only accepted state (snapshots, phase changes,
// transcript entries, timer ticks, presence) is broadcast.
//
// # Basic Usage
//
//	bus := event.NewBus(log)
//
//	id := bus.Subscribe(sessionID, func(e event.Event) {
//	    conn.Enqueue(e)
//	})
//	defer bus.Unsubscribe(id)
//
//	bus.Publish(event.Broadcast(sessionID, protocol.NewPhaseChange(snapshot)))
package event
