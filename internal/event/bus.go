package event

import (
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rostralabs/rostra/internal/logging"
)

// Firehose is the reserved room name that receives every published event.
// Session ids are ULIDs, so the name cannot collide with a real room.
const Firehose = "*"

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id      string
	room    string
	handler Handler
}

// Bus is a synchronous room-scoped pub-sub dispatcher. It decouples the
// session registry from the connections, drivers, and taps that watch a
// debate.
type Bus struct {
	log    *logging.Logger
	mu     sync.RWMutex
	rooms  map[string][]subscription // room -> subscriptions
	nextID atomic.Uint64
}

// NewBus creates a new event bus. A nil logger disables panic reporting
// output but not recovery.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Bus{
		log:   log.WithComponent("bus"),
		rooms: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for one session room.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(room string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "sub-" + strconv.FormatUint(b.nextID.Add(1), 10)
	b.rooms[room] = append(b.rooms[room], subscription{
		id:      id,
		room:    room,
		handler: handler,
	})
	return id
}

// SubscribeAll registers a firehose handler called for every event in
// every room, after the room's own handlers.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(Firehose, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for room, subs := range b.rooms {
		for i, sub := range subs {
			if sub.id == id {
				b.rooms[room] = append(subs[:i], subs[i+1:]...)
				if len(b.rooms[room]) == 0 {
					delete(b.rooms, room)
				}
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to the subscribers of its room, then to
// firehose subscribers, in registration order within each group. Handlers
// run synchronously on the publishing goroutine; a panicking handler is
// recovered and logged, and dispatch continues.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	roomSubs := make([]subscription, len(b.rooms[ev.Room]))
	copy(roomSubs, b.rooms[ev.Room])
	fireSubs := make([]subscription, len(b.rooms[Firehose]))
	copy(fireSubs, b.rooms[Firehose])
	b.mu.RUnlock()

	for _, sub := range roomSubs {
		b.safeCall(sub.handler, ev)
	}
	for _, sub := range fireSubs {
		b.safeCall(sub.handler, ev)
	}
}

// safeCall invokes a handler and recovers from any panics so one
// misbehaving subscriber cannot block delivery to the rest.
func (b *Bus) safeCall(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				"room", ev.Room,
				"event", ev.Type(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	handler(ev)
}

// CloseRoom removes every subscription for a room, typically after the
// session completes and its last connection drains.
func (b *Bus) CloseRoom(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.rooms[room])
	delete(b.rooms, room)
	return n
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.rooms {
		count += len(subs)
	}
	return count
}

// RoomCount returns the number of rooms with at least one subscriber,
// excluding the firehose.
func (b *Bus) RoomCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.rooms)
	if _, ok := b.rooms[Firehose]; ok {
		n--
	}
	return n
}
