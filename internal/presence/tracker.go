package presence

import (
	"sort"
	"sync"
)

// Change describes the broadcast-worthy effects of one Join or Leave.
// The zero value means nothing changed that clients care about.
type Change struct {
	// UserOnline is the participant whose first connection just arrived.
	UserOnline string
	// UserOffline is the participant whose last connection just left.
	UserOffline string
	// Observers is the room's observer count after the change.
	Observers int
	// ObserversChanged reports whether the observer count moved.
	ObserversChanged bool
}

// conn records what one connection counted as when it joined.
type conn struct {
	userID   string
	observer bool
}

// room aggregates connections for one session.
type room struct {
	conns     map[string]conn // connection id -> identity
	users     map[string]int  // participant user id -> live connection count
	observers int
}

// Tracker is the process-wide presence registry. Safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[string]*room)}
}

// Join registers a connection with a room. Observer connections move the
// observer count; participant connections mark the user online when this
// is their first connection. Re-joining with a known connection id is a
// no-op.
func (t *Tracker) Join(sessionID, connID, userID string, observer bool) Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.rooms[sessionID]
	if r == nil {
		r = &room{conns: make(map[string]conn), users: make(map[string]int)}
		t.rooms[sessionID] = r
	}
	if _, ok := r.conns[connID]; ok {
		return Change{}
	}
	r.conns[connID] = conn{userID: userID, observer: observer}

	if observer {
		r.observers++
		return Change{Observers: r.observers, ObserversChanged: true}
	}

	r.users[userID]++
	if r.users[userID] == 1 {
		return Change{UserOnline: userID}
	}
	return Change{}
}

// Leave removes a connection from a room. Unknown connections are a
// no-op, so transports may call Leave unconditionally on teardown.
func (t *Tracker) Leave(sessionID, connID string) Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.rooms[sessionID]
	if r == nil {
		return Change{}
	}
	c, ok := r.conns[connID]
	if !ok {
		return Change{}
	}
	delete(r.conns, connID)
	defer t.dropIfEmptyLocked(sessionID, r)

	if c.observer {
		r.observers--
		return Change{Observers: r.observers, ObserversChanged: true}
	}

	r.users[c.userID]--
	if r.users[c.userID] <= 0 {
		delete(r.users, c.userID)
		return Change{UserOffline: c.userID}
	}
	return Change{}
}

// ObserverCount returns the number of observer connections in a room.
func (t *Tracker) ObserverCount(sessionID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r := t.rooms[sessionID]; r != nil {
		return r.observers
	}
	return 0
}

// Online reports whether a participant has at least one live connection.
func (t *Tracker) Online(sessionID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r := t.rooms[sessionID]; r != nil {
		return r.users[userID] > 0
	}
	return false
}

// OnlineUsers returns the participants with live connections, sorted.
func (t *Tracker) OnlineUsers(sessionID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r := t.rooms[sessionID]
	if r == nil {
		return nil
	}
	users := make([]string, 0, len(r.users))
	for id := range r.users {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Connections returns the total connection count for a room, observers
// included.
func (t *Tracker) Connections(sessionID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r := t.rooms[sessionID]; r != nil {
		return len(r.conns)
	}
	return 0
}

// Rooms returns the number of rooms with at least one connection.
func (t *Tracker) Rooms() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

// CloseRoom forgets every connection in a room, returning how many were
// dropped. Used when a completed session is torn down.
func (t *Tracker) CloseRoom(sessionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.rooms[sessionID]
	if r == nil {
		return 0
	}
	n := len(r.conns)
	delete(t.rooms, sessionID)
	return n
}

// dropIfEmptyLocked removes a room bookkeeping entry once its last
// connection is gone. Must be called with t.mu held.
func (t *Tracker) dropIfEmptyLocked(sessionID string, r *room) {
	if len(r.conns) == 0 {
		delete(t.rooms, sessionID)
	}
}
