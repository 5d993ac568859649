// Package registry owns every debate session resident in this process.
//
// Each session gets one actor: a goroutine that receives commands from a
// bounded queue, applies them to a private working copy, persists the
// result, and only then commits and broadcasts. Because a single
// goroutine owns each session, mutations are serialized without locks
// and partially-applied states are never observable.
//
// The actor also runs the phase clock. A ticker broadcasts the remaining
// time every interval, and when a timed phase reaches zero the actor
// applies the same guarded transition a client request would, so a timer
// expiry racing a manual end-turn resolves to exactly one accepted
// transition.
//
// Sessions not resident in memory are rehydrated from the store on
// first lookup, which makes process restarts invisible to REST callers
// and to clients resyncing after a reconnect.
package registry
