package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/protocol"
)

// persistTimeout bounds each store write issued by an actor.
const persistTimeout = 5 * time.Second

// applyFunc mutates a working copy of the session and returns the events
// to broadcast once the mutation is persisted.
type applyFunc func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error)

// command is one unit of work queued for a session's actor.
type command struct {
	apply applyFunc
	reply chan result
}

// result is what the actor hands back: the committed snapshot after the
// command, and the rejection if there was one. The snapshot is set even
// on rejection so callers can resync the originator.
type result struct {
	snapshot *debate.Session
	err      error
}

// actor is the single writer for one session. Only the run goroutine
// touches committed; everyone else reads the atomic snapshot.
type actor struct {
	id  string
	reg *Registry

	cmds   chan command
	done   chan struct{}
	exited chan struct{}
	stop1  sync.Once

	committed *debate.Session
	snap      atomic.Pointer[debate.Session]
}

// stop signals the loop to exit. Safe to call more than once.
func (a *actor) stop() {
	a.stop1.Do(func() { close(a.done) })
}

// run processes commands and drives the phase clock until stopped.
func (a *actor) run() {
	ticker := time.NewTicker(a.reg.tick)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			a.drain()
			close(a.exited)
			return
		case cmd := <-a.cmds:
			a.handle(cmd)
		case <-ticker.C:
			a.handleTick(a.reg.clock())
		}
	}
}

// drain rejects whatever is still queued at shutdown.
func (a *actor) drain() {
	for {
		select {
		case cmd := <-a.cmds:
			cmd.reply <- result{snapshot: a.committed.Clone(), err: errors.ErrRegistryClosed}
		default:
			return
		}
	}
}

// handle runs one command with persist-then-commit semantics: the
// mutation is applied to a private copy and becomes visible only after
// the store accepts it. A failed save discards the copy, so memory never
// runs ahead of what clients could recover after a crash.
func (a *actor) handle(cmd command) {
	now := a.reg.clock()

	work := a.committed.Clone()
	events, err := cmd.apply(work, now)
	if err != nil {
		cmd.reply <- result{snapshot: a.committed.Clone(), err: err}
		return
	}
	if err := a.persist(work); err != nil {
		cmd.reply <- result{snapshot: a.committed.Clone(), err: err}
		return
	}

	a.commit(work)
	cmd.reply <- result{snapshot: work.Clone(), err: nil}
	a.broadcast(events)
}

// handleTick broadcasts the remaining time and, when the phase timer has
// run out, applies the expiry transition. The transition goes through
// the same guard as a client request, and a save failure simply leaves
// the session at its last persisted state for the next tick to retry.
func (a *actor) handleTick(now time.Time) {
	s := a.committed
	if !s.Phase.IsTimed() || s.Timer.Paused {
		return
	}

	a.reg.bus.Publish(event.Broadcast(a.id, &protocol.TimerUpdate{
		Phase:     s.Phase,
		Remaining: s.Remaining(now),
	}))

	if !s.Expired(now) {
		return
	}
	next, ok := s.Phase.Successor()
	if !ok {
		return
	}

	work := s.Clone()
	if err := work.RequestPhaseChange(s.Phase, next, now); err != nil {
		a.reg.log.Warn("expiry transition rejected",
			"session", a.id, "from", string(s.Phase), "error", err.Error())
		return
	}
	if err := a.persist(work); err != nil {
		return
	}

	a.commit(work)
	a.reg.log.Info("phase timer expired",
		"session", a.id,
		"from", string(s.Phase),
		"to", string(next),
		"speaker", work.CurrentSpeakerID)
	a.broadcast([]protocol.ServerPayload{protocol.NewPhaseChange(work)})
}

// persist writes the working copy to the store. Failures come back as
// retryable persistence errors regardless of the backend's own type.
func (a *actor) persist(work *debate.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := a.reg.store.Save(ctx, work)
	if err == nil {
		return nil
	}
	a.reg.log.Error("session save failed",
		"session", a.id, "version", work.Version, "error", err.Error())

	var perr *errors.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return errors.NewPersistenceError("session save failed", err)
}

// commit makes the working copy the committed state and refreshes the
// read snapshot.
func (a *actor) commit(work *debate.Session) {
	a.committed = work
	a.snap.Store(work.Clone())
}

// broadcast publishes the command's events followed by the full state
// snapshot, which is what keeps every subscriber authoritative without
// asking for a resync.
func (a *actor) broadcast(events []protocol.ServerPayload) {
	for _, p := range events {
		a.reg.bus.Publish(event.Broadcast(a.id, p))
	}
	a.reg.bus.Publish(event.Broadcast(a.id,
		protocol.NewDebateState(a.committed.Clone(), a.reg.clock())))
}
