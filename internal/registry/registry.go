package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/protocol"
	"github.com/rostralabs/rostra/internal/store"
)

const (
	// defaultQueueSize bounds a session's command queue when the
	// configuration does not say otherwise.
	defaultQueueSize = 64

	// defaultTickInterval drives timer broadcasts and expiry checks.
	defaultTickInterval = time.Second
)

// Config carries the registry's dependencies. Store, Bus, and Logger are
// required.
type Config struct {
	Store  store.Store
	Bus    *event.Bus
	Logger *logging.Logger

	// Debate supplies phase durations, the command queue depth, and the
	// tick interval. Zero values fall back to package defaults.
	Debate config.DebateConfig

	// Clock overrides the time source. Tests use this; production leaves
	// it nil for time.Now.
	Clock func() time.Time
}

// Registry is the arena of live sessions. Lookups return lock-free
// committed snapshots; mutations are funneled through each session's
// actor.
type Registry struct {
	store store.Store
	bus   *event.Bus
	log   *logging.Logger

	format    debate.Format
	queueSize int
	tick      time.Duration
	clock     func() time.Time

	mu     sync.RWMutex
	actors map[string]*actor
	closed bool
}

// New creates a Registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("registry: store is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("registry: bus is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("registry: logger is required")
	}

	queueSize := cfg.Debate.CommandQueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	tick := cfg.Debate.TickInterval()
	if tick <= 0 {
		tick = defaultTickInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Registry{
		store:     cfg.Store,
		bus:       cfg.Bus,
		log:       cfg.Logger.WithComponent("registry"),
		format:    formatFromConfig(cfg.Debate),
		queueSize: queueSize,
		tick:      tick,
		clock:     clock,
		actors:    make(map[string]*actor),
	}, nil
}

// formatFromConfig builds the default debate format from server
// configuration, keeping the standard timing for any field left unset.
func formatFromConfig(d config.DebateConfig) debate.Format {
	f := debate.DefaultFormat()
	if d.ConstructiveSeconds > 0 {
		f.ConstructiveSeconds = d.ConstructiveSeconds
	}
	if d.CrossfireSeconds > 0 {
		f.CrossfireSeconds = d.CrossfireSeconds
	}
	if d.RebuttalSeconds > 0 {
		f.RebuttalSeconds = d.RebuttalSeconds
	}
	if d.GrandCrossfireSeconds > 0 {
		f.GrandCrossfireSeconds = d.GrandCrossfireSeconds
	}
	if d.SummarySeconds > 0 {
		f.SummarySeconds = d.SummarySeconds
	}
	if d.FinalFocusSeconds > 0 {
		f.FinalFocusSeconds = d.FinalFocusSeconds
	}
	if d.MaxSpeechLength > 0 {
		f.MaxSpeechLength = d.MaxSpeechLength
	}
	return f
}

// ----- lifecycle -----

// Start creates a session and opens the debate: the roster is validated,
// the setup phase advances straight to the first constructive, and the
// document is persisted before the session accepts any traffic. The
// returned snapshot already has the opening speaker seated.
func (r *Registry) Start(ctx context.Context, topic string, participants []debate.Participant, format *debate.Format) (*debate.Session, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errors.ErrRegistryClosed
	}

	f := r.format
	if format != nil {
		f = *format
	}

	now := r.clock()
	s, err := debate.New(newSessionID(), topic, participants, f, now)
	if err != nil {
		return nil, err
	}
	if err := s.RequestPhaseChange(debate.PhaseSetup, debate.PhaseProConstructive, now); err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.ErrRegistryClosed
	}
	a := r.spawnLocked(s)
	r.mu.Unlock()

	r.log.Info("debate started",
		"session", s.ID,
		"topic", topic,
		"participants", len(participants),
		"speaker", s.CurrentSpeakerID)
	return a.snap.Load().Clone(), nil
}

// Snapshot returns the committed state of a session. Sessions not in
// memory are rehydrated from the store first.
func (r *Registry) Snapshot(ctx context.Context, id string) (*debate.Session, error) {
	a, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.snap.Load().Clone(), nil
}

// Remove evicts a session's actor from memory and waits for its loop to
// exit. The stored document is untouched; a later lookup rehydrates it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	a, ok := r.actors[id]
	if ok {
		delete(r.actors, id)
	}
	r.mu.Unlock()
	if !ok {
		return errors.ErrSessionNotFound
	}

	a.stop()
	<-a.exited
	r.log.Info("session evicted", "session", id)
	return nil
}

// Resident returns the number of sessions currently held in memory.
func (r *Registry) Resident() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// Sessions returns the ids of all resident sessions.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every actor and rejects all further operations.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	actors := make([]*actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.actors = make(map[string]*actor)
	r.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
	for _, a := range actors {
		<-a.exited
	}
	r.log.Info("registry closed", "sessions", len(actors))
	return nil
}

// ----- commands -----

// RequestPhaseChange applies a guarded transition: from must match the
// recorded phase and to must be its fixed successor, or one of the
// pause/resume legs. Rejected requests leave the session untouched and
// the caller still receives the authoritative snapshot.
func (r *Registry) RequestPhaseChange(ctx context.Context, id string, from, to debate.Phase) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		before := s.Phase
		if err := s.RequestPhaseChange(from, to, now); err != nil {
			return nil, err
		}
		if s.Phase == before {
			// Pause and resume legs keep the phase; the state broadcast
			// carries the timer change.
			return nil, nil
		}
		return []protocol.ServerPayload{protocol.NewPhaseChange(s)}, nil
	})
}

// Pause freezes the session's clock.
func (r *Registry) Pause(ctx context.Context, id string) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		return nil, s.RequestPhaseChange(s.Phase, debate.PhasePaused, now)
	})
}

// Resume restarts the session's clock with the paused time excluded.
func (r *Registry) Resume(ctx context.Context, id string) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		return nil, s.RequestPhaseChange(debate.PhasePaused, s.Phase, now)
	})
}

// SubmitSpeech appends a speech from the current speaker and broadcasts
// the accepted transcript entry.
func (r *Registry) SubmitSpeech(ctx context.Context, id, speakerID, text string) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		m, err := s.AppendSpeech(speakerID, text, now)
		if err != nil {
			return nil, err
		}
		return []protocol.ServerPayload{protocol.NewTranscriptUpdate(m)}, nil
	})
}

// SubmitCrossfire appends a crossfire contribution from any roster
// member.
func (r *Registry) SubmitCrossfire(ctx context.Context, id, speakerID, text string, priority bool) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		m, err := s.AppendCrossfire(speakerID, text, priority, now)
		if err != nil {
			return nil, err
		}
		return []protocol.ServerPayload{protocol.NewTranscriptUpdate(m)}, nil
	})
}

// RequestTurn records a floor request as a system transcript entry. The
// phase the requester believes is current is checked against the
// recorded phase, so a stale client learns about the transition it
// missed instead of queueing for the wrong floor.
func (r *Registry) RequestTurn(ctx context.Context, id, userID string, phase debate.Phase) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		p, ok := s.Participant(userID)
		if !ok {
			return nil, errors.NewProtocolError(errors.CodeUnknownParticipant,
				fmt.Sprintf("participant %q is not in this debate", userID)).
				WithSession(s.ID).WithParticipant(userID)
		}
		if phase != "" && phase != s.Phase {
			return nil, errors.NewProtocolError(errors.CodePhaseConflict,
				fmt.Sprintf("phase is %s, not %s", s.Phase, phase)).
				WithSession(s.ID).WithParticipant(userID)
		}

		name := p.Name
		if name == "" {
			name = p.ID
		}
		m, err := s.AppendSystem(userID, name+" requests the floor", now)
		if err != nil {
			return nil, err
		}
		return []protocol.ServerPayload{protocol.NewTranscriptUpdate(m)}, nil
	})
}

// EndTurn lets the current speaker yield the floor early, advancing the
// debate to the next phase through the same guarded transition a timer
// expiry uses.
func (r *Registry) EndTurn(ctx context.Context, id, speakerID string) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		if _, ok := s.Participant(speakerID); !ok {
			return nil, errors.NewProtocolError(errors.CodeUnknownParticipant,
				fmt.Sprintf("participant %q is not in this debate", speakerID)).
				WithSession(s.ID).WithParticipant(speakerID)
		}
		if !s.Phase.IsSpeaking() {
			return nil, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
				fmt.Sprintf("end-turn is not accepted during %s", s.Phase)).
				WithSession(s.ID).WithParticipant(speakerID)
		}
		if s.Timer.Paused {
			return nil, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
				"end-turn is not accepted while the session is paused").
				WithSession(s.ID).WithParticipant(speakerID)
		}
		if speakerID != s.CurrentSpeakerID {
			return nil, errors.NewProtocolError(errors.CodeNotYourTurn,
				fmt.Sprintf("the floor belongs to %q", s.CurrentSpeakerID)).
				WithSession(s.ID).WithParticipant(speakerID)
		}

		next, _ := s.Phase.Successor()
		if err := s.RequestPhaseChange(s.Phase, next, now); err != nil {
			return nil, err
		}
		return []protocol.ServerPayload{protocol.NewPhaseChange(s)}, nil
	})
}

// End terminates the debate and records the outcome. The terminal system
// entry lands in the transcript before the session freezes.
func (r *Registry) End(ctx context.Context, id string, winner debate.Team, reason string) (*debate.Session, error) {
	return r.do(ctx, id, func(s *debate.Session, now time.Time) ([]protocol.ServerPayload, error) {
		if err := s.End(winner, reason, now); err != nil {
			return nil, err
		}
		outcome := s.Transcript[len(s.Transcript)-1]
		return []protocol.ServerPayload{
			protocol.NewTranscriptUpdate(outcome),
			protocol.NewPhaseChange(s),
		}, nil
	})
}

// ----- plumbing -----

// do routes a command to the session's actor and waits for the result.
// On rejection the returned snapshot is still the committed state, so
// callers can hand a stale client the authoritative view alongside the
// error.
func (r *Registry) do(ctx context.Context, id string, apply applyFunc) (*debate.Session, error) {
	a, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	cmd := command{apply: apply, reply: make(chan result, 1)}
	select {
	case a.cmds <- cmd:
	case <-a.exited:
		return nil, errors.ErrRegistryClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res.snapshot, res.err
	case <-a.exited:
		return nil, errors.ErrRegistryClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup finds the session's actor, rehydrating from the store when the
// session is not resident.
func (r *Registry) lookup(ctx context.Context, id string) (*actor, error) {
	r.mu.RLock()
	a, ok := r.actors[id]
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return nil, errors.ErrRegistryClosed
	}
	if ok {
		return a, nil
	}
	return r.rehydrate(ctx, id)
}

// rehydrate restores an actor from the stored document. Concurrent
// rehydrations of the same session resolve to a single actor.
func (r *Registry) rehydrate(ctx context.Context, id string) (*actor, error) {
	s, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.ErrRegistryClosed
	}
	if a, ok := r.actors[id]; ok {
		return a, nil
	}

	a := r.spawnLocked(s)
	r.log.Info("session rehydrated", "session", id, "phase", string(s.Phase))
	return a, nil
}

// spawnLocked registers an actor and starts its loop. Callers hold the
// write lock.
func (r *Registry) spawnLocked(s *debate.Session) *actor {
	a := &actor{
		id:        s.ID,
		reg:       r,
		cmds:      make(chan command, r.queueSize),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
		committed: s,
	}
	a.snap.Store(s.Clone())
	r.actors[s.ID] = a
	go a.run()
	return a
}

// newSessionID mints a time-ordered session id.
func newSessionID() string {
	return ulid.Make().String()
}
