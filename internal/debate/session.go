package debate

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rostralabs/rostra/internal/errors"
)

// New creates a session in the setup phase with a fixed participant
// roster. Participant IDs must be unique, every participant must belong
// to a valid team, and both teams must be represented so each speech
// phase can seat a speaker. Participants without an explicit role are
// assigned one from their position within their team.
func New(id, topic string, participants []Participant, format Format, now time.Time) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("debate: session id is required: %w", errors.ErrInvalidInput)
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("debate: topic is required: %w", errors.ErrInvalidInput)
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("debate: at least two participants are required: %w", errors.ErrInvalidInput)
	}

	roster := cloneParticipants(participants)
	seen := make(map[string]bool, len(roster))
	teamSize := make(map[Team]int, 2)

	for i := range roster {
		p := &roster[i]
		if p.ID == "" {
			return nil, fmt.Errorf("debate: participant at index %d has no id: %w", i, errors.ErrInvalidInput)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("debate: duplicate participant id %q: %w", p.ID, errors.ErrInvalidInput)
		}
		seen[p.ID] = true

		if p.Team != TeamPro && p.Team != TeamCon {
			return nil, fmt.Errorf("debate: participant %q has invalid team %q: %w", p.ID, p.Team, errors.ErrInvalidInput)
		}
		switch p.Role {
		case RoleFirst, RoleSecond:
		case "":
			if teamSize[p.Team] == 0 {
				p.Role = RoleFirst
			} else {
				p.Role = RoleSecond
			}
		default:
			return nil, fmt.Errorf("debate: participant %q has invalid role %q: %w", p.ID, p.Role, errors.ErrInvalidInput)
		}
		teamSize[p.Team]++
	}

	if teamSize[TeamPro] == 0 || teamSize[TeamCon] == 0 {
		return nil, fmt.Errorf("debate: both teams need at least one participant: %w", errors.ErrInvalidInput)
	}

	return &Session{
		ID:           id,
		Topic:        topic,
		Participants: roster,
		Phase:        PhaseSetup,
		Transcript:   []Message{},
		Status:       StatusPending,
		Format:       format,
		CreatedAt:    now,
		Version:      1,
	}, nil
}

// RequestPhaseChange applies a guarded transition. The request is accepted
// only when from matches the session's recorded phase and to is the fixed
// successor, or when the request pauses or resumes the session. Every
// other request, including a replay of an already-applied transition, is
// rejected with PHASE_CONFLICT.
func (s *Session) RequestPhaseChange(from, to Phase, now time.Time) error {
	if to == PhasePaused {
		if s.Timer.Paused {
			return s.phaseConflict("session is already paused")
		}
		if from != s.Phase {
			return s.phaseConflict("phase is %s, not %s", s.Phase, from)
		}
		return s.Pause(now)
	}
	if from == PhasePaused {
		if !s.Timer.Paused {
			return s.phaseConflict("session is not paused")
		}
		if to != s.Phase {
			return s.phaseConflict("paused phase is %s, not %s", s.Phase, to)
		}
		return s.Resume(now)
	}

	if from != s.Phase {
		if next, ok := from.Successor(); ok && next == to && to == s.Phase {
			return s.phaseConflict("transition %s -> %s already applied", from, to)
		}
		return s.phaseConflict("phase is %s, not %s", s.Phase, from)
	}
	if s.Phase == PhaseCompleted {
		return s.phaseConflict("session is completed")
	}
	if s.Timer.Paused {
		return s.phaseConflict("session is paused")
	}
	next, ok := from.Successor()
	if !ok || next != to {
		return s.phaseConflict("%s is not the successor of %s", to, from)
	}

	s.applyPhase(to, now)
	s.Version++
	return nil
}

// Pause freezes the timer without resetting the phase. The active time
// consumed so far is added to the timer's PausedElapsed.
func (s *Session) Pause(now time.Time) error {
	if s.Phase == PhaseCompleted {
		return s.phaseConflict("session is completed")
	}
	if s.Timer.Paused {
		return s.phaseConflict("session is already paused")
	}

	if s.Phase.IsTimed() && !s.Timer.PhaseStartedAt.IsZero() {
		if elapsed := int(now.Sub(s.Timer.PhaseStartedAt) / time.Second); elapsed > 0 {
			s.Timer.PausedElapsed += elapsed
		}
	}
	s.Timer.Paused = true
	s.syncStatus()
	s.Version++
	return nil
}

// Resume restarts the active clock. The remaining duration is the
// configured duration minus the accumulated PausedElapsed; wall-clock
// time spent paused does not count against the phase.
func (s *Session) Resume(now time.Time) error {
	if s.Phase == PhaseCompleted {
		return s.phaseConflict("session is completed")
	}
	if !s.Timer.Paused {
		return s.phaseConflict("session is not paused")
	}

	s.Timer.Paused = false
	if s.Phase.IsTimed() {
		s.Timer.PhaseStartedAt = now
	}
	s.syncStatus()
	s.Version++
	return nil
}

// End terminates the debate from any non-terminal phase and records the
// outcome. The terminal system entry is appended before the session
// freezes so resyncing clients see how the debate concluded. Winner and
// reason are optional.
func (s *Session) End(winner Team, reason string, now time.Time) error {
	if s.Phase == PhaseCompleted {
		return s.phaseConflict("session is completed")
	}
	if winner != "" && winner != TeamPro && winner != TeamCon {
		return fmt.Errorf("debate: invalid winner %q: %w", winner, errors.ErrInvalidInput)
	}

	content := "debate ended"
	if reason != "" {
		content += ": " + reason
	}
	if winner != "" {
		content += fmt.Sprintf(" (winner: %s)", winner)
	}
	s.append(Message{Type: MessageSystem, Content: content, Timestamp: now})

	s.Winner = winner
	s.EndReason = reason
	s.applyPhase(PhaseCompleted, now)
	s.Version++
	return nil
}

// AppendSpeech validates and appends a speech entry from the current
// speaker. Checks run in protocol order: participant identity, phase
// legality and turn, then payload bounds.
func (s *Session) AppendSpeech(speakerID, content string, now time.Time) (Message, error) {
	if _, ok := s.Participant(speakerID); !ok {
		return Message{}, s.unknownParticipant(speakerID)
	}
	if !s.Phase.IsSpeaking() {
		return Message{}, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			fmt.Sprintf("speech is not accepted during %s", s.Phase)).
			WithSession(s.ID).WithParticipant(speakerID)
	}
	if s.Timer.Paused {
		return Message{}, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			"speech is not accepted while the session is paused").
			WithSession(s.ID).WithParticipant(speakerID)
	}
	if speakerID != s.CurrentSpeakerID {
		return Message{}, errors.NewProtocolError(errors.CodeNotYourTurn,
			fmt.Sprintf("the floor belongs to %q", s.CurrentSpeakerID)).
			WithSession(s.ID).WithParticipant(speakerID)
	}
	if err := s.checkContent(content, speakerID); err != nil {
		return Message{}, err
	}

	return s.append(Message{
		Type:      MessageSpeech,
		SpeakerID: speakerID,
		Content:   content,
		Timestamp: now,
	}), nil
}

// AppendCrossfire validates and appends a crossfire entry. Any roster
// member may contribute during a crossfire phase; there is no turn check.
func (s *Session) AppendCrossfire(speakerID, content string, priority bool, now time.Time) (Message, error) {
	if _, ok := s.Participant(speakerID); !ok {
		return Message{}, s.unknownParticipant(speakerID)
	}
	if !s.Phase.IsCrossfire() {
		return Message{}, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			fmt.Sprintf("crossfire is not accepted during %s", s.Phase)).
			WithSession(s.ID).WithParticipant(speakerID)
	}
	if s.Timer.Paused {
		return Message{}, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			"crossfire is not accepted while the session is paused").
			WithSession(s.ID).WithParticipant(speakerID)
	}
	if err := s.checkContent(content, speakerID); err != nil {
		return Message{}, err
	}

	return s.append(Message{
		Type:      MessageCrossfire,
		SpeakerID: speakerID,
		Content:   content,
		Priority:  priority,
		Timestamp: now,
	}), nil
}

// AppendSystem appends a server-generated annotation such as a floor
// request. System entries skip the identity and phase checks but never
// land on a completed session.
func (s *Session) AppendSystem(speakerID, content string, now time.Time) (Message, error) {
	if s.Phase == PhaseCompleted {
		return Message{}, errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			"session is completed").WithSession(s.ID)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, errors.NewProtocolError(errors.CodeInvalidPayload,
			"content must not be empty").WithSession(s.ID)
	}

	return s.append(Message{
		Type:      MessageSystem,
		SpeakerID: speakerID,
		Content:   content,
		Timestamp: now,
	}), nil
}

// Remaining returns the whole seconds left on the phase timer. Untimed
// phases report zero. While paused the value holds steady.
func (s *Session) Remaining(now time.Time) int {
	if !s.Phase.IsTimed() || s.Timer.DurationSeconds <= 0 {
		return 0
	}
	left := s.Timer.DurationSeconds - s.Timer.PausedElapsed
	if !s.Timer.Paused && !s.Timer.PhaseStartedAt.IsZero() {
		left -= int(now.Sub(s.Timer.PhaseStartedAt) / time.Second)
	}
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether a running phase timer has reached zero. Paused
// and untimed phases never expire.
func (s *Session) Expired(now time.Time) bool {
	return s.Phase.IsTimed() && s.Timer.DurationSeconds > 0 &&
		!s.Timer.Paused && s.Remaining(now) == 0
}

// Frozen reports whether the session has completed. Frozen sessions
// reject all mutations; reads still succeed.
func (s *Session) Frozen() bool {
	return s.Phase == PhaseCompleted
}

// Participant returns the roster entry for an id.
func (s *Session) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// CurrentSpeaker returns the roster entry holding the floor, if any.
func (s *Session) CurrentSpeaker() (Participant, bool) {
	if s.CurrentSpeakerID == "" {
		return Participant{}, false
	}
	return s.Participant(s.CurrentSpeakerID)
}

// Clone returns a deep copy of the session. Mutating the clone leaves the
// original untouched, which lets callers apply a mutation, persist it, and
// only then publish the new state.
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = cloneParticipants(s.Participants)
	c.Transcript = make([]Message, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return &c
}

// applyPhase enters a phase: seats the designated speaker, resets the
// timer, and rederives status.
func (s *Session) applyPhase(to Phase, now time.Time) {
	s.Phase = to

	if spec := phaseSpecs[to]; spec.kind == kindSpeech {
		s.CurrentSpeakerID = s.speakerFor(spec.slot)
	} else {
		// Crossfire clears speaker exclusivity; setup and completed have
		// no floor at all.
		s.CurrentSpeakerID = ""
	}

	s.Timer = Timer{}
	if to.IsTimed() {
		s.Timer = Timer{
			PhaseStartedAt:  now,
			DurationSeconds: s.Format.Duration(to),
		}
	}
	s.syncStatus()
}

// speakerFor resolves the roster member who takes a speech phase's
// designated slot. When no participant matches the slot's role exactly,
// as in two-player sessions where each side has only an opening speaker,
// the team's first roster member takes the slot.
func (s *Session) speakerFor(sl slot) string {
	for _, p := range s.Participants {
		if p.Team == sl.team && p.Role == sl.role {
			return p.ID
		}
	}
	for _, p := range s.Participants {
		if p.Team == sl.team {
			return p.ID
		}
	}
	return ""
}

// checkContent enforces the non-empty and bounded-length payload rules.
func (s *Session) checkContent(content, speakerID string) error {
	if strings.TrimSpace(content) == "" {
		return errors.NewProtocolError(errors.CodeInvalidPayload,
			"content must not be empty").
			WithSession(s.ID).WithParticipant(speakerID)
	}
	if limit := s.Format.MaxSpeechLength; limit > 0 && len(content) > limit {
		return errors.NewProtocolError(errors.CodePayloadTooLarge,
			fmt.Sprintf("content is %d bytes, limit is %d", len(content), limit)).
			WithSession(s.ID).WithParticipant(speakerID)
	}
	return nil
}

// append stamps, stores, and returns a transcript entry.
func (s *Session) append(m Message) Message {
	m.ID = newMessageID(m.Timestamp)
	s.Transcript = append(s.Transcript, m)
	s.Version++
	return m
}

// syncStatus rederives the coarse status from phase and timer state.
func (s *Session) syncStatus() {
	switch {
	case s.Phase == PhaseCompleted:
		s.Status = StatusCompleted
	case s.Timer.Paused:
		s.Status = StatusPaused
	case s.Phase == PhaseSetup:
		s.Status = StatusPending
	default:
		s.Status = StatusActive
	}
}

func (s *Session) phaseConflict(format string, args ...any) error {
	return errors.NewProtocolError(errors.CodePhaseConflict,
		fmt.Sprintf(format, args...)).WithSession(s.ID)
}

func (s *Session) unknownParticipant(id string) error {
	return errors.NewProtocolError(errors.CodeUnknownParticipant,
		fmt.Sprintf("participant %q is not in this debate", id)).
		WithSession(s.ID).WithParticipant(id)
}

func cloneParticipants(src []Participant) []Participant {
	out := make([]Participant, len(src))
	copy(out, src)
	for i := range out {
		out[i].AIConfig = maps.Clone(out[i].AIConfig)
	}
	return out
}

var entropy = ulid.DefaultEntropy()

// newMessageID mints a time-ordered transcript entry id.
func newMessageID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
