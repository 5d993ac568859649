package registry

import (
	"fmt"

	"github.com/rostralabs/rostra/internal/errors"
)

// AllowAudio decides whether a sender may stream audio into a session
// right now. It reads the committed snapshot, so frames are checked
// against state that has already been persisted, and it never touches
// the command queue: a burst of audio cannot starve text mutations.
//
// Audio never rehydrates a session. Frames are only legal on sessions
// some connection has already joined, so a miss here means the id is
// wrong or the session was evicted.
func (r *Registry) AllowAudio(sessionID, senderID string) error {
	r.mu.RLock()
	a, ok := r.actors[sessionID]
	r.mu.RUnlock()
	if !ok {
		return errors.NewProtocolError(errors.CodeUnknownSession,
			"session not found").WithSession(sessionID)
	}
	s := a.snap.Load()

	if _, ok := s.Participant(senderID); !ok {
		return errors.NewProtocolError(errors.CodeUnknownParticipant,
			fmt.Sprintf("participant %q is not in this debate", senderID)).
			WithSession(sessionID).WithParticipant(senderID)
	}
	if s.Timer.Paused {
		return errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			"audio is not accepted while the session is paused").
			WithSession(sessionID).WithParticipant(senderID)
	}

	switch {
	case s.Phase.IsCrossfire():
		// Open floor: any roster member may speak over anyone.
		return nil
	case s.Phase.IsSpeaking():
		if senderID != s.CurrentSpeakerID {
			return errors.NewProtocolError(errors.CodeNotYourTurn,
				fmt.Sprintf("the floor belongs to %q", s.CurrentSpeakerID)).
				WithSession(sessionID).WithParticipant(senderID)
		}
		return nil
	default:
		return errors.NewProtocolError(errors.CodeInvalidPhaseForEvent,
			fmt.Sprintf("audio is not accepted during %s", s.Phase)).
			WithSession(sessionID).WithParticipant(senderID)
	}
}
