package protocol

import (
	"time"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
)

// ClientEventType names an event a client may send to the orchestrator.
type ClientEventType string

// ServerEventType names an event the orchestrator may send to clients.
type ServerEventType string

const (
	ClientJoinDebate       ClientEventType = "join-debate"
	ClientLeaveDebate      ClientEventType = "leave-debate"
	ClientStartDebate      ClientEventType = "start-debate"
	ClientRequestTurn      ClientEventType = "request-turn"
	ClientEndTurn          ClientEventType = "end-turn"
	ClientSubmitSpeech     ClientEventType = "submit-speech"
	ClientCrossfireMessage ClientEventType = "crossfire-message"
	ClientPauseDebate      ClientEventType = "pause-debate"
	ClientResumeDebate     ClientEventType = "resume-debate"
)

const (
	ServerDebateState       ServerEventType = "debate-state"
	ServerPhaseChange       ServerEventType = "phase-change"
	ServerTranscriptUpdate  ServerEventType = "transcript-update"
	ServerTimerUpdate       ServerEventType = "timer-update"
	ServerParticipantJoined ServerEventType = "participant-joined"
	ServerParticipantLeft   ServerEventType = "participant-left"
	ServerObserverCount     ServerEventType = "observer-count"
	ServerError             ServerEventType = "error"
)

// ClientPayload is the closed set of client event payloads. The unexported
// marker keeps the set closed: the router can type-switch exhaustively and
// a new event type cannot appear without a codec entry.
type ClientPayload interface {
	clientEvent() ClientEventType
}

// ServerPayload is the closed set of server event payloads.
type ServerPayload interface {
	serverEvent() ServerEventType
}

// JoinDebate attaches the connection to a session's room. A userId that is
// not in the session roster joins as an observer: snapshots and broadcasts
// flow, mutations are rejected.
type JoinDebate struct {
	DebateID string `json:"debateId"`
	UserID   string `json:"userId"`
}

// LeaveDebate detaches the connection from a session's room.
type LeaveDebate struct {
	DebateID string `json:"debateId"`
}

// StartDebate creates a session and requests the first phase transition.
type StartDebate struct {
	Topic        string               `json:"topic"`
	Participants []debate.Participant `json:"participants"`
	Format       *debate.Format       `json:"format,omitempty"`
}

// RequestTurn asks for the floor ahead of the slot order. The request is
// recorded as a system transcript entry; it does not change the speaker.
type RequestTurn struct {
	Phase debate.Phase `json:"phase"`
}

// EndTurn yields the floor early, requesting the successor phase.
type EndTurn struct{}

// SubmitSpeech submits a constructive, rebuttal, or summary speech. Side is
// carried for client convenience only; the roster is authoritative.
type SubmitSpeech struct {
	Text      string      `json:"text"`
	SpeakerID string      `json:"speakerId"`
	Side      debate.Team `json:"side,omitempty"`
}

// CrossfireMessage submits a rapid exchange message during a crossfire.
type CrossfireMessage struct {
	Text      string `json:"text"`
	SpeakerID string `json:"speakerId"`
	Priority  bool   `json:"priority,omitempty"`
}

// PauseDebate requests the pause leg for the connection's session.
type PauseDebate struct{}

// ResumeDebate requests the resume leg for the connection's session.
type ResumeDebate struct{}

func (*JoinDebate) clientEvent() ClientEventType       { return ClientJoinDebate }
func (*LeaveDebate) clientEvent() ClientEventType      { return ClientLeaveDebate }
func (*StartDebate) clientEvent() ClientEventType      { return ClientStartDebate }
func (*RequestTurn) clientEvent() ClientEventType      { return ClientRequestTurn }
func (*EndTurn) clientEvent() ClientEventType          { return ClientEndTurn }
func (*SubmitSpeech) clientEvent() ClientEventType     { return ClientSubmitSpeech }
func (*CrossfireMessage) clientEvent() ClientEventType { return ClientCrossfireMessage }
func (*PauseDebate) clientEvent() ClientEventType      { return ClientPauseDebate }
func (*ResumeDebate) clientEvent() ClientEventType     { return ClientResumeDebate }

// DebateState is the authoritative snapshot sent on join, on resync, and
// alongside conflict rejections. Remaining is computed server-side at send
// time so clients never derive it from timer fields.
type DebateState struct {
	Session   *debate.Session `json:"session"`
	Remaining int             `json:"remaining"`
}

// PhaseChange announces an applied phase transition.
type PhaseChange struct {
	Phase   debate.Phase `json:"phase"`
	Speaker string       `json:"speaker,omitempty"`
}

// TranscriptUpdate broadcasts a transcript entry that was already appended
// to authoritative state. IsFinal is always true today; the field exists
// for streaming transcription clients.
type TranscriptUpdate struct {
	MessageID string             `json:"messageId"`
	Speaker   string             `json:"speaker"`
	Text      string             `json:"text"`
	IsFinal   bool               `json:"isFinal"`
	Kind      debate.MessageType `json:"kind"`
	Priority  bool               `json:"priority,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// TimerUpdate is the once-a-second countdown broadcast for timed phases.
type TimerUpdate struct {
	Phase     debate.Phase `json:"phase"`
	Remaining int          `json:"remaining"`
}

// ParticipantJoined announces a roster member's connection coming online.
// Observers do not produce this event.
type ParticipantJoined struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// ParticipantLeft announces a roster member's connection going offline.
type ParticipantLeft struct {
	UserID string `json:"userId"`
}

// ObserverCount reports how many read-only connections a session has.
type ObserverCount struct {
	Count int `json:"count"`
}

// ErrorEvent reports a rejected event to its originator.
type ErrorEvent struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (*DebateState) serverEvent() ServerEventType       { return ServerDebateState }
func (*PhaseChange) serverEvent() ServerEventType       { return ServerPhaseChange }
func (*TranscriptUpdate) serverEvent() ServerEventType  { return ServerTranscriptUpdate }
func (*TimerUpdate) serverEvent() ServerEventType       { return ServerTimerUpdate }
func (*ParticipantJoined) serverEvent() ServerEventType { return ServerParticipantJoined }
func (*ParticipantLeft) serverEvent() ServerEventType   { return ServerParticipantLeft }
func (*ObserverCount) serverEvent() ServerEventType     { return ServerObserverCount }
func (*ErrorEvent) serverEvent() ServerEventType        { return ServerError }

// NewDebateState snapshots a session for the wire. The session must already
// be a private copy; the codec does not clone.
func NewDebateState(s *debate.Session, now time.Time) *DebateState {
	return &DebateState{Session: s, Remaining: s.Remaining(now)}
}

// NewPhaseChange announces the session's current phase and speaker.
func NewPhaseChange(s *debate.Session) *PhaseChange {
	return &PhaseChange{Phase: s.Phase, Speaker: s.CurrentSpeakerID}
}

// NewTranscriptUpdate wraps an accepted transcript entry for broadcast.
func NewTranscriptUpdate(m debate.Message) *TranscriptUpdate {
	return &TranscriptUpdate{
		MessageID: m.ID,
		Speaker:   m.SpeakerID,
		Text:      m.Content,
		IsFinal:   true,
		Kind:      m.Type,
		Priority:  m.Priority,
		Timestamp: m.Timestamp,
	}
}

// NewErrorEvent translates an error into its client-facing code and
// message, masking anything not meant for the wire.
func NewErrorEvent(err error) *ErrorEvent {
	code, msg := errors.Wire(err)
	return &ErrorEvent{Code: code, Message: msg}
}
