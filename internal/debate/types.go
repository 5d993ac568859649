package debate

import "time"

// Team identifies which side of the motion a participant argues.
type Team string

const (
	// TeamPro argues in favor of the motion.
	TeamPro Team = "PRO"
	// TeamCon argues against the motion.
	TeamCon Team = "CON"
)

// Role is a participant's speaking-order slot within their team.
type Role string

const (
	// RoleFirst is the team's opening speaker.
	RoleFirst Role = "first"
	// RoleSecond is the team's closing speaker.
	RoleSecond Role = "second"
)

// Status summarizes a session's lifecycle for listings and snapshots.
type Status string

const (
	// StatusPending indicates the session exists but the debate has not started.
	StatusPending Status = "pending"
	// StatusActive indicates a debate phase is running.
	StatusActive Status = "active"
	// StatusPaused indicates the debate is paused with the timer frozen.
	StatusPaused Status = "paused"
	// StatusCompleted indicates the debate has ended and the session is frozen.
	StatusCompleted Status = "completed"
)

// MessageType classifies a transcript entry.
type MessageType string

const (
	// MessageSpeech is a timed-floor speech by the current speaker.
	MessageSpeech MessageType = "speech"
	// MessageCrossfire is a contribution during a crossfire phase.
	MessageCrossfire MessageType = "crossfire"
	// MessageSystem is a server-generated annotation, such as a floor
	// request or the recorded outcome.
	MessageSystem MessageType = "system"
)

// Participant is one member of a debate's fixed roster. The roster is set
// at session creation and never changes; connectivity is tracked
// separately as presence.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Team Team   `json:"team"`
	Role Role   `json:"role"`

	// IsAI marks synthetic participants driven by the argument generator.
	IsAI bool `json:"isAI,omitempty"`

	// AIConfig carries model, personality, and voice selection for AI
	// participants. It is opaque to the orchestrator and passed through
	// to the external generation and synthesis services.
	AIConfig map[string]any `json:"aiConfig,omitempty"`
}

// Message is a single transcript entry. Accepted entries are broadcast to
// the room as transcript updates after they are persisted.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	SpeakerID string      `json:"speakerId,omitempty"`
	Content   string      `json:"content"`

	// Priority marks a crossfire interjection for UI emphasis. It has no
	// effect on ordering.
	Priority bool `json:"priority,omitempty"`

	// Timestamp is assigned by the server when the entry is accepted.
	// Transcript order is timestamp order, never client arrival order.
	Timestamp time.Time `json:"timestamp"`
}

// Timer tracks the current phase's clock.
type Timer struct {
	// PhaseStartedAt is when the active clock last started: on phase
	// entry, and again on every resume.
	PhaseStartedAt time.Time `json:"phaseStartedAt"`

	// DurationSeconds is the phase's configured length. Zero for untimed
	// phases.
	DurationSeconds int `json:"durationSeconds"`

	// Paused freezes elapsed-time accumulation.
	Paused bool `json:"paused"`

	// PausedElapsed is the active time in seconds consumed before the
	// most recent pause, accumulated across pause/resume cycles.
	PausedElapsed int `json:"pausedElapsed"`
}

// Session is the full authoritative state of one debate. It serializes to
// the session store document and, with a computed remaining time, to the
// debate-state snapshot sent on join and resync.
type Session struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	Participants []Participant `json:"participants"`
	Phase        Phase         `json:"phase"`

	// CurrentSpeakerID holds the floor during speech phases. Empty during
	// setup, crossfire phases, and after completion.
	CurrentSpeakerID string `json:"currentSpeakerId,omitempty"`

	Timer      Timer     `json:"timer"`
	Transcript []Message `json:"transcript"`
	Status     Status    `json:"status"`

	// Format is fixed at creation so a running debate keeps its timing
	// even if server configuration changes underneath it.
	Format Format `json:"format"`

	// Winner and EndReason record the outcome when the debate is ended
	// explicitly. Both stay empty for sessions that run the full sequence.
	Winner    Team   `json:"winner,omitempty"`
	EndReason string `json:"endReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Version increments on every applied mutation. Stores use it for
	// optimistic concurrency.
	Version uint64 `json:"version"`
}
