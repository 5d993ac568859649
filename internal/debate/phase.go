package debate

// Phase identifies one stage of the fixed debate sequence.
type Phase string

const (
	// PhaseSetup is the initial, untimed phase before the debate starts.
	PhaseSetup Phase = "setup"
	// PhaseProConstructive is the PRO team's opening constructive speech.
	PhaseProConstructive Phase = "pro_constructive"
	// PhaseCrossfire1 is the open exchange following the PRO constructive.
	PhaseCrossfire1 Phase = "crossfire_1"
	// PhaseConConstructive is the CON team's opening constructive speech.
	PhaseConConstructive Phase = "con_constructive"
	// PhaseCrossfire2 is the open exchange following the CON constructive.
	PhaseCrossfire2 Phase = "crossfire_2"
	// PhaseRebuttal is the PRO team's rebuttal speech.
	PhaseRebuttal Phase = "rebuttal"
	// PhaseGrandCrossfire is the open exchange between all participants
	// after the rebuttal.
	PhaseGrandCrossfire Phase = "grand_crossfire"
	// PhaseSummary is the CON team's summary speech.
	PhaseSummary Phase = "summary"
	// PhaseFinalFocus is the PRO team's closing speech.
	PhaseFinalFocus Phase = "final_focus"
	// PhaseCompleted is the terminal phase. The session is frozen.
	PhaseCompleted Phase = "completed"

	// PhasePaused is a wire-level pseudo-phase: requesting a transition to
	// it pauses the session without resetting the underlying phase. It
	// never appears as a session's recorded phase.
	PhasePaused Phase = "paused"
)

// successor defines the fixed phase order. Completed has no successor.
var successor = map[Phase]Phase{
	PhaseSetup:           PhaseProConstructive,
	PhaseProConstructive: PhaseCrossfire1,
	PhaseCrossfire1:      PhaseConConstructive,
	PhaseConConstructive: PhaseCrossfire2,
	PhaseCrossfire2:      PhaseRebuttal,
	PhaseRebuttal:        PhaseGrandCrossfire,
	PhaseGrandCrossfire:  PhaseSummary,
	PhaseSummary:         PhaseFinalFocus,
	PhaseFinalFocus:      PhaseCompleted,
}

// phaseKind classifies how a phase treats the floor.
type phaseKind int

const (
	kindSetup phaseKind = iota
	kindSpeech
	kindCrossfire
	kindTerminal
)

// slot designates which roster position speaks during a speech phase.
type slot struct {
	team Team
	role Role
}

type phaseSpec struct {
	kind phaseKind
	slot slot
}

// phaseSpecs assigns each phase its kind and, for speech phases, the
// designated speaker slot. Single-slot phases alternate sides so both
// teams close out the debate: the rebuttal goes to PRO's second speaker,
// the summary to CON's second, and the final focus back to PRO's first.
var phaseSpecs = map[Phase]phaseSpec{
	PhaseSetup:           {kind: kindSetup},
	PhaseProConstructive: {kind: kindSpeech, slot: slot{TeamPro, RoleFirst}},
	PhaseCrossfire1:      {kind: kindCrossfire},
	PhaseConConstructive: {kind: kindSpeech, slot: slot{TeamCon, RoleFirst}},
	PhaseCrossfire2:      {kind: kindCrossfire},
	PhaseRebuttal:        {kind: kindSpeech, slot: slot{TeamPro, RoleSecond}},
	PhaseGrandCrossfire:  {kind: kindCrossfire},
	PhaseSummary:         {kind: kindSpeech, slot: slot{TeamCon, RoleSecond}},
	PhaseFinalFocus:      {kind: kindSpeech, slot: slot{TeamPro, RoleFirst}},
	PhaseCompleted:       {kind: kindTerminal},
}

// Successor returns the next phase in the fixed sequence. The second
// return is false for the terminal phase and for unknown phases.
func (p Phase) Successor() (Phase, bool) {
	next, ok := successor[p]
	return next, ok
}

// Valid reports whether p is a member of the phase sequence. PhasePaused
// is a pseudo-phase and is not valid here.
func (p Phase) Valid() bool {
	_, ok := phaseSpecs[p]
	return ok
}

// IsSpeaking reports whether the phase grants the floor to a single
// designated speaker.
func (p Phase) IsSpeaking() bool {
	return phaseSpecs[p].kind == kindSpeech
}

// IsCrossfire reports whether the phase is an open exchange where any
// roster member may contribute.
func (p Phase) IsCrossfire() bool {
	return phaseSpecs[p].kind == kindCrossfire
}

// IsTerminal reports whether the phase freezes the session.
func (p Phase) IsTerminal() bool {
	return phaseSpecs[p].kind == kindTerminal
}

// IsTimed reports whether the phase runs a countdown timer.
func (p Phase) IsTimed() bool {
	k := phaseSpecs[p].kind
	return k == kindSpeech || k == kindCrossfire
}

// Format holds the per-phase timing and payload limits for one debate.
type Format struct {
	ConstructiveSeconds   int `json:"constructiveSeconds"`
	CrossfireSeconds      int `json:"crossfireSeconds"`
	RebuttalSeconds       int `json:"rebuttalSeconds"`
	GrandCrossfireSeconds int `json:"grandCrossfireSeconds"`
	SummarySeconds        int `json:"summarySeconds"`
	FinalFocusSeconds     int `json:"finalFocusSeconds"`

	// MaxSpeechLength bounds speech and crossfire content in bytes.
	MaxSpeechLength int `json:"maxSpeechLength"`
}

// DefaultFormat returns the standard public-forum timing.
func DefaultFormat() Format {
	return Format{
		ConstructiveSeconds:   240,
		CrossfireSeconds:      180,
		RebuttalSeconds:       240,
		GrandCrossfireSeconds: 180,
		SummarySeconds:        180,
		FinalFocusSeconds:     120,
		MaxSpeechLength:       4096,
	}
}

// Duration returns the configured length in seconds for a phase. Untimed
// phases return zero.
func (f Format) Duration(p Phase) int {
	switch p {
	case PhaseProConstructive, PhaseConConstructive:
		return f.ConstructiveSeconds
	case PhaseCrossfire1, PhaseCrossfire2:
		return f.CrossfireSeconds
	case PhaseRebuttal:
		return f.RebuttalSeconds
	case PhaseGrandCrossfire:
		return f.GrandCrossfireSeconds
	case PhaseSummary:
		return f.SummarySeconds
	case PhaseFinalFocus:
		return f.FinalFocusSeconds
	default:
		return 0
	}
}
