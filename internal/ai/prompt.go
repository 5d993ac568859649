package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rostralabs/rostra/internal/debate"
)

// maxContextMessages bounds how much transcript history rides along in
// a generation request.
const maxContextMessages = 40

func systemPrompt(req Request) string {
	side := "PRO (affirmative)"
	if req.Speaker.Team == debate.TeamCon {
		side = "CON (negative)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a competitive public forum debater arguing the %s side.\n",
		displayName(req.Speaker), side)
	fmt.Fprintf(&b, "Motion: %s\n", req.Topic)
	if persona, ok := req.Speaker.AIConfig["personality"].(string); ok && persona != "" {
		fmt.Fprintf(&b, "Persona: %s\n", persona)
	}
	b.WriteString("Speak in first person and address the judge directly. Output the speech text only, no stage directions.\n")
	if req.MaxLength > 0 {
		fmt.Fprintf(&b, "Keep the speech under %d characters.\n", req.MaxLength)
	}
	b.WriteString(phaseInstruction(req.Phase))
	return b.String()
}

func phaseInstruction(p debate.Phase) string {
	switch p {
	case debate.PhaseProConstructive, debate.PhaseConConstructive:
		return "Deliver your constructive: lay out your side's case as two or three distinct contentions, each backed by reasoning."
	case debate.PhaseRebuttal:
		return "Deliver the rebuttal: attack the opposing case directly and rebuild your own where it was challenged."
	case debate.PhaseSummary:
		return "Deliver the summary: collapse to your strongest arguments and weigh them against the opposition's."
	case debate.PhaseFinalFocus:
		return "Deliver the final focus: give the judge the single clearest reason your side wins."
	case debate.PhaseCrossfire1, debate.PhaseCrossfire2, debate.PhaseGrandCrossfire:
		return "Ask one sharp question or give one pointed answer. Keep it short and conversational."
	default:
		return "Contribute appropriately for the current phase of the round."
	}
}

func displayName(p debate.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
