// Package debate implements the authoritative state of a single debate
// session: the fixed phase sequence, speaker turns, the phase timer, and
// the append-only transcript.
//
// The package is pure domain logic. It performs no I/O and knows nothing
// about transports or storage; callers pass in the current time and
// persist the resulting state themselves.
//
// # Phase Sequence
//
// Every debate runs the same fixed sequence:
//
//	setup -> pro_constructive -> crossfire_1 -> con_constructive ->
//	crossfire_2 -> rebuttal -> grand_crossfire -> summary ->
//	final_focus -> completed
//
// Speech phases seat exactly one designated speaker, resolved from the
// roster by team and speaking-order role. Crossfire phases clear speaker
// exclusivity: any roster member may contribute. Entering completed
// freezes the session permanently.
//
// Transitions go through RequestPhaseChange, which accepts a request only
// when the caller's fromPhase matches the recorded phase and toPhase is
// the fixed successor. Stale and replayed requests are rejected with
// PHASE_CONFLICT; handlers answer them with the authoritative snapshot
// rather than an error storm.
//
// A session may additionally be paused from any non-terminal phase.
// Pausing freezes the timer without resetting the phase; resuming
// restarts the clock with the remaining duration.
//
// # Usage
//
//	roster := []debate.Participant{
//		{ID: "alice", Team: debate.TeamPro},
//		{ID: "bob", Team: debate.TeamCon},
//	}
//	s, _ := debate.New("d1", "Ban homework?", roster, debate.DefaultFormat(), time.Now())
//	_ = s.RequestPhaseChange(debate.PhaseSetup, debate.PhaseProConstructive, time.Now())
//	msg, err := s.AppendSpeech("alice", "Homework crowds out sleep.", time.Now())
//
// # Concurrency
//
// Session is not safe for concurrent use. The registry owns each live
// session and serializes all mutations through a per-session command
// queue; everything else works on snapshots produced by Clone.
package debate
