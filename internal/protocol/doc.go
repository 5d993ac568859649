// Package protocol defines the wire contract between debate clients and
// the orchestrator: a closed set of tagged event payloads and the codec
// that translates them to and from JSON frames.
//
// Every textual frame is an envelope of the form
//
//	{"type": "<event-name>", "payload": {...}}
//
// DecodeClient and DecodeServer validate the envelope once at the
// transport boundary and return a typed payload, so downstream components
// only ever see well-formed, well-typed events. Unknown event names and
// malformed payloads are rejected with INVALID_PAYLOAD.
//
// # Client Events
//
//	join-debate        JoinDebate
//	leave-debate       LeaveDebate
//	start-debate       StartDebate
//	request-turn       RequestTurn
//	end-turn           EndTurn
//	submit-speech      SubmitSpeech
//	crossfire-message  CrossfireMessage
//	pause-debate       PauseDebate
//	resume-debate      ResumeDebate
//
// # Server Events
//
//	debate-state        DebateState
//	phase-change        PhaseChange
//	transcript-update   TranscriptUpdate
//	timer-update        TimerUpdate
//	participant-joined  ParticipantJoined
//	participant-left    ParticipantLeft
//	observer-count      ObserverCount
//	error               ErrorEvent
//
// Audio travels as binary websocket frames handled by the relay's frame
// codec, never through this package; the audio-chunk and audio-stream
// names exist only at the transport layer.
package protocol
