package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/rostralabs/rostra/internal/errors"
)

// envelope is the outer frame shape shared by both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClient parses a client frame into its typed payload. It validates
// the envelope and the payload's JSON shape only; field-level rules stay
// with the session machine so rejection order is driven by state, not by
// parsing.
func DecodeClient(data []byte) (ClientPayload, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload, "malformed event envelope").WithCause(err)
	}

	var payload ClientPayload
	switch ClientEventType(env.Type) {
	case ClientJoinDebate:
		payload = new(JoinDebate)
	case ClientLeaveDebate:
		payload = new(LeaveDebate)
	case ClientStartDebate:
		payload = new(StartDebate)
	case ClientRequestTurn:
		payload = new(RequestTurn)
	case ClientEndTurn:
		payload = new(EndTurn)
	case ClientSubmitSpeech:
		payload = new(SubmitSpeech)
	case ClientCrossfireMessage:
		payload = new(CrossfireMessage)
	case ClientPauseDebate:
		payload = new(PauseDebate)
	case ClientResumeDebate:
		payload = new(ResumeDebate)
	default:
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload,
			fmt.Sprintf("unknown client event type %q", env.Type))
	}

	if err := unmarshalPayload(env.Payload, payload, env.Type); err != nil {
		return nil, err
	}
	return payload, nil
}

// DecodeServer parses a server frame into its typed payload. The server
// never receives these; the decoder exists for Go clients and tests.
func DecodeServer(data []byte) (ServerPayload, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload, "malformed event envelope").WithCause(err)
	}

	var payload ServerPayload
	switch ServerEventType(env.Type) {
	case ServerDebateState:
		payload = new(DebateState)
	case ServerPhaseChange:
		payload = new(PhaseChange)
	case ServerTranscriptUpdate:
		payload = new(TranscriptUpdate)
	case ServerTimerUpdate:
		payload = new(TimerUpdate)
	case ServerParticipantJoined:
		payload = new(ParticipantJoined)
	case ServerParticipantLeft:
		payload = new(ParticipantLeft)
	case ServerObserverCount:
		payload = new(ObserverCount)
	case ServerError:
		payload = new(ErrorEvent)
	default:
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload,
			fmt.Sprintf("unknown server event type %q", env.Type))
	}

	if err := unmarshalPayload(env.Payload, payload, env.Type); err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodeClient frames a client payload for the wire.
func EncodeClient(p ClientPayload) ([]byte, error) {
	return encode(string(p.clientEvent()), p)
}

// EncodeServer frames a server payload for the wire.
func EncodeServer(p ServerPayload) ([]byte, error) {
	return encode(string(p.serverEvent()), p)
}

func encode(eventType string, payload any) ([]byte, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", eventType, err)
	}
	data, err := sonic.Marshal(envelope{Type: eventType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s envelope: %w", eventType, err)
	}
	return data, nil
}

// unmarshalPayload fills payload from raw. A missing payload object is
// legal for events that carry no fields.
func unmarshalPayload(raw json.RawMessage, payload any, eventType string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, payload); err != nil {
		return errors.NewProtocolError(errors.CodeInvalidPayload,
			fmt.Sprintf("malformed %s payload", eventType)).WithCause(err)
	}
	return nil
}

// TypeOf reports the wire name of a payload in either direction. It is a
// convenience for logging and metrics labels.
func TypeOf(p any) string {
	switch v := p.(type) {
	case ClientPayload:
		return string(v.clientEvent())
	case ServerPayload:
		return string(v.serverEvent())
	default:
		return ""
	}
}
