package event

import "github.com/rostralabs/rostra/internal/protocol"

// Event is a single fan-out unit for a session room. Exactly one of
// Payload and Frame is set: Payload for JSON server events, Frame for
// relayed binary audio.
type Event struct {
	// Room is the session id the event belongs to.
	Room string

	// From is the originating connection id. It is empty for
	// server-originated events and set for relayed audio so delivery can
	// skip the speaker's own connection.
	From string

	// Payload is a typed server event, nil for audio frames.
	Payload protocol.ServerPayload

	// Frame is an encoded binary audio frame, nil for JSON events.
	Frame []byte
}

// Broadcast wraps a server payload for every subscriber in a room.
func Broadcast(room string, payload protocol.ServerPayload) Event {
	return Event{Room: room, Payload: payload}
}

// AudioFrame wraps a relayed binary frame. From names the speaker's
// connection; subscribers use it to avoid echoing audio to its source.
func AudioFrame(room, from string, frame []byte) Event {
	return Event{Room: room, From: from, Frame: frame}
}

// Type reports the wire name of the payload, or "audio" for frames.
// Intended for logging and metrics labels.
func (e Event) Type() string {
	if e.Frame != nil {
		return "audio"
	}
	return protocol.TypeOf(e.Payload)
}
