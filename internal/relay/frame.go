package relay

import (
	"encoding/binary"
	"fmt"

	"github.com/rostralabs/rostra/internal/errors"
)

// DefaultMaxFrameBytes bounds a single inbound audio frame.
const DefaultMaxFrameBytes = 1 << 20

// flagFinal marks the last chunk of a speaker's stream.
const flagFinal = 0x01

// Chunk is a decoded inbound audio frame.
type Chunk struct {
	Final   bool
	Payload []byte
}

// Stream is a decoded outbound audio frame. Seq counts a speaker's
// frames within one audio context, starting at 1, so players can spot
// gaps; the context's close marker carries the next number in line.
type Stream struct {
	SpeakerID string
	Seq       uint32
	Final     bool
	Payload   []byte
}

// DecodeChunk parses an inbound frame. An empty payload is legal only on
// a final frame, which clients send as an explicit end-of-speech marker.
func DecodeChunk(frame []byte) (Chunk, error) {
	if len(frame) == 0 {
		return Chunk{}, errors.NewMediaError(errors.CodeInvalidAudio, "empty audio frame")
	}
	flags := frame[0]
	if flags&^byte(flagFinal) != 0 {
		return Chunk{}, errors.NewMediaError(errors.CodeInvalidAudio,
			fmt.Sprintf("unknown audio flags 0x%02x", flags))
	}
	c := Chunk{Final: flags&flagFinal != 0, Payload: frame[1:]}
	if len(c.Payload) == 0 && !c.Final {
		return Chunk{}, errors.NewMediaError(errors.CodeInvalidAudio, "empty audio payload")
	}
	return c, nil
}

// EncodeChunk frames an inbound payload the way clients send it. An
// empty final frame is the explicit end-of-speech marker.
func EncodeChunk(final bool, payload []byte) []byte {
	var flags byte
	if final {
		flags |= flagFinal
	}
	out := make([]byte, 0, 1+len(payload))
	out = append(out, flags)
	return append(out, payload...)
}

// EncodeStream frames a chunk for listeners, tagged with its speaker
// and the speaker's sequence number within the current audio context.
func EncodeStream(speakerID string, seq uint32, final bool, payload []byte) ([]byte, error) {
	if speakerID == "" {
		return nil, errors.NewMediaError(errors.CodeInvalidAudio, "missing speaker id")
	}
	if len(speakerID) > 255 {
		return nil, errors.NewMediaError(errors.CodeInvalidAudio, "speaker id exceeds 255 bytes")
	}

	out := make([]byte, 0, 6+len(speakerID)+len(payload))
	out = append(out, byte(len(speakerID)))
	out = append(out, speakerID...)
	var flags byte
	if final {
		flags |= flagFinal
	}
	out = append(out, flags)
	out = binary.BigEndian.AppendUint32(out, seq)
	out = append(out, payload...)
	return out, nil
}

// DecodeStream parses an outbound frame. Servers never receive these;
// the decoder exists for Go clients and tests.
func DecodeStream(frame []byte) (Stream, error) {
	if len(frame) < 6 {
		return Stream{}, errors.NewMediaError(errors.CodeInvalidAudio, "audio stream frame too short")
	}
	idLen := int(frame[0])
	header := 1 + idLen + 1 + 4
	if idLen == 0 || len(frame) < header {
		return Stream{}, errors.NewMediaError(errors.CodeInvalidAudio, "truncated audio stream frame")
	}
	flags := frame[1+idLen]
	if flags&^byte(flagFinal) != 0 {
		return Stream{}, errors.NewMediaError(errors.CodeInvalidAudio,
			fmt.Sprintf("unknown audio flags 0x%02x", flags))
	}
	return Stream{
		SpeakerID: string(frame[1 : 1+idLen]),
		Seq:       binary.BigEndian.Uint32(frame[2+idLen : 2+idLen+4]),
		Final:     flags&flagFinal != 0,
		Payload:   frame[header:],
	}, nil
}
