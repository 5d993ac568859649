package relay

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/protocol"
)

type fakeGate struct {
	deny map[string]error // sender id -> rejection
}

func (g *fakeGate) AllowAudio(sessionID, senderID string) error {
	if g.deny == nil {
		return nil
	}
	return g.deny[senderID]
}

// chunk builds an inbound frame.
func chunk(final bool, payload string) []byte {
	var flags byte
	if final {
		flags |= flagFinal
	}
	return append([]byte{flags}, payload...)
}

func newTestRelay(t *testing.T, gate Gate, maxFrame int) (*Relay, *[]event.Event) {
	t.Helper()
	bus := event.NewBus(nil)
	var got []event.Event
	bus.Subscribe("debate-1", func(e event.Event) {
		got = append(got, e)
	})
	if gate == nil {
		gate = &fakeGate{}
	}
	return New(bus, gate, maxFrame, nil), &got
}

// ----- Frame Codec Tests -----

func TestDecodeChunk(t *testing.T) {
	c, err := DecodeChunk(chunk(false, "pcm-data"))
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if c.Final {
		t.Error("Final = true, want false")
	}
	if string(c.Payload) != "pcm-data" {
		t.Errorf("Payload = %q, want %q", c.Payload, "pcm-data")
	}

	c, err = DecodeChunk(chunk(true, "tail"))
	if err != nil {
		t.Fatalf("DecodeChunk final: %v", err)
	}
	if !c.Final {
		t.Error("Final = false, want true")
	}

	// A bare final marker carries no payload.
	c, err = DecodeChunk([]byte{flagFinal})
	if err != nil {
		t.Fatalf("DecodeChunk marker: %v", err)
	}
	if !c.Final || len(c.Payload) != 0 {
		t.Errorf("marker = %+v, want final with empty payload", c)
	}
}

func TestDecodeChunk_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty frame", nil},
		{"empty non-final payload", []byte{0x00}},
		{"unknown flags", append([]byte{0x80}, "data"...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChunk(tt.frame)
			if err == nil {
				t.Fatal("DecodeChunk succeeded, want error")
			}
			if !errors.HasCode(err, errors.CodeInvalidAudio) {
				t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeInvalidAudio)
			}
		})
	}
}

func TestStream_RoundTrip(t *testing.T) {
	out, err := EncodeStream("alice", 7, true, []byte("pcm"))
	if err != nil {
		t.Fatalf("EncodeStream: %v", err)
	}
	s, err := DecodeStream(out)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if s.SpeakerID != "alice" {
		t.Errorf("SpeakerID = %q, want %q", s.SpeakerID, "alice")
	}
	if s.Seq != 7 {
		t.Errorf("Seq = %d, want 7", s.Seq)
	}
	if !s.Final {
		t.Error("Final = false, want true")
	}
	if string(s.Payload) != "pcm" {
		t.Errorf("Payload = %q, want %q", s.Payload, "pcm")
	}
}

func TestEncodeStream_SpeakerBounds(t *testing.T) {
	if _, err := EncodeStream("", 1, false, []byte("pcm")); err == nil {
		t.Error("empty speaker id encoded, want error")
	}
	if _, err := EncodeStream(strings.Repeat("x", 256), 1, false, []byte("pcm")); err == nil {
		t.Error("256-byte speaker id encoded, want error")
	}
	if _, err := EncodeStream(strings.Repeat("x", 255), 1, false, []byte("pcm")); err != nil {
		t.Errorf("255-byte speaker id rejected: %v", err)
	}
}

func TestDecodeStream_Truncated(t *testing.T) {
	for _, frame := range [][]byte{nil, {5}, {5, 'a', 'b'}, {0, 0x00}, {1, 'a', 0x00, 0, 0, 1}} {
		if _, err := DecodeStream(frame); err == nil {
			t.Errorf("DecodeStream(%v) succeeded, want error", frame)
		}
	}
}

// ----- Forwarding Tests -----

func TestForward(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, "pcm-data")); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if len(*got) != 1 {
		t.Fatalf("published %d events, want 1", len(*got))
	}
	ev := (*got)[0]
	if ev.From != "conn-1" {
		t.Errorf("From = %q, want %q", ev.From, "conn-1")
	}
	if ev.Type() != "audio" {
		t.Errorf("Type = %q, want %q", ev.Type(), "audio")
	}
	s, err := DecodeStream(ev.Frame)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if s.SpeakerID != "alice" || s.Final || string(s.Payload) != "pcm-data" {
		t.Errorf("stream = %+v, want alice non-final pcm-data", s)
	}
	if s.Seq != 1 {
		t.Errorf("Seq = %d, want 1", s.Seq)
	}
	if r.ActiveSpeaker("debate-1") != "alice" {
		t.Errorf("ActiveSpeaker = %q, want %q", r.ActiveSpeaker("debate-1"), "alice")
	}
}

func TestForward_SequenceNumbers(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	for i, c := range [][]byte{chunk(false, "a1"), chunk(false, "a2"), chunk(true, "a3")} {
		if err := r.Forward("debate-1", "conn-1", "alice", c); err != nil {
			t.Fatalf("Forward %d: %v", i, err)
		}
	}
	for i, want := range []uint32{1, 2, 3} {
		s, err := DecodeStream((*got)[i].Frame)
		if err != nil {
			t.Fatalf("DecodeStream %d: %v", i, err)
		}
		if s.Seq != want {
			t.Errorf("frame %d Seq = %d, want %d", i, s.Seq, want)
		}
	}

	// The final chunk closed the context, so the next one counts from 1.
	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, "a4")); err != nil {
		t.Fatalf("Forward after final: %v", err)
	}
	s, err := DecodeStream((*got)[3].Frame)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if s.Seq != 1 {
		t.Errorf("fresh context Seq = %d, want 1", s.Seq)
	}
}

func TestForward_GateRejection(t *testing.T) {
	turnErr := errors.NewProtocolError(errors.CodeNotYourTurn, `the floor belongs to "alice"`)
	r, got := newTestRelay(t, &fakeGate{deny: map[string]error{"bob": turnErr}}, 0)

	err := r.Forward("debate-1", "conn-2", "bob", chunk(false, "pcm"))
	if !errors.HasCode(err, errors.CodeNotYourTurn) {
		t.Errorf("Forward = %v, want NOT_YOUR_TURN", err)
	}
	if len(*got) != 0 {
		t.Errorf("published %d events after rejection, want 0", len(*got))
	}
}

func TestForward_ChunkTooLarge(t *testing.T) {
	r, got := newTestRelay(t, nil, 16)

	err := r.Forward("debate-1", "conn-1", "alice", chunk(false, strings.Repeat("x", 16)))
	if !errors.HasCode(err, errors.CodeChunkTooLarge) {
		t.Errorf("Forward = %v, want CHUNK_TOO_LARGE", err)
	}
	if len(*got) != 0 {
		t.Errorf("published %d events after rejection, want 0", len(*got))
	}

	// At the bound exactly, the frame passes.
	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, strings.Repeat("x", 15))); err != nil {
		t.Errorf("Forward at limit: %v", err)
	}
}

func TestForward_MalformedFrame(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	err := r.Forward("debate-1", "conn-1", "alice", []byte{0x80, 'x'})
	if !errors.HasCode(err, errors.CodeInvalidAudio) {
		t.Errorf("Forward = %v, want INVALID_AUDIO", err)
	}
	if len(*got) != 0 {
		t.Errorf("published %d events after rejection, want 0", len(*got))
	}
}

func TestForward_SpeakerHandoffClosesContext(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, "a1")); err != nil {
		t.Fatalf("Forward alice: %v", err)
	}
	if err := r.Forward("debate-1", "conn-2", "bob", chunk(false, "b1")); err != nil {
		t.Fatalf("Forward bob: %v", err)
	}

	if len(*got) != 3 {
		t.Fatalf("published %d events, want 3 (alice, close, bob)", len(*got))
	}

	// The close marker for alice lands before bob's first frame, carrying
	// the next number in alice's run.
	closeFrame, err := DecodeStream((*got)[1].Frame)
	if err != nil {
		t.Fatalf("DecodeStream close: %v", err)
	}
	if closeFrame.SpeakerID != "alice" || !closeFrame.Final || len(closeFrame.Payload) != 0 {
		t.Errorf("close frame = %+v, want empty final for alice", closeFrame)
	}
	if closeFrame.Seq != 2 {
		t.Errorf("close frame Seq = %d, want 2", closeFrame.Seq)
	}
	if (*got)[1].From != "" {
		t.Errorf("close frame From = %q, want empty (server-originated)", (*got)[1].From)
	}

	bobFrame, err := DecodeStream((*got)[2].Frame)
	if err != nil {
		t.Fatalf("DecodeStream bob: %v", err)
	}
	if bobFrame.SpeakerID != "bob" || string(bobFrame.Payload) != "b1" {
		t.Errorf("bob frame = %+v, want bob b1", bobFrame)
	}
	if bobFrame.Seq != 1 {
		t.Errorf("bob frame Seq = %d, want 1", bobFrame.Seq)
	}
	if r.ActiveSpeaker("debate-1") != "bob" {
		t.Errorf("ActiveSpeaker = %q, want %q", r.ActiveSpeaker("debate-1"), "bob")
	}
}

func TestForward_FinalChunkClearsContext(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, "a1")); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if err := r.Forward("debate-1", "conn-1", "alice", chunk(true, "a2")); err != nil {
		t.Fatalf("Forward final: %v", err)
	}
	if r.ActiveSpeaker("debate-1") != "" {
		t.Errorf("ActiveSpeaker = %q after final, want empty", r.ActiveSpeaker("debate-1"))
	}

	// The next speaker starts clean, without a close marker.
	if err := r.Forward("debate-1", "conn-2", "bob", chunk(false, "b1")); err != nil {
		t.Fatalf("Forward bob: %v", err)
	}
	if len(*got) != 3 {
		t.Fatalf("published %d events, want 3 (no close marker)", len(*got))
	}
	last, err := DecodeStream((*got)[2].Frame)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if last.SpeakerID != "bob" {
		t.Errorf("last frame speaker = %q, want %q", last.SpeakerID, "bob")
	}
}

func TestCloseContext(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, "a1")); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	r.CloseContext("debate-1")
	if r.ActiveSpeaker("debate-1") != "" {
		t.Errorf("ActiveSpeaker = %q after close, want empty", r.ActiveSpeaker("debate-1"))
	}
	if len(*got) != 2 {
		t.Fatalf("published %d events, want 2", len(*got))
	}
	s, err := DecodeStream((*got)[1].Frame)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if s.SpeakerID != "alice" || !s.Final {
		t.Errorf("close frame = %+v, want final for alice", s)
	}

	// Closing an idle session publishes nothing.
	r.CloseContext("debate-1")
	if len(*got) != 2 {
		t.Errorf("published %d events after idle close, want 2", len(*got))
	}
}

func TestForward_PayloadUntouched(t *testing.T) {
	r, got := newTestRelay(t, nil, 0)

	payload := []byte{0x00, 0xff, 0x13, 0x37, 0x00}
	frame := append([]byte{0x00}, payload...)
	if err := r.Forward("debate-1", "conn-1", "alice", frame); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	s, err := DecodeStream((*got)[0].Frame)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if !bytes.Equal(s.Payload, payload) {
		t.Errorf("Payload = %v, want %v", s.Payload, payload)
	}
}

func TestWatchPhases(t *testing.T) {
	bus := event.NewBus(nil)
	var frames []event.Event
	bus.Subscribe("debate-1", func(e event.Event) {
		if e.Frame != nil {
			frames = append(frames, e)
		}
	})
	r := New(bus, &fakeGate{}, 0, nil)
	r.WatchPhases()

	if err := r.Forward("debate-1", "conn-1", "alice", chunk(false, "a1")); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	// A committed phase change closes the open context.
	bus.Publish(event.Broadcast("debate-1", &protocol.PhaseChange{Phase: debate.PhaseCrossfire1}))
	if speaker := r.ActiveSpeaker("debate-1"); speaker != "" {
		t.Errorf("ActiveSpeaker = %q after phase change, want empty", speaker)
	}
	if len(frames) != 2 {
		t.Fatalf("audio frames = %d, want 2 (stream + close marker)", len(frames))
	}
	s, err := DecodeStream(frames[1].Frame)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if s.SpeakerID != "alice" || !s.Final || len(s.Payload) != 0 {
		t.Errorf("close marker = %+v, want empty final frame for alice", s)
	}

	// A paused snapshot closes the context too.
	if err := r.Forward("debate-1", "conn-2", "bob", chunk(false, "b1")); err != nil {
		t.Fatalf("Forward bob: %v", err)
	}
	paused := &debate.Session{ID: "debate-1"}
	paused.Timer.Paused = true
	bus.Publish(event.Broadcast("debate-1", &protocol.DebateState{Session: paused}))
	if speaker := r.ActiveSpeaker("debate-1"); speaker != "" {
		t.Errorf("ActiveSpeaker = %q after pause, want empty", speaker)
	}

	// Other room traffic leaves the context alone.
	if err := r.Forward("debate-1", "conn-2", "bob", chunk(false, "b2")); err != nil {
		t.Fatalf("Forward bob: %v", err)
	}
	bus.Publish(event.Broadcast("debate-1", &protocol.TimerUpdate{Phase: debate.PhaseCrossfire1, Remaining: 10}))
	if speaker := r.ActiveSpeaker("debate-1"); speaker != "bob" {
		t.Errorf("ActiveSpeaker = %q after timer update, want %q", speaker, "bob")
	}
}
