package relay

import (
	"fmt"
	"sync"

	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/protocol"
)

// Gate answers whether a participant may stream audio into a session
// right now. The session registry implements it from committed state:
// roster membership, current speaker, phase kind, and pause flag.
type Gate interface {
	AllowAudio(sessionID, senderID string) error
}

// Relay forwards bounded audio frames to a session's room and tracks the
// open audio context per session so speaker handoffs cannot cross-talk.
type Relay struct {
	bus      *event.Bus
	gate     Gate
	maxFrame int
	log      *logging.Logger

	mu     sync.Mutex
	active map[string]*audioContext // session id -> open context
}

// audioContext is one speaker's open stream and the sequence position
// their next frame takes.
type audioContext struct {
	speaker string
	seq     uint32
}

// New creates a Relay. A maxFrame of zero or less falls back to
// DefaultMaxFrameBytes.
func New(bus *event.Bus, gate Gate, maxFrame int, log *logging.Logger) *Relay {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Relay{
		bus:      bus,
		gate:     gate,
		maxFrame: maxFrame,
		log:      log.WithComponent("relay"),
		active:   make(map[string]*audioContext),
	}
}

// Forward validates one inbound frame from senderID and fans it out to
// the rest of the room. The originating connection id is carried on the
// published event so delivery skips the speaker. Errors are for the
// sender alone; nothing is broadcast on rejection.
func (r *Relay) Forward(sessionID, connID, senderID string, frame []byte) error {
	if err := r.gate.AllowAudio(sessionID, senderID); err != nil {
		return err
	}
	if len(frame) > r.maxFrame {
		return errors.NewMediaError(errors.CodeChunkTooLarge,
			fmt.Sprintf("frame is %d bytes, limit is %d", len(frame), r.maxFrame))
	}
	chunk, err := DecodeChunk(frame)
	if err != nil {
		return err
	}

	seq, closeFrame := r.switchContext(sessionID, senderID, chunk.Final)
	if closeFrame != nil {
		r.bus.Publish(event.AudioFrame(sessionID, "", closeFrame))
	}

	out, err := EncodeStream(senderID, seq, chunk.Final, chunk.Payload)
	if err != nil {
		return err
	}
	r.bus.Publish(event.AudioFrame(sessionID, connID, out))
	return nil
}

// CloseContext ends the open audio context for a session, if any,
// emitting an empty final frame for the speaker it belonged to. The
// phase watcher calls this on every committed transition and pause;
// transports call it on room teardown.
func (r *Relay) CloseContext(sessionID string) {
	r.mu.Lock()
	ctx := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()

	if ctx == nil {
		return
	}
	out, err := EncodeStream(ctx.speaker, ctx.seq+1, true, nil)
	if err != nil {
		r.log.Warn("encode close frame", "session", sessionID, "speaker", ctx.speaker, "error", err)
		return
	}
	r.bus.Publish(event.AudioFrame(sessionID, "", out))
}

// ActiveSpeaker reports which participant holds the open audio context.
func (r *Relay) ActiveSpeaker(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx := r.active[sessionID]; ctx != nil {
		return ctx.speaker
	}
	return ""
}

// switchContext advances senderID's context and returns the sequence
// number their frame carries plus the close frame owed to the previous
// speaker, if the context changed hands. A fresh context counts from 1;
// a final chunk leaves no context open behind it.
func (r *Relay) switchContext(sessionID, senderID string, final bool) (uint32, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closeFrame []byte
	ctx := r.active[sessionID]
	if ctx != nil && ctx.speaker != senderID {
		out, err := EncodeStream(ctx.speaker, ctx.seq+1, true, nil)
		if err != nil {
			// ctx.speaker was validated when it was stored; unreachable in practice.
			r.log.Warn("encode close frame", "session", sessionID, "speaker", ctx.speaker, "error", err)
		} else {
			closeFrame = out
		}
		ctx = nil
	}
	if ctx == nil {
		ctx = &audioContext{speaker: senderID}
	}
	ctx.seq++

	if final {
		delete(r.active, sessionID)
	} else {
		r.active[sessionID] = ctx
	}
	return ctx.seq, closeFrame
}

// WatchPhases subscribes the relay to all room traffic so a committed
// phase change or pause closes the session's open audio context. The
// close marker reaches clients right behind the event that deposed the
// speaker. Returns the subscription id.
func (r *Relay) WatchPhases() string {
	return r.bus.SubscribeAll(func(e event.Event) {
		switch p := e.Payload.(type) {
		case *protocol.PhaseChange:
			r.CloseContext(e.Room)
		case *protocol.DebateState:
			if p.Session != nil && p.Session.Timer.Paused {
				r.CloseContext(e.Room)
			}
		}
	})
}
