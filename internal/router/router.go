package router

import (
	"context"
	"fmt"
	"time"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/metrics"
	"github.com/rostralabs/rostra/internal/presence"
	"github.com/rostralabs/rostra/internal/protocol"
	"github.com/rostralabs/rostra/internal/registry"
	"github.com/rostralabs/rostra/internal/relay"
)

// Config carries the router's dependencies. All except Clock are
// required.
type Config struct {
	Registry *registry.Registry
	Presence *presence.Tracker
	Relay    *relay.Relay
	Bus      *event.Bus
	Logger   *logging.Logger

	// Clock overrides the time source used for remaining-time stamps.
	Clock func() time.Time
}

// Router dispatches decoded client events and binary audio frames.
type Router struct {
	registry *registry.Registry
	presence *presence.Tracker
	relay    *relay.Relay
	bus      *event.Bus
	log      *logging.Logger
	clock    func() time.Time
}

// New creates a Router.
func New(cfg Config) (*Router, error) {
	if cfg.Registry == nil {
		return nil, errors.New("router: registry is required")
	}
	if cfg.Presence == nil {
		return nil, errors.New("router: presence tracker is required")
	}
	if cfg.Relay == nil {
		return nil, errors.New("router: relay is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("router: bus is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("router: logger is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Router{
		registry: cfg.Registry,
		presence: cfg.Presence,
		relay:    cfg.Relay,
		bus:      cfg.Bus,
		log:      cfg.Logger.WithComponent("router"),
		clock:    clock,
	}, nil
}

// Route dispatches one client event. Rejections go back to the
// originator alone; a phase conflict additionally carries the
// authoritative snapshot so a stale client can fall back in line.
func (r *Router) Route(ctx context.Context, c *Client, p protocol.ClientPayload) {
	snap, err := r.dispatch(ctx, c, p)
	if err == nil {
		return
	}

	r.log.Debug("event rejected",
		"type", protocol.TypeOf(p),
		"conn", c.conn.ID(),
		"session", c.sessionID,
		"error", err.Error())
	metrics.RejectionsSent.WithLabelValues(string(errors.CodeOf(err))).Inc()
	c.send(protocol.NewErrorEvent(err))
	if snap != nil && errors.HasCode(err, errors.CodePhaseConflict) {
		c.send(protocol.NewDebateState(snap, r.clock()))
	}
}

// HandleAudio relays one binary frame from the client. Verdicts are
// answered to the sender only; accepted frames fan out through the bus
// to every other room member.
func (r *Router) HandleAudio(c *Client, frame []byte) {
	if err := r.requireJoined(c); err != nil {
		c.send(protocol.NewErrorEvent(err))
		return
	}
	if err := r.relay.Forward(c.sessionID, c.conn.ID(), c.userID, frame); err != nil {
		c.send(protocol.NewErrorEvent(err))
	}
}

// Disconnect releases a client's presence when its transport drops. The
// session itself is untouched: a disconnect is a presence event, never
// a forfeit, and the roster keeps the participant's seat for their
// return.
func (r *Router) Disconnect(c *Client) {
	if !c.Joined() {
		return
	}
	r.log.Info("client disconnected",
		"session", c.sessionID, "user", c.userID, "conn", c.conn.ID())
	r.detach(c)
}

func (r *Router) dispatch(ctx context.Context, c *Client, p protocol.ClientPayload) (*debate.Session, error) {
	switch pld := p.(type) {
	case *protocol.JoinDebate:
		return r.handleJoin(ctx, c, pld)
	case *protocol.LeaveDebate:
		return r.handleLeave(c, pld)
	case *protocol.StartDebate:
		return r.handleStart(ctx, c, pld)
	case *protocol.RequestTurn:
		if err := r.requireJoined(c); err != nil {
			return nil, err
		}
		return r.registry.RequestTurn(ctx, c.sessionID, c.userID, pld.Phase)
	case *protocol.EndTurn:
		if err := r.requireJoined(c); err != nil {
			return nil, err
		}
		return r.registry.EndTurn(ctx, c.sessionID, c.userID)
	case *protocol.SubmitSpeech:
		if err := r.requireJoined(c); err != nil {
			return nil, err
		}
		if err := r.matchIdentity(c, pld.SpeakerID); err != nil {
			return nil, err
		}
		return r.registry.SubmitSpeech(ctx, c.sessionID, c.userID, pld.Text)
	case *protocol.CrossfireMessage:
		if err := r.requireJoined(c); err != nil {
			return nil, err
		}
		if err := r.matchIdentity(c, pld.SpeakerID); err != nil {
			return nil, err
		}
		return r.registry.SubmitCrossfire(ctx, c.sessionID, c.userID, pld.Text, pld.Priority)
	case *protocol.PauseDebate:
		if err := r.requireJoined(c); err != nil {
			return nil, err
		}
		return r.registry.Pause(ctx, c.sessionID)
	case *protocol.ResumeDebate:
		if err := r.requireJoined(c); err != nil {
			return nil, err
		}
		return r.registry.Resume(ctx, c.sessionID)
	default:
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload,
			fmt.Sprintf("unhandled event type %q", protocol.TypeOf(p)))
	}
}

// handleJoin binds the connection to a room and answers with the
// authoritative snapshot. Re-joining the bound session is the resync
// path: the snapshot is sent again and presence stays quiet. An
// identity outside the roster joins as an observer; nothing on the
// session document changes either way.
func (r *Router) handleJoin(ctx context.Context, c *Client, pld *protocol.JoinDebate) (*debate.Session, error) {
	if pld.DebateID == "" || pld.UserID == "" {
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload,
			"debateId and userId are required")
	}
	if c.Joined() && (c.sessionID != pld.DebateID || c.userID != pld.UserID) {
		r.detach(c)
	}

	snap, err := r.registry.Snapshot(ctx, pld.DebateID)
	if err != nil {
		return nil, err
	}
	_, member := snap.Participant(pld.UserID)

	if !c.Joined() {
		c.sessionID = pld.DebateID
		c.userID = pld.UserID
		c.observer = !member
		c.subID = r.subscribe(c)
	}
	change := r.presence.Join(c.sessionID, c.conn.ID(), c.userID, !member)

	c.send(protocol.NewDebateState(snap, r.clock()))
	r.announce(c.sessionID, change, snap)
	r.log.Info("client joined",
		"session", c.sessionID, "user", c.userID, "observer", !member, "conn", c.conn.ID())
	return nil, nil
}

func (r *Router) handleLeave(c *Client, pld *protocol.LeaveDebate) (*debate.Session, error) {
	if err := r.requireJoined(c); err != nil {
		return nil, err
	}
	if pld.DebateID != "" && pld.DebateID != c.sessionID {
		return nil, errors.NewProtocolError(errors.CodeInvalidPayload,
			fmt.Sprintf("joined to %q, not %q", c.sessionID, pld.DebateID)).
			WithSession(c.sessionID)
	}
	r.log.Info("client left",
		"session", c.sessionID, "user", c.userID, "conn", c.conn.ID())
	r.detach(c)
	return nil, nil
}

// handleStart creates a session and hands the snapshot straight back to
// the creator, who then joins it under whichever identity they hold.
func (r *Router) handleStart(ctx context.Context, c *Client, pld *protocol.StartDebate) (*debate.Session, error) {
	s, err := r.registry.Start(ctx, pld.Topic, pld.Participants, pld.Format)
	if err != nil {
		return nil, err
	}
	metrics.SessionsStarted.Inc()
	c.send(protocol.NewDebateState(s, r.clock()))
	r.log.Info("debate created", "session", s.ID, "topic", pld.Topic, "conn", c.conn.ID())
	return nil, nil
}

// subscribe forwards the room's event stream to the client. Audio
// frames skip their own origin so speakers never hear themselves.
func (r *Router) subscribe(c *Client) string {
	return r.bus.Subscribe(c.sessionID, func(e event.Event) {
		if e.Frame != nil {
			if e.From == c.conn.ID() {
				return
			}
			_ = c.conn.SendBinary(e.Frame)
			return
		}
		_ = c.conn.Send(e.Payload)
	})
}

// detach unbinds the client from its room, broadcasting whatever
// presence changed. If the departing user held the open audio context,
// it is closed so listeners are not left waiting on a stream that will
// never finish.
func (r *Router) detach(c *Client) {
	sid, uid := c.sessionID, c.userID
	change := r.presence.Leave(sid, c.conn.ID())
	r.bus.Unsubscribe(c.subID)
	c.sessionID, c.userID, c.observer, c.subID = "", "", false, ""

	if change.UserOffline != "" && r.relay.ActiveSpeaker(sid) == uid {
		r.relay.CloseContext(sid)
	}
	r.announce(sid, change, nil)
}

// announce broadcasts a presence change to the room. The zero Change
// publishes nothing, which is what keeps second tabs and resyncs quiet.
func (r *Router) announce(sid string, ch presence.Change, s *debate.Session) {
	if ch.UserOnline != "" {
		name := ""
		if s != nil {
			if p, ok := s.Participant(ch.UserOnline); ok {
				name = p.Name
			}
		}
		r.bus.Publish(event.Broadcast(sid, &protocol.ParticipantJoined{UserID: ch.UserOnline, Name: name}))
	}
	if ch.UserOffline != "" {
		r.bus.Publish(event.Broadcast(sid, &protocol.ParticipantLeft{UserID: ch.UserOffline}))
	}
	if ch.ObserversChanged {
		r.bus.Publish(event.Broadcast(sid, &protocol.ObserverCount{Count: ch.Observers}))
	}
}

func (r *Router) requireJoined(c *Client) error {
	if c.Joined() {
		return nil
	}
	return errors.NewProtocolError(errors.CodeUnknownSession, "no debate joined")
}

// matchIdentity rejects payloads that claim a speaker other than the
// joined identity. An empty speakerId defers to the binding.
func (r *Router) matchIdentity(c *Client, speakerID string) error {
	if speakerID == "" || speakerID == c.userID {
		return nil
	}
	return errors.NewProtocolError(errors.CodeInvalidPayload,
		fmt.Sprintf("speakerId %q does not match the joined identity %q", speakerID, c.userID)).
		WithSession(c.sessionID).WithParticipant(c.userID)
}
