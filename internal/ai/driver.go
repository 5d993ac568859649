package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rostralabs/rostra/internal/debate"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/event"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/protocol"
	"github.com/rostralabs/rostra/internal/registry"
	"github.com/rostralabs/rostra/internal/relay"
	"github.com/rostralabs/rostra/internal/router"
)

// audioChunkBytes is the payload size of relayed synthesis chunks,
// comfortably under the relay frame bound.
const audioChunkBytes = 32 << 10

const defaultTurnTimeout = 60 * time.Second

// DriverConfig carries the driver's dependencies. Synthesizer and
// TurnTimeout are optional.
type DriverConfig struct {
	Router      *router.Router
	Registry    *registry.Registry
	Bus         *event.Bus
	Generator   Generator
	Synthesizer Synthesizer
	Logger      *logging.Logger

	// TurnTimeout bounds one generate-synthesize-submit cycle.
	TurnTimeout time.Duration
}

// Driver takes the floor for AI participants. It watches the event
// stream; when a committed transition (or a room assembling around a
// fresh session) seats an AI speaker, it generates the speech off the
// session loop and submits it through the router like any other
// client, then streams the synthesized audio and yields the floor.
type Driver struct {
	router  *router.Router
	reg     *registry.Registry
	bus     *event.Bus
	gen     Generator
	synth   Synthesizer
	log     *logging.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	subID   string
	clients map[string]*aiClient // session/participant -> headless client
	taken   map[string]bool      // session/phase -> turn already claimed
}

// aiClient is one AI participant's connection into a room. Turns on
// the same client are serialized by its mutex.
type aiClient struct {
	mu   sync.Mutex
	c    *router.Client
	conn *headlessConn
}

// NewDriver builds the driver. Call Watch to arm it.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Router == nil {
		return nil, errors.New("ai: router is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("ai: registry is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("ai: bus is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("ai: generator is required")
	}
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = Canned{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		router:  cfg.Router,
		reg:     cfg.Registry,
		bus:     cfg.Bus,
		gen:     cfg.Generator,
		synth:   cfg.Synthesizer,
		log:     cfg.Logger.WithComponent("ai.driver"),
		timeout: cfg.TurnTimeout,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*aiClient),
		taken:   make(map[string]bool),
	}, nil
}

// Watch subscribes the driver to the event stream. Safe to call once;
// later calls are no-ops.
func (d *Driver) Watch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subID != "" {
		return
	}
	d.subID = d.bus.SubscribeAll(func(e event.Event) {
		if e.Frame != nil {
			return
		}
		switch p := e.Payload.(type) {
		case *protocol.PhaseChange:
			if p.Phase.IsTerminal() {
				d.dropRoom(e.Room)
				return
			}
			if p.Speaker != "" {
				d.maybeTakeTurn(e.Room)
			}
		case *protocol.DebateState:
			// Covers resumes, where the floor returns without a
			// transition.
			if p.Session != nil && !p.Session.Timer.Paused {
				d.maybeTakeTurn(e.Room)
			}
		case *protocol.ParticipantJoined, *protocol.ObserverCount:
			// A room assembling around a fresh session never saw a
			// phase-change broadcast for its opening floor.
			d.maybeTakeTurn(e.Room)
		}
	})
}

// Close stops watching and waits for in-flight turns to finish.
func (d *Driver) Close() {
	d.mu.Lock()
	if d.subID != "" {
		d.bus.Unsubscribe(d.subID)
		d.subID = ""
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// maybeTakeTurn claims the current floor if it belongs to an AI
// participant. It runs on the bus dispatch goroutine, so it only does
// an atomic snapshot read and map bookkeeping before handing off.
func (d *Driver) maybeTakeTurn(room string) {
	s, err := d.reg.Snapshot(d.ctx, room)
	if err != nil {
		return
	}
	if !s.Phase.IsSpeaking() || s.Timer.Paused || s.CurrentSpeakerID == "" {
		return
	}
	p, ok := s.Participant(s.CurrentSpeakerID)
	if !ok || !p.IsAI {
		return
	}

	key := room + "/" + string(s.Phase)
	d.mu.Lock()
	if d.taken[key] {
		d.mu.Unlock()
		return
	}
	d.taken[key] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.takeTurn(room, s, p)
	}()
}

func (d *Driver) takeTurn(room string, s *debate.Session, p debate.Participant) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	ac := d.clientFor(room, p.ID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.c.Joined() {
		d.router.Route(ctx, ac.c, &protocol.JoinDebate{DebateID: room, UserID: p.ID})
		if ee := ac.conn.takeErr(); ee != nil {
			d.log.Warn("join failed", "session", room, "participant", p.ID, "code", string(ee.Code))
			return
		}
	}

	text, err := d.gen.Generate(ctx, Request{
		Topic:      s.Topic,
		Phase:      s.Phase,
		Speaker:    p,
		Transcript: s.Transcript,
		MaxLength:  s.Format.MaxSpeechLength,
	})
	if err != nil {
		d.log.Warn("generation failed", "session", room, "participant", p.ID, "error", err.Error())
		return
	}

	// The submission races the phase clock; a stale turn dies in the
	// session loop and the rejection lands on the headless conn.
	d.router.Route(ctx, ac.c, &protocol.SubmitSpeech{Text: text, SpeakerID: p.ID})
	if ee := ac.conn.takeErr(); ee != nil {
		d.log.Debug("turn lapsed before submission", "session", room, "participant", p.ID, "code", string(ee.Code))
		return
	}
	d.log.Info("turn taken", "session", room, "participant", p.ID, "phase", string(s.Phase), "chars", len(text))

	d.streamAudio(ctx, ac, p, text)
	d.router.Route(ctx, ac.c, &protocol.EndTurn{})
}

func (d *Driver) streamAudio(ctx context.Context, ac *aiClient, p debate.Participant, text string) {
	voice, _ := p.AIConfig["voice"].(string)
	audio, err := d.synth.Synthesize(ctx, text, voice)
	if err != nil {
		d.log.Warn("synthesis failed", "participant", p.ID, "error", err.Error())
		return
	}
	if len(audio) == 0 {
		return
	}

	for off := 0; off < len(audio); off += audioChunkBytes {
		if ctx.Err() != nil {
			return
		}
		end := min(off+audioChunkBytes, len(audio))
		d.router.HandleAudio(ac.c, relay.EncodeChunk(end == len(audio), audio[off:end]))
	}
}

func (d *Driver) clientFor(room, participantID string) *aiClient {
	key := room + "/" + participantID
	d.mu.Lock()
	defer d.mu.Unlock()
	ac, ok := d.clients[key]
	if !ok {
		conn := &headlessConn{id: "ai:" + key, log: d.log}
		ac = &aiClient{c: router.NewClient(conn), conn: conn}
		d.clients[key] = ac
	}
	return ac
}

// dropRoom disconnects the room's AI clients after the session reaches
// a terminal phase.
func (d *Driver) dropRoom(room string) {
	prefix := room + "/"
	d.mu.Lock()
	var drop []*aiClient
	for key, ac := range d.clients {
		if strings.HasPrefix(key, prefix) {
			drop = append(drop, ac)
			delete(d.clients, key)
		}
	}
	for key := range d.taken {
		if strings.HasPrefix(key, prefix) {
			delete(d.taken, key)
		}
	}
	d.mu.Unlock()

	for _, ac := range drop {
		d.router.Disconnect(ac.c)
	}
}

// headlessConn satisfies router.Conn for in-process AI debaters. Room
// broadcasts are discarded; direct rejections are kept for the turn in
// flight to inspect.
type headlessConn struct {
	id  string
	log *logging.Logger

	mu      sync.Mutex
	lastErr *protocol.ErrorEvent
}

func (c *headlessConn) ID() string { return c.id }

func (c *headlessConn) Send(p protocol.ServerPayload) error {
	if ee, ok := p.(*protocol.ErrorEvent); ok {
		c.mu.Lock()
		c.lastErr = ee
		c.mu.Unlock()
	}
	return nil
}

func (c *headlessConn) SendBinary([]byte) error { return nil }

// takeErr returns and clears the most recent rejection.
func (c *headlessConn) takeErr() *protocol.ErrorEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	ee := c.lastErr
	c.lastErr = nil
	return ee
}
