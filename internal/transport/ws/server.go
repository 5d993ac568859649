// Package ws is the realtime transport: one websocket per peer, text
// frames carrying protocol envelopes and binary frames carrying audio
// chunks. Each accepted socket gets a read loop on the handler
// goroutine and a dedicated writer, with the router doing all the
// thinking in between.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rostralabs/rostra/internal/config"
	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/metrics"
	"github.com/rostralabs/rostra/internal/protocol"
	"github.com/rostralabs/rostra/internal/relay"
	"github.com/rostralabs/rostra/internal/router"
)

// readLimitHeadroom sits on top of the relay's frame bound so a frame
// modestly over the limit still reaches the relay's CHUNK_TOO_LARGE
// verdict instead of killing the socket outright.
const readLimitHeadroom = 256 << 10

// Config carries the websocket server's dependencies.
type Config struct {
	Router *router.Router
	Logger *logging.Logger
	Server config.ServerConfig

	// MaxFrameBytes mirrors the relay's audio frame bound. Zero uses
	// the relay default.
	MaxFrameBytes int
}

// Server upgrades HTTP requests and shuttles frames between peers and
// the router.
type Server struct {
	router   *router.Router
	log      *logging.Logger
	origins  []glob.Glob
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongTimeout  time.Duration
	readLimit    int64

	mu    sync.Mutex
	conns map[string]*Conn
}

// New creates the websocket server. Origin patterns are compiled up
// front so a bad pattern fails at startup, not per request.
func New(cfg Config) (*Server, error) {
	if cfg.Router == nil {
		return nil, errors.New("ws: router is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	maxFrame := cfg.MaxFrameBytes
	if maxFrame <= 0 {
		maxFrame = relay.DefaultMaxFrameBytes
	}
	pingInterval := cfg.Server.PingInterval()
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := cfg.Server.PongTimeout()
	if pongTimeout <= pingInterval {
		pongTimeout = pingInterval * 2
	}

	s := &Server{
		router:       cfg.Router,
		log:          cfg.Logger.WithComponent("ws"),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		readLimit:    int64(maxFrame) + readLimitHeadroom,
		conns:        make(map[string]*Conn),
	}
	for _, pattern := range cfg.Server.AllowedOrigins {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("ws: invalid origin pattern %q: %w", pattern, err)
		}
		s.origins = append(s.origins, g)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// checkOrigin admits non-browser clients (no Origin header), same-host
// browsers, and any origin matching a configured glob pattern.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, g := range s.origins {
		if g.Match(origin) {
			return true
		}
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return false
}

// ServeHTTP upgrades the request and runs the connection until the
// peer goes away. The read loop stays on this goroutine, which is also
// the only goroutine touching the client's session binding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade rejected", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	conn := newConn("ws-"+uuid.NewString(), wsc, s.log)
	client := router.NewClient(conn)

	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()
	metrics.WSConnections.Inc()
	s.log.Info("peer connected", "conn", conn.id, "remote", r.RemoteAddr)

	go conn.writePump(s.pingInterval)
	s.readPump(r, conn, client)

	s.router.Disconnect(client)
	conn.close()
	s.mu.Lock()
	delete(s.conns, conn.id)
	s.mu.Unlock()
	metrics.WSConnections.Dec()
	s.log.Info("peer disconnected", "conn", conn.id)
}

func (s *Server) readPump(r *http.Request, conn *Conn, client *router.Client) {
	conn.ws.SetReadLimit(s.readLimit)
	conn.ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		kind, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read ended", "conn", conn.id, "error", err.Error())
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(s.pongTimeout))

		switch kind {
		case websocket.BinaryMessage:
			s.router.HandleAudio(client, data)
		case websocket.TextMessage:
			payload, err := protocol.DecodeClient(data)
			if err != nil {
				// A malformed envelope answers the sender and leaves
				// the connection up.
				conn.Send(protocol.NewErrorEvent(err))
				continue
			}
			s.router.Route(r.Context(), client, payload)
		}
	}
}

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown tells every peer we are going away and waits for their
// handlers to unwind, or for the context to give up.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	open := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()

	for _, c := range open {
		c.close()
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.ConnCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
