package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/metrics"
	"github.com/rostralabs/rostra/internal/protocol"
)

const (
	// sendQueueSize bounds the per-connection outbound queue. A peer
	// further behind than this is cut rather than allowed to stall the
	// room's fan-out.
	sendQueueSize = 64

	// writeWait bounds a single frame write to the peer.
	writeWait = 10 * time.Second
)

// ErrSlowConsumer reports a peer whose outbound queue overflowed.
var ErrSlowConsumer = errors.New("ws: send queue full")

// errConnClosed reports a send attempted after the connection ended.
var errConnClosed = errors.New("ws: connection closed")

// outbound is one queued frame.
type outbound struct {
	binary bool
	data   []byte
}

// Conn adapts one websocket peer to the router. All writes flow
// through a bounded queue serviced by a single writer goroutine, so
// bus handlers and the read loop can both send without coordinating.
type Conn struct {
	id  string
	ws  *websocket.Conn
	log *logging.Logger

	send chan outbound
	done chan struct{}
	once sync.Once
}

func newConn(id string, wsc *websocket.Conn, log *logging.Logger) *Conn {
	return &Conn{
		id:   id,
		ws:   wsc,
		log:  log,
		send: make(chan outbound, sendQueueSize),
		done: make(chan struct{}),
	}
}

// ID implements router.Conn.
func (c *Conn) ID() string { return c.id }

// Send encodes a protocol event and queues it as a text frame.
func (c *Conn) Send(p protocol.ServerPayload) error {
	data, err := protocol.EncodeServer(p)
	if err != nil {
		return err
	}
	return c.enqueue(outbound{data: data})
}

// SendBinary queues a relayed audio frame.
func (c *Conn) SendBinary(frame []byte) error {
	return c.enqueue(outbound{binary: true, data: frame})
}

func (c *Conn) enqueue(o outbound) error {
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- o:
		return nil
	default:
		metrics.WSSlowConsumers.Inc()
		c.log.Warn("dropping slow consumer", "conn", c.id)
		c.close()
		return ErrSlowConsumer
	}
}

// close signals the writer to say goodbye and tear the socket down.
// Safe to call from any goroutine, any number of times.
func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump owns every write to the peer, including pings. It closes
// the underlying socket on exit, which also unblocks the read loop.
func (c *Conn) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case o := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if o.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.ws.WriteMessage(kind, o.data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
