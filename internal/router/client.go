package router

import (
	"github.com/rostralabs/rostra/internal/protocol"
)

// Conn is the transport-side handle the router answers through. Send
// carries protocol events; SendBinary carries relayed audio frames.
// Implementations must tolerate sends after the peer is gone.
type Conn interface {
	ID() string
	Send(p protocol.ServerPayload) error
	SendBinary(frame []byte) error
}

// Client is one connected peer and its session binding. All fields are
// owned by the connection's read loop: Route, HandleAudio, and
// Disconnect must be called from that single goroutine.
type Client struct {
	conn Conn

	sessionID string
	userID    string
	observer  bool
	subID     string
}

// NewClient wraps a transport connection for routing. The client starts
// unbound; a join-debate event binds it to a room.
func NewClient(conn Conn) *Client {
	return &Client{conn: conn}
}

// Joined reports whether the client is bound to a session.
func (c *Client) Joined() bool {
	return c.sessionID != ""
}

// SessionID returns the bound session id, or empty.
func (c *Client) SessionID() string {
	return c.sessionID
}

// UserID returns the identity the client joined as, or empty.
func (c *Client) UserID() string {
	return c.userID
}

// Observer reports whether the joined identity is outside the roster.
func (c *Client) Observer() bool {
	return c.observer
}

// send delivers a payload to this client, dropping it if the transport
// has already failed. Dead connections are the transport's problem.
func (c *Client) send(p protocol.ServerPayload) {
	_ = c.conn.Send(p)
}
