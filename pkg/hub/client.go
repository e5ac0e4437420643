package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum inbound message size (microphone PCM)
	maxMessageSize = 512 * 1024
)

// Conn is the subset of a websocket connection the client uses. Both
// the Fiber websocket conn and gorilla's conn satisfy it.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler receives messages sent by the browser.
type Handler func(c *Client, msg Message)

// Client represents a single websocket connection
type Client struct {
	hub     *Hub
	conn    Conn
	send    chan Message
	session string
	onRecv  Handler
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSession tags the client so session-addressed messages reach it.
func WithSession(session string) ClientOption {
	return func(c *Client) { c.session = session }
}

// WithHandler installs a handler for inbound messages.
func WithHandler(h Handler) ClientOption {
	return func(c *Client) { c.onRecv = h }
}

// NewClient creates a new client and registers it with the hub
func NewClient(hub *Hub, conn Conn, opts ...ClientOption) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256), // Buffered channel for backpressure
	}
	for _, opt := range opts {
		opt(client)
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		close(client.send)
	}
	return client
}

// Session returns the client's session id.
func (c *Client) Session() string { return c.session }

// Run starts the client's read and write pumps
// This should be called in the websocket handler
func (c *Client) Run() {
	go c.writePump()
	c.readPump() // Blocks until connection closes
}

// readPump reads messages from the websocket connection
// It keeps the connection alive and detects disconnection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		wsType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if c.onRecv == nil {
			continue
		}
		msgType := JSONMessage
		if wsType == websocket.BinaryMessage {
			msgType = BinaryMessage
		}
		c.onRecv(c, Message{Type: msgType, Data: data, Session: c.session})
	}
}

// writePump writes messages to the websocket connection
// Only this goroutine writes to the connection - no race conditions!
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel - send close frame
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			wsType := websocket.TextMessage
			if message.Type == BinaryMessage {
				wsType = websocket.BinaryMessage
			}

			if err := c.conn.WriteMessage(wsType, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
