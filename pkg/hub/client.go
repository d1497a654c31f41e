package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection timing. Pings go out before the peer's read deadline lapses.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// Viewers only send control frames.
	readLimit = 4 * 1024

	sendBuffer = 64
)

// Client is one websocket viewer attached to a hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient attaches conn to hub. It returns nil if the hub has stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case hub.register <- c:
		return c
	case <-hub.done:
		return nil
	}
}

// Run serves the connection and returns when it closes. Call it from the
// websocket handler, which must not return before the connection is done.
func (c *Client) Run() {
	go c.write()
	c.read()
}

// read consumes inbound frames so pongs and disconnects are noticed.
func (c *Client) read() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.extend()
	c.conn.SetPongHandler(func(string) error {
		c.extend()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) extend() {
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
}

// write is the only goroutine writing to the connection.
func (c *Client) write() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case m, ok := <-c.send:
			if !ok {
				// Queue closed by the hub.
				c.frame(websocket.CloseMessage, nil)
				return
			}
			err = c.frame(frameType(m), m.Data)
		case <-ping.C:
			err = c.frame(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) frame(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}

func frameType(m Message) int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
