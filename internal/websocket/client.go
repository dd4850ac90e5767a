package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// MessageHandler receives every text frame a client sends.
type MessageHandler func(c *Client, data []byte)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Thread this socket watches.
	ThreadID string

	// Buffered channel of outbound messages.
	Send chan []byte

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, threadID string) *Client {
	return &Client{Hub: hub, Conn: conn, ThreadID: threadID, Send: make(chan []byte, 256)}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// Serve registers the client and pumps until the peer goes away. It blocks
// the caller, which must be the fiber websocket handler.
func (c *Client) Serve(onMessage MessageHandler) {
	if !c.Hub.join(c) {
		c.Conn.Close()
		return
	}
	go c.writePump()
	c.readPump(onMessage)
}

// readPump pumps messages from the websocket connection to onMessage.
func (c *Client) readPump(onMessage MessageHandler) {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected close", map[string]interface{}{"thread_id": c.ThreadID, "error": err.Error()})
			}
			return
		}
		if onMessage != nil {
			onMessage(c, data)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
