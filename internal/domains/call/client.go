package call

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes used on the client channel.
const (
	ClosePolicyViolation = 1008 // missing or duplicate session id
	CloseNormal          = 1000
)

// ClientChannel is the duplex channel to the human client's device.
type ClientChannel interface {
	Send(msg any) error
	ReadMessage() (messageType int, data []byte, err error)
	CloseWithCode(code int, reason string) error
}

// wsClientChannel backs ClientChannel with a gorilla websocket. Gorilla
// connections do not allow concurrent writes, so every write goes
// through a single mutex.
type wsClientChannel struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewClientChannel(conn *websocket.Conn) ClientChannel {
	return &wsClientChannel{conn: conn}
}

func (c *wsClientChannel) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsClientChannel) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *wsClientChannel) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return c.conn.Close()
}
