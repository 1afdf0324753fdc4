package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single outbound delivery may block before
// the connection is treated as dead.
const writeWait = 5 * time.Second

// Sender is a live connection handle as the presence registry sees it.
type Sender interface {
	ID() string
	Send(v any) error
	Close() error
}

// Conn wraps a websocket connection with an identity and a write mutex;
// gorilla/websocket allows only one concurrent writer.
type Conn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(wsConn *websocket.Conn) *Conn {
	return &Conn{
		id: uuid.NewString(),
		ws: wsConn,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
