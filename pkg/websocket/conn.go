package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a WebSocket connection with deadline handling.
type Conn struct {
	ws            *websocket.Conn
	mu            sync.Mutex
	closed        bool
	readDeadline  time.Duration
	writeDeadline time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin enforcement happens at the gateway in front of this service
		return true
	},
}

// UpgradeHTTP upgrades an HTTP request to a WebSocket connection.
func UpgradeHTTP(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Conn{
		ws:            ws,
		readDeadline:  60 * time.Second,
		writeDeadline: 10 * time.Second,
	}
	ws.SetReadDeadline(time.Now().Add(c.readDeadline))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.readDeadline))
		return nil
	})
	return c, nil
}

// WriteJSON writes v as a single JSON frame.
func (c *Conn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	return c.ws.WriteJSON(v)
}

// ReadDiscard reads and drops the next inbound frame. The feed stream is
// one-way; reading only serves close and pong detection.
func (c *Conn) ReadDiscard() error {
	_, _, err := c.ws.ReadMessage()
	return err
}

// Ping sends a ping control message to keep the connection alive.
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	return c.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(10*time.Second))
	return c.ws.Close()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the remote address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
