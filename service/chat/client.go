package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CounselPortal/logger"
)

// Client is one live websocket connection to the gateway. A user may open
// several tabs; each is its own Client with its own outbound queue drained
// by a single writer goroutine.
type Client struct {
	ConnID     string // session identifier, unique within this gateway
	UserID     string // bound after the auth frame; empty until then
	Authorized bool

	WS   *websocket.Conn
	Send chan []byte // outbound frames; closed exactly once via closeSend

	// guards closed against enqueue; close never races a pending send
	sendMu sync.Mutex
	closed bool

	CreatedAt time.Time
	UpdatedAt time.Time
	Heartbeat time.Time
	TTL       time.Duration // switches from unauth to auth TTL on bind
	ExpireAt  time.Time     // sweeper reaps past this point
}

func newClient(connID string, ws *websocket.Conn, queueSize int, ttl time.Duration, now time.Time) *Client {
	return &Client{
		ConnID:    connID,
		WS:        ws,
		Send:      make(chan []byte, queueSize),
		CreatedAt: now,
		UpdatedAt: now,
		Heartbeat: now,
		TTL:       ttl,
		ExpireAt:  now.Add(ttl),
	}
}

const writeDeadline = 5 * time.Second

// writePump drains the outbound queue onto the socket. It owns all writes
// to the connection; when Send is closed it emits a close frame and shuts
// the socket down.
func (c *Client) writePump() {
	defer func() {
		_ = c.WS.Close()
	}()
	for data := range c.Send {
		_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.WS.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debugf("[client] write failed conn=%s, draining", c.ConnID)
			// keep draining so the producer side never blocks
			for range c.Send {
			}
			return
		}
	}
	_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = c.WS.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// enqueue offers a frame to the client without blocking; slow clients
// simply miss frames, and a closed queue rejects the frame instead of
// panicking under a concurrent drop.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once. Taking sendMu first
// means no enqueue can be sitting in its select when the channel closes.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
