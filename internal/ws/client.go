package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/workforge/relay/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 << 10
	sendBufferSize = 64
)

// client is one websocket connection. Reads happen on the connection's
// own goroutine (readPump), writes are serialized through the send
// channel onto a single writer goroutine (writePump).
type client struct {
	id      string
	sock    *websocket.Conn
	gateway *Gateway

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Set by the dispatch loop after a successful announce; only the
	// readPump goroutine touches these.
	userID   string
	userName string
}

func newClient(id string, sock *websocket.Conn, gw *Gateway) *client {
	return &client{
		id:      id,
		sock:    sock,
		gateway: gw,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// enqueue hands a pre-marshaled frame to the writer. Delivery is
// fire-and-forget: a slow consumer with a full buffer loses the frame
// instead of stalling the relay. The send channel is never closed, so
// enqueue can race close without panicking; frames for a closed client
// are simply dropped.
func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		metrics.WSMessagesDropped.Inc()
	}
}

// close signals shutdown to both pumps. Idempotent.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads frames until the connection drops, dispatching each
// into the relay. It runs on the caller's goroutine.
func (c *client) readPump() {
	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.gateway.log.Warn().Err(err).Str("connection_id", c.id).Msg("websocket read error")
			}
			return
		}
		// A refused connection stops dispatching even if more frames
		// arrive before the writer tears the socket down.
		select {
		case <-c.done:
			return
		default:
		}
		c.gateway.dispatch(c, data)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.sock.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			// Flush frames already queued, so a refusal reason still
			// reaches the client before the close frame.
			for {
				select {
				case data := <-c.send:
					_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
