package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
)

// client is a single connected socket. Outbound frames go through the send
// channel and are written by one goroutine, so concurrent notifier calls
// never touch the connection directly.
type client struct {
	connID string
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(connID string, conn *websocket.Conn) *client {
	return &client{
		connID: connID,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// enqueue queues a frame for delivery. Frames for a closed or saturated
// client are dropped; the reconnect flow re-sends the full game state.
func (that *client) enqueue(frame []byte) bool {
	select {
	case <-that.done:
		return false
	default:
	}

	select {
	case that.send <- frame:
		return true
	default:
		return false
	}
}

func (that *client) writePump() {
	defer that.conn.Close()

	for {
		select {
		case frame, ok := <-that.send:
			if !ok {
				return
			}

			_ = that.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := that.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-that.done:
			return
		}
	}
}

func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.conn.Close()
	})
}
