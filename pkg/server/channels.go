package server

import (
	"context"
	"errors"
	"sync"

	"nhooyr.io/websocket"
)

var errChannelClosed = errors.New("channel closed")

// sseChannel queues outbound payloads for the SSE writer goroutine. Send
// blocks while the queue is full so a slow client applies backpressure to the
// dispatcher instead of losing responses.
type sseChannel struct {
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSSEChannel() *sseChannel {
	return &sseChannel{
		out:  make(chan []byte, 32),
		done: make(chan struct{}),
	}
}

func (c *sseChannel) Send(ctx context.Context, payload []byte) error {
	select {
	case c.out <- payload:
		return nil
	case <-c.done:
		return errChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *sseChannel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// wsChannel delivers payloads directly onto a WebSocket connection.
type wsChannel struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Send(ctx context.Context, payload []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}
