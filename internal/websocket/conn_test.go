package websocket

import (
	"errors"
	"sync"
	"time"
)

type frame struct {
	Type int
	Data []byte
}

// fakeConn feeds ReadMessage from a channel and records writes.
type fakeConn struct {
	mu       sync.Mutex
	reads    chan frame
	written  []frame
	closed   bool
	closedCh chan struct{}
	limit    int64
	pong     func(string) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:    make(chan frame, 8),
		closedCh: make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.written = append(c.written, frame{Type: messageType, Data: data})
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.reads:
		return f.Type, f.Data, nil
	case <-c.closedCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetReadLimit(limit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = limit
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = h
}

func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:50000" }

func (c *fakeConn) frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frame, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
