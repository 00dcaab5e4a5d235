package control

import (
	"context"
	"errors"
	"sync"
)

// fakeConn is an in-memory Conn used by tests in place of a real socket.
type fakeConn struct {
	mu       sync.Mutex
	inbox    chan []byte
	closed   chan struct{}
	closeErr error
	writes   [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) push(data []byte) {
	c.inbox <- data
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbox:
		if !ok {
			return 0, nil, errors.New("fake conn inbox closed")
		}
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("fake conn closed")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) lastWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return nil
	}
	return c.writes[len(c.writes)-1]
}

func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return c.closeErr
}

// fakeDialer fails the first failCount dials, then returns conn every time
// after, so tests can exercise the reconnect-with-backoff path.
type fakeDialer struct {
	mu        sync.Mutex
	failCount int
	attempts  int
	conn      Conn
	dialErr   error
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts <= d.failCount {
		return nil, errors.New("dial failed")
	}
	return d.conn, nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}
