package realtime

import (
	"io"
	"sync"
	"time"
)

type fakeConn struct {
	mu        sync.Mutex
	sent      []Event
	closed    bool
	writeErr  error
	deadlines []time.Time

	// stall, when set, blocks every write until it is closed.
	stall chan struct{}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.stall != nil {
		<-f.stall
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if ev, ok := v.(Event); ok {
		f.sent = append(f.sent, ev)
	}
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines = append(f.deadlines, t)
	return nil
}

func (f *fakeConn) lastDeadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.deadlines) == 0 {
		return time.Time{}
	}
	return f.deadlines[len(f.deadlines)-1]
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.sent...)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
