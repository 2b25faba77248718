package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrClosed = errors.New("connection closed")

// Conn is the transport behind a Client; *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is one live push connection. Writes are serialized because the
// underlying websocket allows a single concurrent writer.
type Client struct {
	ID     string
	UserID uint

	conn         Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex

	state    atomic.Int32
	lastSeen atomic.Int64
}

func NewClient(id string, userID uint, conn Conn, now time.Time) *Client {
	c := &Client{
		ID:           id,
		UserID:       userID,
		conn:         conn,
		writeTimeout: 10 * time.Second,
	}
	c.state.Store(int32(StateEstablished))
	c.lastSeen.Store(now.UnixNano())
	return c
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) Established() bool { return c.State() == StateEstablished }

func (c *Client) LastSeen() time.Time { return time.Unix(0, c.lastSeen.Load()) }

func (c *Client) touch(at time.Time) { c.lastSeen.Store(at.UnixNano()) }

func (c *Client) Send(v interface{}) error {
	return c.SendWithin(v, c.writeTimeout)
}

// SendWithin writes v with its own write deadline. A timeout of zero leaves
// the transport without one.
func (c *Client) SendWithin(v interface{}, timeout time.Duration) error {
	if !c.Established() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteJSON(v)
}

// Close terminates the transport once; later calls are no-ops.
func (c *Client) Close() error {
	if !c.state.CompareAndSwap(int32(StateEstablished), int32(StateClosed)) {
		return nil
	}
	return c.conn.Close()
}
