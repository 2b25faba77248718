package realtime

import (
	"sync"
	"time"
)

// Registry is the directory of live push connections. Implementations must be
// safe for concurrent use: connection callbacks, the liveness monitor and
// notification dispatch all reach it from different goroutines.
type Registry interface {
	Register(c *Client)
	// Unregister is idempotent; ok is false when the id was not present.
	Unregister(id string) (c *Client, ok bool)
	Touch(id string, at time.Time) bool
	ForUser(userID uint) []*Client
	Snapshot() []*Client
	Len() int
}

type MemoryRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[uint]map[string]*Client
}

var _ Registry = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		clients: make(map[string]*Client),
		byUser:  make(map[uint]map[string]*Client),
	}
}

func (r *MemoryRegistry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ID] = c
	set, ok := r.byUser[c.UserID]
	if !ok {
		set = make(map[string]*Client)
		r.byUser[c.UserID] = set
	}
	set[c.ID] = c
}

func (r *MemoryRegistry) Unregister(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.clients, id)
	if set := r.byUser[c.UserID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	return c, true
}

func (r *MemoryRegistry) Touch(id string, at time.Time) bool {
	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if ok {
		c.touch(at)
	}
	return ok
}

func (r *MemoryRegistry) ForUser(userID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (r *MemoryRegistry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
