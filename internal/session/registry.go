// registry.go — Bounded, LRU-evicted registry of connected clients.
// Tracks the live client_endpoints entries the Record (record.go)
// persists, keyed by a generated client id rather than by filesystem
// path, since a bridge client is identified by its TCP connection, not a
// working directory.
package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxClients bounds memory use: set-client-name registers a new entry on
// every call, and entries are not removed when a connection closes.
const maxClients = 256

// ClientState is one connected client's identity.
type ClientState struct {
	ID           string
	Name         string
	Endpoint     string
	PushEndpoint string
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

// Touch updates LastSeenAt to now.
func (c *ClientState) Touch() { c.LastSeenAt = time.Now() }

// ClientRegistry is a mutex-guarded, LRU-bounded map of connected clients.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*ClientState
	lru     *list.List
	elems   map[string]*list.Element
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*ClientState),
		lru:     list.New(),
		elems:   make(map[string]*list.Element),
	}
}

// Register creates and stores a new client, evicting the least recently
// used entry if the registry is at capacity.
func (r *ClientRegistry) Register(name, endpoint string) *ClientState {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cs := &ClientState{
		ID:         uuid.NewString(),
		Name:       name,
		Endpoint:   endpoint,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	r.clients[cs.ID] = cs
	r.elems[cs.ID] = r.lru.PushFront(cs.ID)

	if len(r.clients) > maxClients {
		r.evictOldestLocked()
	}
	return cs
}

// Get returns the client by id, touching its LRU position, or nil if absent.
func (r *ClientRegistry) Get(id string) *ClientState {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.clients[id]
	if !ok {
		return nil
	}
	if elem, ok := r.elems[id]; ok {
		r.lru.MoveToFront(elem)
	}
	return cs
}

// Unregister removes a client. Unregistering an unknown id is a no-op.
func (r *ClientRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// List returns every registered client.
func (r *ClientRegistry) List() []ClientState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClientState, 0, len(r.clients))
	for _, cs := range r.clients {
		out = append(out, *cs)
	}
	return out
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *ClientRegistry) evictOldestLocked() {
	oldest := r.lru.Back()
	if oldest == nil {
		return
	}
	id := oldest.Value.(string)
	r.removeLocked(id)
}

// removeLocked must be called with r.mu held.
func (r *ClientRegistry) removeLocked(id string) {
	if elem, ok := r.elems[id]; ok {
		r.lru.Remove(elem)
		delete(r.elems, id)
	}
	delete(r.clients, id)
}
