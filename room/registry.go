package room

import (
	"log/slog"
	"sync"

	"github.com/kushgarg132/Chess/domain"
)

// Registry is the process-wide map from room identifier to Room. Rooms
// are created on first join and removed once their session set empties.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate resolves id to its room, creating it on first use.
// Concurrent first-joins observe the same instance.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	if !ok {
		r = newRoom(id, func() { reg.ReleaseIfEmpty(id) })
		reg.rooms[id] = r
		slog.Info("room created", "room", id)
	}
	return r
}

// Lookup returns the live room for id, or nil. Unknown ids are not an
// error; they simply have no room yet.
func (reg *Registry) Lookup(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[id]
}

// Join attaches conn to the room named id, creating the room if needed.
// It retries when it loses the race against a concurrent removal of a
// just-emptied room, so the returned room is always the one conn joined.
func (reg *Registry) Join(id string, conn domain.Connection, name string) (*Room, domain.Role) {
	for {
		r := reg.GetOrCreate(id)
		if role, ok := r.join(conn, name); ok {
			return r, role
		}
	}
}

// ReleaseIfEmpty removes the room if its session set is empty. Safe to
// race with GetOrCreate for the same id: the emptiness check happens
// under both locks, and a removed room refuses further joins.
func (reg *Registry) ReleaseIfEmpty(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	if !ok {
		return
	}
	if r.closeIfEmpty() {
		delete(reg.rooms, id)
		slog.Info("room removed", "room", id)
	}
}

// Stats counts live rooms and attached clients.
func (reg *Registry) Stats() (rooms, clients int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rooms = len(reg.rooms)
	for _, r := range reg.rooms {
		clients += r.size()
	}
	return rooms, clients
}
