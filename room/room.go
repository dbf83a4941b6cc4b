// Package room holds the authoritative per-game state and the registry
// that keys rooms by caller-chosen identifiers. All mutation of a room
// goes through its mutex; legality is always checked against the current
// position, never a stale snapshot.
package room

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kushgarg132/Chess/broadcast"
	"github.com/kushgarg132/Chess/domain"
	"github.com/kushgarg132/Chess/engine"
)

var (
	ErrNotJoined        = errors.New("session has not joined the room")
	ErrSpectator        = errors.New("spectators cannot move")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAwaitingOpponent = errors.New("waiting for an opponent")
	ErrGameOver         = errors.New("game is over")
)

// State describes where a room is in its lifecycle.
type State string

const (
	StateEmpty            State = "empty"
	StateAwaitingOpponent State = "awaitingOpponent"
	StateActive           State = "active"
	StateTerminal         State = "terminal"
)

type member struct {
	role domain.Role
	name string
}

func (m *member) display() string {
	name := m.name
	if name == "" {
		name = "Player"
	}
	return fmt.Sprintf("%s (%s)", name, m.role)
}

type Room struct {
	id      string
	onEmpty func()

	mu        sync.Mutex
	game      *engine.Game
	members   map[domain.Connection]*member
	moveCount int
	closed    bool
}

func newRoom(id string, onEmpty func()) *Room {
	return &Room{
		id:      id,
		onEmpty: onEmpty,
		game:    engine.New(),
		members: make(map[domain.Connection]*member),
	}
}

func (r *Room) ID() string { return r.id }

// State derives the lifecycle state from the session set and the position.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() State {
	if len(r.members) == 0 {
		return StateEmpty
	}
	if r.game.Over() {
		return StateTerminal
	}
	if r.seatTakenLocked(domain.RoleWhite) && r.seatTakenLocked(domain.RoleBlack) {
		return StateActive
	}
	return StateAwaitingOpponent
}

func (r *Room) seatTakenLocked(role domain.Role) bool {
	for _, m := range r.members {
		if m.role == role {
			return true
		}
	}
	return false
}

// join attaches conn, assigning the first open seat (white, then black)
// and spectator once both seats are held. A repeat join never reassigns
// the role; it only updates the name and resends the snapshot. Returns
// false when the room has been removed from the registry, in which case
// the caller must resolve a fresh room.
func (r *Room) join(conn domain.Connection, name string) (domain.Role, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", false
	}

	if m, attached := r.members[conn]; attached {
		if name != "" && name != m.name {
			m.name = name
			r.broadcastInfoLocked(m.display() + " is here.")
		}
		r.sendStateLocked(conn, m)
		r.mu.Unlock()
		return m.role, true
	}

	m := &member{role: r.openSeatLocked(), name: name}
	r.members[conn] = m
	count := len(r.members)
	r.broadcastStateLocked()
	r.broadcastInfoLocked(m.display() + " joined.")
	r.mu.Unlock()

	slog.Info("client joined", "room", r.id, "clientId", conn.ID(), "role", m.role, "clients", count)
	return m.role, true
}

func (r *Room) openSeatLocked() domain.Role {
	if !r.seatTakenLocked(domain.RoleWhite) {
		return domain.RoleWhite
	}
	if !r.seatTakenLocked(domain.RoleBlack) {
		return domain.RoleBlack
	}
	return domain.RoleSpectator
}

// ApplyMove validates and applies one candidate move from conn. On
// rejection the position and move count are untouched and only the
// caller learns about it; on success the new position is broadcast to
// every attached session.
func (r *Room) ApplyMove(conn domain.Connection, from, to, promotion string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, attached := r.members[conn]
	if !attached {
		return ErrNotJoined
	}
	if !m.role.HasSeat() {
		return ErrSpectator
	}
	switch r.stateLocked() {
	case StateTerminal:
		return ErrGameOver
	case StateAwaitingOpponent:
		return ErrAwaitingOpponent
	}
	if r.game.Turn() != m.role {
		return ErrNotYourTurn
	}
	if err := r.game.Apply(from, to, promotion); err != nil {
		return err
	}

	r.moveCount++
	slog.Info("move applied", "room", r.id, "clientId", conn.ID(),
		"from", from, "to", to, "moveCount", r.moveCount)

	broadcast.Publish(r.connsLocked(), domain.MoveUpdate(r.game.FEN(), r.game.Turn()), r.Drop)
	if status := r.game.Status(); status != "" {
		r.broadcastInfoLocked("Game over: " + status + ".")
	}
	return nil
}

// Leave detaches conn. Vacated seats are not handed to spectators; the
// next fresh join takes the open seat. Reports whether the room is now
// empty so the caller can release it from the registry.
func (r *Room) Leave(conn domain.Connection) bool {
	r.mu.Lock()
	m, attached := r.members[conn]
	if !attached {
		empty := len(r.members) == 0
		r.mu.Unlock()
		return empty
	}
	delete(r.members, conn)
	empty := len(r.members) == 0
	if !empty {
		r.broadcastInfoLocked(m.display() + " left.")
	}
	r.mu.Unlock()

	slog.Info("client left", "room", r.id, "clientId", conn.ID(), "role", m.role)
	return empty
}

// Reset starts a new game from the initial position without touching
// seat assignments. Seat holders only.
func (r *Room) Reset(conn domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, attached := r.members[conn]
	if !attached {
		return ErrNotJoined
	}
	if !m.role.HasSeat() {
		return ErrSpectator
	}

	r.game.Reset()
	r.moveCount = 0
	slog.Info("room reset", "room", r.id, "clientId", conn.ID())

	r.broadcastInfoLocked(m.display() + " started a new game.")
	r.broadcastStateLocked()
	return nil
}

// Drop detaches a connection that can no longer accept messages. Closing
// the socket makes its read loop run the regular disconnect path too, but
// the room does not depend on that: when the drop empties it, the registry
// is asked to reclaim it directly.
func (r *Room) Drop(conn domain.Connection) {
	conn.Close()
	if r.Leave(conn) && r.onEmpty != nil {
		r.onEmpty()
	}
}

// MoveCount returns the number of accepted moves since the last reset.
func (r *Room) MoveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moveCount
}

// FEN returns the authoritative board encoding.
func (r *Room) FEN() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.FEN()
}

// Turn returns the side to move.
func (r *Room) Turn() domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.Turn()
}

func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// closeIfEmpty marks an empty room closed so late joins retry against a
// fresh registry entry. Reports whether the caller should remove it.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.closed = true
	return true
}

func (r *Room) connsLocked() []domain.Connection {
	conns := make([]domain.Connection, 0, len(r.members))
	for conn := range r.members {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Room) sendStateLocked(conn domain.Connection, m *member) {
	broadcast.Send(conn, domain.GameState(m.role, r.game.Turn(), r.game.FEN()), r.Drop)
}

// broadcastStateLocked sends each member its own snapshot; the role field
// is per-recipient, so this cannot share one encoded frame.
func (r *Room) broadcastStateLocked() {
	for conn, m := range r.members {
		r.sendStateLocked(conn, m)
	}
}

func (r *Room) broadcastInfoLocked(content string) {
	broadcast.Publish(r.connsLocked(), domain.Info(content), r.Drop)
}
