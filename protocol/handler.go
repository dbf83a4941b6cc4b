// Package protocol maps inbound frames onto room operations.
package protocol

import (
	"errors"
	"log/slog"

	"github.com/kushgarg132/Chess/broadcast"
	"github.com/kushgarg132/Chess/domain"
	"github.com/kushgarg132/Chess/engine"
	"github.com/kushgarg132/Chess/room"
)

type Handler struct {
	registry *room.Registry
}

func NewHandler(reg *room.Registry) *Handler {
	return &Handler{registry: reg}
}

// Handle decodes one frame and dispatches it. Malformed or unknown input
// is answered with an error message and never tears anything down.
func (h *Handler) Handle(conn domain.Connection, data []byte) {
	msg, err := domain.Decode(data)
	if err != nil {
		slog.Warn("invalid frame", "clientId", conn.ID(), "error", err)
		h.sendError(conn, "Invalid message.")
		return
	}

	switch msg.Type {
	case domain.TypeJoin:
		h.registry.Join(conn.Room(), conn, msg.Name)
	case domain.TypeMove:
		h.handleMove(conn, msg)
	case domain.TypeReset:
		h.handleReset(conn)
	default:
		h.sendError(conn, "Unknown message type: "+msg.Type)
	}
}

// Disconnect treats a closed socket as an implicit leave.
func (h *Handler) Disconnect(conn domain.Connection) {
	r := h.registry.Lookup(conn.Room())
	if r == nil {
		return
	}
	r.Leave(conn)
	h.registry.ReleaseIfEmpty(conn.Room())
}

func (h *Handler) handleMove(conn domain.Connection, msg domain.Message) {
	if msg.From == "" || msg.To == "" {
		h.sendError(conn, "Invalid move message.")
		return
	}
	r := h.registry.Lookup(conn.Room())
	if r == nil {
		h.sendError(conn, "Join the room first.")
		return
	}
	if err := r.ApplyMove(conn, msg.From, msg.To, msg.Promotion); err != nil {
		h.sendError(conn, rejectionText(err))
	}
}

func (h *Handler) handleReset(conn domain.Connection) {
	r := h.registry.Lookup(conn.Room())
	if r == nil {
		h.sendError(conn, "Join the room first.")
		return
	}
	if err := r.Reset(conn); err != nil {
		h.sendError(conn, rejectionText(err))
	}
}

func (h *Handler) sendError(conn domain.Connection, content string) {
	broadcast.Send(conn, domain.Error(content), nil)
}

func rejectionText(err error) string {
	switch {
	case errors.Is(err, room.ErrNotJoined):
		return "Join the room first."
	case errors.Is(err, room.ErrSpectator):
		return "Spectators cannot move."
	case errors.Is(err, room.ErrNotYourTurn):
		return "Not your turn."
	case errors.Is(err, room.ErrAwaitingOpponent):
		return "Waiting for an opponent."
	case errors.Is(err, room.ErrGameOver):
		return "The game is over."
	case errors.Is(err, engine.ErrIllegalMove):
		return "Illegal move."
	default:
		return "Move rejected."
	}
}
