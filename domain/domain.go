package domain

import (
	"encoding/json"
	"errors"
)

// Role is a session's standing in a room. Seats grant move privileges,
// spectators only receive broadcasts.
type Role string

const (
	RoleWhite     Role = "white"
	RoleBlack     Role = "black"
	RoleSpectator Role = "spectator"
)

// HasSeat reports whether the role may move pieces.
func (r Role) HasSeat() bool {
	return r == RoleWhite || r == RoleBlack
}

// Message type tags. join, move and reset arrive from clients; gameState,
// move, message and error go out to clients.
const (
	TypeJoin      = "join"
	TypeMove      = "move"
	TypeReset     = "reset"
	TypeGameState = "gameState"
	TypeMessage   = "message"
	TypeError     = "error"
)

// Message is the wire unit, tagged by Type. Each tag uses only its own
// fields; everything else stays zero and is omitted from the encoding.
type Message struct {
	Type string `json:"type"`

	// join
	Name string `json:"name,omitempty"`

	// move (client -> server)
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`

	// gameState / move (server -> client)
	Role     Role   `json:"role,omitempty"`
	Turn     Role   `json:"turn,omitempty"`
	BoardFEN string `json:"boardFen,omitempty"`

	// message / error
	Content string `json:"content,omitempty"`
}

var ErrMissingType = errors.New("message has no type")

// Decode parses one inbound frame into a Message.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, ErrMissingType
	}
	return msg, nil
}

// GameState builds the full authoritative snapshot for one recipient.
// Replacing client state with it wholesale is always safe.
func GameState(role, turn Role, boardFEN string) Message {
	return Message{Type: TypeGameState, Role: role, Turn: turn, BoardFEN: boardFEN}
}

// MoveUpdate builds the incremental broadcast sent after an accepted move.
func MoveUpdate(boardFEN string, turn Role) Message {
	return Message{Type: TypeMove, BoardFEN: boardFEN, Turn: turn}
}

// Info builds a free-text informational line.
func Info(content string) Message {
	return Message{Type: TypeMessage, Content: content}
}

// Error builds a rejection explanation. The connection stays open.
func Error(content string) Message {
	return Message{Type: TypeError, Content: content}
}

// Connection is one attached client socket.
type Connection interface {
	ID() string
	Room() string
	Send(data []byte) error
	Close() error
}

// MessageHandler consumes inbound frames and socket closures.
type MessageHandler interface {
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}
