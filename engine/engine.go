// Package engine wraps the move-generation library behind the few
// operations a room needs: apply a candidate move, report side-to-move,
// terminal state and the FEN of the current position.
package engine

import (
	"errors"
	"strings"

	"github.com/notnil/chess"

	"github.com/kushgarg132/Chess/domain"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var ErrIllegalMove = errors.New("illegal move")

type Game struct {
	g *chess.Game
}

func New() *Game {
	return &Game{g: chess.NewGame()}
}

// NewFromFEN starts a game from an arbitrary position.
func NewFromFEN(fen string) (*Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return &Game{g: chess.NewGame(opt)}, nil
}

// FEN encodes the current position, including side-to-move, castling and
// en-passant rights and the move counters.
func (e *Game) FEN() string {
	return e.g.Position().String()
}

// Turn returns the side to move.
func (e *Game) Turn() domain.Role {
	if e.g.Position().Turn() == chess.White {
		return domain.RoleWhite
	}
	return domain.RoleBlack
}

// Apply validates the move named by two file+rank squares ("e2", "e4")
// against the current position and advances it. A pawn reaching the back
// rank without an explicit promotion piece promotes to a queen.
func (e *Game) Apply(from, to, promotion string) error {
	uci := strings.ToLower(from) + strings.ToLower(to)
	if suffix := promoSuffix(promotion); suffix != "" {
		return e.move(uci + suffix)
	}
	if err := e.move(uci); err != nil {
		return e.move(uci + "q")
	}
	return nil
}

func (e *Game) move(uci string) error {
	move, err := chess.UCINotation{}.Decode(e.g.Position(), uci)
	if err != nil {
		return ErrIllegalMove
	}
	if err := e.g.Move(move); err != nil {
		return ErrIllegalMove
	}
	return nil
}

func promoSuffix(promotion string) string {
	switch strings.ToUpper(promotion) {
	case "QUEEN":
		return "q"
	case "ROOK":
		return "r"
	case "BISHOP":
		return "b"
	case "KNIGHT":
		return "n"
	default:
		return ""
	}
}

// Over reports whether the position is terminal.
func (e *Game) Over() bool {
	return e.g.Outcome() != chess.NoOutcome
}

// Status names the terminal state ("checkmate", "stalemate", "draw"),
// or returns "" while play continues.
func (e *Game) Status() string {
	switch e.g.Method() {
	case chess.Checkmate:
		return "checkmate"
	case chess.Stalemate:
		return "stalemate"
	default:
		if e.g.Outcome() == chess.Draw {
			return "draw"
		}
		return ""
	}
}

// Reset returns the game to the standard initial position.
func (e *Game) Reset() {
	e.g = chess.NewGame()
}
