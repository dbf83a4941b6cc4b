// Package client implements a reconnect-tolerant chess room client. The
// connection lives in one of three states (Disconnected, Connecting,
// Connected); every drop triggers a backoff-paced redial keyed by the
// room and player it was started with, and cancelling the context stops
// any pending retry for good. The server is the sole source of truth:
// each gameState snapshot replaces the local one verbatim.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/kushgarg132/Chess/domain"
	"github.com/kushgarg132/Chess/engine"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Snapshot is the client's view of the room, replaced wholesale by every
// gameState frame.
type Snapshot struct {
	Role     domain.Role
	Turn     domain.Role
	BoardFEN string
}

type Config struct {
	URL    string // base URL, e.g. ws://localhost:8080
	RoomID string
	Name   string
}

type Client struct {
	cfg      Config
	messages chan domain.Message

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	writeMu  sync.Mutex
	snapshot Snapshot
}

func New(cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		messages: make(chan domain.Message, 64),
		state:    StateDisconnected,
		snapshot: Snapshot{Turn: domain.RoleWhite, BoardFEN: engine.StartFEN},
	}
}

// Messages streams every frame received from the server, in order.
func (c *Client) Messages() <-chan domain.Message {
	return c.messages
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the last adopted server state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run dials the room and keeps the session alive until ctx is cancelled,
// redialing with exponential backoff after every drop. It returns once
// ctx is done or the backoff gives up.
func (c *Client) Run(ctx context.Context) error {
	policy := backoff.WithContext(newPolicy(), ctx)
	defer close(c.messages)

	for {
		c.setState(StateConnecting)
		conn, err := c.dial(ctx, policy)
		if err != nil {
			c.setState(StateDisconnected)
			return err
		}
		policy.Reset()

		c.setConn(conn)
		c.setState(StateConnected)

		// Closing the socket on cancellation unblocks the read loop, so
		// an intentional disconnect never leaves a stale retry behind.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()
		c.readLoop(conn)
		close(done)
		c.setConn(nil)
		c.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Move sends a move attempt. Square names are file+rank ("e2");
// promotion is one of QUEEN, ROOK, BISHOP, KNIGHT or empty.
func (c *Client) Move(from, to, promotion string) error {
	return c.write(domain.Message{Type: domain.TypeMove, From: from, To: to, Promotion: promotion})
}

// Reset asks the server to start a new game in the current room.
func (c *Client) Reset() error {
	return c.write(domain.Message{Type: domain.TypeReset})
}

var ErrNotConnected = errors.New("not connected")

func (c *Client) dial(ctx context.Context, policy backoff.BackOff) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, c.url(), nil)
		if err != nil {
			slog.Debug("dial failed, retrying", "url", c.url(), "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) url() string {
	return c.cfg.URL + "/ws/chess/" + c.cfg.RoomID
}

// readLoop joins the room and consumes frames until the socket drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	join := domain.Message{Type: domain.TypeJoin, Name: c.cfg.Name}
	if err := c.writeTo(conn, join); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("connection lost", "room", c.cfg.RoomID, "error", err)
			return
		}
		msg, err := domain.Decode(data)
		if err != nil {
			slog.Warn("unreadable frame from server", "error", err)
			continue
		}
		c.adopt(msg)
		select {
		case c.messages <- msg:
		default:
			// A stalled consumer loses history, never the live snapshot.
		}
	}
}

// adopt folds a server frame into the local snapshot. gameState replaces
// everything; move replaces board and turn.
func (c *Client) adopt(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case domain.TypeGameState:
		c.snapshot = Snapshot{Role: msg.Role, Turn: msg.Turn, BoardFEN: msg.BoardFEN}
	case domain.TypeMove:
		c.snapshot.Turn = msg.Turn
		c.snapshot.BoardFEN = msg.BoardFEN
	}
}

func (c *Client) write(msg domain.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeTo(conn, msg)
}

func (c *Client) writeTo(conn *websocket.Conn, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func newPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0 // retry until cancelled
	return policy
}
