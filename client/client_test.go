package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kushgarg132/Chess/domain"
	"github.com/kushgarg132/Chess/engine"
	"github.com/kushgarg132/Chess/protocol"
	"github.com/kushgarg132/Chess/room"
	ws "github.com/kushgarg132/Chess/websocket"
)

var upgrader = gws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// newRouter builds the real server stack so the client is exercised
// against the actual protocol, not a canned script.
func newRouter() *mux.Router {
	handler := protocol.NewHandler(room.NewRegistry())

	router := mux.NewRouter()
	router.HandleFunc("/ws/chess/{roomId}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.NewConn(uuid.New().String(), mux.Vars(r)["roomId"], conn, handler).Start()
	})
	return router
}

func newTestServer(t *testing.T) (baseURL string) {
	t.Helper()
	srv := httptest.NewServer(newRouter())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// trackingListener remembers accepted connections so a test can sever
// them mid-session.
type trackingListener struct {
	net.Listener
	mu    sync.Mutex
	conns []net.Conn
}

func (l *trackingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.mu.Lock()
		l.conns = append(l.conns, conn)
		l.mu.Unlock()
	}
	return conn, err
}

func (l *trackingListener) severAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range l.conns {
		conn.Close()
	}
	l.conns = nil
}

// waitForType drains the client's message stream until a frame of the
// wanted type arrives.
func waitForType(t *testing.T, cl *Client, msgType string) domain.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-cl.Messages():
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s frame arrived", msgType)
		}
	}
}

func startClient(t *testing.T, url, roomID, name string) (*Client, context.CancelFunc) {
	t.Helper()
	cl := New(Config{URL: url, RoomID: roomID, Name: name})
	ctx, cancel := context.WithCancel(context.Background())
	go cl.Run(ctx)

	require.Eventually(t, func() bool {
		return cl.State() == StateConnected
	}, 5*time.Second, 10*time.Millisecond)
	return cl, cancel
}

func TestClient_AdoptsServerSnapshot(t *testing.T) {
	url := newTestServer(t)

	cl, cancel := startClient(t, url, "AB12", "Alice")
	defer cancel()

	require.Eventually(t, func() bool {
		return cl.Snapshot().Role == domain.RoleWhite
	}, 5*time.Second, 10*time.Millisecond)

	snap := cl.Snapshot()
	assert.Equal(t, domain.RoleWhite, snap.Turn)
	assert.Equal(t, engine.StartFEN, snap.BoardFEN)
}

func TestClient_TwoPlayersShareOneBoard(t *testing.T) {
	url := newTestServer(t)

	alice, cancelAlice := startClient(t, url, "AB12", "Alice")
	defer cancelAlice()
	require.Eventually(t, func() bool {
		return alice.Snapshot().Role == domain.RoleWhite
	}, 5*time.Second, 10*time.Millisecond)

	bob, cancelBob := startClient(t, url, "AB12", "Bob")
	defer cancelBob()
	require.Eventually(t, func() bool {
		return bob.Snapshot().Role == domain.RoleBlack
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Move("e2", "e4", ""))

	for name, cl := range map[string]*Client{"alice": alice, "bob": bob} {
		require.Eventually(t, func() bool {
			snap := cl.Snapshot()
			return snap.Turn == domain.RoleBlack && strings.Contains(snap.BoardFEN, "4P3")
		}, 5*time.Second, 10*time.Millisecond, "%s never saw the move", name)
	}
}

func TestClient_RejectedMoveArrivesAsError(t *testing.T) {
	url := newTestServer(t)

	alice, cancelAlice := startClient(t, url, "AB12", "Alice")
	defer cancelAlice()
	require.Eventually(t, func() bool {
		return alice.Snapshot().Role == domain.RoleWhite
	}, 5*time.Second, 10*time.Millisecond)

	bob, cancelBob := startClient(t, url, "AB12", "Bob")
	defer cancelBob()
	require.Eventually(t, func() bool {
		return bob.Snapshot().Role == domain.RoleBlack
	}, 5*time.Second, 10*time.Millisecond)

	before := alice.Snapshot().BoardFEN
	require.NoError(t, bob.Move("e7", "e5", "")) // not bob's turn

	waitForType(t, bob, domain.TypeError)
	assert.Equal(t, before, alice.Snapshot().BoardFEN, "rejected move must leave the board unchanged")
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	srv := httptest.NewUnstartedServer(newRouter())
	tracker := &trackingListener{Listener: srv.Listener}
	srv.Listener = tracker
	srv.Start()
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	cl, cancel := startClient(t, url, "AB12", "Alice")
	defer cancel()

	first := waitForType(t, cl, domain.TypeGameState)
	require.Equal(t, domain.RoleWhite, first.Role)

	tracker.severAll()

	// The client must redial on its own, join the room again and adopt
	// the fresh snapshot; the recreated room starts from the initial
	// position.
	second := waitForType(t, cl, domain.TypeGameState)
	assert.Equal(t, domain.RoleWhite, second.Role)
	assert.Equal(t, domain.RoleWhite, second.Turn)
	assert.Equal(t, engine.StartFEN, second.BoardFEN)

	require.Eventually(t, func() bool {
		return cl.State() == StateConnected
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, engine.StartFEN, cl.Snapshot().BoardFEN)
}

func TestClient_CancelStopsRetry(t *testing.T) {
	url := newTestServer(t)

	cl := New(Config{URL: url, RoomID: "AB12", Name: "Alice"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- cl.Run(ctx) }()

	require.Eventually(t, func() bool {
		return cl.State() == StateConnected
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Equal(t, StateDisconnected, cl.State())
}
