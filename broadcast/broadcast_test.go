package broadcast

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kushgarg132/Chess/domain"
)

type mockConn struct {
	id       string
	received [][]byte
	sendErr  error
	mu       sync.Mutex
}

func (m *mockConn) ID() string   { return m.id }
func (m *mockConn) Room() string { return "r1" }
func (m *mockConn) Close() error { return nil }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func TestPublish_DeliversToAll(t *testing.T) {
	conns := []*mockConn{{id: "c1"}, {id: "c2"}, {id: "c3"}}
	targets := make([]domain.Connection, len(conns))
	for i, c := range conns {
		targets[i] = c
	}

	Publish(targets, domain.Info("hello"), nil)

	for _, c := range conns {
		received := c.getReceived()
		require.Len(t, received, 1, "conn %s", c.id)

		var msg domain.Message
		require.NoError(t, json.Unmarshal(received[0], &msg))
		assert.Equal(t, domain.TypeMessage, msg.Type)
		assert.Equal(t, "hello", msg.Content)
	}
}

func TestPublish_DetachesFailingConn(t *testing.T) {
	healthy := &mockConn{id: "healthy"}
	broken := &mockConn{id: "broken", sendErr: assert.AnError}

	detached := make(chan domain.Connection, 1)
	Publish([]domain.Connection{healthy, broken}, domain.Info("hi"), func(c domain.Connection) {
		detached <- c
	})

	select {
	case c := <-detached:
		assert.Equal(t, "broken", c.ID())
	case <-time.After(time.Second):
		t.Fatal("failing connection was never detached")
	}
	assert.Len(t, healthy.getReceived(), 1, "healthy connection still gets the message")
}

func TestSend_NilDetachIsSafe(t *testing.T) {
	broken := &mockConn{id: "broken", sendErr: assert.AnError}

	Send(broken, domain.Error("nope"), nil)

	assert.Empty(t, broken.getReceived())
}
