// Package broadcast fans protocol messages out to the sessions attached
// to a room.
package broadcast

import (
	"encoding/json"
	"log/slog"

	"github.com/kushgarg132/Chess/domain"
)

// Publish delivers msg to every connection. Order across connections is
// unspecified; per-connection order follows call order because Send
// enqueues into the session's outbound queue. A connection that cannot
// accept the message is handed to detach and never retried.
func Publish(conns []domain.Connection, msg domain.Message, detach func(domain.Connection)) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}
	for _, conn := range conns {
		deliver(conn, data, detach)
	}
}

// Send delivers msg to a single connection with the same
// detach-on-failure policy as Publish.
func Send(conn domain.Connection, msg domain.Message, detach func(domain.Connection)) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "type", msg.Type, "error", err)
		return
	}
	deliver(conn, data, detach)
}

func deliver(conn domain.Connection, data []byte, detach func(domain.Connection)) {
	err := conn.Send(data)
	if err == nil {
		return
	}
	slog.Warn("dropping unreachable client", "clientId", conn.ID(), "error", err)
	if detach != nil {
		// The caller usually holds its room's lock; detach re-enters it.
		go detach(conn)
	}
}
