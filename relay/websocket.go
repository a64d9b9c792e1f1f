package relay

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/roundtable/core"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketSink writes events as JSON text messages to a websocket
// connection. Heartbeats are sent as ping control frames.
type WebSocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketSink wraps an established connection.
func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn}
}

// Send implements Sink.
func (s *WebSocketSink) Send(ctx context.Context, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if ev.Type == core.EventHeartbeat {
		return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return s.conn.WriteJSON(ev)
}

// Close sends a normal closure frame.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
