package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/roundtable/core"
)

// SSEWriter frames events as Server-Sent Events:
//
//	event: <type>
//	data: <json>
//
// Heartbeats are written as ": keepalive" comments, which EventSource clients
// ignore.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter prepares w for streaming and sets the event-stream headers when
// w is an http.ResponseWriter.
func NewSSEWriter(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}

	if rw, ok := w.(http.ResponseWriter); ok {
		h := rw.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
	}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}

	return s
}

// WriteFrame writes one named frame with a JSON payload.
func (s *SSEWriter) WriteFrame(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", name, err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flush()

	return nil
}

// Send implements Sink.
func (s *SSEWriter) Send(_ context.Context, ev core.Event) error {
	if ev.Type == core.EventHeartbeat {
		if _, err := io.WriteString(s.w, ": keepalive\n\n"); err != nil {
			return err
		}
		s.flush()
		return nil
	}

	return s.WriteFrame(string(ev.Type), ev)
}

func (s *SSEWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
