package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/hupe1980/roundtable/core"
)

// DefaultSubjectPrefix is the subject root run events are published under.
const DefaultSubjectPrefix = "roundtable.runs"

// NATSSink publishes events as JSON to "<prefix>.<run_id>.<type>", so
// subscribers can follow one run ("roundtable.runs.<id>.>") or every
// completion ("roundtable.runs.*.run_complete"). Heartbeats are not published.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink creates a sink on an established connection.
func NewNATSSink(conn *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

// ConnectNATS dials url and returns a sink owning the connection.
func ConnectNATS(url, prefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("roundtable"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSSink(conn, prefix), nil
}

// Subject returns the subject an event is published on.
func (s *NATSSink) Subject(ev core.Event) string {
	run := ev.RunID
	if run == "" {
		run = "_"
	}
	return fmt.Sprintf("%s.%s.%s", s.prefix, run, ev.Type)
}

// Send implements Sink.
func (s *NATSSink) Send(_ context.Context, ev core.Event) error {
	if ev.Type == core.EventHeartbeat {
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := s.conn.Publish(s.Subject(ev), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}

	// Terminal events are flushed so subscribers see the run end promptly.
	if ev.IsTerminal() {
		return s.conn.Flush()
	}

	return nil
}

// Close drains and closes the underlying connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
