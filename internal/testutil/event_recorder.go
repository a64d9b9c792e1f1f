package testutil

import (
	"strings"
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// EventRecorder collects streamed events. Record is safe for concurrent use
// and can be passed wherever an OnEvent callback is expected.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

// Record appends one event.
func (r *EventRecorder) Record(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded.
func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the recorded event types in order, skipping heartbeats.
func (r *EventRecorder) Types() []core.EventType {
	var out []core.EventType
	for _, ev := range r.Events() {
		if ev.Type != core.EventHeartbeat {
			out = append(out, ev.Type)
		}
	}
	return out
}

// Chunks concatenates the chunks streamed by one agent in one round.
func (r *EventRecorder) Chunks(agentID string, round int) string {
	var sb strings.Builder
	for _, ev := range r.Events() {
		if ev.Type == core.EventAgentChunk && ev.AgentID == agentID && ev.Round == round {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

// Last returns the last recorded event, or false when nothing was recorded.
func (r *EventRecorder) Last() (core.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return core.Event{}, false
	}
	return r.events[len(r.events)-1], true
}
