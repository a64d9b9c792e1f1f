package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a streaming notification kind.
type EventType string

const (
	// EventAgentStart is emitted when an agent node begins a turn.
	EventAgentStart EventType = "agent_start"
	// EventAgentChunk carries a fragment of an agent's answer.
	EventAgentChunk EventType = "agent_chunk"
	// EventAgentComplete carries the finished AgentMessage.
	EventAgentComplete EventType = "agent_complete"
	// EventRunComplete is emitted once the run reached DONE.
	EventRunComplete EventType = "run_complete"
	// EventError reports a run failure.
	EventError EventType = "error"
	// EventHeartbeat keeps a transport open. Consumers must ignore it.
	EventHeartbeat EventType = "heartbeat"
)

// Event is the unit of communication between the coordinator and streaming
// consumers. After emission it should be treated as immutable. Which payload
// fields are set depends on Type:
//
//	agent_start     AgentID, Round
//	agent_chunk     AgentID, Round, Text
//	agent_complete  Message
//	run_complete    FinalReport
//	error           ErrorMessage
//	heartbeat       (none)
type Event struct {
	ID           string        `json:"id"`
	Type         EventType     `json:"type"`
	RunID        string        `json:"run_id,omitempty"`
	AgentID      string        `json:"agent_id,omitempty"`
	Round        int           `json:"round,omitempty"`
	Text         string        `json:"text,omitempty"`
	Message      *AgentMessage `json:"message,omitempty"`
	FinalReport  string        `json:"final_report,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// NewEvent creates a bare event bound to a run.
func NewEvent(runID string, typ EventType) Event {
	return Event{
		ID:        NewID(),
		Type:      typ,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentStartEvent announces the start of an agent turn.
func NewAgentStartEvent(runID, agentID string, round int) Event {
	e := NewEvent(runID, EventAgentStart)
	e.AgentID = agentID
	e.Round = round

	return e
}

// NewAgentChunkEvent carries one streamed fragment.
func NewAgentChunkEvent(runID, agentID string, round int, text string) Event {
	e := NewEvent(runID, EventAgentChunk)
	e.AgentID = agentID
	e.Round = round
	e.Text = text

	return e
}

// NewAgentCompleteEvent carries a finished message.
func NewAgentCompleteEvent(runID string, msg AgentMessage) Event {
	e := NewEvent(runID, EventAgentComplete)
	m := msg.Clone()
	e.AgentID = m.AgentID
	e.Round = m.Round
	e.Message = &m

	return e
}

// NewRunCompleteEvent signals that the run reached DONE.
func NewRunCompleteEvent(runID, report string) Event {
	e := NewEvent(runID, EventRunComplete)
	e.FinalReport = report

	return e
}

// NewErrorEvent reports a failure to consumers.
func NewErrorEvent(runID string, err error) Event {
	e := NewEvent(runID, EventError)
	if err != nil {
		e.ErrorMessage = err.Error()
	}

	return e
}

// NewHeartbeatEvent creates a keep-alive event with no payload.
func NewHeartbeatEvent() Event {
	return Event{ID: NewID(), Type: EventHeartbeat, Timestamp: time.Now().UTC()}
}

// IsTerminal reports whether the event ends a run's event stream.
func (e Event) IsTerminal() bool { return e.Type == EventRunComplete || e.Type == EventError }

// NewID generates a new unique identifier for events, runs and sessions.
func NewID() string { return uuid.NewString() }
