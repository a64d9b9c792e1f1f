package core

import "time"

// ToolCall records a single tool invocation performed during an agent turn.
type ToolCall struct {
	ToolName string `json:"tool_name"`
	Input    string `json:"input"`
	Output   string `json:"output"`
}

// AgentMessage is the output of one agent turn. It is immutable once appended
// to a RunState.
type AgentMessage struct {
	AgentID   string     `json:"agent_id"`
	AgentName string     `json:"agent_name,omitempty"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls"`
	Round     int        `json:"round"`
	Timestamp time.Time  `json:"timestamp"`
	Error     bool       `json:"error"`
}

// NewAgentMessage creates a successful message stamped with the current UTC time.
func NewAgentMessage(agentID string, round int, content string, calls []ToolCall) AgentMessage {
	if calls == nil {
		calls = []ToolCall{}
	}

	return AgentMessage{
		AgentID:   agentID,
		Content:   content,
		ToolCalls: calls,
		Round:     round,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage creates a degraded message for a failed turn. The content is
// a short diagnostic and the tool call trace is always empty.
func NewErrorMessage(agentID string, round int, diagnostic string) AgentMessage {
	return AgentMessage{
		AgentID:   agentID,
		Content:   "[Error] " + diagnostic,
		ToolCalls: []ToolCall{},
		Round:     round,
		Timestamp: time.Now().UTC(),
		Error:     true,
	}
}

// Clone returns a copy that does not share the tool call slice.
func (m AgentMessage) Clone() AgentMessage {
	c := m
	c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
	copy(c.ToolCalls, m.ToolCalls)

	return c
}
