package core

import (
	"errors"
	"testing"
)

// Event constructor & helper method tests
func TestEvent_Constructors(t *testing.T) {
	e := NewEvent("run-1", EventRunComplete)
	if e.Type != EventRunComplete || e.RunID != "run-1" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	start := NewAgentStartEvent("run-1", "critic", 2)
	if start.AgentID != "critic" || start.Round != 2 || start.Type != EventAgentStart {
		t.Fatalf("NewAgentStartEvent malformed: %+v", start)
	}

	chunk := NewAgentChunkEvent("run-1", "critic", 2, "tok")
	if chunk.Text != "tok" || chunk.Type != EventAgentChunk {
		t.Fatalf("NewAgentChunkEvent malformed: %+v", chunk)
	}

	msg := NewAgentMessage("critic", 2, "done", []ToolCall{{ToolName: "calculator", Input: "1+1", Output: "Result: 2"}})
	complete := NewAgentCompleteEvent("run-1", msg)
	if complete.Message == nil || complete.Message.Content != "done" || complete.AgentID != "critic" {
		t.Fatalf("NewAgentCompleteEvent malformed: %+v", complete)
	}

	complete.Message.ToolCalls[0].Output = "changed"
	if msg.ToolCalls[0].Output != "Result: 2" {
		t.Error("complete event should carry a copy of the message")
	}

	errEv := NewErrorEvent("run-1", errors.New("boom"))
	if errEv.ErrorMessage != "boom" || !errEv.IsTerminal() {
		t.Fatalf("NewErrorEvent malformed: %+v", errEv)
	}

	if NewHeartbeatEvent().IsTerminal() || chunk.IsTerminal() {
		t.Error("heartbeat and chunk events must not be terminal")
	}

	if !NewRunCompleteEvent("run-1", "report").IsTerminal() {
		t.Error("run_complete must be terminal")
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
