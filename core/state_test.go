package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func inc(agentID string, round int, text string) Increment {
	return Increment{
		Messages:          []AgentMessage{NewAgentMessage(agentID, round, text, nil)},
		AvailableMessages: map[string]string{agentID: text},
	}
}

func TestMerge_Associative(t *testing.T) {
	a := inc("a", 1, "A")
	b := inc("b", 1, "B")
	c := inc("c", 1, "C")

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))

	assert.Equal(t, left.AvailableMessages, right.AvailableMessages)
	assert.Len(t, left.Messages, 3)
	for i := range left.Messages {
		assert.Equal(t, left.Messages[i].AgentID, right.Messages[i].AgentID)
	}
}

func TestMerge_EmptySides(t *testing.T) {
	a := inc("a", 1, "A")

	assert.Equal(t, a, Merge(Increment{}, a))
	assert.Equal(t, a, Merge(a, Increment{}))
	assert.Empty(t, MergeAll().Messages)
}

func TestMerge_DisjointKeysOrderInsensitive(t *testing.T) {
	a := inc("a", 2, "A")
	b := inc("b", 2, "B")

	assert.Equal(t, Merge(a, b).AvailableMessages, Merge(b, a).AvailableMessages)
}

func TestRunState_ApplyAndVisible(t *testing.T) {
	s := NewRunState("run", "mode", "topic", map[string]any{"title": "T"}, 2)
	assert.Equal(t, 1, s.CurrentRound)
	assert.Equal(t, PhasePending, s.Phase)

	s.Apply(inc("supporter", 1, "first"))
	s.Apply(Increment{Messages: []AgentMessage{NewErrorMessage("critic", 1, "boom")}})
	s.Apply(inc("supporter", 2, "second"))

	assert.Len(t, s.Messages, 3)
	assert.Equal(t, "second", s.AvailableMessages["supporter"])
	_, ok := s.AvailableMessages["critic"]
	assert.False(t, ok, "degraded turns never publish available output")

	visible := s.Visible([]string{"critic", "supporter"})
	assert.Equal(t, []PreviousMessage{{AgentID: "supporter", Content: "second"}}, visible)
}

func TestRunState_RoundOutputs(t *testing.T) {
	s := NewRunState("r", "m", "t", nil, 3)
	s.Apply(inc("a", 1, "a-1"))
	s.Apply(inc("b", 1, "b-1"))
	s.Apply(inc("a", 2, "a-2"))
	s.Apply(Increment{Messages: []AgentMessage{NewErrorMessage("b", 2, "boom")}})

	assert.Equal(t, map[string]string{"a": "a-2"}, s.RoundOutputs(2))
	assert.Equal(t, map[string]string{"a": "a-1", "b": "b-1"}, s.RoundOutputs(1))
	assert.Empty(t, s.RoundOutputs(0))
	assert.Equal(t, "b-1", s.AvailableMessages["b"], "degraded turns keep the previous available entry")
}

func TestRunState_StatusAndSnapshot(t *testing.T) {
	s := NewRunState("run", "mode", "topic", nil, 3)
	s.Phase = PhaseRoundRunning
	s.CurrentRound = 2
	assert.Equal(t, "ROUND_2_RUNNING", s.Status())

	s.Phase = PhaseFinalizing
	assert.Equal(t, "FINALIZING", s.Status())
	assert.False(t, s.Phase.IsTerminal())
	assert.True(t, PhaseFailed.IsTerminal())

	s.Apply(inc("a", 1, "x"))
	snap := s.Snapshot()
	snap.AvailableMessages["a"] = "changed"
	snap.Messages[0].Content = "changed"
	assert.Equal(t, "x", s.AvailableMessages["a"])
	assert.Equal(t, "x", s.Messages[0].Content)
}

func TestModelLimiter(t *testing.T) {
	l := NewModelLimiter(2)
	assert.NoError(t, l.Increment())
	assert.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())
	err := l.Increment()
	assert.ErrorIs(t, err, ErrModelCallLimit)
	assert.Equal(t, 3, l.Count())

	assert.Equal(t, -1, NewModelLimiter(0).Remaining())
}
