package core

import (
	"fmt"
	"maps"
)

// Phase is the coarse state of the round coordinator state machine.
type Phase string

const (
	// PhasePending is the state before the first round starts.
	PhasePending Phase = "PENDING"
	// PhaseRoundRunning means round CurrentRound is executing.
	PhaseRoundRunning Phase = "ROUND_RUNNING"
	// PhaseFinalizing means the final (sequential) or integrate (mixed) agent is executing.
	PhaseFinalizing Phase = "FINALIZING"
	// PhaseDone is the terminal success state.
	PhaseDone Phase = "DONE"
	// PhaseFailed is the terminal failure state; partial messages are kept.
	PhaseFailed Phase = "FAILED"
)

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool { return p == PhaseDone || p == PhaseFailed }

// RunState is the complete working state of one orchestration run. It is owned
// by exactly one run and must never be shared between runs.
type RunState struct {
	RunID             string            `json:"run_id"`
	Mode              string            `json:"mode"`
	Topic             string            `json:"topic"`
	Context           map[string]any    `json:"context"`
	CurrentRound      int               `json:"current_round"`
	MaxRounds         int               `json:"max_rounds"`
	Phase             Phase             `json:"phase"`
	Messages          []AgentMessage    `json:"messages"`
	AvailableMessages map[string]string `json:"available_messages"`
	FinalReport       string            `json:"final_report,omitempty"`
}

// NewRunState creates a state positioned before round 1.
func NewRunState(runID, mode, topic string, context map[string]any, maxRounds int) *RunState {
	ctx := make(map[string]any, len(context))
	maps.Copy(ctx, context)

	return &RunState{
		RunID:             runID,
		Mode:              mode,
		Topic:             topic,
		Context:           ctx,
		CurrentRound:      1,
		MaxRounds:         maxRounds,
		Phase:             PhasePending,
		Messages:          []AgentMessage{},
		AvailableMessages: map[string]string{},
	}
}

// Status renders the phase the way operators read it, e.g. ROUND_2_RUNNING.
func (s *RunState) Status() string {
	if s.Phase == PhaseRoundRunning {
		return fmt.Sprintf("ROUND_%d_RUNNING", s.CurrentRound)
	}

	return string(s.Phase)
}

// Visible returns the latest outputs of the given agents that are currently
// available, preserving the requested order. Agents without output are skipped.
func (s *RunState) Visible(agentIDs []string) []PreviousMessage {
	out := make([]PreviousMessage, 0, len(agentIDs))
	for _, id := range agentIDs {
		if text, ok := s.AvailableMessages[id]; ok {
			out = append(out, PreviousMessage{AgentID: id, Content: text})
		}
	}

	return out
}

// RoundOutputs returns the non-degraded outputs produced in the given round,
// keyed by agent id. The latest message wins when an agent spoke twice.
func (s *RunState) RoundOutputs(round int) map[string]string {
	out := map[string]string{}
	for _, m := range s.Messages {
		if m.Round == round && !m.Error {
			out[m.AgentID] = m.Content
		}
	}

	return out
}

// Apply folds an increment into the state: messages are appended in the order
// they appear in the increment and available messages are overwritten key-wise.
func (s *RunState) Apply(inc Increment) {
	for _, m := range inc.Messages {
		s.Messages = append(s.Messages, m.Clone())
	}

	if s.AvailableMessages == nil {
		s.AvailableMessages = map[string]string{}
	}

	maps.Copy(s.AvailableMessages, inc.AvailableMessages)
}

// Snapshot returns a deep copy safe to hand to callers while the run continues.
func (s *RunState) Snapshot() *RunState {
	c := *s
	c.Context = maps.Clone(s.Context)
	c.AvailableMessages = maps.Clone(s.AvailableMessages)

	c.Messages = make([]AgentMessage, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}

	return &c
}

// PreviousMessage is one visible output of another agent.
type PreviousMessage struct {
	AgentID string
	Content string
}

// Increment is the partial update produced by one executed node. Nodes never
// return a whole RunState.
type Increment struct {
	Messages          []AgentMessage
	AvailableMessages map[string]string
}

// Merge combines two increments. Messages are concatenated (left first) and
// available messages merged key-wise with right-hand precedence. The operation
// is associative; concurrent branches of one round never write the same key, so
// for them it is also order-insensitive on the map side.
func Merge(left, right Increment) Increment {
	if len(left.Messages) == 0 && len(left.AvailableMessages) == 0 {
		return right
	}

	if len(right.Messages) == 0 && len(right.AvailableMessages) == 0 {
		return left
	}

	out := Increment{
		Messages:          make([]AgentMessage, 0, len(left.Messages)+len(right.Messages)),
		AvailableMessages: make(map[string]string, len(left.AvailableMessages)+len(right.AvailableMessages)),
	}

	out.Messages = append(out.Messages, left.Messages...)
	out.Messages = append(out.Messages, right.Messages...)

	maps.Copy(out.AvailableMessages, left.AvailableMessages)
	maps.Copy(out.AvailableMessages, right.AvailableMessages)

	return out
}

// MergeAll folds increments left to right.
func MergeAll(incs ...Increment) Increment {
	var acc Increment
	for _, inc := range incs {
		acc = Merge(acc, inc)
	}

	return acc
}
