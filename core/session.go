package core

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionStore implementations when no
// session with the requested id exists.
var ErrSessionNotFound = errors.New("session not found")

// SessionStatus is the lifecycle state of a persisted session.
type SessionStatus string

const (
	// SessionCreated means the session exists but never ran.
	SessionCreated SessionStatus = "created"
	// SessionInProgress means a run is executing.
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted means the run reached DONE and the report is stored.
	SessionCompleted SessionStatus = "completed"
	// SessionFailed means the run failed; Messages holds the partial log.
	SessionFailed SessionStatus = "failed"
)

// Session is the durable projection of a completed or in-flight run. It is
// safe for concurrent access.
//
// Contract:
//   - AddMessage keeps TotalRounds at the highest round seen
//   - SetStatus and AddMessage update the Updated timestamp
//   - Clone performs deep copies of maps and slices for safe divergence.
type Session struct {
	ID          string         `json:"id"`
	Mode        string         `json:"mode"`
	Topic       string         `json:"topic"`
	Collection  string         `json:"collection,omitempty"`
	Context     map[string]any `json:"context"`
	Status      SessionStatus  `json:"status"`
	Messages    []AgentMessage `json:"messages"`
	FinalReport string         `json:"final_report,omitempty"`
	TotalRounds int            `json:"total_rounds"`
	AgentCount  int            `json:"agent_count"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
	mu          sync.RWMutex
}

// NewSession creates a session in status created with a fresh id.
func NewSession(mode, topic string, context map[string]any) *Session {
	now := time.Now().UTC()

	ctx := map[string]any{}
	maps.Copy(ctx, context)

	return &Session{
		ID:       NewID(),
		Mode:     mode,
		Topic:    topic,
		Context:  ctx,
		Status:   SessionCreated,
		Messages: []AgentMessage{},
		Created:  now,
		Updated:  now,
	}
}

// SetStatus moves the session to the given status.
func (s *Session) SetStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.Updated = time.Now().UTC()
}

// GetStatus returns the current status.
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// AddMessage appends a message and tracks the highest round.
func (s *Session) AddMessage(m AgentMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m.Clone())
	if m.Round > s.TotalRounds {
		s.TotalRounds = m.Round
	}
	s.Updated = time.Now().UTC()
}

// SetFinalReport stores the rendered report.
func (s *Session) SetFinalReport(report string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinalReport = report
	s.Updated = time.Now().UTC()
}

// MessagesByAgent returns copies of the messages produced by one agent.
func (s *Session) MessagesByAgent(agentID string) []AgentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AgentMessage
	for _, m := range s.Messages {
		if m.AgentID == agentID {
			out = append(out, m.Clone())
		}
	}
	return out
}

// MessagesByRound returns copies of the messages produced in one round.
func (s *Session) MessagesByRound(round int) []AgentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AgentMessage
	for _, m := range s.Messages {
		if m.Round == round {
			out = append(out, m.Clone())
		}
	}
	return out
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:          s.ID,
		Mode:        s.Mode,
		Topic:       s.Topic,
		Collection:  s.Collection,
		Context:     maps.Clone(s.Context),
		Status:      s.Status,
		Messages:    make([]AgentMessage, len(s.Messages)),
		FinalReport: s.FinalReport,
		TotalRounds: s.TotalRounds,
		AgentCount:  s.AgentCount,
		Created:     s.Created,
		Updated:     s.Updated,
	}
	if clone.Context == nil {
		clone.Context = map[string]any{}
	}
	for i, m := range s.Messages {
		clone.Messages[i] = m.Clone()
	}
	return clone
}

// SessionStore persists session records. Implementations return
// ErrSessionNotFound (possibly wrapped) for unknown ids.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, collection string, limit int) ([]*Session, error)
	Delete(ctx context.Context, id string) error
}
