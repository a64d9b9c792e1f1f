package testutil

import (
	"github.com/hupe1980/roundtable/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("dialectical_mode", "remote work").ID("s-1").Message(msg).Build()
type SessionBuilder struct {
	id         string
	mode       string
	topic      string
	collection string
	context    map[string]any
	status     core.SessionStatus
	messages   []core.AgentMessage
	report     string
}

// NewSessionBuilder creates a builder for a session of the given mode and topic.
func NewSessionBuilder(mode, topic string) *SessionBuilder {
	return &SessionBuilder{mode: mode, topic: topic, context: map[string]any{}}
}

// ID overrides the generated session id (chainable).
func (b *SessionBuilder) ID(id string) *SessionBuilder { b.id = id; return b }

// Collection sets the document collection (chainable).
func (b *SessionBuilder) Collection(c string) *SessionBuilder { b.collection = c; return b }

// Context sets one topic context key (chainable).
func (b *SessionBuilder) Context(key string, val any) *SessionBuilder {
	b.context[key] = val
	return b
}

// Status sets the lifecycle status (chainable).
func (b *SessionBuilder) Status(s core.SessionStatus) *SessionBuilder { b.status = s; return b }

// Message appends a message (chainable).
func (b *SessionBuilder) Message(msgs ...core.AgentMessage) *SessionBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Report sets the final report (chainable).
func (b *SessionBuilder) Report(r string) *SessionBuilder { b.report = r; return b }

// Build returns the session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.mode, b.topic, b.context)
	if b.id != "" {
		s.ID = b.id
	}
	s.Collection = b.collection

	for _, m := range b.messages {
		s.AddMessage(m)
	}
	if b.report != "" {
		s.SetFinalReport(b.report)
	}
	if b.status != "" {
		s.SetStatus(b.status)
	}

	return s
}
