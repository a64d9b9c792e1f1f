package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned session is cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Save stores a clone of the provided session snapshot, replacing any previous version.
func (s *InMemoryStore) Save(_ context.Context, session *core.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("save session: missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get returns a clone of an existing session.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id]; ok {
		return session.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
}

// List returns sessions newest first, optionally filtered by collection. A
// limit <= 0 returns all matches.
func (s *InMemoryStore) List(_ context.Context, collection string, limit int) ([]*core.Session, error) {
	s.mu.RLock()
	out := make([]*core.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if collection != "" && sess.Collection != collection {
			continue
		}
		out = append(out, sess.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.After(out[j].Created)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}
