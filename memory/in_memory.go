package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
)

// InMemoryStore is a naive process‑local DocumentStore. Documents are kept per
// collection in insertion order; putting a document with an existing id
// replaces it in place.
//
// Concurrency: protected by RWMutex. Suitable only for tests / demos; use the
// SQLite store for anything that must survive a restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]core.Document // collection -> documents
}

// NewInMemoryStore creates a new in-memory document store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string][]core.Document)}
}

// Put inserts or replaces a document. Missing ids are generated.
func (m *InMemoryStore) Put(_ context.Context, doc core.Document) error {
	if doc.Collection == "" {
		return fmt.Errorf("put document: missing collection")
	}
	if doc.ID == "" {
		doc.ID = core.NewID()
	}
	if doc.Created.IsZero() {
		doc.Created = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.docs[doc.Collection]
	for i := range list {
		if list[i].ID == doc.ID {
			list[i] = doc
			return nil
		}
	}
	m.docs[doc.Collection] = append(list, doc)
	return nil
}

// List returns copies of the documents of one kind in insertion order.
func (m *InMemoryStore) List(_ context.Context, collection string, kind core.DocumentKind) ([]core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.Document{}
	for _, d := range m.docs[collection] {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

// Delete removes a document by id.
func (m *InMemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.docs[collection]
	for i := range list {
		if list[i].ID == id {
			m.docs[collection] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("document not found")
}
