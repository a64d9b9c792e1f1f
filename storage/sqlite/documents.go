package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hupe1980/roundtable/core"
)

// DocumentStore is the SQLite core.DocumentStore. Documents keep their first
// insertion position when replaced.
type DocumentStore struct {
	db *sql.DB
}

var _ core.DocumentStore = (*DocumentStore)(nil)

// Put inserts or replaces a document. Missing ids are generated.
func (d *DocumentStore) Put(ctx context.Context, doc core.Document) error {
	if doc.Collection == "" {
		return fmt.Errorf("put document: missing collection")
	}
	if doc.ID == "" {
		doc.ID = core.NewID()
	}
	if doc.Created.IsZero() {
		doc.Created = time.Now().UTC()
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO documents (id, collection, kind, title, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection = excluded.collection,
			kind = excluded.kind,
			title = excluded.title,
			content = excluded.content`,
		doc.ID, doc.Collection, string(doc.Kind), doc.Title, doc.Content, formatTime(doc.Created))
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}

	return nil
}

// List returns the documents of one kind in insertion order.
func (d *DocumentStore) List(ctx context.Context, collection string, kind core.DocumentKind) ([]core.Document, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, collection, kind, title, content, created_at
		FROM documents
		WHERE collection = ? AND kind = ?
		ORDER BY seq ASC`, collection, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []core.Document{}
	for rows.Next() {
		var (
			doc     core.Document
			kind    string
			created string
		)
		if err := rows.Scan(&doc.ID, &doc.Collection, &kind, &doc.Title, &doc.Content, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Kind = core.DocumentKind(kind)
		if doc.Created, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}

	return out, rows.Err()
}
