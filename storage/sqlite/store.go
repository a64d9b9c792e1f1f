// Package sqlite provides durable session and document stores backed by a
// single SQLite database file (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/roundtable/core"
)

// Store implements core.SessionStore and, through Documents, core.DocumentStore.
type Store struct {
	db *sql.DB
}

var _ core.SessionStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL lets readers proceed while a run persists; writers wait instead of
	// failing with SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Documents returns the document store sharing this database.
func (s *Store) Documents() *DocumentStore {
	return &DocumentStore{db: s.db}
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			mode         TEXT NOT NULL,
			topic        TEXT NOT NULL,
			collection   TEXT NOT NULL DEFAULT '',
			context      TEXT NOT NULL DEFAULT '{}',
			status       TEXT NOT NULL,
			messages     TEXT NOT NULL DEFAULT '[]',
			final_report TEXT NOT NULL DEFAULT '',
			total_rounds INTEGER NOT NULL DEFAULT 0,
			agent_count  INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_collection ON sessions(collection, created_at)`,
		`CREATE TABLE IF NOT EXISTS documents (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			kind       TEXT NOT NULL,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, kind, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

// Save inserts or replaces the session record.
func (s *Store) Save(ctx context.Context, session *core.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("save session: missing id")
	}

	snap := session.Clone()

	contextJSON, err := json.Marshal(snap.Context)
	if err != nil {
		return fmt.Errorf("save session: marshal context: %w", err)
	}
	messagesJSON, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("save session: marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, topic, collection, context, status, messages,
			final_report, total_rounds, agent_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			topic = excluded.topic,
			collection = excluded.collection,
			context = excluded.context,
			status = excluded.status,
			messages = excluded.messages,
			final_report = excluded.final_report,
			total_rounds = excluded.total_rounds,
			agent_count = excluded.agent_count,
			updated_at = excluded.updated_at`,
		snap.ID, snap.Mode, snap.Topic, snap.Collection, string(contextJSON), string(snap.Status),
		string(messagesJSON), snap.FinalReport, snap.TotalRounds, snap.AgentCount,
		formatTime(snap.Created), formatTime(snap.Updated))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

const sessionColumns = `id, mode, topic, collection, context, status, messages,
	final_report, total_rounds, agent_count, created_at, updated_at`

// Get loads one session.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return session, nil
}

// List returns sessions newest first, optionally filtered by collection. A
// limit <= 0 returns all matches.
func (s *Store) List(ctx context.Context, collection string, limit int) ([]*core.Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ? = '' OR collection = ?
		ORDER BY created_at DESC, id ASC
		LIMIT ?`, collection, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []*core.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}

	return out, rows.Err()
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*core.Session, error) {
	var (
		s                    core.Session
		status               string
		contextJSON, msgJSON string
		created, updated     string
	)

	if err := row.Scan(&s.ID, &s.Mode, &s.Topic, &s.Collection, &contextJSON, &status, &msgJSON,
		&s.FinalReport, &s.TotalRounds, &s.AgentCount, &created, &updated); err != nil {
		return nil, err
	}

	s.Status = core.SessionStatus(status)

	if err := json.Unmarshal([]byte(contextJSON), &s.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	if s.Context == nil {
		s.Context = map[string]any{}
	}
	if err := json.Unmarshal([]byte(msgJSON), &s.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if s.Messages == nil {
		s.Messages = []core.AgentMessage{}
	}

	var err error
	if s.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	if s.Updated, err = parseTime(updated); err != nil {
		return nil, err
	}

	return &s, nil
}

// Timestamps are stored as fixed-width UTC text so lexical order is
// chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", v, err)
	}
	return t, nil
}
