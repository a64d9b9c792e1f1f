package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "data", "roundtable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := core.NewSession("dialectical", "remote work", map[string]any{"team": "platform"})
	sess.Collection = "nb-1"
	sess.AgentCount = 3
	sess.AddMessage(core.NewAgentMessage("supporter", 1, "yes", []core.ToolCall{{ToolName: "calculator", Input: "1+1", Output: "Result: 2"}}))
	sess.AddMessage(core.NewErrorMessage("critic", 1, "timeout"))
	sess.SetFinalReport("report")
	sess.SetStatus(core.SessionCompleted)

	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, "dialectical", got.Mode)
	assert.Equal(t, "remote work", got.Topic)
	assert.Equal(t, "nb-1", got.Collection)
	assert.Equal(t, "platform", got.Context["team"])
	assert.Equal(t, core.SessionCompleted, got.Status)
	assert.Equal(t, "report", got.FinalReport)
	assert.Equal(t, 1, got.TotalRounds)
	assert.Equal(t, 3, got.AgentCount)
	assert.True(t, got.Created.Equal(sess.Created))

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "yes", got.Messages[0].Content)
	assert.Equal(t, []core.ToolCall{{ToolName: "calculator", Input: "1+1", Output: "Result: 2"}}, got.Messages[0].ToolCalls)
	assert.True(t, got.Messages[1].Error)
	assert.Equal(t, "[Error] timeout", got.Messages[1].Content)
}

func TestSessionUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := core.NewSession("m", "t", nil)
	require.NoError(t, s.Save(ctx, sess))

	sess.SetStatus(core.SessionInProgress)
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SessionInProgress, got.Status)
	assert.NotNil(t, got.Context)
	assert.Empty(t, got.Messages)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSessionNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), core.ErrSessionNotFound)
}

func TestSessionListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, coll := range []string{"a", "b", "a"} {
		sess := core.NewSession("m", "t", nil)
		sess.Collection = coll
		sess.Created = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(ctx, sess))
		ids = append(ids, sess.ID)
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	onlyA, err := s.List(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, ids[2], onlyA[0].ID)

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.Delete(ctx, ids[1]))
	_, err = s.Get(ctx, ids[1])
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestSaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(context.Background(), &core.Session{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t).Documents()

	require.NoError(t, docs.Put(ctx, core.Document{ID: "s1", Collection: "nb", Kind: core.DocumentSource, Title: "Paper", Content: "body"}))
	require.NoError(t, docs.Put(ctx, core.Document{Collection: "nb", Kind: core.DocumentNote, Title: "Note", Content: "mine"}))
	require.NoError(t, docs.Put(ctx, core.Document{ID: "s2", Collection: "nb", Kind: core.DocumentSource, Title: "Article", Content: "text"}))
	require.NoError(t, docs.Put(ctx, core.Document{Collection: "other", Kind: core.DocumentSource, Title: "Elsewhere"}))

	// Replacing keeps the original position.
	require.NoError(t, docs.Put(ctx, core.Document{ID: "s1", Collection: "nb", Kind: core.DocumentSource, Title: "Paper v2", Content: "body2"}))

	sources, err := docs.List(ctx, "nb", core.DocumentSource)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "Paper v2", sources[0].Title)
	assert.Equal(t, "Article", sources[1].Title)
	assert.False(t, sources[0].Created.IsZero())

	notes, err := docs.List(ctx, "nb", core.DocumentNote)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotEmpty(t, notes[0].ID)

	none, err := docs.List(ctx, "missing", core.DocumentSource)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, docs.Put(ctx, core.Document{Title: "no collection"}))
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	sess := core.NewSession("m", "t", nil)
	require.NoError(t, s.Save(context.Background(), sess))

	_, err = s.Get(context.Background(), sess.ID)
	assert.NoError(t, err)
}
