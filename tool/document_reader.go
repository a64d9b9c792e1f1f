package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// DocumentReaderToolID is the registry id of the document reader.
const DocumentReaderToolID = "notebook_reader"

// TruncationMarker is appended to documents cut at their character budget.
const TruncationMarker = "\n\n... (remaining content truncated)"

// DocumentReaderOptions bounds the digest size.
type DocumentReaderOptions struct {
	MaxSources     int
	SourceBudget   int // characters per source
	MaxNotes       int
	NoteBudget     int // characters per note
	MinDigestChars int
	Logger         logging.Logger
}

// DocumentReader renders a bounded digest of one collection of a DocumentStore.
// The input is only a focus hint; the whole (capped) collection is returned.
type DocumentReader struct {
	store      core.DocumentStore
	collection string
	opts       DocumentReaderOptions
}

// NewDocumentReader creates a reader scoped to collection.
func NewDocumentReader(store core.DocumentStore, collection string, optFns ...func(o *DocumentReaderOptions)) *DocumentReader {
	opts := DocumentReaderOptions{
		MaxSources:     5,
		SourceBudget:   4000,
		MaxNotes:       10,
		NoteBudget:     2000,
		MinDigestChars: 100,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &DocumentReader{store: store, collection: collection, opts: opts}
}

// Name implements Tool.
func (*DocumentReader) Name() string { return DocumentReaderToolID }

// Description implements Tool.
func (*DocumentReader) Description() string {
	return `Read the content of the user's notebook: its sources (papers, articles, documents) and notes.
It does not search or filter; it returns everything, truncated per document to fit the context.
Use it to understand the full context before forming opinions.`
}

// Parameters implements Tool.
func (*DocumentReader) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Topic or aspect to focus on (hint only)",
			},
		},
		"required": []any{"query"},
	}
}

// Call implements Tool.
func (r *DocumentReader) Call(ctx context.Context, input string) (string, error) {
	log := r.opts.Logger
	log.Debug("notebook_reader.read", "collection", r.collection, "hint", input)

	if r.collection == "" || r.store == nil {
		return "No notebook specified", nil
	}

	sources, err := r.store.List(ctx, r.collection, core.DocumentSource)
	if err != nil {
		return "", r.readError(err)
	}

	notes, err := r.store.List(ctx, r.collection, core.DocumentNote)
	if err != nil {
		return "", r.readError(err)
	}

	var b strings.Builder
	b.WriteString("# Complete Notebook Content\n\n")
	fmt.Fprintf(&b, "This notebook contains %d sources and %d notes.\n\n", len(sources), len(notes))

	if len(sources) > 0 {
		b.WriteString("## Sources (Papers, Articles, Documents)\n\n")
		r.writeSection(&b, "Source", sources, r.opts.MaxSources, r.opts.SourceBudget)
	}

	if len(notes) > 0 {
		b.WriteString("## Notes (User's Analysis and Thoughts)\n\n")
		r.writeSection(&b, "Note", notes, r.opts.MaxNotes, r.opts.NoteBudget)
	}

	digest := b.String()
	if len(digest) < r.opts.MinDigestChars {
		msg := fmt.Sprintf("WARNING: This notebook appears to be empty or contains no readable content. (sources: %d, notes: %d)", len(sources), len(notes))
		log.Warn("notebook_reader.empty", "collection", r.collection)
		return msg, nil
	}

	log.Info("notebook_reader.done", "collection", r.collection, "chars", len(digest))

	return digest, nil
}

func (r *DocumentReader) writeSection(b *strings.Builder, label string, docs []core.Document, limit, budget int) {
	for i, d := range docs {
		if i >= limit {
			break
		}
		if d.Content == "" {
			continue
		}

		fmt.Fprintf(b, "### %s %d: %s\n\n", label, i+1, d.Title)
		b.WriteString(truncate(d.Content, budget))
		b.WriteString("\n\n---\n\n")
	}
}

func (r *DocumentReader) readError(err error) error {
	r.opts.Logger.Error("notebook_reader.error", "collection", r.collection, "error", err)

	return &ToolError{
		Tool:    DocumentReaderToolID,
		Message: "ERROR reading notebook: " + err.Error(),
		Code:    "STORE_ERROR",
		Cause:   err,
	}
}

// truncate cuts s to budget characters and appends the truncation marker when
// anything was removed.
func truncate(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget]) + TruncationMarker
}
