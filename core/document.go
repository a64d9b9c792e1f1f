package core

import (
	"context"
	"time"
)

// DocumentKind distinguishes the two document families of a collection.
type DocumentKind string

const (
	// DocumentSource is an imported paper, article or web page.
	DocumentSource DocumentKind = "source"
	// DocumentNote is a user written note.
	DocumentNote DocumentKind = "note"
)

// Document is one readable item of a collection.
type Document struct {
	ID         string       `json:"id"`
	Collection string       `json:"collection"`
	Kind       DocumentKind `json:"kind"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Created    time.Time    `json:"created"`
}

// DocumentStore is the external content store read by the document reader tool.
// List returns documents of one kind in insertion order.
type DocumentStore interface {
	Put(ctx context.Context, doc Document) error
	List(ctx context.Context, collection string, kind DocumentKind) ([]Document, error)
}
