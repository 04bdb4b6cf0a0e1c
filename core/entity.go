package core

import (
	"bytes"
	"context"
	"errors"
)

// ErrDocumentNotFound is returned by every DocumentStore for unknown ids.
var ErrDocumentNotFound = errors.New("document not found")

type (
	// Document is a saved drawing. Data holds the encoded scene snapshot
	// and Thumbnail a PNG data URL. Times are Unix milliseconds.
	Document struct {
		ID        string
		Name      string
		Data      bytes.Buffer
		Thumbnail string
		CreatedAt int64
		UpdatedAt int64
	}

	DocumentStore interface {
		FindID(ctx context.Context, id string) (*Document, error)
		Create(ctx context.Context, document *Document) (string, error)
		// Update replaces name, data and thumbnail of an existing document.
		Update(ctx context.Context, document *Document) error
		// List returns every document without its data, newest first.
		List(ctx context.Context) ([]Document, error)
		Delete(ctx context.Context, id string) error
	}
)
