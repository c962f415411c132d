// Package storage keeps the working document between sessions.
//
// A Store holds one current document and its revision history. Store
// replaces the current document, Update appends a revision to it and
// Retrieve returns the newest revision. Every revision carries a content
// hash that is checked on the way out.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrNotFound is returned when no document has been stored yet.
	ErrNotFound = errors.New("storage: no document stored")
	// ErrEmpty rejects empty payloads.
	ErrEmpty = errors.New("storage: document is empty")
	// ErrCorrupt is returned when stored bytes no longer match their hash.
	ErrCorrupt = errors.New("storage: document hash mismatch")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage: store is closed")
)

// Document is one revision of the working document.
type Document struct {
	Name      string
	Data      []byte
	Revision  int
	Hash      string
	UpdatedAt time.Time
}

// Revision describes a stored revision without its bytes.
type Revision struct {
	Revision  int
	Size      int
	Hash      string
	CreatedAt time.Time
}

// Store persists the working document.
type Store interface {
	// Store makes data the current document under name, starting at
	// revision 1.
	Store(ctx context.Context, data []byte, name string) error
	// Retrieve returns the newest revision of the current document.
	Retrieve(ctx context.Context) (Document, error)
	// Update appends a revision to the current document.
	Update(ctx context.Context, data []byte) error
	// Revisions lists the revisions of the current document, oldest first.
	Revisions(ctx context.Context) ([]Revision, error)
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now          func() time.Time
	maxRevisions int
}

// WithClock sets the time source for revision timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxRevisions keeps at most n revisions per document; older ones are
// pruned on Update. Zero keeps everything.
func WithMaxRevisions(n int) Option {
	return func(o *options) { o.maxRevisions = n }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Hash returns the hex blake2b-256 digest used to verify stored bytes.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func verify(doc Document) (Document, error) {
	if Hash(doc.Data) != doc.Hash {
		return Document{}, ErrCorrupt
	}
	return doc, nil
}
