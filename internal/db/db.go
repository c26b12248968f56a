// Package db defines the narrow storage contract the index engine runs on:
// documents keyed by unique term, term postings, per-slot sortable values,
// and store-scoped metadata.
//
// Stores provide single-writer-multiple-readers semantics. Callers must
// serialize writes against each other for a given store; no internal locking
// is implemented here.
package db

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
)

// Document is the stored unit handed to a driver. Values map value slots to
// marshalled (possibly binary) strings.
type Document struct {
	UniqueTerm string
	Terms      []string
	Values     map[int]string
	Data       []byte
}

// Store is the driver contract shared by the sqlite and redis backends.
type Store interface {
	// ReplaceDocument upserts a document by its unique term.
	ReplaceDocument(ctx context.Context, doc Document) error
	// DeleteByTerm removes every document bearing the given term.
	DeleteByTerm(ctx context.Context, term string) error

	// Postings returns the docids carrying a term.
	Postings(ctx context.Context, term string) (*roaring.Bitmap, error)
	// TermsWithPrefix lists distinct terms starting with prefix, sorted.
	TermsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	// AllDocIDs returns every docid in the store.
	AllDocIDs(ctx context.Context) (*roaring.Bitmap, error)
	// DocTerms lists the terms of one document.
	DocTerms(ctx context.Context, docid uint32) ([]string, error)
	// DocData returns the opaque payload of one document.
	DocData(ctx context.Context, docid uint32) ([]byte, error)
	// DocValues returns the slot values of one document.
	DocValues(ctx context.Context, docid uint32) (map[int]string, error)
	// DocsInValueRange returns docids whose slot value lies in [lo, hi].
	DocsInValueRange(ctx context.Context, slot int, lo, hi string) (*roaring.Bitmap, error)
	// DocCount returns the number of stored documents.
	DocCount(ctx context.Context) (int, error)

	// GetMetadata reads a store-scoped metadata blob; ErrKeyNotFound when absent.
	GetMetadata(ctx context.Context, key string) ([]byte, error)
	// SetMetadata writes a store-scoped metadata blob.
	SetMetadata(ctx context.Context, key string, value []byte) error

	// Destroy removes the store and all its contents.
	Destroy(ctx context.Context) error
	Close() error
}
