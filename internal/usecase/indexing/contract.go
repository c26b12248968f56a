package indexing

import (
	"context"

	"github.com/joshuajonah/xapian-haystack/internal/db"
)

// Store defines the storage contract for index maintenance.
type Store interface {
	ReplaceDocument(ctx context.Context, doc db.Document) error
	DeleteByTerm(ctx context.Context, term string) error
	TermsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	DocCount(ctx context.Context) (int, error)
	SetMetadata(ctx context.Context, key string, value []byte) error
	Destroy(ctx context.Context) error
}
