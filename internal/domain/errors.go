package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrStorageOpen signals that the index store is absent or unreadable.
	ErrStorageOpen = errors.New("storage open failed")
	// ErrSchemaMissing signals that no schema metadata is stored in the index.
	ErrSchemaMissing = errors.New("schema metadata missing")
	// ErrEncoding signals non-decodable text in a batch being indexed.
	ErrEncoding = errors.New("encoding failed")
	// ErrQueryParse signals a query string rejected by the engine parser.
	ErrQueryParse = errors.New("query parse failed")
	// ErrEmptyQuery signals an empty query string.
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnknownType signals an unregistered entity type.
	ErrUnknownType = errors.New("unknown entity type")
)
