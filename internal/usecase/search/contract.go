package search

import (
	"github.com/joshuajonah/xapian-haystack/internal/db"
	"github.com/joshuajonah/xapian-haystack/internal/domain/facet"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/result"
)

// Store is the read side of the index: the full driver contract, since
// matching walks postings, values and payloads alike.
type Store = db.Store

// Options parameterise one search run.
type Options struct {
	// SortBy lists schema fields; a "-" prefix inverts the order.
	SortBy []string
	// StartOffset/EndOffset delimit the result page. EndOffset 0 means
	// unbounded.
	StartOffset int
	EndOffset   int
	// Highlight wraps query words in the content field of each record.
	Highlight bool
	// Facets names schema fields to tally by value.
	Facets []string
	// DateFacets maps schema fields to bucket options.
	DateFacets map[string]facet.DateOptions
	// QueryFacets maps facet names to raw sub-queries.
	QueryFacets map[string]string
	// NarrowQueries are raw queries intersected into the match.
	NarrowQueries []string
	// Boost raises the weight of documents containing the given words.
	Boost map[string]float64
	// IncludeSpelling adds a spelling suggestion to the envelope.
	IncludeSpelling bool
}

// Envelope is the result of one search run.
type Envelope struct {
	Records            []result.Record
	Hits               int
	Facets             facet.Counts
	SpellingSuggestion string
}
