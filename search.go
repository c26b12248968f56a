package haystack

import (
	"time"

	"github.com/joshuajonah/xapian-haystack/internal/domain/facet"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/result"
	searchuc "github.com/joshuajonah/xapian-haystack/internal/usecase/search"
)

// GapUnit is the stepping unit of a date facet.
type GapUnit string

// Gap units.
const (
	GapYear   GapUnit = "year"
	GapMonth  GapUnit = "month"
	GapDay    GapUnit = "day"
	GapHour   GapUnit = "hour"
	GapMinute GapUnit = "minute"
	GapSecond GapUnit = "second"
)

// DateFacetOptions parameterises one date facet. Buckets run from Start up
// to but not including End.
type DateFacetOptions struct {
	Start     time.Time
	End       time.Time
	GapBy     GapUnit
	GapAmount int
}

// SearchOptions parameterise one search run. The zero value returns every
// match, relevance-ordered, without facets.
type SearchOptions struct {
	// SortBy lists schema fields; a "-" prefix inverts the order.
	SortBy []string
	// StartOffset/EndOffset delimit the result page. EndOffset 0 means
	// unbounded.
	StartOffset int
	EndOffset   int
	// Highlight wraps matched query words in the content field.
	Highlight bool
	// Facets names schema fields to tally by value.
	Facets []string
	// DateFacets maps schema fields to bucket options.
	DateFacets map[string]DateFacetOptions
	// QueryFacets maps facet names to raw sub-queries; only hit counts are
	// reported.
	QueryFacets map[string]string
	// NarrowQueries are raw queries intersected into the match.
	NarrowQueries []string
	// Boost raises the weight of documents containing the given words.
	Boost map[string]float64
	// IncludeSpelling adds a spelling suggestion to the result set.
	IncludeSpelling bool
}

// Result is one search match.
type Result struct {
	Namespace   string
	TypeName    string
	PK          string
	Score       float64
	Fields      map[string]any
	Highlighted map[string]string
}

// ID returns the dotted entity identity of the result.
func (r Result) ID() string {
	return r.Namespace + "." + r.TypeName + "." + r.PK
}

// FieldFacet counts one distinct observed value of a faceted field.
type FieldFacet struct {
	Value any
	Count int
}

// DateFacet counts results falling after one bucket start timestamp.
type DateFacet struct {
	Start time.Time
	Label string
	Count int
}

// QueryFacet reports the hit count of one sub-query facet.
type QueryFacet struct {
	Query string
	Hits  int
}

// FacetCounts groups every facet kind computed for one search.
type FacetCounts struct {
	Fields  map[string][]FieldFacet
	Dates   map[string][]DateFacet
	Queries map[string]QueryFacet
}

// ResultSet is the outcome of one search run. Hits is the total number of
// matches before paging.
type ResultSet struct {
	Results            []Result
	Hits               int
	Facets             FacetCounts
	SpellingSuggestion string
}

func toOptions(opts *SearchOptions) searchuc.Options {
	if opts == nil {
		return searchuc.Options{}
	}
	out := searchuc.Options{
		SortBy:          opts.SortBy,
		StartOffset:     opts.StartOffset,
		EndOffset:       opts.EndOffset,
		Highlight:       opts.Highlight,
		Facets:          opts.Facets,
		QueryFacets:     opts.QueryFacets,
		NarrowQueries:   opts.NarrowQueries,
		Boost:           opts.Boost,
		IncludeSpelling: opts.IncludeSpelling,
	}
	if len(opts.DateFacets) > 0 {
		out.DateFacets = make(map[string]facet.DateOptions, len(opts.DateFacets))
		for field, d := range opts.DateFacets {
			out.DateFacets[field] = facet.DateOptions{
				Start:     d.Start,
				End:       d.End,
				GapBy:     facet.GapUnit(d.GapBy),
				GapAmount: d.GapAmount,
			}
		}
	}
	return out
}

func toResultSet(env searchuc.Envelope) *ResultSet {
	rs := &ResultSet{
		Results:            make([]Result, len(env.Records)),
		Hits:               env.Hits,
		SpellingSuggestion: env.SpellingSuggestion,
		Facets:             toFacetCounts(env.Facets),
	}
	for i, rec := range env.Records {
		rs.Results[i] = toResult(rec)
	}
	return rs
}

func toResult(rec result.Record) Result {
	return Result{
		Namespace:   rec.Namespace,
		TypeName:    rec.TypeName,
		PK:          rec.PK,
		Score:       rec.Score,
		Fields:      rec.Fields,
		Highlighted: rec.Highlighted,
	}
}

func toFacetCounts(counts facet.Counts) FacetCounts {
	out := FacetCounts{}
	if len(counts.Fields) > 0 {
		out.Fields = make(map[string][]FieldFacet, len(counts.Fields))
		for field, buckets := range counts.Fields {
			converted := make([]FieldFacet, len(buckets))
			for i, b := range buckets {
				converted[i] = FieldFacet{Value: b.Value, Count: b.Count}
			}
			out.Fields[field] = converted
		}
	}
	if len(counts.Dates) > 0 {
		out.Dates = make(map[string][]DateFacet, len(counts.Dates))
		for field, buckets := range counts.Dates {
			converted := make([]DateFacet, len(buckets))
			for i, b := range buckets {
				converted[i] = DateFacet{Start: b.Start, Label: b.Label, Count: b.Count}
			}
			out.Dates[field] = converted
		}
	}
	if len(counts.Queries) > 0 {
		out.Queries = make(map[string]QueryFacet, len(counts.Queries))
		for name, b := range counts.Queries {
			out.Queries[name] = QueryFacet{Query: b.Query, Hits: b.Hits}
		}
	}
	return out
}
