// Package search runs compiled queries against the index and assembles
// result envelopes: records, facet counts, highlighting and spelling.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joshuajonah/xapian-haystack/internal/codec"
	"github.com/joshuajonah/xapian-haystack/internal/db"
	"github.com/joshuajonah/xapian-haystack/internal/domain/document"
	"github.com/joshuajonah/xapian-haystack/internal/domain/facet"
	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/result"
	"github.com/joshuajonah/xapian-haystack/internal/engine"
	"github.com/joshuajonah/xapian-haystack/internal/highlight"
	"github.com/joshuajonah/xapian-haystack/internal/query"
	"github.com/joshuajonah/xapian-haystack/internal/usecase/indexing"
	"github.com/joshuajonah/xapian-haystack/internal/value"
)

// Service executes searches over one index store.
type Service struct {
	store    Store
	eng      *engine.Engine
	codec    codec.Codec
	stemmer  *engine.Stemmer
	spelling bool
	log      *zap.Logger
}

// New creates a search service. spelling enables suggestion lookups for
// queries that ask for them.
func New(store Store, c codec.Codec, stemmer *engine.Stemmer, spelling bool, log *zap.Logger) *Service {
	if c == nil {
		c = codec.Default
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		eng:      &engine.Engine{Store: store},
		codec:    c,
		stemmer:  stemmer,
		spelling: spelling,
		log:      log,
	}
}

// Search runs a compiled query string. An empty query returns an empty
// envelope without touching the store.
func (s *Service) Search(ctx context.Context, queryString string, opts Options) (Envelope, error) {
	if queryString == "" {
		return Envelope{}, nil
	}

	sch, err := s.loadSchema(ctx)
	if err != nil {
		return Envelope{}, err
	}
	parser := s.parser(sch)

	q := parser.Parse(queryString)
	for _, narrow := range opts.NarrowQueries {
		q = engine.FilterBy(q, parser.Parse(narrow))
	}
	if len(opts.Boost) > 0 {
		// Boost terms are conjoined and each scaled by its amount; a
		// document matching all of them gains the scaled extra weight.
		boosted := make([]*engine.Query, 0, len(opts.Boost))
		for word, amount := range opts.Boost {
			boosted = append(boosted, engine.Scale(parser.Parse(word), amount))
		}
		q = engine.Or(q, engine.And(boosted...))
	}

	env, err := s.run(ctx, q, queryString, sch, opts)
	if err != nil {
		return Envelope{}, err
	}

	if s.spelling && opts.IncludeSpelling {
		suggestion, err := s.suggest(ctx, queryString)
		if err != nil {
			return Envelope{}, err
		}
		env.SpellingSuggestion = suggestion
	}
	return env, nil
}

// MoreLikeThis finds documents similar to one indexed entity. The seed
// itself is excluded; additional, when non-empty, is intersected in. An
// unknown seed yields an empty envelope.
func (s *Service) MoreLikeThis(ctx context.Context, model filter.ModelRef, pk string, additional string, opts Options) (Envelope, error) {
	sch, err := s.loadSchema(ctx)
	if err != nil {
		return Envelope{}, err
	}

	identifier := document.Identifier(model.Namespace, model.Name, pk)
	seed, err := s.store.Postings(ctx, identifier)
	if err != nil {
		return Envelope{}, fmt.Errorf("lookup seed %s: %w", identifier, err)
	}
	if seed.IsEmpty() {
		return Envelope{}, nil
	}

	terms, err := s.eng.Expand(ctx, seed.ToArray(), -1, func(term string) bool {
		return !strings.HasPrefix(term, document.ContentTypeTermPrefix)
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("expand %s: %w", identifier, err)
	}

	subs := make([]*engine.Query, len(terms))
	for i, term := range terms {
		subs[i] = engine.Term(term)
	}
	q := engine.AndNot(engine.Or(subs...), engine.Term(identifier))
	if additional != "" {
		q = engine.And(q, s.parser(sch).Parse(additional))
	}

	return s.run(ctx, q, "", sch, opts)
}

func (s *Service) parser(sch schema.Schema) *engine.Parser {
	return &engine.Parser{
		Stemmer: s.stemmer,
		Ranges:  query.NewRangeResolver(sch).Resolve,
	}
}

// run matches q and assembles the envelope shared by Search and
// MoreLikeThis.
func (s *Service) run(ctx context.Context, q *engine.Query, rawQuery string, sch schema.Schema, opts Options) (Envelope, error) {
	limit := -1
	if opts.EndOffset > 0 {
		limit = opts.EndOffset - opts.StartOffset
		if limit < 0 {
			limit = 0
		}
	}

	ms, err := s.eng.Match(ctx, q, engine.MatchOptions{
		Sort:   sortKeys(sch, opts.SortBy),
		Offset: opts.StartOffset,
		Limit:  limit,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("match: %w", err)
	}

	records := make([]result.Record, 0, len(ms.Entries))
	for _, entry := range ms.Entries {
		rec, err := s.decode(ctx, entry, sch, rawQuery, opts.Highlight)
		if err != nil {
			return Envelope{}, err
		}
		records = append(records, rec)
	}

	env := Envelope{Records: records, Hits: ms.Estimated}
	if len(opts.Facets) > 0 || len(opts.DateFacets) > 0 || len(opts.QueryFacets) > 0 {
		counts := facet.Counts{}
		if len(opts.Facets) > 0 {
			counts.Fields = facet.CountFields(records, opts.Facets)
		}
		if len(opts.DateFacets) > 0 {
			counts.Dates = facet.CountDates(records, opts.DateFacets)
		}
		if len(opts.QueryFacets) > 0 {
			counts.Queries, err = s.queryFacets(ctx, opts.QueryFacets)
			if err != nil {
				return Envelope{}, err
			}
		}
		env.Facets = counts
	}
	return env, nil
}

func (s *Service) decode(ctx context.Context, entry engine.Entry, sch schema.Schema, rawQuery string, doHighlight bool) (result.Record, error) {
	data, err := s.store.DocData(ctx, entry.DocID)
	if err != nil {
		return result.Record{}, fmt.Errorf("read document %d: %w", entry.DocID, err)
	}
	var payload document.Payload
	if err := s.codec.Unmarshal(data, &payload); err != nil {
		return result.Record{}, fmt.Errorf("decode document %d: %w", entry.DocID, err)
	}

	rec := result.Record{
		Namespace: payload.Namespace,
		TypeName:  payload.TypeName,
		PK:        payload.PK,
		Score:     entry.Weight,
		Fields:    payload.Fields,
	}
	if doHighlight && rawQuery != "" && sch.ContentField != "" {
		text := value.Text(payload.Fields[sch.ContentField])
		rec.Highlighted = map[string]string{
			sch.ContentField: highlight.Highlight(text, rawQuery),
		}
	}
	return rec, nil
}

// queryFacets runs each sub-query and reports its hit count. Per-bucket
// result sets are not exposed.
func (s *Service) queryFacets(ctx context.Context, queries map[string]string) (map[string]facet.QueryBucket, error) {
	s.log.Warn("query facets count hits only; per-bucket results are not supported")

	buckets := make(map[string]facet.QueryBucket, len(queries))
	for name, fq := range queries {
		sub, err := s.Search(ctx, fq, Options{})
		if err != nil {
			return nil, fmt.Errorf("query facet %s: %w", name, err)
		}
		buckets[name] = facet.QueryBucket{Query: fq, Hits: sub.Hits}
	}
	return buckets, nil
}

// suggest corrects each word of the raw query from the term dictionary and
// reassembles the phrase. Words without a nearby term pass through.
func (s *Service) suggest(ctx context.Context, queryString string) (string, error) {
	words := engine.Tokenize(queryString)
	if len(words) == 0 {
		return "", nil
	}
	out := make([]string, len(words))
	changed := false
	for i, word := range words {
		fixed, err := s.eng.Suggest(ctx, word)
		if err != nil {
			return "", fmt.Errorf("suggest %q: %w", word, err)
		}
		if fixed == "" {
			fixed = word
		}
		if fixed != word {
			changed = true
		}
		out[i] = fixed
	}
	if !changed {
		return "", nil
	}
	return strings.Join(out, " "), nil
}

// loadSchema reads the persisted schema; a store that has never been
// written to yields an empty schema.
func (s *Service) loadSchema(ctx context.Context) (schema.Schema, error) {
	data, err := s.store.GetMetadata(ctx, indexing.MetaSchemaKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return schema.Schema{}, nil
		}
		return schema.Schema{}, fmt.Errorf("load schema: %w", err)
	}
	fields, err := schema.DecodeFields(data)
	if err != nil {
		return schema.Schema{}, err
	}

	content, err := s.store.GetMetadata(ctx, indexing.MetaContentKey)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return schema.Schema{}, fmt.Errorf("load content field: %w", err)
	}
	return schema.Schema{ContentField: string(content), Fields: fields}, nil
}

func sortKeys(sch schema.Schema, sortBy []string) []engine.SortKey {
	keys := make([]engine.SortKey, 0, len(sortBy))
	for _, field := range sortBy {
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		keys = append(keys, engine.SortKey{Slot: sch.Column(field), Desc: desc})
	}
	return keys
}
