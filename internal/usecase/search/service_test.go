package search

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/joshuajonah/xapian-haystack/internal/db"
	"github.com/joshuajonah/xapian-haystack/internal/db/sqlite"
	"github.com/joshuajonah/xapian-haystack/internal/domain/facet"
	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/engine"
	"github.com/joshuajonah/xapian-haystack/internal/usecase/indexing"
)

var noteModel = filter.ModelRef{Namespace: "app", Name: "note"}

// newFixture indexes three notes and returns a search service over them.
func newFixture(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.NewStore(sqlite.Config{Path: filepath.Join(t.TempDir(), "index.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sch := schema.Build([]schema.Declaration{
		{Name: "text", Type: schema.Text, Indexed: true, Document: true},
		{Name: "title", Type: schema.Text, Indexed: true},
		{Name: "status", Type: schema.Long, Indexed: true},
		{Name: "pub_date", Type: schema.DateTime, Indexed: true},
	})

	stemmer := engine.NewStemmer("english")
	idx := indexing.New(store, nil, stemmer, zap.NewNop())
	day := func(d int) time.Time { return time.Date(2009, 2, d, 0, 0, 0, 0, time.UTC) }
	err = idx.Update(context.Background(), noteModel, sch, []indexing.Entity{
		{PK: "1", Fields: map[string]any{
			"text": "the first searchable note", "title": "first", "status": 2, "pub_date": day(2),
		}},
		{PK: "2", Fields: map[string]any{
			"text": "another searchable note about indexes", "title": "second", "status": 5, "pub_date": day(10),
		}},
		{PK: "3", Fields: map[string]any{
			"text": "unrelated document", "title": "third", "status": 9, "pub_date": day(20),
		}},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	return New(store, nil, stemmer, true, zap.NewNop())
}

func pks(env Envelope) []string {
	out := make([]string, len(env.Records))
	for i, rec := range env.Records {
		out[i] = rec.PK
	}
	return out
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if env.Hits != 0 || len(env.Records) != 0 {
		t.Errorf("empty query returned %d hits", env.Hits)
	}
}

func TestSearchMatchAll(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "*", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if env.Hits != 3 {
		t.Errorf("Hits = %d, want 3", env.Hits)
	}
}

func TestSearchContentAndFieldTerms(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	env, err := svc.Search(ctx, "searchable", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if env.Hits != 2 {
		t.Errorf("searchable hits = %d, want 2", env.Hits)
	}

	env, err = svc.Search(ctx, "title:second", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); len(got) != 1 || got[0] != "2" {
		t.Errorf("title:second = %v, want [2]", got)
	}
}

func TestSearchStemmedMatch(t *testing.T) {
	svc := newFixture(t)
	// "indexes" was indexed; its stem matches the stem of "indexing".
	env, err := svc.Search(context.Background(), "indexing", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); len(got) != 1 || got[0] != "2" {
		t.Errorf("stemmed match = %v, want [2]", got)
	}
}

func TestSearchRangeClause(t *testing.T) {
	svc := newFixture(t)
	// Inclusive range over the long field.
	env, err := svc.Search(context.Background(), "status:2..5", Options{SortBy: []string{"status"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("status:2..5 = %v, want [1 2]", got)
	}
}

func TestSearchSortAndPaging(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	env, err := svc.Search(ctx, "*", Options{SortBy: []string{"-status"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); strings.Join(got, ",") != "3,2,1" {
		t.Errorf("descending status = %v, want [3 2 1]", got)
	}

	env, err = svc.Search(ctx, "*", Options{SortBy: []string{"status"}, StartOffset: 1, EndOffset: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if env.Hits != 3 {
		t.Errorf("Hits = %d, want 3", env.Hits)
	}
	if got := pks(env); len(got) != 1 || got[0] != "2" {
		t.Errorf("page = %v, want [2]", got)
	}
}

func TestSearchNarrowQueries(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "searchable", Options{
		NarrowQueries: []string{"title:first"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); len(got) != 1 || got[0] != "1" {
		t.Errorf("narrowed = %v, want [1]", got)
	}
}

func TestSearchBoostScalesWeight(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	// Note 1 matches both words, note 2 only "searchable"; unboosted it
	// ranks below note 1.
	env, err := svc.Search(ctx, "first searchable", Options{
		Boost: map[string]float64{"indexes": 0.25},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); got[0] != "1" {
		t.Errorf("weak boost order = %v, want note 1 first", got)
	}

	// A larger boost amount lifts note 2 past note 1.
	env, err = svc.Search(ctx, "first searchable", Options{
		Boost: map[string]float64{"indexes": 4},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := pks(env); got[0] != "2" {
		t.Errorf("strong boost order = %v, want note 2 first", got)
	}
}

func TestSearchHighlight(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "unrelated", Options{Highlight: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(env.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(env.Records))
	}
	got := env.Records[0].Highlighted["text"]
	if got != "<em>unrelated</em> document" {
		t.Errorf("highlighted = %q", got)
	}
}

func TestSearchFieldFacets(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "*", Options{Facets: []string{"title"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := len(env.Facets.Fields["title"]); got != 3 {
		t.Errorf("title facet buckets = %d, want 3", got)
	}
}

func TestSearchDateFacets(t *testing.T) {
	svc := newFixture(t)
	day := func(d int) time.Time { return time.Date(2009, 2, d, 0, 0, 0, 0, time.UTC) }

	env, err := svc.Search(context.Background(), "*", Options{
		DateFacets: map[string]facet.DateOptions{
			"pub_date": {Start: day(1), End: day(22), GapBy: facet.GapDay, GapAmount: 7},
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	buckets := env.Facets.Dates["pub_date"]
	if len(buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(buckets))
	}
	// Newest week first; each weekly bucket holds one note.
	if buckets[0].Label != "2009-02-15T00:00:00" {
		t.Errorf("first bucket = %q, want the newest week", buckets[0].Label)
	}
	for i, want := range []int{1, 1, 1} {
		if buckets[i].Count != want {
			t.Errorf("bucket %d count = %d, want %d", i, buckets[i].Count, want)
		}
	}
}

func TestSearchQueryFacets(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "*", Options{
		QueryFacets: map[string]string{"open": "searchable"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	bucket := env.Facets.Queries["open"]
	if bucket.Hits != 2 {
		t.Errorf("query facet hits = %d, want 2", bucket.Hits)
	}
}

func TestSearchSpellingSuggestion(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.Search(context.Background(), "serchable", Options{IncludeSpelling: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if env.SpellingSuggestion != "searchable" {
		t.Errorf("SpellingSuggestion = %q, want %q", env.SpellingSuggestion, "searchable")
	}
}

func TestMoreLikeThis(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.MoreLikeThis(context.Background(), noteModel, "1", "", Options{})
	if err != nil {
		t.Fatalf("MoreLikeThis() error = %v", err)
	}
	for _, pk := range pks(env) {
		if pk == "1" {
			t.Error("seed document included in its own similarity results")
		}
	}
	if env.Hits == 0 {
		t.Error("MoreLikeThis() found nothing")
	}
}

func TestMoreLikeThisUnknownSeed(t *testing.T) {
	svc := newFixture(t)
	env, err := svc.MoreLikeThis(context.Background(), noteModel, "999", "", Options{})
	if err != nil {
		t.Fatalf("MoreLikeThis() error = %v", err)
	}
	if env.Hits != 0 {
		t.Errorf("Hits = %d, want 0", env.Hits)
	}
}

func TestSearchBeforeAnyIndexing(t *testing.T) {
	store, err := sqlite.NewStore(sqlite.Config{Path: filepath.Join(t.TempDir(), "index.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var _ db.Store = store
	svc := New(store, nil, engine.NewStemmer("english"), false, zap.NewNop())
	env, err := svc.Search(context.Background(), "anything", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if env.Hits != 0 {
		t.Errorf("Hits = %d, want 0", env.Hits)
	}
}
