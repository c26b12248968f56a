package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/joshuajonah/xapian-haystack/internal/db"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewStore(Config{Path: path})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStoreReplaceAndLookup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	doc := db.Document{
		UniqueTerm: "Qapp.note.1",
		Terms:      []string{"Qapp.note.1", "hello", "world", "XTITLEhello"},
		Values:     map[int]string{0: "000000000005", 1: "hello"},
		Data:       []byte(`{"pk":"1"}`),
	}
	if err := s.ReplaceDocument(ctx, doc); err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}

	n, err := s.DocCount(ctx)
	if err != nil {
		t.Fatalf("DocCount() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("DocCount() = %d, want 1", n)
	}

	bm, err := s.Postings(ctx, "hello")
	if err != nil {
		t.Fatalf("Postings() error = %v", err)
	}
	if bm.GetCardinality() != 1 {
		t.Fatalf("Postings(hello) cardinality = %d", bm.GetCardinality())
	}
	docid := bm.Minimum()

	data, err := s.DocData(ctx, docid)
	if err != nil {
		t.Fatalf("DocData() error = %v", err)
	}
	if string(data) != `{"pk":"1"}` {
		t.Errorf("DocData() = %q", data)
	}

	vals, err := s.DocValues(ctx, docid)
	if err != nil {
		t.Fatalf("DocValues() error = %v", err)
	}
	if vals[0] != "000000000005" || vals[1] != "hello" {
		t.Errorf("DocValues() = %v", vals)
	}

	terms, err := s.DocTerms(ctx, docid)
	if err != nil {
		t.Fatalf("DocTerms() error = %v", err)
	}
	if len(terms) != 4 {
		t.Errorf("DocTerms() = %v, want 4 terms", terms)
	}
}

func TestStoreReplaceDropsStaleEntries(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	doc := db.Document{
		UniqueTerm: "Qapp.note.1",
		Terms:      []string{"Qapp.note.1", "old"},
		Values:     map[int]string{0: "aaa"},
		Data:       []byte("v1"),
	}
	if err := s.ReplaceDocument(ctx, doc); err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}

	doc.Terms = []string{"Qapp.note.1", "new"}
	doc.Values = map[int]string{0: "bbb"}
	doc.Data = []byte("v2")
	if err := s.ReplaceDocument(ctx, doc); err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}

	n, err := s.DocCount(ctx)
	if err != nil {
		t.Fatalf("DocCount() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("DocCount() = %d, want 1", n)
	}

	old, err := s.Postings(ctx, "old")
	if err != nil {
		t.Fatalf("Postings() error = %v", err)
	}
	if !old.IsEmpty() {
		t.Error("stale postings survived replace")
	}

	stale, err := s.DocsInValueRange(ctx, 0, "aaa", "aaa")
	if err != nil {
		t.Fatalf("DocsInValueRange() error = %v", err)
	}
	if !stale.IsEmpty() {
		t.Error("stale slot value survived replace")
	}
}

func TestStoreDeleteByTerm(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		doc := db.Document{
			UniqueTerm: fmt.Sprintf("Qapp.note.%d", i),
			Terms:      []string{fmt.Sprintf("Qapp.note.%d", i), "XCONTENTTYPEapp.note"},
			Data:       []byte("x"),
		}
		if err := s.ReplaceDocument(ctx, doc); err != nil {
			t.Fatalf("ReplaceDocument() error = %v", err)
		}
	}

	if err := s.DeleteByTerm(ctx, "XCONTENTTYPEapp.note"); err != nil {
		t.Fatalf("DeleteByTerm() error = %v", err)
	}
	n, err := s.DocCount(ctx)
	if err != nil {
		t.Fatalf("DocCount() error = %v", err)
	}
	if n != 0 {
		t.Errorf("DocCount() = %d, want 0", n)
	}
}

func TestStoreTermsWithPrefix(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	doc := db.Document{
		UniqueTerm: "Qapp.note.1",
		Terms:      []string{"Qapp.note.1", "XTITLEfoo", "XTITLEbar", "XSTATUSopen", "plain"},
		Data:       []byte("x"),
	}
	if err := s.ReplaceDocument(ctx, doc); err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}

	terms, err := s.TermsWithPrefix(ctx, "XTITLE")
	if err != nil {
		t.Fatalf("TermsWithPrefix() error = %v", err)
	}
	if !reflect.DeepEqual(terms, []string{"XTITLEbar", "XTITLEfoo"}) {
		t.Errorf("TermsWithPrefix(XTITLE) = %v", terms)
	}
}

func TestStoreValueRangeInclusive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i, v := range []string{"000000000001", "000000000005", "000000000009"} {
		doc := db.Document{
			UniqueTerm: fmt.Sprintf("Qapp.note.%d", i),
			Terms:      []string{fmt.Sprintf("Qapp.note.%d", i)},
			Values:     map[int]string{0: v},
			Data:       []byte("x"),
		}
		if err := s.ReplaceDocument(ctx, doc); err != nil {
			t.Fatalf("ReplaceDocument() error = %v", err)
		}
	}

	bm, err := s.DocsInValueRange(ctx, 0, "000000000005", "000000000009")
	if err != nil {
		t.Fatalf("DocsInValueRange() error = %v", err)
	}
	if bm.GetCardinality() != 2 {
		t.Errorf("cardinality = %d, want 2 (both bounds inclusive)", bm.GetCardinality())
	}
}

func TestStoreMetadataAndPersistence(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetMetadata(ctx, "schema"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("GetMetadata() error = %v, want ErrKeyNotFound", err)
	}
	if err := s.SetMetadata(ctx, "schema", []byte("[]")); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}
	doc := db.Document{UniqueTerm: "Qapp.note.1", Terms: []string{"Qapp.note.1"}, Data: []byte("x")}
	if err := s.ReplaceDocument(ctx, doc); err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Everything must survive a reopen.
	s2, err := NewStore(Config{Path: path})
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	defer s2.Close()

	got, err := s2.GetMetadata(ctx, "schema")
	if err != nil {
		t.Fatalf("GetMetadata() after reopen error = %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("GetMetadata() = %q", got)
	}
	n, err := s2.DocCount(ctx)
	if err != nil {
		t.Fatalf("DocCount() after reopen error = %v", err)
	}
	if n != 1 {
		t.Errorf("DocCount() after reopen = %d, want 1", n)
	}
}

func TestStoreDestroyRemovesFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewStore(Config{Path: path})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	ctx := context.Background()
	doc := db.Document{UniqueTerm: "Qapp.note.1", Terms: []string{"Qapp.note.1"}, Data: []byte("x")}
	if err := s.ReplaceDocument(ctx, doc); err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}

	if err := s.Destroy(ctx); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("database file still exists after Destroy")
	}
}

func TestStoreDocDataMissing(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.DocData(context.Background(), 42); !errors.Is(err, db.ErrDocNotFound) {
		t.Errorf("DocData() error = %v, want ErrDocNotFound", err)
	}
}
