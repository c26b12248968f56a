package indexing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/joshuajonah/xapian-haystack/internal/db/sqlite"
	"github.com/joshuajonah/xapian-haystack/internal/domain"
	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/engine"
)

var noteModel = filter.ModelRef{Namespace: "app", Name: "note"}

func noteSchema() schema.Schema {
	return schema.Build([]schema.Declaration{
		{Name: "text", Type: schema.Text, Indexed: true, Document: true},
		{Name: "title", Type: schema.Text, Indexed: true},
		{Name: "status", Type: schema.Long, Indexed: true},
	})
}

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	store, err := sqlite.NewStore(sqlite.Config{Path: filepath.Join(t.TempDir(), "index.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil, engine.NewStemmer("english"), zap.NewNop()), store
}

func TestUpdateIndexesAndCounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Update(ctx, noteModel, noteSchema(), []Entity{
		{PK: "1", Fields: map[string]any{"text": "hello world", "title": "first", "status": 2}},
		{PK: "2", Fields: map[string]any{"text": "more words", "title": "second", "status": 5}},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got := svc.DocumentCount(ctx); got != 2 {
		t.Errorf("DocumentCount() = %d, want 2", got)
	}
}

func TestUpdateReplacesByIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := svc.Update(ctx, noteModel, noteSchema(), []Entity{
			{PK: "1", Fields: map[string]any{"text": "hello", "status": i}},
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}
	if got := svc.DocumentCount(ctx); got != 1 {
		t.Errorf("DocumentCount() = %d, want 1", got)
	}
}

func TestUpdateInvalidEncodingAbortsBatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Update(ctx, noteModel, noteSchema(), []Entity{
		{PK: "1", Fields: map[string]any{"text": "fine"}},
		{PK: "2", Fields: map[string]any{"text": "broken \xff\xfe"}},
		{PK: "3", Fields: map[string]any{"text": "never reached"}},
	})
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("Update() error = %v, want ErrEncoding", err)
	}

	// The offender aborts before itself and everything after it.
	if got := svc.DocumentCount(ctx); got != 1 {
		t.Errorf("DocumentCount() = %d, want 1", got)
	}
}

func TestUpdateRequiresSchema(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Update(context.Background(), noteModel, schema.Schema{}, []Entity{
		{PK: "1", Fields: map[string]any{"text": "hello"}},
	})
	if !errors.Is(err, domain.ErrSchemaMissing) {
		t.Fatalf("Update() error = %v, want ErrSchemaMissing", err)
	}
}

func TestRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Update(ctx, noteModel, noteSchema(), []Entity{
		{PK: "1", Fields: map[string]any{"text": "hello"}},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := svc.Remove(ctx, noteModel, "1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := svc.DocumentCount(ctx); got != 0 {
		t.Errorf("DocumentCount() = %d, want 0", got)
	}
}

func TestClearByModelAndAll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	memoModel := filter.ModelRef{Namespace: "app", Name: "memo"}

	seed := func() {
		for _, m := range []filter.ModelRef{noteModel, memoModel} {
			err := svc.Update(ctx, m, noteSchema(), []Entity{
				{PK: "1", Fields: map[string]any{"text": "hello"}},
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
		}
	}

	seed()
	if err := svc.Clear(ctx, []filter.ModelRef{noteModel}); err != nil {
		t.Fatalf("Clear(note) error = %v", err)
	}
	if got := svc.DocumentCount(ctx); got != 1 {
		t.Errorf("DocumentCount() after model clear = %d, want 1", got)
	}

	seed()
	if err := svc.Clear(ctx, nil); err != nil {
		t.Fatalf("Clear(all) error = %v", err)
	}
	if got := svc.DocumentCount(ctx); got != 0 {
		t.Errorf("DocumentCount() after full clear = %d, want 0", got)
	}
}

func TestSchemaPersisted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	err := svc.Update(ctx, noteModel, noteSchema(), nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	s := store.(interface {
		GetMetadata(ctx context.Context, key string) ([]byte, error)
	})
	data, err := s.GetMetadata(ctx, MetaSchemaKey)
	if err != nil {
		t.Fatalf("GetMetadata(schema) error = %v", err)
	}
	fields, err := schema.DecodeFields(data)
	if err != nil {
		t.Fatalf("DecodeFields() error = %v", err)
	}
	if len(fields) != 3 {
		t.Errorf("persisted %d fields, want 3", len(fields))
	}

	content, err := s.GetMetadata(ctx, MetaContentKey)
	if err != nil {
		t.Fatalf("GetMetadata(content) error = %v", err)
	}
	if string(content) != "text" {
		t.Errorf("content field = %q, want %q", content, "text")
	}
}
