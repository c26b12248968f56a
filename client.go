// Package haystack is a schema'd full-text search backend: declared entity
// indexes are tokenized, stemmed and stored through a pluggable driver
// (sqlite or Redis), then queried with a compiled boolean query language
// with faceting, highlighting, similarity and spelling support.
package haystack

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuajonah/xapian-haystack/internal/db"
	dbRedis "github.com/joshuajonah/xapian-haystack/internal/db/redis"
	dbSqlite "github.com/joshuajonah/xapian-haystack/internal/db/sqlite"
	"github.com/joshuajonah/xapian-haystack/internal/domain"
	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/engine"
	indexinguc "github.com/joshuajonah/xapian-haystack/internal/usecase/indexing"
	searchuc "github.com/joshuajonah/xapian-haystack/internal/usecase/search"
)

// Backend is the haystack SDK entry point: one Backend owns one index
// store.
type Backend struct {
	store     db.Store
	indexSvc  *indexinguc.Service
	searchSvc *searchuc.Service
}

// New creates a Backend and opens its store.
func New(opts ...Option) (*Backend, error) {
	cfg := &backendConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.driver == "" {
		return nil, errors.New("haystack: storage required (use WithSQLite or WithRedis)")
	}
	if cfg.log == nil {
		cfg.log = zap.NewNop()
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	language := cfg.stemmingLanguage
	if cfg.noStemming {
		language = ""
	} else if language == "" {
		language = "english"
	}
	stemmer := engine.NewStemmer(language)
	return &Backend{
		store:     store,
		indexSvc:  indexinguc.New(store, nil, stemmer, cfg.log),
		searchSvc: searchuc.New(store, nil, stemmer, cfg.spelling, cfg.log),
	}, nil
}

func createStore(cfg *backendConfig) (db.Store, error) {
	switch cfg.driver {
	case "sqlite":
		s, err := dbSqlite.NewStore(dbSqlite.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("haystack: %w: sqlite: %w", domain.ErrStorageOpen, err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Username:  cfg.username,
			Password:  cfg.password,
			DB:        cfg.db,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("haystack: %w: redis: %w", domain.ErrStorageOpen, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("haystack: unknown driver %q", cfg.driver)
	}
}

// Close releases the store.
func (b *Backend) Close() error {
	return b.store.Close()
}

// Update indexes objects through their declared index, replacing any
// previous record with the same identity.
func (b *Backend) Update(ctx context.Context, index ModelIndex, objs ...any) error {
	entities := make([]indexinguc.Entity, len(objs))
	for i, obj := range objs {
		entities[i] = indexinguc.Entity{
			PK:     index.PrimaryKey(obj),
			Fields: index.Prepare(obj),
		}
	}
	return b.indexSvc.Update(ctx, modelRef(index), buildSchema(index.Fields()), entities)
}

// Remove deletes one object from the index.
func (b *Backend) Remove(ctx context.Context, index ModelIndex, pk string) error {
	return b.indexSvc.Remove(ctx, modelRef(index), pk)
}

// Clear empties the index for the given types, or for every indexed type
// when models is empty.
func (b *Backend) Clear(ctx context.Context, models ...ModelRef) error {
	refs := make([]filter.ModelRef, len(models))
	for i, m := range models {
		refs[i] = filter.ModelRef{Namespace: m.Namespace, Name: m.Name}
	}
	return b.indexSvc.Clear(ctx, refs)
}

// DocumentCount returns the number of indexed documents, 0 when the store
// cannot be read.
func (b *Backend) DocumentCount(ctx context.Context) int {
	return b.indexSvc.DocumentCount(ctx)
}

// DeleteIndex destroys the store and all its contents. The Backend is
// unusable afterwards.
func (b *Backend) DeleteIndex(ctx context.Context) error {
	return b.indexSvc.DeleteIndex(ctx)
}

// Search runs a raw query string. Use Query for the structured builder.
func (b *Backend) Search(ctx context.Context, query string, opts *SearchOptions) (*ResultSet, error) {
	env, err := b.searchSvc.Search(ctx, query, toOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("haystack: search: %w", err)
	}
	return toResultSet(env), nil
}

// MoreLikeThis finds documents similar to one indexed object. The object
// itself is excluded from the results.
func (b *Backend) MoreLikeThis(ctx context.Context, model ModelRef, pk string, additionalQuery string, opts *SearchOptions) (*ResultSet, error) {
	ref := filter.ModelRef{Namespace: model.Namespace, Name: model.Name}
	env, err := b.searchSvc.MoreLikeThis(ctx, ref, pk, additionalQuery, toOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("haystack: more like this: %w", err)
	}
	return toResultSet(env), nil
}

// Query starts a structured query against this backend.
func (b *Backend) Query() *QueryBuilder {
	return &QueryBuilder{backend: b}
}

func modelRef(index ModelIndex) filter.ModelRef {
	return filter.ModelRef{Namespace: index.Namespace(), Name: index.TypeName()}
}

func buildSchema(decls []FieldDeclaration) schema.Schema {
	converted := make([]schema.Declaration, len(decls))
	for i, d := range decls {
		converted[i] = schema.Declaration{
			Name:        d.Name,
			Type:        schema.FieldType(d.Type),
			Indexed:     d.Indexed,
			Document:    d.Document,
			MultiValued: d.MultiValued,
		}
	}
	return schema.Build(converted)
}
