// Package indexing maintains the document index: building term and value
// records from prepared entities and writing them through a db.Store.
package indexing

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/joshuajonah/xapian-haystack/internal/codec"
	"github.com/joshuajonah/xapian-haystack/internal/db"
	"github.com/joshuajonah/xapian-haystack/internal/domain"
	"github.com/joshuajonah/xapian-haystack/internal/domain/document"
	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/engine"
	"github.com/joshuajonah/xapian-haystack/internal/value"
)

// Metadata keys for the persisted schema.
const (
	MetaSchemaKey  = "schema"
	MetaContentKey = "content"
)

// Entity is one prepared object handed to Update: its primary key and the
// prepared per-field values.
type Entity struct {
	PK     string
	Fields map[string]any
}

// Service writes entities into the index.
type Service struct {
	store   Store
	codec   codec.Codec
	stemmer *engine.Stemmer
	log     *zap.Logger
}

// New creates an indexing service.
func New(store Store, c codec.Codec, stemmer *engine.Stemmer, log *zap.Logger) *Service {
	if c == nil {
		c = codec.Default
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, codec: c, stemmer: stemmer, log: log}
}

// Update indexes the entities of one declared type, replacing any previous
// record with the same identity. The schema is persisted alongside so
// read-only openers reconstruct the same column layout.
//
// Every prepared value must stringify to valid UTF-8; the first offender
// aborts the batch and no later entity is written.
func (s *Service) Update(ctx context.Context, model filter.ModelRef, sch schema.Schema, entities []Entity) error {
	if len(sch.Fields) == 0 {
		return fmt.Errorf("%w: update requires a declared schema", domain.ErrSchemaMissing)
	}
	if err := s.persistSchema(ctx, sch); err != nil {
		return err
	}

	for _, ent := range entities {
		doc, err := s.buildDocument(model, sch, ent)
		if err != nil {
			s.log.Error("indexing batch aborted",
				zap.String("model", model.String()),
				zap.String("pk", ent.PK),
				zap.Error(err))
			return err
		}
		if err := s.store.ReplaceDocument(ctx, doc); err != nil {
			return fmt.Errorf("replace document %s: %w", ent.PK, err)
		}
	}
	return nil
}

// Remove deletes one entity from the index.
func (s *Service) Remove(ctx context.Context, model filter.ModelRef, pk string) error {
	term := document.Identifier(model.Namespace, model.Name, pk)
	if err := s.store.DeleteByTerm(ctx, term); err != nil {
		return fmt.Errorf("remove %s: %w", term, err)
	}
	return nil
}

// Clear empties the index for the given types, or for every indexed type
// when models is empty. The persisted schema survives.
func (s *Service) Clear(ctx context.Context, models []filter.ModelRef) error {
	var markers []string
	if len(models) == 0 {
		terms, err := s.store.TermsWithPrefix(ctx, document.ContentTypeTermPrefix)
		if err != nil {
			return fmt.Errorf("list type markers: %w", err)
		}
		markers = terms
	} else {
		for _, m := range models {
			markers = append(markers, document.TypeMarker(m.Namespace, m.Name))
		}
	}
	for _, marker := range markers {
		if err := s.store.DeleteByTerm(ctx, marker); err != nil {
			return fmt.Errorf("clear %s: %w", marker, err)
		}
	}
	return nil
}

// DocumentCount returns the number of indexed documents, 0 when the store
// cannot be read.
func (s *Service) DocumentCount(ctx context.Context) int {
	n, err := s.store.DocCount(ctx)
	if err != nil {
		s.log.Warn("document count unavailable", zap.Error(err))
		return 0
	}
	return n
}

// DeleteIndex destroys the store and all its contents.
func (s *Service) DeleteIndex(ctx context.Context) error {
	if err := s.store.Destroy(ctx); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}

func (s *Service) persistSchema(ctx context.Context, sch schema.Schema) error {
	encoded, err := schema.EncodeFields(sch.Fields)
	if err != nil {
		return err
	}
	if err := s.store.SetMetadata(ctx, MetaSchemaKey, encoded); err != nil {
		return fmt.Errorf("persist schema: %w", err)
	}
	if err := s.store.SetMetadata(ctx, MetaContentKey, []byte(sch.ContentField)); err != nil {
		return fmt.Errorf("persist content field: %w", err)
	}
	return nil
}

func (s *Service) buildDocument(model filter.ModelRef, sch schema.Schema, ent Entity) (db.Document, error) {
	identifier := document.Identifier(model.Namespace, model.Name, ent.PK)

	terms := []string{identifier, document.TypeMarker(model.Namespace, model.Name)}
	values := make(map[int]string, len(sch.Fields))

	for _, f := range sch.Fields {
		v, ok := ent.Fields[f.Name]
		if !ok {
			continue
		}
		text := value.Text(v)
		if !utf8.ValidString(text) {
			return db.Document{}, fmt.Errorf("%w: field %q of %s", domain.ErrEncoding, f.Name, identifier)
		}

		values[f.Column] = value.Marshal(v)

		prefix := document.FieldPrefix(f.Name)
		for _, word := range engine.Tokenize(text) {
			terms = append(terms, prefix+word)
			if stem, ok := s.stemmer.Stem(word); ok {
				terms = append(terms, document.StemTermPrefix+prefix+stem)
			}
			if f.Name == sch.ContentField {
				terms = append(terms, word)
				if stem, ok := s.stemmer.Stem(word); ok {
					terms = append(terms, document.StemTermPrefix+stem)
				}
			}
		}
	}

	payload := document.Payload{
		Version:   document.PayloadVersion,
		Namespace: model.Namespace,
		TypeName:  model.Name,
		PK:        ent.PK,
		Fields:    ent.Fields,
	}
	data, err := s.codec.Marshal(payload)
	if err != nil {
		return db.Document{}, fmt.Errorf("encode payload %s: %w", identifier, err)
	}

	return db.Document{
		UniqueTerm: identifier,
		Terms:      terms,
		Values:     values,
		Data:       data,
	}, nil
}
