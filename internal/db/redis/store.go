// Package redis implements db.Store over Redis via rueidis.
//
// Layout under the configured key prefix: a docid sequence, a unique-term
// index hash, per-term posting sets, a lexicographic term dictionary zset,
// per-document hashes (payload, terms, slot values), and per-slot
// lexicographic zsets of hex-encoded values for range scans.
package redis

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/redis/rueidis"

	"github.com/joshuajonah/xapian-haystack/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements db.Store via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "haystack:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, prefix: prefix}, nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Store) key(parts ...string) string {
	return s.prefix + strings.Join(parts, "")
}

// slotMember builds the lexicographic zset member for a slot value. Hex keeps
// bytewise order and leaves "." (below '0') free as the docid separator.
func slotMember(value string, docid int64) string {
	return hex.EncodeToString([]byte(value)) + "." + strconv.FormatInt(docid, 10)
}

// ReplaceDocument upserts a document by its unique term.
func (s *Store) ReplaceDocument(ctx context.Context, doc db.Document) error {
	old, err := s.client.Do(ctx,
		s.client.B().Hget().Key(s.key("uniq")).Field(doc.UniqueTerm).Build(),
	).AsInt64()
	if err != nil && !rueidis.IsRedisNil(err) {
		return &db.Error{Op: "HGET", Err: err}
	}
	if err == nil {
		if err := s.deleteDoc(ctx, old); err != nil {
			return err
		}
	}

	docid, err := s.client.Do(ctx,
		s.client.B().Incr().Key(s.key("seq")).Build(),
	).AsInt64()
	if err != nil {
		return &db.Error{Op: "INCR", Err: err}
	}
	id := strconv.FormatInt(docid, 10)

	cmds := []rueidis.Completed{
		s.client.B().Hset().Key(s.key("uniq")).
			FieldValue().FieldValue(doc.UniqueTerm, id).Build(),
		s.client.B().Sadd().Key(s.key("ids")).Member(id).Build(),
		s.client.B().Hset().Key(s.key("doc:", id)).
			FieldValue().
			FieldValue("data", string(doc.Data)).
			FieldValue("uterm", doc.UniqueTerm).Build(),
	}

	for _, term := range doc.Terms {
		cmds = append(cmds,
			s.client.B().Sadd().Key(s.key("post:", term)).Member(id).Build(),
			s.client.B().Sadd().Key(s.key("docterms:", id)).Member(term).Build(),
			s.client.B().Zadd().Key(s.key("terms")).
				ScoreMember().ScoreMember(0, term).Build(),
		)
	}
	for slot, val := range doc.Values {
		sl := strconv.Itoa(slot)
		cmds = append(cmds,
			s.client.B().Hset().Key(s.key("vals:", id)).
				FieldValue().FieldValue(sl, val).Build(),
			s.client.B().Zadd().Key(s.key("slot:", sl)).
				ScoreMember().ScoreMember(0, slotMember(val, docid)).Build(),
		)
	}

	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: "replace document", Err: err}
		}
	}
	return nil
}

func (s *Store) deleteDoc(ctx context.Context, docid int64) error {
	id := strconv.FormatInt(docid, 10)

	terms, err := s.client.Do(ctx,
		s.client.B().Smembers().Key(s.key("docterms:", id)).Build(),
	).AsStrSlice()
	if err != nil {
		return &db.Error{Op: "SMEMBERS", Err: err}
	}
	for _, term := range terms {
		if err := s.client.Do(ctx,
			s.client.B().Srem().Key(s.key("post:", term)).Member(id).Build(),
		).Error(); err != nil {
			return &db.Error{Op: "SREM", Err: err}
		}
		left, err := s.client.Do(ctx,
			s.client.B().Scard().Key(s.key("post:", term)).Build(),
		).AsInt64()
		if err != nil {
			return &db.Error{Op: "SCARD", Err: err}
		}
		if left == 0 {
			if err := s.client.Do(ctx,
				s.client.B().Zrem().Key(s.key("terms")).Member(term).Build(),
			).Error(); err != nil {
				return &db.Error{Op: "ZREM", Err: err}
			}
		}
	}

	vals, err := s.client.Do(ctx,
		s.client.B().Hgetall().Key(s.key("vals:", id)).Build(),
	).AsStrMap()
	if err != nil {
		return &db.Error{Op: "HGETALL", Err: err}
	}
	for slot, val := range vals {
		if err := s.client.Do(ctx,
			s.client.B().Zrem().Key(s.key("slot:", slot)).
				Member(slotMember(val, docid)).Build(),
		).Error(); err != nil {
			return &db.Error{Op: "ZREM", Err: err}
		}
	}

	uterm, err := s.client.Do(ctx,
		s.client.B().Hget().Key(s.key("doc:", id)).Field("uterm").Build(),
	).ToString()
	if err != nil && !rueidis.IsRedisNil(err) {
		return &db.Error{Op: "HGET", Err: err}
	}

	cmds := []rueidis.Completed{
		s.client.B().Del().Key(s.key("doc:", id)).Key(s.key("docterms:", id)).
			Key(s.key("vals:", id)).Build(),
		s.client.B().Srem().Key(s.key("ids")).Member(id).Build(),
	}
	if uterm != "" {
		cmds = append(cmds,
			s.client.B().Hdel().Key(s.key("uniq")).Field(uterm).Build(),
		)
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: "delete document", Err: err}
		}
	}
	return nil
}

// DeleteByTerm removes every document bearing the given term.
func (s *Store) DeleteByTerm(ctx context.Context, term string) error {
	ids, err := s.client.Do(ctx,
		s.client.B().Smembers().Key(s.key("post:", term)).Build(),
	).AsStrSlice()
	if err != nil {
		return &db.Error{Op: "SMEMBERS", Err: err}
	}
	for _, id := range ids {
		docid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return &db.Error{Op: "parse docid", Err: err}
		}
		if err := s.deleteDoc(ctx, docid); err != nil {
			return err
		}
	}
	return nil
}

// Postings returns the docids carrying a term.
func (s *Store) Postings(ctx context.Context, term string) (*roaring.Bitmap, error) {
	return s.memberBitmap(ctx, s.key("post:", term))
}

// AllDocIDs returns every docid in the store.
func (s *Store) AllDocIDs(ctx context.Context) (*roaring.Bitmap, error) {
	return s.memberBitmap(ctx, s.key("ids"))
}

func (s *Store) memberBitmap(ctx context.Context, key string) (*roaring.Bitmap, error) {
	ids, err := s.client.Do(ctx,
		s.client.B().Smembers().Key(key).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: "SMEMBERS", Err: err}
	}
	bm := roaring.New()
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, &db.Error{Op: "parse docid", Err: err}
		}
		bm.Add(uint32(n))
	}
	return bm, nil
}

// TermsWithPrefix lists distinct terms starting with prefix, sorted.
func (s *Store) TermsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	terms, err := s.client.Do(ctx,
		s.client.B().Zrangebylex().Key(s.key("terms")).
			Min("["+prefix).Max("("+prefix+"\xff").Build(),
	).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: "ZRANGEBYLEX", Err: err}
	}
	return terms, nil
}

// DocTerms lists the terms of one document.
func (s *Store) DocTerms(ctx context.Context, docid uint32) ([]string, error) {
	terms, err := s.client.Do(ctx,
		s.client.B().Smembers().
			Key(s.key("docterms:", strconv.FormatUint(uint64(docid), 10))).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: "SMEMBERS", Err: err}
	}
	sort.Strings(terms)
	return terms, nil
}

// DocData returns the opaque payload of one document.
func (s *Store) DocData(ctx context.Context, docid uint32) ([]byte, error) {
	data, err := s.client.Do(ctx,
		s.client.B().Hget().
			Key(s.key("doc:", strconv.FormatUint(uint64(docid), 10))).
			Field("data").Build(),
	).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrDocNotFound
		}
		return nil, &db.Error{Op: "HGET", Err: err}
	}
	return data, nil
}

// DocValues returns the slot values of one document.
func (s *Store) DocValues(ctx context.Context, docid uint32) (map[int]string, error) {
	vals, err := s.client.Do(ctx,
		s.client.B().Hgetall().
			Key(s.key("vals:", strconv.FormatUint(uint64(docid), 10))).Build(),
	).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: "HGETALL", Err: err}
	}
	values := make(map[int]string, len(vals))
	for slot, val := range vals {
		n, err := strconv.Atoi(slot)
		if err != nil {
			return nil, &db.Error{Op: "parse slot", Err: err}
		}
		values[n] = val
	}
	return values, nil
}

// DocsInValueRange returns docids whose slot value lies in [lo, hi].
func (s *Store) DocsInValueRange(ctx context.Context, slot int, lo, hi string) (*roaring.Bitmap, error) {
	// "/" sorts between "." and "0", so it upper-bounds all members of hi.
	members, err := s.client.Do(ctx,
		s.client.B().Zrangebylex().Key(s.key("slot:", strconv.Itoa(slot))).
			Min("["+hex.EncodeToString([]byte(lo))).
			Max("["+hex.EncodeToString([]byte(hi))+"/").Build(),
	).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: "ZRANGEBYLEX", Err: err}
	}

	bm := roaring.New()
	for _, m := range members {
		i := strings.LastIndexByte(m, '.')
		if i < 0 {
			continue
		}
		n, err := strconv.ParseUint(m[i+1:], 10, 32)
		if err != nil {
			return nil, &db.Error{Op: "parse member", Err: err}
		}
		bm.Add(uint32(n))
	}
	return bm, nil
}

// DocCount returns the number of stored documents.
func (s *Store) DocCount(ctx context.Context) (int, error) {
	n, err := s.client.Do(ctx,
		s.client.B().Scard().Key(s.key("ids")).Build(),
	).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: "SCARD", Err: err}
	}
	return int(n), nil
}

// GetMetadata reads a store-scoped metadata blob.
func (s *Store) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx,
		s.client.B().Hget().Key(s.key("meta")).Field(key).Build(),
	).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: "HGET", Err: err}
	}
	return data, nil
}

// SetMetadata writes a store-scoped metadata blob.
func (s *Store) SetMetadata(ctx context.Context, key string, value []byte) error {
	if err := s.client.Do(ctx,
		s.client.B().Hset().Key(s.key("meta")).
			FieldValue().FieldValue(key, string(value)).Build(),
	).Error(); err != nil {
		return &db.Error{Op: "HSET", Err: err}
	}
	return nil
}

// Destroy removes every key under the store prefix.
func (s *Store) Destroy(ctx context.Context) error {
	var cursor uint64
	for {
		entry, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).
				Match(s.prefix+"*").Count(512).Build(),
		).AsScanEntry()
		if err != nil {
			return &db.Error{Op: "SCAN", Err: err}
		}
		if len(entry.Elements) > 0 {
			del := s.client.B().Del().Key(entry.Elements...).Build()
			if err := s.client.Do(ctx, del).Error(); err != nil {
				return &db.Error{Op: "DEL", Err: err}
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}
