// Package sqlite implements db.Store over an embedded SQLite database.
// It is the default driver; the store is a single file at the configured path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/joshuajonah/xapian-haystack/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds the store location.
type Config struct {
	Path string
}

// Store implements db.Store over modernc.org/sqlite.
type Store struct {
	sqldb *sql.DB
	path  string
}

const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	docid       INTEGER PRIMARY KEY AUTOINCREMENT,
	unique_term TEXT NOT NULL UNIQUE,
	data        BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS postings (
	term  TEXT    NOT NULL,
	docid INTEGER NOT NULL,
	PRIMARY KEY (term, docid)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS postings_docid ON postings (docid);
CREATE TABLE IF NOT EXISTS slot_values (
	docid INTEGER NOT NULL,
	slot  INTEGER NOT NULL,
	value BLOB    NOT NULL,
	PRIMARY KEY (docid, slot)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS slot_values_range ON slot_values (slot, value);
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// NewStore opens (creating if missing) the index store at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// A single connection keeps writes serialized and transactions simple.
	sqldb.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := sqldb.ExecContext(ctx, pragma); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if _, err := sqldb.ExecContext(ctx, ddl); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{sqldb: sqldb, path: cfg.Path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.sqldb.Close()
}

// ReplaceDocument upserts a document by its unique term.
func (s *Store) ReplaceDocument(ctx context.Context, doc db.Document) error {
	tx, err := s.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var docid int64
	err = tx.QueryRowContext(ctx,
		`SELECT docid FROM documents WHERE unique_term = ?`, doc.UniqueTerm,
	).Scan(&docid)
	switch {
	case err == sql.ErrNoRows:
		res, insErr := tx.ExecContext(ctx,
			`INSERT INTO documents (unique_term, data) VALUES (?, ?)`,
			doc.UniqueTerm, doc.Data,
		)
		if insErr != nil {
			return &db.Error{Op: "insert document", Err: insErr}
		}
		docid, _ = res.LastInsertId()
	case err != nil:
		return &db.Error{Op: "lookup document", Err: err}
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET data = ? WHERE docid = ?`, doc.Data, docid,
		); err != nil {
			return &db.Error{Op: "update document", Err: err}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM postings WHERE docid = ?`, docid,
		); err != nil {
			return &db.Error{Op: "clear postings", Err: err}
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM slot_values WHERE docid = ?`, docid,
		); err != nil {
			return &db.Error{Op: "clear values", Err: err}
		}
	}

	for _, term := range doc.Terms {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO postings (term, docid) VALUES (?, ?)`, term, docid,
		); err != nil {
			return &db.Error{Op: "insert posting", Err: err}
		}
	}
	for slot, val := range doc.Values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO slot_values (docid, slot, value) VALUES (?, ?, ?)`,
			docid, slot, []byte(val),
		); err != nil {
			return &db.Error{Op: "insert value", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: "commit", Err: err}
	}
	return nil
}

// DeleteByTerm removes every document bearing the given term.
func (s *Store) DeleteByTerm(ctx context.Context, term string) error {
	tx, err := s.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT docid FROM postings WHERE term = ?`, term,
	)
	if err != nil {
		return &db.Error{Op: "select postings", Err: err}
	}
	var docids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return &db.Error{Op: "scan posting", Err: err}
		}
		docids = append(docids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &db.Error{Op: "iterate postings", Err: err}
	}

	for _, id := range docids {
		for _, stmt := range []string{
			`DELETE FROM postings WHERE docid = ?`,
			`DELETE FROM slot_values WHERE docid = ?`,
			`DELETE FROM documents WHERE docid = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return &db.Error{Op: "delete document", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: "commit", Err: err}
	}
	return nil
}

// Postings returns the docids carrying a term.
func (s *Store) Postings(ctx context.Context, term string) (*roaring.Bitmap, error) {
	rows, err := s.sqldb.QueryContext(ctx,
		`SELECT docid FROM postings WHERE term = ?`, term,
	)
	if err != nil {
		return nil, &db.Error{Op: "postings", Err: err}
	}
	defer rows.Close()
	return scanBitmap(rows)
}

// TermsWithPrefix lists distinct terms starting with prefix, sorted.
func (s *Store) TermsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	// Terms are UTF-8; \xff never occurs, so it bounds the prefix range.
	upper := prefix + "\xff"
	rows, err := s.sqldb.QueryContext(ctx,
		`SELECT DISTINCT term FROM postings WHERE term >= ? AND term < ? ORDER BY term`,
		prefix, upper,
	)
	if err != nil {
		return nil, &db.Error{Op: "terms", Err: err}
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, &db.Error{Op: "scan term", Err: err}
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// AllDocIDs returns every docid in the store.
func (s *Store) AllDocIDs(ctx context.Context) (*roaring.Bitmap, error) {
	rows, err := s.sqldb.QueryContext(ctx, `SELECT docid FROM documents`)
	if err != nil {
		return nil, &db.Error{Op: "all docids", Err: err}
	}
	defer rows.Close()
	return scanBitmap(rows)
}

// DocTerms lists the terms of one document.
func (s *Store) DocTerms(ctx context.Context, docid uint32) ([]string, error) {
	rows, err := s.sqldb.QueryContext(ctx,
		`SELECT term FROM postings WHERE docid = ? ORDER BY term`, int64(docid),
	)
	if err != nil {
		return nil, &db.Error{Op: "doc terms", Err: err}
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, &db.Error{Op: "scan term", Err: err}
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// DocData returns the opaque payload of one document.
func (s *Store) DocData(ctx context.Context, docid uint32) ([]byte, error) {
	var data []byte
	err := s.sqldb.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE docid = ?`, int64(docid),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, db.ErrDocNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: "doc data", Err: err}
	}
	return data, nil
}

// DocValues returns the slot values of one document.
func (s *Store) DocValues(ctx context.Context, docid uint32) (map[int]string, error) {
	rows, err := s.sqldb.QueryContext(ctx,
		`SELECT slot, value FROM slot_values WHERE docid = ?`, int64(docid),
	)
	if err != nil {
		return nil, &db.Error{Op: "doc values", Err: err}
	}
	defer rows.Close()

	values := make(map[int]string)
	for rows.Next() {
		var slot int
		var val []byte
		if err := rows.Scan(&slot, &val); err != nil {
			return nil, &db.Error{Op: "scan value", Err: err}
		}
		values[slot] = string(val)
	}
	return values, rows.Err()
}

// DocsInValueRange returns docids whose slot value lies in [lo, hi].
// BLOB comparison is bytewise, matching the order-preserving encodings.
func (s *Store) DocsInValueRange(ctx context.Context, slot int, lo, hi string) (*roaring.Bitmap, error) {
	rows, err := s.sqldb.QueryContext(ctx,
		`SELECT docid FROM slot_values WHERE slot = ? AND value >= ? AND value <= ?`,
		slot, []byte(lo), []byte(hi),
	)
	if err != nil {
		return nil, &db.Error{Op: "value range", Err: err}
	}
	defer rows.Close()
	return scanBitmap(rows)
}

// DocCount returns the number of stored documents.
func (s *Store) DocCount(ctx context.Context) (int, error) {
	var n int
	if err := s.sqldb.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents`,
	).Scan(&n); err != nil {
		return 0, &db.Error{Op: "doc count", Err: err}
	}
	return n, nil
}

// GetMetadata reads a store-scoped metadata blob.
func (s *Store) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.sqldb.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key,
	).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: "get metadata", Err: err}
	}
	return val, nil
}

// SetMetadata writes a store-scoped metadata blob.
func (s *Store) SetMetadata(ctx context.Context, key string, value []byte) error {
	if _, err := s.sqldb.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return &db.Error{Op: "set metadata", Err: err}
	}
	return nil
}

// Destroy closes the handle and removes the database files.
func (s *Store) Destroy(ctx context.Context) error {
	if err := s.sqldb.Close(); err != nil {
		return fmt.Errorf("close before destroy: %w", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := s.path + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

func scanBitmap(rows *sql.Rows) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &db.Error{Op: "scan docid", Err: err}
		}
		bm.Add(uint32(id))
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: "iterate docids", Err: err}
	}
	return bm, nil
}
