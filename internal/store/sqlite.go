package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"local_rag/internal/embedding"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore keeps records in one SQLite table and answers queries with a
// brute-force cosine scan. The autoincrement seq column is the insertion
// order.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens or creates <dir>/vectors.db with a table named after the
// collection.
func OpenSQLite(dir, collection string) (*SQLiteStore, error) {
	if !tableName.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name for sqlite: %q", collection)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := filepath.Join(dir, "vectors.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, table: collection}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    source     TEXT NOT NULL,
    content    TEXT NOT NULL,
    meta       TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    dimension  INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_source ON %[1]s(source);
`, s.table)
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return writeErr(rec.ID, errors.New("empty id"))
	}
	if len(rec.Embedding) == 0 {
		return writeErr(rec.ID, errors.New("empty embedding"))
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return writeErr(rec.ID, err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, source, content, meta, embedding, dimension, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    source = excluded.source,
    content = excluded.content,
    meta = excluded.meta,
    embedding = excluded.embedding,
    dimension = excluded.dimension`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Source(), rec.Content, string(meta),
		EncodeEmbedding(rec.Embedding), len(rec.Embedding),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return writeErr(rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, query []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT seq, id, content, meta, embedding FROM %s ORDER BY seq`, s.table))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var (
			m    Match
			meta string
			blob []byte
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", m.ID, err)
		}
		if len(vec) != len(query) {
			return nil, fmt.Errorf("record %s: embedding dimension %d does not match query dimension %d", m.ID, len(vec), len(query))
		}
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			return nil, fmt.Errorf("record %s: invalid metadata: %w", m.ID, err)
		}
		m.Score = embedding.Cosine(query, vec)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rank(matches, topK), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE source = ?`, s.table), source); err != nil {
		return fmt.Errorf("failed to delete records of %s: %w", source, err)
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("failed to drop records: %w", err)
	}
	return s.ensureSchema()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
